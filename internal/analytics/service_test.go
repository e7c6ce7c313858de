package analytics_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopulse/ecopulse/internal/analytics"
	"github.com/ecopulse/ecopulse/internal/sensor"
	"github.com/ecopulse/ecopulse/internal/validation"
)

func f(v float64) *float64 { return &v }

func rawReading(sensorID string, lat, lon, aqi float64, at time.Time) *sensor.RawReading {
	return &sensor.RawReading{
		SensorID: sensorID,
		Location: &sensor.RawLocation{Latitude: f(lat), Longitude: f(lon)},
		Readings: &sensor.RawMeasurements{
			AQI:         f(aqi),
			PM25:        f(12),
			PM10:        f(20),
			Ozone:       f(30),
			NO2:         f(15),
			Temperature: f(18),
			Humidity:    f(55),
			Timestamp:   at,
		},
		DeviceInfo: &sensor.RawDeviceInfo{BatteryLevel: f(90), Status: "active"},
	}
}

type countingArchiver struct {
	calls atomic.Int32
	err   error
}

func (a *countingArchiver) Archive(_ context.Context, _ *sensor.SensorReading, _ sensor.QualityBucket) error {
	a.calls.Add(1)
	return a.err
}

func newService(now func() time.Time) *analytics.Service {
	return analytics.NewService(analytics.ServiceConfig{
		Logger: zerolog.Nop(),
		Now:    now,
	})
}

func TestService_EndToEndRisingSequence(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()

	for i, aqi := range []float64{40, 120, 220} {
		_, err := svc.Submit(ctx, rawReading("s1", 52.37, 4.89, aqi, baseTime.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	got, err := svc.Sensor("s1")
	require.NoError(t, err)
	assert.Equal(t, 220, got.Stats.MaxAQI)
	assert.Equal(t, 40, got.Stats.MinAQI)
	assert.Equal(t, 3, got.Stats.ReadingsCount)

	for i, aqi := range []float64{260, 300} {
		_, err := svc.Submit(ctx, rawReading("s1", 52.37, 4.89, aqi, baseTime.Add(time.Duration(3+i)*time.Minute)))
		require.NoError(t, err)
	}

	got, err = svc.Sensor("s1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stats.ReadingsCount)
	assert.Equal(t, analytics.TrendIncreasing, got.Trends.Direction)
	assert.Greater(t, got.Trends.ChangeRate, analytics.StableThreshold)
	require.NotNil(t, got.Trends.PredictedNext)
}

func TestService_DuplicateWithinMinute(t *testing.T) {
	archiver := &countingArchiver{}
	svc := analytics.NewService(analytics.ServiceConfig{Logger: zerolog.Nop(), Archiver: archiver})
	ctx := context.Background()

	first, err := svc.Submit(ctx, rawReading("s1", 52.37, 4.89, 50, baseTime))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := svc.Submit(ctx, rawReading("s1", 52.37, 4.89, 90, baseTime.Add(20*time.Second)))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.ID, second.ID)

	got, err := svc.Sensor("s1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stats.ReadingsCount)
	assert.Equal(t, int32(1), archiver.calls.Load())

	// One miss for the new reading, one hit for the duplicate.
	stats := svc.CacheStats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestService_ArchiveFailureDoesNotFailIngestion(t *testing.T) {
	archiver := &countingArchiver{err: errors.New("db down")}
	svc := analytics.NewService(analytics.ServiceConfig{Logger: zerolog.Nop(), Archiver: archiver})

	result, err := svc.Submit(context.Background(), rawReading("s1", 52.37, 4.89, 50, baseTime))
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, int32(1), archiver.calls.Load())
}

func TestService_RejectsInvalidReading(t *testing.T) {
	svc := newService(nil)

	raw := rawReading("s1", 52.37, 4.89, 501, baseTime)
	_, err := svc.Submit(context.Background(), raw)

	require.Error(t, err)
	assert.ErrorIs(t, err, sensor.ErrInvalidReading)
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "readings.aqi", verr.Fields[0].Field)

	_, err = svc.Sensor("s1")
	assert.ErrorIs(t, err, analytics.ErrSensorNotFound)
}

func TestService_SubmitJSON(t *testing.T) {
	svc := newService(nil)

	body := []byte(`{
		"sensorId": "json-1",
		"location": {"latitude": 52.1, "longitude": 5.1},
		"readings": {"aqi": 33, "timestamp": "2026-03-01T12:00:00Z"}
	}`)
	result, err := svc.SubmitJSON(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, "json-1", result.SensorID)
	assert.Equal(t, 33, result.Analytics.Stats.AverageAQI)
}

func TestService_ConcurrentSubmissions(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()

	const sensors = 8
	const perSensor = 25

	var wg sync.WaitGroup
	for s := 0; s < sensors; s++ {
		for i := 0; i < perSensor; i++ {
			wg.Add(1)
			go func(s, i int) {
				defer wg.Done()
				id := fmt.Sprintf("s%d", s)
				_, err := svc.Submit(ctx, rawReading(id, 52, 4, 100, baseTime.Add(time.Duration(i)*time.Minute)))
				assert.NoError(t, err)
			}(s, i)
		}
	}
	wg.Wait()

	all := svc.Sensors()
	require.Len(t, all, sensors)
	for _, a := range all {
		assert.Equal(t, perSensor, a.Stats.ReadingsCount)
		assert.Equal(t, 100, a.Stats.AverageAQI)
	}
	assert.Zero(t, svc.Pending())
}

func TestService_SubmitContextCancelled(t *testing.T) {
	svc := newService(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Either the reading is processed before the select observes ctx, or ctx wins.
	_, err := svc.Submit(ctx, rawReading("s1", 52, 4, 10, baseTime))
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestService_QueryArea(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()

	// One degree of latitude is about 111.19 km.
	_, err := svc.Submit(ctx, rawReading("center", 0, 0, 10, baseTime))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, rawReading("near", 0.5, 0, 10, baseTime))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, rawReading("far", 2, 0, 10, baseTime))
	require.NoError(t, err)

	got, err := svc.QueryArea(0, 0, 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "center", got[0].SensorID)
	assert.Equal(t, "near", got[1].SensorID)

	got, err = svc.QueryArea(0, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "center", got[0].SensorID)

	_, err = svc.QueryArea(0, 0, -1)
	assert.ErrorIs(t, err, analytics.ErrInvalidArea)
	_, err = svc.QueryArea(91, 0, 10)
	assert.ErrorIs(t, err, analytics.ErrInvalidArea)
}

func TestService_History(t *testing.T) {
	svc := newService(nil)
	for i := 0; i < 3; i++ {
		_, err := svc.Submit(context.Background(), rawReading("s1", 52, 4, float64(10*(i+1)), baseTime.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	history, err := svc.History("s1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 30.0, history[2].AQI)

	_, err = svc.History("missing")
	assert.ErrorIs(t, err, analytics.ErrSensorNotFound)
}

func TestService_SystemHealth(t *testing.T) {
	now := baseTime
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	svc := newService(clock)

	health := svc.SystemHealth()
	assert.Zero(t, health.TotalSensors)
	assert.Zero(t, health.HealthPercentage)

	ctx := context.Background()
	_, err := svc.Submit(ctx, rawReading("good-1", 52, 4, 10, baseTime))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, rawReading("good-2", 52, 4, 10, baseTime))
	require.NoError(t, err)

	bad := rawReading("bad", 52, 4, 10, baseTime)
	bad.Readings = &sensor.RawMeasurements{AQI: f(10), Timestamp: baseTime}
	bad.DeviceInfo = &sensor.RawDeviceInfo{BatteryLevel: f(5), Status: "error"}
	_, err = svc.Submit(ctx, bad)
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(90 * time.Second)
	mu.Unlock()

	health = svc.SystemHealth()
	assert.Equal(t, 3, health.TotalSensors)
	assert.Equal(t, 2, health.ActiveSensors)
	assert.Equal(t, 67, health.HealthPercentage)
	assert.InDelta(t, 90.0, health.UptimeSeconds, 1e-9)
}

func TestService_Cleanup(t *testing.T) {
	now := baseTime
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	svc := newService(clock)
	ctx := context.Background()

	_, err := svc.Submit(ctx, rawReading("stale", 52, 4, 10, baseTime.Add(-10*24*time.Hour)))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, rawReading("fresh", 52, 4, 10, baseTime))
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()

	result := svc.Cleanup(0)
	assert.Equal(t, 1, result.SensorsRemoved)
	assert.Equal(t, 2, result.CacheEntriesPruned)
	assert.Len(t, svc.Sensors(), 1)
}
