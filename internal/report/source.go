package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/ecopulse/ecopulse/internal/sensor"
)

// ErrSourceRejected marks a source failure that retrying cannot fix, such as
// a malformed request.
var ErrSourceRejected = errors.New("historical source rejected the request")

// HistoricalDataSource supplies the readings a report is computed over.
type HistoricalDataSource interface {
	// Name identifies the source in errors and logs.
	Name() string

	// FetchReadings returns the readings whose timestamp lies within r.
	FetchReadings(ctx context.Context, r DateRange) ([]sensor.SensorReading, error)
}

// SimulatedSourceConfig holds configuration for a SimulatedSource.
type SimulatedSourceConfig struct {
	// Sensors is how many sensors are simulated (default: 10).
	Sensors int

	// Interval is the spacing between readings of a sensor (default: 1 hour).
	Interval time.Duration

	// Center is where the simulated sensors are placed around.
	Center sensor.Location

	// Seed makes output deterministic for a given range.
	Seed int64
}

// SimulatedSource generates plausible readings on demand. The same config and
// range always produce the same readings.
type SimulatedSource struct {
	cfg SimulatedSourceConfig
}

// NewSimulatedSource creates a SimulatedSource.
func NewSimulatedSource(cfg SimulatedSourceConfig) *SimulatedSource {
	if cfg.Sensors <= 0 {
		cfg.Sensors = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Center.Latitude == 0 && cfg.Center.Longitude == 0 {
		cfg.Center = sensor.Location{Latitude: 52.3676, Longitude: 4.9041}
	}
	return &SimulatedSource{cfg: cfg}
}

// Name returns the source name.
func (s *SimulatedSource) Name() string {
	return "simulated"
}

// FetchReadings generates readings for every sensor at each interval in r.
func (s *SimulatedSource) FetchReadings(ctx context.Context, r DateRange) ([]sensor.SensorReading, error) {
	if r.End.Before(r.Start) {
		return nil, fmt.Errorf("%w: range ends before it starts", ErrSourceRejected)
	}

	rng := rand.New(rand.NewSource(s.cfg.Seed ^ r.Start.Unix())) //nolint:gosec // simulation, not security

	var out []sensor.SensorReading
	for i := 0; i < s.cfg.Sensors; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := fmt.Sprintf("sim-%03d", i+1)
		loc := sensor.Location{
			Latitude:  s.cfg.Center.Latitude + (rng.Float64()-0.5)*0.2,
			Longitude: s.cfg.Center.Longitude + (rng.Float64()-0.5)*0.2,
		}
		base := 30 + rng.Float64()*60
		for ts := r.Start; !ts.After(r.End); ts = ts.Add(s.cfg.Interval) {
			out = append(out, SimulateReading(rng, id, loc, base, ts))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Readings.Timestamp.Before(out[j].Readings.Timestamp)
	})
	return out, nil
}

// SimulateReading produces one simulated reading around a base AQI, with a daily
// cycle peaking in the late afternoon and occasional device faults.
func SimulateReading(rng *rand.Rand, sensorID string, loc sensor.Location, base float64, ts time.Time) sensor.SensorReading {
	hour := float64(ts.UTC().Hour())
	daily := math.Sin((hour-11)/24*2*math.Pi) * 20
	aqi := clamp(base+daily+rng.NormFloat64()*10, 0, 500)

	ptr := func(v float64) *float64 { return &v }
	status := sensor.StatusActive
	switch p := rng.Float64(); {
	case p < 0.02:
		status = sensor.StatusError
	case p < 0.07:
		status = sensor.StatusMaintenance
	}

	return sensor.SensorReading{
		SensorID: sensorID,
		Location: loc,
		Readings: sensor.Measurements{
			AQI:         math.Round(aqi),
			PM25:        ptr(round2(aqi * 0.35)),
			PM10:        ptr(round2(aqi * 0.6)),
			Ozone:       ptr(round2(20 + rng.Float64()*40)),
			NO2:         ptr(round2(10 + rng.Float64()*30)),
			SO2:         ptr(round2(rng.Float64() * 10)),
			CO:          ptr(round2(rng.Float64())),
			Temperature: ptr(round2(12 + daily/2 + rng.NormFloat64()*2)),
			Humidity:    ptr(round2(clamp(60+rng.NormFloat64()*15, 0, 100))),
			Pressure:    ptr(round2(1013 + rng.NormFloat64()*5)),
			Timestamp:   ts.UTC(),
		},
		DeviceInfo: &sensor.DeviceInfo{
			BatteryLevel: ptr(round2(clamp(100-rng.Float64()*90, 0, 100))),
			Status:       status,
		},
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
