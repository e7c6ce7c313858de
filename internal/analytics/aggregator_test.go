package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopulse/ecopulse/internal/analytics"
	"github.com/ecopulse/ecopulse/internal/sensor"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func reading(sensorID string, aqi float64, at time.Time) *sensor.SensorReading {
	return &sensor.SensorReading{
		SensorID: sensorID,
		Location: sensor.Location{Latitude: 52.37, Longitude: 4.89},
		Readings: sensor.Measurements{AQI: aqi, Timestamp: at},
	}
}

func TestAggregator_RoundedRunningMean(t *testing.T) {
	agg := analytics.NewAggregator(analytics.AggregatorConfig{})

	agg.Update(reading("s1", 10, baseTime), sensor.QualityGood)
	agg.Update(reading("s1", 11, baseTime.Add(time.Minute)), sensor.QualityGood)
	got := agg.Update(reading("s1", 11, baseTime.Add(2*time.Minute)), sensor.QualityGood)

	// round(10.5) = 11, then round((11*2+11)/3) = 11. The exact mean is 10.67.
	assert.Equal(t, 11, got.Stats.AverageAQI)
	assert.Equal(t, 3, got.Stats.ReadingsCount)
}

func TestAggregator_FirstReading(t *testing.T) {
	agg := analytics.NewAggregator(analytics.AggregatorConfig{})

	got := agg.Update(reading("s1", 42.6, baseTime), sensor.QualityExcellent)

	assert.Equal(t, "s1", got.SensorID)
	assert.Equal(t, 43, got.Stats.AverageAQI)
	assert.Equal(t, 43, got.Stats.MaxAQI)
	assert.Equal(t, 43, got.Stats.MinAQI)
	assert.Equal(t, 1, got.Stats.ReadingsCount)
	assert.Equal(t, baseTime, got.Stats.LastUpdate)
	assert.Equal(t, sensor.QualityExcellent, got.Stats.DataQuality)
	assert.Equal(t, analytics.TrendStable, got.Trends.Direction)
}

func TestAggregator_MaxMinAndLatestQuality(t *testing.T) {
	agg := analytics.NewAggregator(analytics.AggregatorConfig{})

	agg.Update(reading("s1", 80, baseTime), sensor.QualityExcellent)
	agg.Update(reading("s1", 20, baseTime.Add(time.Minute)), sensor.QualityGood)
	got := agg.Update(reading("s1", 60, baseTime.Add(2*time.Minute)), sensor.QualityPoor)

	assert.Equal(t, 80, got.Stats.MaxAQI)
	assert.Equal(t, 20, got.Stats.MinAQI)
	assert.Equal(t, sensor.QualityPoor, got.Stats.DataQuality)
	assert.LessOrEqual(t, got.Stats.MinAQI, got.Stats.AverageAQI)
	assert.GreaterOrEqual(t, got.Stats.MaxAQI, got.Stats.AverageAQI)
}

func TestAggregator_HistoryBounded(t *testing.T) {
	agg := analytics.NewAggregator(analytics.AggregatorConfig{HistorySize: 4})

	for i := 0; i < 10; i++ {
		agg.Update(reading("s1", float64(i*10), baseTime.Add(time.Duration(i)*time.Minute)), sensor.QualityGood)
	}

	history := agg.History("s1")
	require.Len(t, history, 4)
	assert.Equal(t, 90.0, history[3].AQI)
	assert.Equal(t, 60.0, history[0].AQI)
}

func TestAggregator_ReturnsCopies(t *testing.T) {
	agg := analytics.NewAggregator(analytics.AggregatorConfig{})
	for i := 0; i < 3; i++ {
		agg.Update(reading("s1", float64(50+i*20), baseTime.Add(time.Duration(i)*time.Minute)), sensor.QualityGood)
	}

	got, ok := agg.Get("s1")
	require.True(t, ok)
	require.NotNil(t, got.Trends.PredictedNext)

	got.Stats.AverageAQI = -1
	*got.Trends.PredictedNext = -1

	again, _ := agg.Get("s1")
	assert.NotEqual(t, -1, again.Stats.AverageAQI)
	assert.NotEqual(t, -1.0, *again.Trends.PredictedNext)
}

func TestAggregator_Cleanup(t *testing.T) {
	agg := analytics.NewAggregator(analytics.AggregatorConfig{})
	agg.Update(reading("old", 50, baseTime), sensor.QualityGood)
	agg.Update(reading("new", 50, baseTime.Add(47*time.Hour)), sensor.QualityGood)

	removed := agg.Cleanup(baseTime.Add(48*time.Hour), 24*time.Hour)

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, agg.Len())
	_, ok := agg.Get("old")
	assert.False(t, ok)
	assert.Empty(t, agg.History("old"))
}

func TestAggregator_AllSorted(t *testing.T) {
	agg := analytics.NewAggregator(analytics.AggregatorConfig{})
	for _, id := range []string{"c", "a", "b"} {
		agg.Update(reading(id, 10, baseTime), sensor.QualityGood)
	}

	all := agg.All()
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].SensorID)
	assert.Equal(t, "b", all[1].SensorID)
	assert.Equal(t, "c", all[2].SensorID)
}
