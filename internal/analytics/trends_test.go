package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopulse/ecopulse/internal/analytics"
)

func snapshots(averages ...int) []analytics.Snapshot {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]analytics.Snapshot, len(averages))
	for i, avg := range averages {
		out[i] = analytics.Snapshot{
			AverageAQI: avg,
			AQI:        float64(avg),
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestCalculateTrends_TooFewSnapshots(t *testing.T) {
	trends := analytics.CalculateTrends(snapshots(10, 90))
	assert.Equal(t, analytics.TrendStable, trends.Direction)
	assert.Zero(t, trends.ChangeRate)
	assert.Nil(t, trends.PredictedNext)
}

func TestCalculateTrends_Threshold(t *testing.T) {
	tests := []struct {
		name      string
		averages  []int
		direction analytics.TrendDirection
	}{
		{"exactly five percent up", []int{100, 102, 105}, analytics.TrendIncreasing},
		{"just under five percent", []int{100, 102, 104}, analytics.TrendStable},
		{"exactly five percent down", []int{100, 98, 95}, analytics.TrendDecreasing},
		{"flat", []int{50, 50, 50}, analytics.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trends := analytics.CalculateTrends(snapshots(tt.averages...))
			assert.Equal(t, tt.direction, trends.Direction)
		})
	}
}

func TestCalculateTrends_UsesLastFiveSnapshots(t *testing.T) {
	// The early spike falls outside the window.
	trends := analytics.CalculateTrends(snapshots(10, 200, 100, 100, 101, 102, 100))
	assert.Equal(t, analytics.TrendStable, trends.Direction)
	assert.Zero(t, trends.ChangeRate)
}

func TestCalculateTrends_Prediction(t *testing.T) {
	trends := analytics.CalculateTrends(snapshots(100, 110, 120))
	require.NotNil(t, trends.PredictedNext)
	assert.InDelta(t, 130.0, *trends.PredictedNext, 1e-9)
	assert.InDelta(t, 20.0, trends.ChangeRate, 1e-9)
}

func TestChangeRate_ZeroBase(t *testing.T) {
	assert.Equal(t, 100.0, analytics.ChangeRate(0, 5))
	assert.Equal(t, -100.0, analytics.ChangeRate(0, -5))
	assert.Equal(t, 0.0, analytics.ChangeRate(0, 0))
	assert.InDelta(t, -50.0, analytics.ChangeRate(10, 5), 1e-9)
}

func TestHalfTrend(t *testing.T) {
	direction, rate, first, second := analytics.HalfTrend([]float64{10, 20, 30, 40, 50})
	assert.Equal(t, analytics.TrendIncreasing, direction)
	assert.InDelta(t, 15.0, first, 1e-9)
	assert.InDelta(t, 40.0, second, 1e-9)
	assert.InDelta(t, 166.666, rate, 1e-3)

	direction, rate, _, _ = analytics.HalfTrend([]float64{42})
	assert.Equal(t, analytics.TrendStable, direction)
	assert.Zero(t, rate)
}
