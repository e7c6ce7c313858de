package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ecopulse/ecopulse/internal/analytics"
	"github.com/ecopulse/ecopulse/internal/sensor"
	"github.com/ecopulse/ecopulse/pkg/geo"
)

// Alert thresholds.
const (
	criticalAQI = 200
	warningAQI  = 100
)

// Recommendation thresholds.
const (
	highAverageAQI       = 100
	risingTrendMagnitude = 10
)

// predictionFactor scales the half-over-half change into the next-value estimate.
const predictionFactor = 0.5

var percentileRanks = [...]float64{0.25, 0.5, 0.75, 0.95, 0.99}

// applyFilters keeps the readings matching the sensor allowlist, then any of
// the area circles, then the quality allowlist.
func applyFilters(readings []sensor.SensorReading, f Filters) []sensor.SensorReading {
	out := readings

	if len(f.SensorIDs) > 0 {
		allowed := make(map[string]struct{}, len(f.SensorIDs))
		for _, id := range f.SensorIDs {
			allowed[id] = struct{}{}
		}
		out = filter(out, func(r *sensor.SensorReading) bool {
			_, ok := allowed[r.SensorID]
			return ok
		})
	}

	if len(f.Areas) > 0 {
		circles := make([]geo.Circle, len(f.Areas))
		for i, a := range f.Areas {
			circles[i] = geo.Circle{Center: a.Center, RadiusKm: a.RadiusKm}
		}
		out = filter(out, func(r *sensor.SensorReading) bool {
			return geo.WithinAny(r.Location.Point(), circles)
		})
	}

	if len(f.DataQuality) > 0 {
		allowed := make(map[sensor.QualityBucket]struct{}, len(f.DataQuality))
		for _, q := range f.DataQuality {
			allowed[q] = struct{}{}
		}
		out = filter(out, func(r *sensor.SensorReading) bool {
			_, ok := allowed[sensor.Score(r)]
			return ok
		})
	}

	return out
}

func filter(readings []sensor.SensorReading, keep func(*sensor.SensorReading) bool) []sensor.SensorReading {
	out := make([]sensor.SensorReading, 0, len(readings))
	for i := range readings {
		if keep(&readings[i]) {
			out = append(out, readings[i])
		}
	}
	return out
}

// summarize computes the report-wide AQI summary and the number of readings
// carrying each metric. Coverage compares the number of readings with one
// reading per sensor per hour of the range. DataPoints is left to the caller,
// since it depends on the requested metrics.
func summarize(readings []sensor.SensorReading, period DateRange) (Summary, map[sensor.Metric]int) {
	points := make(map[sensor.Metric]int, len(sensor.Metrics))
	if len(readings) == 0 {
		return Summary{}, points
	}

	var sum float64
	maxAQI, minAQI := math.Inf(-1), math.Inf(1)
	sensors := make(map[string]struct{})

	for i := range readings {
		r := &readings[i]
		aqi := r.Readings.AQI
		sum += aqi
		maxAQI = math.Max(maxAQI, aqi)
		minAQI = math.Min(minAQI, aqi)
		sensors[r.SensorID] = struct{}{}

		for _, m := range sensor.Metrics {
			if _, ok := r.Readings.Value(m); ok {
				points[m]++
			}
		}
	}

	hours := math.Ceil(period.End.Sub(period.Start).Hours())
	if hours < 1 {
		hours = 1
	}
	expected := float64(len(sensors)) * hours
	coverage := math.Min(float64(len(readings))/expected*100, 100)

	return Summary{
		TotalReadings:   len(readings),
		AverageAQI:      int(math.Round(sum / float64(len(readings)))),
		MaxAQI:          int(math.Round(maxAQI)),
		MinAQI:          int(math.Round(minAQI)),
		CoveragePercent: math.Round(coverage*100) / 100,
	}, points
}

// metricValues returns the values of one metric in reading order.
// Readings must be sorted by timestamp.
func metricValues(readings []sensor.SensorReading, metric sensor.Metric) []float64 {
	values := make([]float64, 0, len(readings))
	for i := range readings {
		if v, ok := readings[i].Readings.Value(metric); ok {
			values = append(values, v)
		}
	}
	return values
}

// computeMetricStats computes the statistics of one metric series.
func computeMetricStats(values []float64) MetricStats {
	if len(values) == 0 {
		return MetricStats{Trend: analytics.TrendStable}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range values {
		sum += v
	}

	direction, rate, _, _ := analytics.HalfTrend(values)

	return MetricStats{
		Average:    round2(sum / float64(len(values))),
		Max:        sorted[len(sorted)-1],
		Min:        sorted[0],
		Trend:      direction,
		ChangeRate: round2(rate),
		Percentiles: Percentiles{
			P25: percentile(sorted, percentileRanks[0]),
			P50: percentile(sorted, percentileRanks[1]),
			P75: percentile(sorted, percentileRanks[2]),
			P95: percentile(sorted, percentileRanks[3]),
			P99: percentile(sorted, percentileRanks[4]),
		},
	}
}

// percentile returns sorted[floor(n*p)], clamped to the last element.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// aqiTrend compares the first and second half of the AQI series.
func aqiTrend(readings []sensor.SensorReading, withPrediction bool) AQITrend {
	values := metricValues(readings, sensor.MetricAQI)
	direction, rate, firstMean, secondMean := analytics.HalfTrend(values)

	trend := AQITrend{
		Direction: direction,
		Magnitude: round2(math.Abs(rate)),
	}
	if withPrediction && len(values) >= 2 {
		predicted := round2(secondMean + (secondMean-firstMean)*predictionFactor)
		trend.Prediction = &predicted
	}
	return trend
}

// seasonalPattern returns the mean AQI of each calendar month, January first.
func seasonalPattern(readings []sensor.SensorReading) []SeasonalSample {
	var sums [12]float64
	var counts [12]int
	for i := range readings {
		m := readings[i].Readings.Timestamp.UTC().Month() - time.January
		sums[m] += readings[i].Readings.AQI
		counts[m]++
	}

	out := make([]SeasonalSample, 12)
	for m := range out {
		out[m] = SeasonalSample{Month: m + 1, Readings: counts[m]}
		if counts[m] > 0 {
			out[m].AverageAQI = round2(sums[m] / float64(counts[m]))
		}
	}
	return out
}

// dailyPattern returns the mean AQI of each hour of the day, UTC.
func dailyPattern(readings []sensor.SensorReading) []HourlySample {
	var sums [24]float64
	var counts [24]int
	for i := range readings {
		h := readings[i].Readings.Timestamp.UTC().Hour()
		sums[h] += readings[i].Readings.AQI
		counts[h]++
	}

	out := make([]HourlySample, 24)
	for h := range out {
		out[h] = HourlySample{Hour: h, Readings: counts[h]}
		if counts[h] > 0 {
			out[h].AverageAQI = round2(sums[h] / float64(counts[h]))
		}
	}
	return out
}

// countAlerts counts critical and warning AQI readings and readings from
// sensors under maintenance.
func countAlerts(readings []sensor.SensorReading) Alerts {
	var alerts Alerts
	for i := range readings {
		r := &readings[i]
		switch aqi := r.Readings.AQI; {
		case aqi > criticalAQI:
			alerts.Critical++
		case aqi > warningAQI:
			alerts.Warning++
		}
		if r.Status() == sensor.StatusMaintenance {
			alerts.Info++
		}
	}
	return alerts
}

// recommend returns the static recommendations whose thresholds are met.
func recommend(summary Summary, trend AQITrend, alerts Alerts) []string {
	var out []string

	if summary.AverageAQI > highAverageAQI {
		out = append(out, "Average AQI is above 100: issue advisories for sensitive groups and limit outdoor activity in affected areas.")
	}
	if trend.Direction == analytics.TrendIncreasing && trend.Magnitude > risingTrendMagnitude {
		out = append(out, fmt.Sprintf("AQI rose %.1f%% over the period: investigate local emission sources.", trend.Magnitude))
	}
	if alerts.Critical > 0 {
		out = append(out, fmt.Sprintf("%d readings exceeded AQI 200: review critical alert escalation.", alerts.Critical))
	}
	if alerts.Warning > 0 {
		out = append(out, fmt.Sprintf("%d readings were between AQI 101 and 200: monitor the affected sensors closely.", alerts.Warning))
	}
	if alerts.Info > 0 {
		out = append(out, fmt.Sprintf("%d readings came from sensors in maintenance: verify calibration before relying on them.", alerts.Info))
	}

	if len(out) == 0 {
		out = append(out, "Air quality is within acceptable levels: continue routine monitoring.")
	}
	return out
}

// qualityDistribution tallies readings per quality bucket. Every bucket is present.
func qualityDistribution(readings []sensor.SensorReading) map[sensor.QualityBucket]int {
	out := make(map[sensor.QualityBucket]int, len(sensor.QualityBuckets))
	for _, q := range sensor.QualityBuckets {
		out[q] = 0
	}
	for i := range readings {
		out[sensor.Score(&readings[i])]++
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
