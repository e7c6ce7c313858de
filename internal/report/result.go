package report

import (
	"time"

	"github.com/ecopulse/ecopulse/internal/analytics"
	"github.com/ecopulse/ecopulse/internal/sensor"
)

// Result is a computed analytics report. It is never modified after the
// engine returns it and may be shared between callers.
type Result struct {
	Period          DateRange                     `json:"period"`
	Summary         Summary                       `json:"summary"`
	Metrics         map[sensor.Metric]MetricStats `json:"metrics"`
	Trends          TrendsBlock                   `json:"trends"`
	Alerts          Alerts                        `json:"alerts"`
	Recommendations []string                      `json:"recommendations"`
	DataQuality     map[sensor.QualityBucket]int  `json:"dataQuality"`
	GeneratedAt     time.Time                     `json:"generatedAt"`
}

// Summary holds report-wide AQI statistics.
type Summary struct {
	TotalReadings   int     `json:"totalReadings"`
	AverageAQI      int     `json:"averageAQI"`
	MaxAQI          int     `json:"maxAQI"`
	MinAQI          int     `json:"minAQI"`
	DataPoints      int     `json:"dataPoints"`
	CoveragePercent float64 `json:"coveragePercent"`
}

// Percentiles are values at fixed ranks of a sorted series.
type Percentiles struct {
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// MetricStats holds the statistics of one metric over the report window.
type MetricStats struct {
	Average     float64                  `json:"average"`
	Max         float64                  `json:"max"`
	Min         float64                  `json:"min"`
	Trend       analytics.TrendDirection `json:"trend"`
	ChangeRate  float64                  `json:"changeRate"`
	Percentiles Percentiles              `json:"percentiles"`
}

// TrendsBlock describes how AQI moved over the report window.
type TrendsBlock struct {
	AQI      AQITrend         `json:"aqi"`
	Seasonal []SeasonalSample `json:"seasonal,omitempty"`
	Daily    []HourlySample   `json:"daily,omitempty"`
}

// AQITrend is the report-wide AQI trend. Magnitude is the absolute change rate in percent.
type AQITrend struct {
	Direction  analytics.TrendDirection `json:"direction"`
	Magnitude  float64                  `json:"magnitude"`
	Prediction *float64                 `json:"prediction,omitempty"`
}

// SeasonalSample is the mean AQI of one calendar month.
type SeasonalSample struct {
	Month      int     `json:"month"`
	AverageAQI float64 `json:"averageAQI"`
	Readings   int     `json:"readings"`
}

// HourlySample is the mean AQI of one hour of the day (UTC).
type HourlySample struct {
	Hour       int     `json:"hour"`
	AverageAQI float64 `json:"averageAQI"`
	Readings   int     `json:"readings"`
}

// Alerts counts readings by severity.
type Alerts struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
}
