// Package analytics ingests validated sensor readings, keeps per-sensor running
// statistics with trend detection, and answers area and health queries.
package analytics

import (
	"errors"
	"time"

	"github.com/ecopulse/ecopulse/internal/sensor"
)

// Service errors.
var (
	ErrSensorNotFound = errors.New("sensor not found")
	ErrInvalidArea    = errors.New("invalid area query")
)

// TrendDirection describes how a series is moving.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// SensorAnalytics is the running aggregate for one sensor.
// Values handed out by this package are copies.
type SensorAnalytics struct {
	SensorID string          `json:"sensorId"`
	Location sensor.Location `json:"location"`
	Stats    Stats           `json:"stats"`
	Trends   Trends          `json:"trends"`
}

// Stats holds the running AQI statistics of a sensor.
type Stats struct {
	AverageAQI    int                  `json:"averageAQI"`
	MaxAQI        int                  `json:"maxAQI"`
	MinAQI        int                  `json:"minAQI"`
	ReadingsCount int                  `json:"readingsCount"`
	LastUpdate    time.Time            `json:"lastUpdate"`
	DataQuality   sensor.QualityBucket `json:"dataQuality"`
}

// Trends describes the recent direction of a sensor's average AQI.
type Trends struct {
	Direction     TrendDirection `json:"direction"`
	ChangeRate    float64        `json:"changeRate"`
	PredictedNext *float64       `json:"predictedNext,omitempty"`
}

// Snapshot is a point in a sensor's analytics history.
type Snapshot struct {
	AverageAQI int       `json:"averageAQI"`
	AQI        float64   `json:"aqi"`
	Timestamp  time.Time `json:"timestamp"`
}

// Health summarizes the sensor fleet.
type Health struct {
	TotalSensors     int     `json:"totalSensors"`
	ActiveSensors    int     `json:"activeSensors"`
	HealthPercentage int     `json:"healthPercentage"`
	UptimeSeconds    float64 `json:"uptime"`
}

// Ingestion is the outcome of processing one reading.
type Ingestion struct {
	ID          string               `json:"id"`
	SensorID    string               `json:"sensorId"`
	Quality     sensor.QualityBucket `json:"quality"`
	Analytics   SensorAnalytics      `json:"analytics"`
	Duplicate   bool                 `json:"duplicate"`
	ProcessedAt time.Time            `json:"processedAt"`
}

// CleanupResult reports what a retention sweep removed.
type CleanupResult struct {
	SensorsRemoved     int `json:"sensorsRemoved"`
	CacheEntriesPruned int `json:"cacheEntriesPruned"`
}
