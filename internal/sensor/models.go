// Package sensor defines sensor readings, their validation, and quality scoring.
package sensor

import (
	"time"

	"github.com/ecopulse/ecopulse/pkg/geo"
)

// DeviceStatus is the operating state a sensor reports about itself.
type DeviceStatus string

const (
	StatusActive      DeviceStatus = "active"
	StatusInactive    DeviceStatus = "inactive"
	StatusMaintenance DeviceStatus = "maintenance"
	StatusError       DeviceStatus = "error"
)

// QualityBucket is the categorical data-confidence label of a reading.
type QualityBucket string

const (
	QualityExcellent QualityBucket = "excellent"
	QualityGood      QualityBucket = "good"
	QualityFair      QualityBucket = "fair"
	QualityPoor      QualityBucket = "poor"
)

// QualityBuckets lists all buckets from best to worst.
var QualityBuckets = []QualityBucket{QualityExcellent, QualityGood, QualityFair, QualityPoor}

// Valid reports whether q is a known bucket.
func (q QualityBucket) Valid() bool {
	switch q {
	case QualityExcellent, QualityGood, QualityFair, QualityPoor:
		return true
	}
	return false
}

// Metric names a measurable quantity in a reading.
type Metric string

const (
	MetricAQI         Metric = "aqi"
	MetricPM25        Metric = "pm25"
	MetricPM10        Metric = "pm10"
	MetricOzone       Metric = "ozone"
	MetricNO2         Metric = "no2"
	MetricSO2         Metric = "so2"
	MetricCO          Metric = "co"
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricPressure    Metric = "pressure"
)

// Metrics lists every metric in canonical order.
var Metrics = []Metric{
	MetricAQI, MetricPM25, MetricPM10, MetricOzone, MetricNO2,
	MetricSO2, MetricCO, MetricTemperature, MetricHumidity, MetricPressure,
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	for _, known := range Metrics {
		if m == known {
			return true
		}
	}
	return false
}

// Location is where a sensor is installed.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Point returns the location as a geo.Point.
func (l Location) Point() geo.Point {
	return geo.Point{Lat: l.Latitude, Lon: l.Longitude}
}

// Measurements is the bundle of values captured in one reading.
// Pollutant and weather values are optional.
type Measurements struct {
	AQI         float64   `json:"aqi"`
	PM25        *float64  `json:"pm25,omitempty"`
	PM10        *float64  `json:"pm10,omitempty"`
	Ozone       *float64  `json:"o3,omitempty"`
	NO2         *float64  `json:"no2,omitempty"`
	SO2         *float64  `json:"so2,omitempty"`
	CO          *float64  `json:"co,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	Pressure    *float64  `json:"pressure,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Value returns the value of a metric and whether it was present.
func (m Measurements) Value(metric Metric) (float64, bool) {
	var v *float64
	switch metric {
	case MetricAQI:
		return m.AQI, true
	case MetricPM25:
		v = m.PM25
	case MetricPM10:
		v = m.PM10
	case MetricOzone:
		v = m.Ozone
	case MetricNO2:
		v = m.NO2
	case MetricSO2:
		v = m.SO2
	case MetricCO:
		v = m.CO
	case MetricTemperature:
		v = m.Temperature
	case MetricHumidity:
		v = m.Humidity
	case MetricPressure:
		v = m.Pressure
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// DeviceInfo carries the health of the reporting device.
type DeviceInfo struct {
	BatteryLevel    *float64     `json:"batteryLevel,omitempty"`
	Status          DeviceStatus `json:"status"`
	LastMaintenance *time.Time   `json:"lastMaintenance,omitempty"`
}

// SensorReading is a validated reading. It is not modified after validation.
type SensorReading struct {
	SensorID   string       `json:"sensorId"`
	Location   Location     `json:"location"`
	Readings   Measurements `json:"readings"`
	DeviceInfo *DeviceInfo  `json:"deviceInfo,omitempty"`
}

// Status returns the device status, or the empty string if no device info was sent.
func (r *SensorReading) Status() DeviceStatus {
	if r.DeviceInfo == nil {
		return ""
	}
	return r.DeviceInfo.Status
}
