package models

import "github.com/ecopulse/ecopulse/internal/analytics"

// IngestResponse is the body of a successful POST /v1/readings.
type IngestResponse struct {
	Success   bool                      `json:"success"`
	ID        string                    `json:"id"`
	Analytics analytics.SensorAnalytics `json:"analytics"`
	Duplicate bool                      `json:"duplicate"`
}

// SensorList is the body of GET /v1/sensors.
type SensorList struct {
	Sensors []analytics.SensorAnalytics `json:"sensors"`
	Count   int                         `json:"count"`
}

// SensorHistory is the body of GET /v1/sensors/{sensorId}/history.
type SensorHistory struct {
	SensorID string               `json:"sensorId"`
	History  []analytics.Snapshot `json:"history"`
}

// AreaResponse is the body of GET /v1/areas.
type AreaResponse struct {
	Center   AreaCenter                  `json:"center"`
	RadiusKm float64                     `json:"radiusKm"`
	Sensors  []analytics.SensorAnalytics `json:"sensors"`
	Count    int                         `json:"count"`
}

// AreaCenter echoes the queried point.
type AreaCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
