package models

import (
	"github.com/ecopulse/ecopulse/internal/analytics"
	"github.com/ecopulse/ecopulse/internal/cache"
	"github.com/ecopulse/ecopulse/internal/upstream"
	"github.com/ecopulse/ecopulse/internal/worker"
)

// Health is the body of the liveness and readiness checks.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus is the body of GET /v1/ops/status.
type SystemStatus struct {
	Status     HealthStatus       `json:"status"`
	Time       Timestamp          `json:"time"`
	Version    string             `json:"version"`
	Sensors    analytics.Health   `json:"sensors"`
	Caches     []cache.Stats      `json:"caches"`
	Ingestion  IngestionStatus    `json:"ingestion"`
	Reports    ReportStatus       `json:"reports"`
	Providers  []upstream.Health  `json:"providers"`
	Retention  *worker.SweepStats `json:"retention,omitempty"`
	Subsystems []SubsystemStatus  `json:"subsystems,omitempty"`
}

// IngestionStatus describes the reading ingestion queue.
type IngestionStatus struct {
	Pending int `json:"pending"`
}

// ReportStatus describes the report engine.
type ReportStatus struct {
	Source string `json:"source"`
}

// SubsystemStatus is the state of an optional dependency such as the database.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// CleanupResponse is the body of POST /v1/ops/cleanup.
type CleanupResponse struct {
	Success bool                    `json:"success"`
	Result  analytics.CleanupResult `json:"result"`
	Reports int                     `json:"reportsPruned"`
}
