package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecopulse/ecopulse/internal/analytics"
	"github.com/ecopulse/ecopulse/internal/api/models"
	"github.com/ecopulse/ecopulse/internal/api/response"
	"github.com/ecopulse/ecopulse/internal/cache"
	"github.com/ecopulse/ecopulse/internal/report"
	"github.com/ecopulse/ecopulse/internal/upstream"
	"github.com/ecopulse/ecopulse/internal/worker"
)

// Pinger checks a dependency, such as the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RetentionReporter reports the background retention sweeper counters.
type RetentionReporter interface {
	Stats() worker.SweepStats
}

// OpsConfig wires the operational endpoints. Database, Registry and
// Retention are optional.
type OpsConfig struct {
	Version   string
	BuildTime string
	Analytics *analytics.Service
	Reports   *report.Engine
	Registry  *upstream.Registry
	Database  Pinger

	Retention RetentionReporter
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is not ready while a
// configured database does not answer.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	db := h.databaseStatus(r.Context())
	if db != nil && db.Status == models.HealthStatusFail {
		response.JSON(w, r, http.StatusServiceUnavailable, models.Health{
			Status:  models.HealthStatusFail,
			Time:    models.Timestamp(time.Now()),
			Details: map[string]interface{}{"database": db.Detail},
		})
		return
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status: fleet health, cache statistics,
// queue depth and upstream provider health.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(time.Now()),
		Version: h.cfg.Version,
		Sensors: h.cfg.Analytics.SystemHealth(),
		Caches: []cache.Stats{
			h.cfg.Analytics.CacheStats(),
			h.cfg.Reports.CacheStats(),
		},
		Ingestion: models.IngestionStatus{Pending: h.cfg.Analytics.Pending()},
		Reports:   models.ReportStatus{Source: h.cfg.Reports.SourceName()},
		Providers: []upstream.Health{},
	}

	if h.cfg.Registry != nil {
		status.Providers = h.cfg.Registry.All()
		for _, p := range status.Providers {
			if !p.Healthy() {
				status.Status = models.HealthStatusDegraded
			}
		}
	}
	if db := h.databaseStatus(r.Context()); db != nil {
		status.Subsystems = append(status.Subsystems, *db)
		if db.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}
	if h.cfg.Retention != nil {
		stats := h.cfg.Retention.Stats()
		status.Retention = &stats
	}

	response.JSON(w, r, http.StatusOK, status)
}

// Cleanup handles POST /v1/ops/cleanup: evicts stale sensors with the
// default retention and prunes expired cache entries.
func (h *OpsHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	result := h.cfg.Analytics.Cleanup(0)
	pruned := h.cfg.Reports.PruneCache()

	zerolog.Ctx(r.Context()).Info().
		Int("sensors_removed", result.SensorsRemoved).
		Int("reports_pruned", pruned).
		Msg("manual cleanup completed")

	response.JSON(w, r, http.StatusOK, models.CleanupResponse{
		Success: true,
		Result:  result,
		Reports: pruned,
	})
}

func (h *OpsHandler) databaseStatus(ctx context.Context) *models.SubsystemStatus {
	if h.cfg.Database == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.cfg.Database.Ping(ctx); err != nil {
		return &models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusFail, Detail: err.Error()}
	}
	return &models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
}
