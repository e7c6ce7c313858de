// Package api assembles the HTTP API of the EcoPulse service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ecopulse/ecopulse/internal/analytics"
	"github.com/ecopulse/ecopulse/internal/api/handler"
	"github.com/ecopulse/ecopulse/internal/api/middleware"
	"github.com/ecopulse/ecopulse/internal/report"
	"github.com/ecopulse/ecopulse/internal/upstream"
)

// RateLimits are per-IP request budgets per minute.
type RateLimits struct {
	Standard int
	Ingest   int
	Reports  int
}

// DefaultRateLimits returns the budgets used when none are configured.
func DefaultRateLimits() RateLimits {
	return RateLimits{Standard: 100, Ingest: 600, Reports: 20}
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool
	RateLimits  RateLimits

	Analytics   *analytics.Service
	Reports     *report.Engine
	ReportRetry upstream.RetryPolicy
	Registry    *upstream.Registry
	Database    handler.Pinger
	Retention   handler.RetentionReporter
}

// NewRouter creates a chi router with every API route configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "ecopulse-api"
	}
	limits := cfg.RateLimits
	defaults := DefaultRateLimits()
	if limits.Standard <= 0 {
		limits.Standard = defaults.Standard
	}
	if limits.Ingest <= 0 {
		limits.Ingest = defaults.Ingest
	}
	if limits.Reports <= 0 {
		limits.Reports = defaults.Reports
	}

	// Order matters: request id first, recovery inside logging.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Analytics: cfg.Analytics,
		Reports:   cfg.Reports,
		Registry:  cfg.Registry,
		Database:  cfg.Database,
		Retention: cfg.Retention,
	})
	sensorHandler := handler.NewSensorHandler(cfg.Analytics)
	reportHandler := handler.NewReportHandler(cfg.Reports, cfg.ReportRetry)

	standardRateLimit := middleware.RateLimitByIP(middleware.PerMinute(limits.Standard))
	ingestRateLimit := middleware.RateLimitByIP(middleware.PerMinute(limits.Ingest))
	reportRateLimit := middleware.RateLimitByIP(middleware.PerMinute(limits.Reports))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
			r.With(standardRateLimit).Post("/cleanup", opsHandler.Cleanup)
		})

		r.With(ingestRateLimit, middleware.RequireJSON).Post("/readings", sensorHandler.IngestReading)

		r.Route("/sensors", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", sensorHandler.ListSensors)
			r.Route("/{sensorId}", func(r chi.Router) {
				r.Get("/", sensorHandler.GetSensor)
				r.Get("/history", sensorHandler.GetSensorHistory)
			})
		})

		r.With(standardRateLimit).Get("/areas", sensorHandler.QueryArea)

		r.Group(func(r chi.Router) {
			r.Use(reportRateLimit, middleware.RequireJSON)
			r.Post("/reports", reportHandler.GenerateReport)
			r.Post("/reports:export", reportHandler.ExportReport)
		})
	})

	return r
}
