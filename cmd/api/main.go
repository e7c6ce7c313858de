// Package main provides the entrypoint for the EcoPulse API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ecopulse/ecopulse/internal/analytics"
	"github.com/ecopulse/ecopulse/internal/api"
	"github.com/ecopulse/ecopulse/internal/api/middleware"
	"github.com/ecopulse/ecopulse/internal/cache"
	"github.com/ecopulse/ecopulse/internal/config"
	"github.com/ecopulse/ecopulse/internal/database"
	"github.com/ecopulse/ecopulse/internal/history"
	"github.com/ecopulse/ecopulse/internal/report"
	"github.com/ecopulse/ecopulse/internal/sensor"
	"github.com/ecopulse/ecopulse/internal/supervisor"
	"github.com/ecopulse/ecopulse/internal/telemetry"
	"github.com/ecopulse/ecopulse/internal/upstream"
	"github.com/ecopulse/ecopulse/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "ecopulse-api"

func main() {
	bootLog := newLogger(config.LoggingConfig{Level: "info"})

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := newLogger(cfg.Logging)

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Server.Environment).
		Msg("starting EcoPulse API")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	out := zerolog.New(os.Stdout)
	if cfg.Pretty {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return out.Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Server.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.Telemetry.Enabled {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return err
	}
	cacheMetrics, err := cache.NewMetrics()
	if err != nil {
		return err
	}
	analyticsMetrics, err := analytics.NewMetrics()
	if err != nil {
		return err
	}
	reportMetrics, err := report.NewMetrics()
	if err != nil {
		return err
	}

	var pool *pgxpool.Pool
	if cfg.Database.Enabled {
		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := history.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
	}

	var archiver analytics.Archiver
	if pool != nil && cfg.Ingestion.Archive {
		archiver = history.NewPostgresArchiver(pool)
	}

	analyticsSvc := analytics.NewService(analytics.ServiceConfig{
		Logger:                 log,
		IngestionCacheTTL:      cfg.Cache.IngestionTTL,
		IngestionCacheCapacity: cfg.Cache.IngestionCapacity,
		HistorySize:            cfg.Ingestion.HistorySize,
		Retention:              cfg.Cache.Retention,
		Archiver:               archiver,
		CacheMetrics:           cacheMetrics,
		Metrics:                analyticsMetrics,
	})

	registry := upstream.NewRegistry()
	retry := upstream.RetryPolicy{
		MaxRetries:      cfg.Upstream.MaxRetries,
		InitialInterval: cfg.Upstream.InitialInterval,
		MaxInterval:     cfg.Upstream.MaxInterval,
	}

	source := newReportSource(cfg, pool, registry, log)
	engine := report.NewEngine(report.EngineConfig{
		Source:        source,
		CacheTTL:      cfg.Report.CacheTTL,
		CacheCapacity: cfg.Report.CacheCapacity,
		FetchTimeout:  cfg.Report.FetchTimeout,
		Logger:        log,
		CacheMetrics:  cacheMetrics,
		Metrics:       reportMetrics,
	})
	log.Info().Str("source", source.Name()).Msg("report engine initialized")

	sweeper := worker.NewRetentionSweeper(worker.SweepConfig{
		Interval: cfg.Cache.SweepInterval,
		MaxAge:   cfg.Cache.Retention,
		Cleaner:  analyticsSvc,
		Pruners:  []worker.Pruner{engine},
		Logger:   log,
	})

	routerCfg := api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     httpMetrics,
		RequireTLS:  cfg.Server.IsProduction(),
		RateLimits: api.RateLimits{
			Standard: cfg.Server.RateLimit,
			Ingest:   cfg.Server.IngestRateLimit,
			Reports:  cfg.Server.ReportRateLimit,
		},
		Analytics:   analyticsSvc,
		Reports:     engine,
		ReportRetry: retry,
		Registry:    registry,
		Retention:   sweeper,
	}
	if pool != nil {
		routerCfg.Database = pool
	}

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      api.NewRouter(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	tree := supervisor.NewTree(serviceName, log, supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPI(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))
	tree.AddIngestion(sweeper)

	if cfg.PubSub.Enabled {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		tree.AddIngestion(worker.NewIngestionSubscriber(worker.IngestionSubscriberConfig{
			Client:           client,
			SubscriptionName: cfg.PubSub.Subscription,
			MaxOutstanding:   cfg.PubSub.MaxOutstanding,
			ProcessTimeout:   cfg.PubSub.ProcessTimeout,
			Ingester:         analyticsSvc,
			Logger:           log,
		}))
		log.Info().Str("subscription", cfg.PubSub.Subscription).Msg("pubsub ingestion enabled")
	}

	log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
	err = tree.Serve(ctx)
	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		log.Warn().Int("count", len(unstopped)).Msg("services did not stop in time")
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func newReportSource(
	cfg *config.Config,
	pool *pgxpool.Pool,
	registry *upstream.Registry,
	log zerolog.Logger,
) report.HistoricalDataSource {
	switch cfg.Report.Source {
	case config.SourcePostgres:
		return history.NewPostgresSource(pool)
	case config.SourceRemote:
		breaker := upstream.DefaultBreakerConfig("history-remote")
		breaker.Timeout = cfg.Upstream.BreakerTimeout
		breaker.MaxRequests = cfg.Upstream.BreakerMaxRequests
		// Report requests are retried by the report handler with the
		// configured policy; the client makes one attempt per call.
		client := upstream.NewClient(upstream.ClientConfig{
			Name:     "history-remote",
			Timeout:  cfg.Upstream.Timeout,
			Retry:    upstream.NoRetry(),
			Breaker:  &breaker,
			Registry: registry,
		})
		return history.NewRemoteSource(history.RemoteSourceConfig{
			BaseURL: cfg.Report.RemoteURL,
			APIKey:  cfg.Report.RemoteAPIKey,
			Client:  client,
			Logger:  log,
		})
	default:
		return report.NewSimulatedSource(report.SimulatedSourceConfig{
			Sensors:  cfg.Report.SimulatedSensors,
			Interval: cfg.Report.SimulatedInterval,
			Center:   sensor.Location{Latitude: 52.3676, Longitude: 4.9041},
			Seed:     cfg.Report.SimulatedSeed,
		})
	}
}
