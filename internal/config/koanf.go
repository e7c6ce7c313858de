package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/ecopulse/ecopulse/internal/database"
	"github.com/ecopulse/ecopulse/internal/validation"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ecopulse/config.yaml",
	"/etc/ecopulse/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Environment:     "development",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit:       100,
			IngestRateLimit: 600,
			ReportRateLimit: 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
		},
		Database: database.Config{
			Enabled:         false,
			Host:            "localhost",
			Port:            5432,
			User:            "ecopulse",
			Password:        "ecopulse",
			Database:        "ecopulse",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Cache: CacheConfig{
			IngestionTTL:      5 * time.Minute,
			IngestionCapacity: 500,
			Retention:         7 * 24 * time.Hour,
			SweepInterval:     time.Hour,
		},
		Ingestion: IngestionConfig{
			HistorySize: 100,
			Archive:     true,
		},
		Report: ReportConfig{
			Source:            SourceSimulated,
			CacheTTL:          15 * time.Minute,
			CacheCapacity:     1000,
			FetchTimeout:      30 * time.Second,
			SimulatedSensors:  10,
			SimulatedInterval: time.Hour,
			SimulatedSeed:     1,
		},
		PubSub: PubSubConfig{
			Enabled:        false,
			Subscription:   "sensor-readings-ingest",
			Topic:          "sensor-readings",
			MaxOutstanding: 100,
			ProcessTimeout: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			Timeout:            10 * time.Second,
			MaxRetries:         3,
			InitialInterval:    100 * time.Millisecond,
			MaxInterval:        5 * time.Second,
			BreakerTimeout:     60 * time.Second,
			BreakerMaxRequests: 1,
		},
		Simulator: SimulatorConfig{
			Interval:    time.Minute,
			Concurrency: 4,
		},
	}
}

// Load builds the configuration from three layers:
//
//  1. Defaults
//  2. Optional YAML config file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables
//
// and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and reports all failing fields at once.
func (c *Config) Validate() error {
	if err := validation.Struct(ErrInvalidConfig, c); err != nil {
		return err
	}
	if c.Report.Source == SourcePostgres && !c.Database.Enabled {
		return validation.NewError(ErrInvalidConfig, validation.FieldError{
			Field:   "Report.Source",
			Message: "postgres source requires database.enabled",
			Code:    "requires_database",
		})
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps environment variable names (lowercased) to config paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"app_host":           "server.host",
	"app_port":           "server.port",
	"app_env":            "server.environment",
	"http_read_timeout":  "server.read_timeout",
	"http_write_timeout": "server.write_timeout",
	"http_idle_timeout":  "server.idle_timeout",
	"shutdown_timeout":   "server.shutdown_timeout",
	"rate_limit":         "server.rate_limit",
	"ingest_rate_limit":  "server.ingest_rate_limit",
	"report_rate_limit":  "server.report_rate_limit",

	"log_level":  "logging.level",
	"log_pretty": "logging.pretty",

	"otel_enabled":                "telemetry.enabled",
	"otel_exporter_otlp_endpoint": "telemetry.otlp_endpoint",

	"database_enabled":           "database.enabled",
	"database_host":              "database.host",
	"database_port":              "database.port",
	"database_user":              "database.user",
	"database_password":          "database.password",
	"database_name":              "database.name",
	"database_ssl_mode":          "database.ssl_mode",
	"database_max_open_conns":    "database.max_open_conns",
	"database_max_idle_conns":    "database.max_idle_conns",
	"database_conn_max_lifetime": "database.conn_max_lifetime",

	"ingestion_cache_ttl":      "cache.ingestion_ttl",
	"ingestion_cache_capacity": "cache.ingestion_capacity",
	"sensor_retention":         "cache.retention",
	"sweep_interval":           "cache.sweep_interval",
	"history_size":             "ingestion.history_size",
	"archive_readings":         "ingestion.archive",

	"report_source":             "report.source",
	"report_cache_ttl":          "report.cache_ttl",
	"report_cache_capacity":     "report.cache_capacity",
	"report_fetch_timeout":      "report.fetch_timeout",
	"report_simulated_sensors":  "report.simulated_sensors",
	"report_simulated_interval": "report.simulated_interval",
	"report_simulated_seed":     "report.simulated_seed",
	"report_remote_url":         "report.remote_url",
	"report_remote_api_key":     "report.remote_api_key",

	"pubsub_enabled":         "pubsub.enabled",
	"gcp_project_id":         "pubsub.project_id",
	"pubsub_subscription":    "pubsub.subscription",
	"pubsub_topic":           "pubsub.topic",
	"pubsub_max_outstanding": "pubsub.max_outstanding",
	"pubsub_process_timeout": "pubsub.process_timeout",

	"upstream_timeout":              "upstream.timeout",
	"upstream_max_retries":          "upstream.max_retries",
	"upstream_initial_interval":     "upstream.initial_interval",
	"upstream_max_interval":         "upstream.max_interval",
	"upstream_breaker_timeout":      "upstream.breaker_timeout",
	"upstream_breaker_max_requests": "upstream.breaker_max_requests",

	"simulator_interval":    "simulator.interval",
	"simulator_concurrency": "simulator.concurrency",
	"simulator_seed":        "simulator.seed",
}

// envTransformFunc maps an environment variable name to its config path.
// Unmapped variables return "" so unrelated environment does not leak in.
//
// Examples:
//   - APP_PORT -> server.port
//   - DATABASE_HOST -> database.host
//   - REPORT_SOURCE -> report.source
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
