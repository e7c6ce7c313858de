// Package config loads EcoPulse configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"strconv"
	"time"

	"github.com/ecopulse/ecopulse/internal/database"
)

// Report data sources.
const (
	SourceSimulated = "simulated"
	SourcePostgres  = "postgres"
	SourceRemote    = "remote"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Database  database.Config `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	Ingestion IngestionConfig `koanf:"ingestion"`
	Report    ReportConfig    `koanf:"report"`
	PubSub    PubSubConfig    `koanf:"pubsub"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Simulator SimulatorConfig `koanf:"simulator"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Environment     string        `koanf:"environment" validate:"oneof=development staging production"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// RateLimit is the per-IP request budget per minute for general endpoints.
	RateLimit int `koanf:"rate_limit" validate:"gte=1"`

	// IngestRateLimit is the per-IP budget per minute for POST /v1/readings.
	IngestRateLimit int `koanf:"ingest_rate_limit" validate:"gte=1"`

	// ReportRateLimit is the per-IP budget per minute for report generation and export.
	ReportRateLimit int `koanf:"report_rate_limit" validate:"gte=1"`
}

// LoggingConfig configures the root logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	OTLPEndpoint string `koanf:"otlp_endpoint" validate:"required_if=Enabled true"`
}

// CacheConfig configures the ingestion result cache and retention sweeps.
type CacheConfig struct {
	IngestionTTL      time.Duration `koanf:"ingestion_ttl" validate:"gt=0"`
	IngestionCapacity int           `koanf:"ingestion_capacity" validate:"gte=1"`
	Retention         time.Duration `koanf:"retention" validate:"gt=0"`
	SweepInterval     time.Duration `koanf:"sweep_interval" validate:"gt=0"`
}

// IngestionConfig configures the analytics pipeline.
type IngestionConfig struct {
	// HistorySize bounds the trend snapshots kept per sensor.
	HistorySize int `koanf:"history_size" validate:"gte=5"`

	// Archive persists ingested readings to Postgres when the database is enabled.
	Archive bool `koanf:"archive"`
}

// ReportConfig configures the report engine and its data source.
type ReportConfig struct {
	Source        string        `koanf:"source" validate:"oneof=simulated postgres remote"`
	CacheTTL      time.Duration `koanf:"cache_ttl" validate:"gt=0"`
	CacheCapacity int           `koanf:"cache_capacity" validate:"gte=1"`
	FetchTimeout  time.Duration `koanf:"fetch_timeout" validate:"gt=0"`

	// Simulated source settings.
	SimulatedSensors  int           `koanf:"simulated_sensors" validate:"gte=1"`
	SimulatedInterval time.Duration `koanf:"simulated_interval" validate:"gt=0"`
	SimulatedSeed     int64         `koanf:"simulated_seed"`

	// Remote source settings.
	RemoteURL    string `koanf:"remote_url" validate:"required_if=Source remote"`
	RemoteAPIKey string `koanf:"remote_api_key"`
}

// PubSubConfig configures reading ingestion over Google Cloud Pub/Sub.
type PubSubConfig struct {
	Enabled        bool          `koanf:"enabled"`
	ProjectID      string        `koanf:"project_id" validate:"required_if=Enabled true"`
	Subscription   string        `koanf:"subscription" validate:"required_if=Enabled true"`
	Topic          string        `koanf:"topic"`
	MaxOutstanding int           `koanf:"max_outstanding" validate:"gte=1"`
	ProcessTimeout time.Duration `koanf:"process_timeout" validate:"gt=0"`
}

// UpstreamConfig configures retries and circuit breaking for external calls.
type UpstreamConfig struct {
	Timeout            time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxRetries         uint64        `koanf:"max_retries" validate:"lte=10"`
	InitialInterval    time.Duration `koanf:"initial_interval" validate:"gt=0"`
	MaxInterval        time.Duration `koanf:"max_interval" validate:"gtefield=InitialInterval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
	BreakerMaxRequests uint32        `koanf:"breaker_max_requests" validate:"gte=1"`
}

// SimulatorConfig configures the reading simulator binary.
type SimulatorConfig struct {
	Interval    time.Duration `koanf:"interval" validate:"gt=0"`
	Concurrency int           `koanf:"concurrency" validate:"gte=1,lte=64"`
	Seed        int64         `koanf:"seed"`
}

// Address returns the HTTP listen address.
func (s ServerConfig) Address() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// IsProduction reports whether the service runs in production.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}
