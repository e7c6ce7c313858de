package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecopulse/ecopulse/internal/cache"
	"github.com/ecopulse/ecopulse/internal/sensor"
	"github.com/ecopulse/ecopulse/pkg/geo"
)

// DefaultRetention is how long a sensor is kept after its last update.
const DefaultRetention = 7 * 24 * time.Hour

// ServiceConfig holds configuration for the analytics service.
type ServiceConfig struct {
	Logger zerolog.Logger

	// IngestionCacheTTL is how long a processed reading deduplicates (default: 5 minutes).
	IngestionCacheTTL time.Duration

	// IngestionCacheCapacity bounds the dedup cache (default: 500).
	IngestionCacheCapacity int

	// HistorySize bounds per-sensor trend history (default: 50).
	HistorySize int

	// Retention is the default max sensor age for Cleanup (default: 7 days).
	Retention time.Duration

	// Archiver optionally persists processed readings.
	Archiver Archiver

	CacheMetrics *cache.Metrics
	Metrics      *Metrics

	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// Service is the ingestion and sensor query entry point. It is constructed
// once by the composition root and shared by reference.
type Service struct {
	aggregator *Aggregator
	processor  *Processor
	logger     zerolog.Logger
	retention  time.Duration
	now        func() time.Time
	startedAt  time.Time
}

// NewService creates a new analytics service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.IngestionCacheTTL == 0 {
		cfg.IngestionCacheTTL = 5 * time.Minute
	}
	if cfg.IngestionCacheCapacity == 0 {
		cfg.IngestionCacheCapacity = 500
	}
	if cfg.Retention == 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	aggregator := NewAggregator(AggregatorConfig{HistorySize: cfg.HistorySize})
	ingestionCache := cache.New[Ingestion](cache.Config{
		Name:       "ingestion",
		TTL:        cfg.IngestionCacheTTL,
		Capacity:   cfg.IngestionCacheCapacity,
		AllowStale: true,
		Now:        cfg.Now,
	},
		cache.WithMetrics[Ingestion](cfg.CacheMetrics),
		cache.WithSizeFunc[Ingestion](ingestionSize),
	)

	return &Service{
		aggregator: aggregator,
		processor: NewProcessor(ProcessorConfig{
			Aggregator: aggregator,
			Cache:      ingestionCache,
			Archiver:   cfg.Archiver,
			Logger:     cfg.Logger,
			Metrics:    cfg.Metrics,
			Now:        cfg.Now,
		}),
		logger:    cfg.Logger,
		retention: cfg.Retention,
		now:       cfg.Now,
		startedAt: cfg.Now(),
	}
}

// Submit validates and ingests a raw reading.
func (s *Service) Submit(ctx context.Context, raw *sensor.RawReading) (*Ingestion, error) {
	return s.processor.Submit(ctx, raw)
}

// SubmitJSON decodes, validates and ingests a JSON reading.
func (s *Service) SubmitJSON(ctx context.Context, data []byte) (*Ingestion, error) {
	return s.processor.SubmitJSON(ctx, data)
}

// QueryArea returns the sensors within radiusKm of (lat, lon), nearest first.
func (s *Service) QueryArea(lat, lon, radiusKm float64) ([]SensorAnalytics, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidArea)
	}
	if radiusKm < 0 || math.IsNaN(radiusKm) {
		return nil, fmt.Errorf("%w: radius must not be negative", ErrInvalidArea)
	}
	return FilterByArea(s.aggregator.All(), geo.Point{Lat: lat, Lon: lon}, radiusKm), nil
}

// Sensor returns the analytics for one sensor.
func (s *Service) Sensor(sensorID string) (SensorAnalytics, error) {
	a, ok := s.aggregator.Get(sensorID)
	if !ok {
		return SensorAnalytics{}, ErrSensorNotFound
	}
	return a, nil
}

// Sensors returns the analytics for every known sensor.
func (s *Service) Sensors() []SensorAnalytics {
	return s.aggregator.All()
}

// History returns a sensor's trend snapshots, oldest first.
func (s *Service) History(sensorID string) ([]Snapshot, error) {
	if _, ok := s.aggregator.Get(sensorID); !ok {
		return nil, ErrSensorNotFound
	}
	return s.aggregator.History(sensorID), nil
}

// SystemHealth counts sensors whose latest quality is excellent or good.
func (s *Service) SystemHealth() Health {
	sensors := s.aggregator.All()

	active := 0
	for _, a := range sensors {
		if a.Stats.DataQuality == sensor.QualityExcellent || a.Stats.DataQuality == sensor.QualityGood {
			active++
		}
	}

	percentage := 0
	if len(sensors) > 0 {
		percentage = int(math.Round(float64(active) / float64(len(sensors)) * 100))
	}

	return Health{
		TotalSensors:     len(sensors),
		ActiveSensors:    active,
		HealthPercentage: percentage,
		UptimeSeconds:    s.now().Sub(s.startedAt).Seconds(),
	}
}

// CacheStats returns the ingestion cache statistics.
func (s *Service) CacheStats() cache.Stats {
	return s.processor.CacheStats()
}

// Pending returns the number of readings waiting to be aggregated.
func (s *Service) Pending() int {
	return s.processor.Pending()
}

// Cleanup evicts sensors not updated within maxAge and prunes expired
// ingestion cache entries. A zero maxAge uses the configured retention.
func (s *Service) Cleanup(maxAge time.Duration) CleanupResult {
	if maxAge <= 0 {
		maxAge = s.retention
	}

	result := CleanupResult{
		SensorsRemoved:     s.aggregator.Cleanup(s.now(), maxAge),
		CacheEntriesPruned: s.processor.PruneCache(),
	}

	s.logger.Info().
		Dur("max_age", maxAge).
		Int("sensors_removed", result.SensorsRemoved).
		Int("cache_entries_pruned", result.CacheEntriesPruned).
		Msg("retention cleanup completed")

	return result
}

// ingestionSize is a rough per-entry footprint: the struct plus its strings.
func ingestionSize(i Ingestion) int {
	const base = 256
	return base + len(i.ID) + len(i.SensorID) + len(i.Analytics.Location.Address)
}
