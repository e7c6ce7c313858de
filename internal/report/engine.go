package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ecopulse/ecopulse/internal/cache"
	"github.com/ecopulse/ecopulse/internal/sensor"
)

// UpstreamError reports that the historical data source failed or timed out.
type UpstreamError struct {
	Source string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("fetching readings from %s: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the request may succeed.
func (e *UpstreamError) Retryable() bool {
	return !errors.Is(e.Err, ErrSourceRejected) && !errors.Is(e.Err, context.Canceled)
}

// ComputationError reports an unexpected failure while computing a report.
type ComputationError struct {
	Stage string
	Cause interface{}
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computing report %s: %v", e.Stage, e.Cause)
}

// EngineConfig holds configuration for the report Engine.
type EngineConfig struct {
	Source HistoricalDataSource

	// CacheTTL is how long a computed report is fresh (default: 15 minutes).
	CacheTTL time.Duration

	// CacheCapacity bounds the number of cached reports (default: 1000).
	CacheCapacity int

	// FetchTimeout bounds each source fetch (default: 30 seconds).
	FetchTimeout time.Duration

	Logger       zerolog.Logger
	CacheMetrics *cache.Metrics
	Metrics      *Metrics

	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// Report is a generated or cached result with its cache identity.
type Report struct {
	Result   *Result `json:"result"`
	CacheKey string  `json:"cacheKey"`
	Cached   bool    `json:"cached"`
}

// fullReport is the cached form of a report: statistics for every metric and
// every optional section. Requests sharing a signature are served views of it.
type fullReport struct {
	result     *Result
	dataPoints map[sensor.Metric]int
}

// view narrows the full report to the metrics and sections cfg asks for.
func (f *fullReport) view(cfg *Config) *Result {
	out := *f.result
	out.Metrics = make(map[sensor.Metric]MetricStats, len(cfg.Metrics))
	out.Summary.DataPoints = 0
	for _, m := range cfg.Metrics {
		out.Metrics[m] = f.result.Metrics[m]
		out.Summary.DataPoints += f.dataPoints[m]
	}
	if !cfg.IncludeCharts {
		out.Trends.Seasonal = nil
		out.Trends.Daily = nil
	}
	if !cfg.IncludePredictions {
		out.Trends.AQI.Prediction = nil
	}
	if !cfg.IncludeRecommendations {
		out.Recommendations = nil
	}
	return &out
}

// Engine computes analytics reports and caches them by signature.
type Engine struct {
	source       HistoricalDataSource
	cache        *cache.Cache[*fullReport]
	fetchTimeout time.Duration
	logger       zerolog.Logger
	metrics      *Metrics
	now          func() time.Time
	group        singleflight.Group
}

// NewEngine creates a report Engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.CacheCapacity == 0 {
		cfg.CacheCapacity = 1000
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Engine{
		source: cfg.Source,
		cache: cache.New[*fullReport](cache.Config{
			Name:       "reports",
			TTL:        cfg.CacheTTL,
			Capacity:   cfg.CacheCapacity,
			AllowStale: true,
			Now:        cfg.Now,
		},
			cache.WithMetrics[*fullReport](cfg.CacheMetrics),
			cache.WithSizeFunc[*fullReport](reportSize),
		),
		fetchTimeout: cfg.FetchTimeout,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		now:          cfg.Now,
	}
}

// SourceName returns the name of the configured historical data source.
func (e *Engine) SourceName() string {
	return e.source.Name()
}

// CacheStats returns the report cache statistics.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// PruneCache drops expired reports.
func (e *Engine) PruneCache() int {
	return e.cache.Prune()
}

// Generate returns the report for cfg, serving a cached result when one
// exists for the same signature. Concurrent requests with the same
// signature share one computation. The metrics and optional sections of the
// returned result always follow cfg, cached or not.
func (e *Engine) Generate(ctx context.Context, cfg *Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		e.metrics.recordRequest("invalid")
		return nil, err
	}

	key, err := Signature(cfg)
	if err != nil {
		return nil, &ComputationError{Stage: "signature", Cause: err}
	}

	if cached, ok := e.cache.Get(key); ok {
		e.metrics.recordRequest("cached")
		return &Report{Result: cached.view(cfg), CacheKey: key, Cached: true}, nil
	}

	// The shared computation must outlive any single caller.
	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		if cached, ok := e.cache.Peek(key); ok {
			return cached, nil
		}
		full, err := e.compute(context.WithoutCancel(ctx), cfg)
		if err != nil {
			return nil, err
		}
		e.cache.Set(key, full)
		return full, nil
	})
	if err != nil {
		e.metrics.recordRequest("failed")
		e.logger.Warn().Err(err).Str("cache_key", key).Msg("report generation failed")
		return nil, err
	}

	e.metrics.recordRequest("generated")
	return &Report{Result: v.(*fullReport).view(cfg), CacheKey: key}, nil
}

func (e *Engine) compute(ctx context.Context, cfg *Config) (*fullReport, error) {
	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	readings, err := e.source.FetchReadings(fetchCtx, cfg.DateRange)
	if err != nil {
		return nil, &UpstreamError{Source: e.source.Name(), Err: err}
	}

	full, err := e.build(ctx, cfg, readings)
	if err != nil {
		return nil, err
	}

	e.metrics.recordGenerated(e.source.Name(), time.Since(start))
	e.logger.Info().
		Str("report_type", string(cfg.Type)).
		Int("readings", full.result.Summary.TotalReadings).
		Dur("duration", time.Since(start)).
		Msg("report generated")

	return full, nil
}

// build computes every metric and every optional section; only the type,
// range and filters of cfg are used.
func (e *Engine) build(ctx context.Context, cfg *Config, fetched []sensor.SensorReading) (full *fullReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ComputationError{Stage: "aggregation", Cause: r}
		}
	}()

	inRange := filter(fetched, func(r *sensor.SensorReading) bool {
		return cfg.DateRange.Contains(r.Readings.Timestamp)
	})
	readings := applyFilters(inRange, cfg.Filters)
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Readings.Timestamp.Before(readings[j].Readings.Timestamp)
	})

	stats := make([]MetricStats, len(sensor.Metrics))
	g, _ := errgroup.WithContext(ctx)
	for i, m := range sensor.Metrics {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &ComputationError{Stage: "metric " + string(m), Cause: r}
				}
			}()
			stats[i] = computeMetricStats(metricValues(readings, m))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics := make(map[sensor.Metric]MetricStats, len(sensor.Metrics))
	for i, m := range sensor.Metrics {
		metrics[m] = stats[i]
	}

	summary, points := summarize(readings, cfg.DateRange)
	trends := TrendsBlock{
		AQI:      aqiTrend(readings, true),
		Seasonal: seasonalPattern(readings),
		Daily:    dailyPattern(readings),
	}
	alerts := countAlerts(readings)

	return &fullReport{
		result: &Result{
			Period:          cfg.DateRange,
			Summary:         summary,
			Metrics:         metrics,
			Trends:          trends,
			Alerts:          alerts,
			Recommendations: recommend(summary, trends.AQI, alerts),
			DataQuality:     qualityDistribution(readings),
			GeneratedAt:     e.now().UTC(),
		},
		dataPoints: points,
	}, nil
}

// reportSize is a rough footprint of a cached report.
func reportSize(f *fullReport) int {
	r := f.result
	size := 512 + len(r.Metrics)*160 + len(r.Trends.Seasonal)*32 + len(r.Trends.Daily)*32
	for _, rec := range r.Recommendations {
		size += len(rec)
	}
	return size
}
