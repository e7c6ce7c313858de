// Package worker runs the background services of the analytics service:
// Pub/Sub ingestion, retention sweeps and the reading simulator.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecopulse/ecopulse/internal/analytics"
)

// Cleaner evicts stale sensors and expired ingestion cache entries.
type Cleaner interface {
	Cleanup(maxAge time.Duration) analytics.CleanupResult
}

// Pruner drops expired cache entries.
type Pruner interface {
	PruneCache() int
}

// SweepConfig holds configuration for the RetentionSweeper.
type SweepConfig struct {
	// Interval between sweeps (default: 1 hour).
	Interval time.Duration

	// MaxAge is how long a sensor survives without updates (default: 7 days).
	MaxAge time.Duration

	Cleaner Cleaner

	// Pruners are additional caches pruned on each sweep.
	Pruners []Pruner

	Logger zerolog.Logger
}

// SweepResult is the outcome of one sweep.
type SweepResult struct {
	StartTime     time.Time
	Duration      time.Duration
	Analytics     analytics.CleanupResult
	ReportsPruned int
}

// SweepStats summarizes the sweeps run so far.
type SweepStats struct {
	Runs           int64         `json:"runs"`
	SensorsRemoved int64         `json:"sensorsRemoved"`
	EntriesPruned  int64         `json:"entriesPruned"`
	LastRunAt      time.Time     `json:"lastRunAt"`
	LastDuration   time.Duration `json:"lastDuration"`
}

// RetentionSweeper periodically evicts stale analytics state.
type RetentionSweeper struct {
	config SweepConfig
	logger zerolog.Logger

	mu    sync.RWMutex
	stats SweepStats
}

// NewRetentionSweeper creates a RetentionSweeper.
func NewRetentionSweeper(cfg SweepConfig) *RetentionSweeper {
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = analytics.DefaultRetention
	}
	return &RetentionSweeper{
		config: cfg,
		logger: cfg.Logger.With().Str("component", "retention-sweeper").Logger(),
	}
}

// Serve sweeps on every interval until ctx ends.
func (s *RetentionSweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Info().
		Dur("interval", s.config.Interval).
		Dur("max_age", s.config.MaxAge).
		Msg("retention sweeper started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Run()
		}
	}
}

// String names the service in supervisor logs.
func (s *RetentionSweeper) String() string {
	return "retention-sweeper"
}

// Run performs one sweep.
func (s *RetentionSweeper) Run() SweepResult {
	start := time.Now()
	result := SweepResult{
		StartTime: start,
		Analytics: s.config.Cleaner.Cleanup(s.config.MaxAge),
	}
	for _, p := range s.config.Pruners {
		result.ReportsPruned += p.PruneCache()
	}
	result.Duration = time.Since(start)

	s.mu.Lock()
	s.stats.Runs++
	s.stats.SensorsRemoved += int64(result.Analytics.SensorsRemoved)
	s.stats.EntriesPruned += int64(result.Analytics.CacheEntriesPruned + result.ReportsPruned)
	s.stats.LastRunAt = start
	s.stats.LastDuration = result.Duration
	s.mu.Unlock()

	s.logger.Debug().
		Dur("duration", result.Duration).
		Int("reports_pruned", result.ReportsPruned).
		Msg("retention sweep completed")

	return result
}

// Stats returns a snapshot of the sweep counters.
func (s *RetentionSweeper) Stats() SweepStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
