package analytics

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ecopulse/ecopulse/internal/cache"
	"github.com/ecopulse/ecopulse/internal/sensor"
)

// Archiver persists processed readings, e.g. for historical reports.
type Archiver interface {
	Archive(ctx context.Context, reading *sensor.SensorReading, quality sensor.QualityBucket) error
}

// ComputationError reports an unexpected failure while aggregating a reading.
type ComputationError struct {
	SensorID string
	Cause    interface{}
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("aggregating reading for sensor %s: %v", e.SensorID, e.Cause)
}

// ProcessorConfig holds configuration for the Processor.
type ProcessorConfig struct {
	Aggregator *Aggregator

	// Cache deduplicates readings per sensor and minute.
	Cache *cache.Cache[Ingestion]

	// Archiver is optional. Archive failures are logged, never returned.
	Archiver Archiver

	// ArchiveTimeout bounds each archive call (default: 10 seconds).
	ArchiveTimeout time.Duration

	Logger  zerolog.Logger
	Metrics *Metrics
	Now     func() time.Time
}

// Processor serializes readings through scoring, aggregation and the
// ingestion cache. A single drain goroutine performs every aggregator
// mutation, one reading at a time, in submission order.
type Processor struct {
	aggregator     *Aggregator
	cache          *cache.Cache[Ingestion]
	archiver       Archiver
	archiveTimeout time.Duration
	logger         zerolog.Logger
	metrics        *Metrics
	now            func() time.Time

	mu       sync.Mutex
	queue    []*job
	draining bool
}

type job struct {
	reading *sensor.SensorReading
	key     string
	reply   chan jobResult
}

type jobResult struct {
	ingestion *Ingestion
	err       error
}

// NewProcessor creates a Processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.ArchiveTimeout == 0 {
		cfg.ArchiveTimeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.New[Ingestion](cache.Config{
			Name:       "ingestion",
			TTL:        5 * time.Minute,
			Capacity:   500,
			AllowStale: true,
		})
	}
	return &Processor{
		aggregator:     cfg.Aggregator,
		cache:          cfg.Cache,
		archiver:       cfg.Archiver,
		archiveTimeout: cfg.ArchiveTimeout,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		now:            cfg.Now,
	}
}

// DedupKey is the ingestion cache key: sensor id plus the reading's minute.
func DedupKey(reading *sensor.SensorReading) string {
	minute := reading.Readings.Timestamp.Unix() / 60
	return reading.SensorID + ":" + strconv.FormatInt(minute, 10)
}

// Submit validates a raw reading and processes it.
// Validation failures are returned immediately as *validation.Error.
func (p *Processor) Submit(ctx context.Context, raw *sensor.RawReading) (*Ingestion, error) {
	reading, err := sensor.Validate(raw)
	if err != nil {
		p.metrics.recordOutcome(outcomeRejected)
		return nil, err
	}
	return p.SubmitReading(ctx, reading)
}

// SubmitJSON decodes, validates and processes a JSON reading.
func (p *Processor) SubmitJSON(ctx context.Context, data []byte) (*Ingestion, error) {
	reading, err := sensor.ParseReading(data)
	if err != nil {
		p.metrics.recordOutcome(outcomeRejected)
		return nil, err
	}
	return p.SubmitReading(ctx, reading)
}

// SubmitReading processes an already validated reading. A reading for a
// sensor and minute that was recently processed returns the cached result
// marked as a duplicate. If ctx ends while waiting, ctx.Err() is returned
// and the queued reading is still processed.
func (p *Processor) SubmitReading(ctx context.Context, reading *sensor.SensorReading) (*Ingestion, error) {
	key := DedupKey(reading)
	if cached, ok := p.cache.Get(key); ok {
		p.metrics.recordOutcome(outcomeDuplicate)
		return duplicateOf(cached), nil
	}

	j := &job{reading: reading, key: key, reply: make(chan jobResult, 1)}
	p.enqueue(j)

	select {
	case res := <-j.reply:
		return res.ingestion, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pending returns the number of queued readings not yet picked up.
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// CacheStats returns the ingestion cache statistics.
func (p *Processor) CacheStats() cache.Stats {
	return p.cache.Stats()
}

// PruneCache drops expired ingestion cache entries.
func (p *Processor) PruneCache() int {
	return p.cache.Prune()
}

func (p *Processor) enqueue(j *job) {
	p.mu.Lock()
	p.queue = append(p.queue, j)
	p.metrics.addQueueDepth(1)
	start := !p.draining
	p.draining = true
	p.mu.Unlock()

	if start {
		go p.drain()
	}
}

func (p *Processor) drain() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.draining = false
			p.mu.Unlock()
			return
		}
		j := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.metrics.addQueueDepth(-1)
		j.reply <- p.process(j)
	}
}

func (p *Processor) process(j *job) (res jobResult) {
	// A burst may queue the same sensor and minute twice before the first is
	// cached. The submitter already counted its lookup, so this one is not counted.
	if cached, ok := p.cache.Peek(j.key); ok {
		p.metrics.recordOutcome(outcomeDuplicate)
		return jobResult{ingestion: duplicateOf(cached)}
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := &ComputationError{SensorID: j.reading.SensorID, Cause: r}
			p.logger.Error().Err(err).Msg("reading aggregation failed")
			p.metrics.recordOutcome(outcomeFailed)
			res = jobResult{err: err}
		}
	}()

	quality := sensor.Score(j.reading)
	analytics := p.aggregator.Update(j.reading, quality)

	if p.archiver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), p.archiveTimeout)
		if err := p.archiver.Archive(ctx, j.reading, quality); err != nil {
			p.logger.Warn().
				Err(err).
				Str("sensor_id", j.reading.SensorID).
				Msg("failed to archive reading")
		}
		cancel()
	}

	ingestion := Ingestion{
		ID:          uuid.New().String(),
		SensorID:    j.reading.SensorID,
		Quality:     quality,
		Analytics:   analytics,
		ProcessedAt: p.now(),
	}
	p.cache.Set(j.key, ingestion)

	p.metrics.recordOutcome(outcomeProcessed)
	p.metrics.recordDuration(time.Since(start))

	p.logger.Debug().
		Str("sensor_id", ingestion.SensorID).
		Str("quality", string(quality)).
		Int("average_aqi", analytics.Stats.AverageAQI).
		Str("trend", string(analytics.Trends.Direction)).
		Msg("reading processed")

	return jobResult{ingestion: &ingestion}
}

func duplicateOf(cached Ingestion) *Ingestion {
	dup := cached
	dup.Duplicate = true
	return &dup
}
