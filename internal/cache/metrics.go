package cache

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ecopulse/ecopulse/internal/cache"

// Metrics holds the OpenTelemetry instruments shared by all caches.
// A nil *Metrics records nothing.
type Metrics struct {
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	evictions metric.Int64Counter
}

// NewMetrics creates cache instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	hits, err := meter.Int64Counter(
		"cache.hit",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	misses, err := meter.Int64Counter(
		"cache.miss",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"cache.eviction",
		metric.WithDescription("Number of entries evicted for capacity"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{hits: hits, misses: misses, evictions: evictions}, nil
}

func (m *Metrics) recordHit(name string, stale bool) {
	if m == nil {
		return
	}
	m.hits.Add(context.TODO(), 1, metric.WithAttributes(
		attribute.String("cache.name", name),
		attribute.Bool("cache.stale", stale),
	))
}

func (m *Metrics) recordMiss(name string) {
	if m == nil {
		return
	}
	m.misses.Add(context.TODO(), 1, metric.WithAttributes(attribute.String("cache.name", name)))
}

func (m *Metrics) recordEviction(name string) {
	if m == nil {
		return
	}
	m.evictions.Add(context.TODO(), 1, metric.WithAttributes(attribute.String("cache.name", name)))
}
