package analytics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ecopulse/ecopulse/internal/analytics"

// Ingestion outcomes recorded on the ingestion counter.
const (
	outcomeProcessed = "processed"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// Metrics holds the OpenTelemetry instruments for the ingestion pipeline.
// A nil *Metrics records nothing.
type Metrics struct {
	readings   metric.Int64Counter
	duration   metric.Float64Histogram
	queueDepth metric.Int64UpDownCounter
}

// NewMetrics creates ingestion instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	readings, err := meter.Int64Counter(
		"ingestion.readings.total",
		metric.WithDescription("Readings submitted for ingestion by outcome"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"ingestion.process.duration",
		metric.WithDescription("Time to score and aggregate one reading in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64UpDownCounter(
		"ingestion.queue.depth",
		metric.WithDescription("Readings waiting in the ingestion queue"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{readings: readings, duration: duration, queueDepth: queueDepth}, nil
}

func (m *Metrics) recordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.readings.Add(context.TODO(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) recordDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Record(context.TODO(), d.Seconds())
}

func (m *Metrics) addQueueDepth(delta int64) {
	if m == nil {
		return
	}
	m.queueDepth.Add(context.TODO(), delta)
}
