package report

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ecopulse/ecopulse/internal/report"

// Metrics holds the report engine instruments. A nil *Metrics records nothing.
type Metrics struct {
	duration metric.Float64Histogram
	reports  metric.Int64Counter
}

// NewMetrics creates report instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	duration, err := meter.Float64Histogram(
		"report.generate.duration",
		metric.WithDescription("Time to fetch and compute a report in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	reports, err := meter.Int64Counter(
		"report.requests.total",
		metric.WithDescription("Report requests by outcome"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{duration: duration, reports: reports}, nil
}

func (m *Metrics) recordGenerated(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Record(context.TODO(), d.Seconds(), metric.WithAttributes(attribute.String("report.source", source)))
}

func (m *Metrics) recordRequest(outcome string) {
	if m == nil {
		return
	}
	m.reports.Add(context.TODO(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
