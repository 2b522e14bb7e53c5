package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the instruments recorded by the streaming pipeline.
type Metrics struct {
	StreamsStarted     api.Int64Counter
	StreamsCompleted   api.Int64Counter
	StreamsRejected    api.Int64Counter
	StreamsFailed      api.Int64Counter
	FragmentsForwarded api.Int64Counter

	provider *metric.MeterProvider
}

// Setup initializes the Prometheus metrics exporter and registers the
// streaming pipeline instruments.
func Setup(serviceName string) (*Metrics, error) {
	exporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{provider: provider}

	if m.StreamsStarted, err = meter.Int64Counter("ai_streams_started_total",
		api.WithDescription("AI response streams started")); err != nil {
		return nil, err
	}
	if m.StreamsCompleted, err = meter.Int64Counter("ai_streams_completed_total",
		api.WithDescription("AI response streams completed and persisted")); err != nil {
		return nil, err
	}
	if m.StreamsRejected, err = meter.Int64Counter("ai_streams_rejected_total",
		api.WithDescription("AI response requests rejected before generation")); err != nil {
		return nil, err
	}
	if m.StreamsFailed, err = meter.Int64Counter("ai_streams_failed_total",
		api.WithDescription("AI response streams that failed upstream")); err != nil {
		return nil, err
	}
	if m.FragmentsForwarded, err = meter.Int64Counter("ai_fragments_forwarded_total",
		api.WithDescription("Fragments forwarded to clients")); err != nil {
		return nil, err
	}

	return m, nil
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
