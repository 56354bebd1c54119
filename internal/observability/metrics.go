package observability

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Generation outcomes.
const (
	OutcomeGenerated  = "generated"
	OutcomeIncomplete = "incomplete"
	OutcomeError      = "error"
)

// Resolver lookup results.
const (
	LookupHit         = "hit"
	LookupUnavailable = "unavailable"
	LookupError       = "error"
)

// Metrics owns the service's OpenTelemetry instruments. The zero value and
// NewNop are safe to use and record nothing.
type Metrics struct {
	meterProvider *metric.MeterProvider
	registry      *promclient.Registry

	generations   otelmetric.Int64Counter
	genDuration   otelmetric.Float64Histogram
	lookups       otelmetric.Int64Counter
	auditFailures otelmetric.Int64Counter
}

// New creates a Prometheus-backed meter provider, registers it globally and
// builds the instruments.
func New(serviceName string) (*Metrics, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m, err := newMetrics(provider.Meter(serviceName))
	if err != nil {
		return nil, err
	}
	m.meterProvider = provider
	m.registry = registry
	return m, nil
}

// NewNop returns Metrics backed by a no-op meter.
func NewNop() *Metrics {
	m, _ := newMetrics(noop.NewMeterProvider().Meter("nop"))
	return m
}

func newMetrics(meter otelmetric.Meter) (*Metrics, error) {
	generations, err := meter.Int64Counter(
		"casefiling.generation.outcomes",
		otelmetric.WithDescription("Form generation attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}
	genDuration, err := meter.Float64Histogram(
		"casefiling.generation.duration",
		otelmetric.WithDescription("Form generation duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	lookups, err := meter.Int64Counter(
		"casefiling.resolver.lookups",
		otelmetric.WithDescription("Case data lookups by result"),
	)
	if err != nil {
		return nil, err
	}
	auditFailures, err := meter.Int64Counter(
		"casefiling.audit.failures",
		otelmetric.WithDescription("Audit events that could not be delivered"),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{
		generations:   generations,
		genDuration:   genDuration,
		lookups:       lookups,
		auditFailures: auditFailures,
	}, nil
}

// RecordGeneration counts one generation attempt and its duration.
func (m *Metrics) RecordGeneration(ctx context.Context, outcome string, d time.Duration) {
	if m == nil || m.generations == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	m.generations.Add(ctx, 1, attrs)
	m.genDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}

// RecordLookup counts one resolver lookup.
func (m *Metrics) RecordLookup(ctx context.Context, result string) {
	if m == nil || m.lookups == nil {
		return
	}
	m.lookups.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("result", result)))
}

// RecordAuditFailure counts an audit event that was dropped.
func (m *Metrics) RecordAuditFailure(ctx context.Context, action string) {
	if m == nil || m.auditFailures == nil {
		return
	}
	m.auditFailures.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("action", action)))
}

// Handler serves the Prometheus scrape endpoint. Nop metrics serve an empty page.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.HandlerFor(promclient.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.meterProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.meterProvider.Shutdown(ctx)
}
