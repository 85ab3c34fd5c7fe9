package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Observability records dispatch run metrics through OpenTelemetry and opens
// spans around runs. A nil *Observability is valid and records nothing.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracing        *Tracing
	runCounter     otelmetric.Int64Counter
	runDuration    otelmetric.Float64Histogram
	recipientCount otelmetric.Int64Histogram
}

// New wires the Prometheus exporter. Tracing is optional and may be nil.
func New(serviceName string, tracing *Tracing) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	runCounter, err := meter.Int64Counter(
		"dispatch.runs",
		otelmetric.WithDescription("Number of dispatch runs"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"dispatch.duration",
		otelmetric.WithDescription("Dispatch run duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	recipientCount, err := meter.Int64Histogram(
		"dispatch.recipients",
		otelmetric.WithDescription("Recipients considered per dispatch run"),
	)
	if err != nil {
		return nil, err
	}

	return &Observability{
		meterProvider:  provider,
		tracing:        tracing,
		runCounter:     runCounter,
		runDuration:    runDuration,
		recipientCount: recipientCount,
	}, nil
}

// RecordRun records one finished run.
func (o *Observability) RecordRun(ctx context.Context, channel, status string, duration time.Duration, recipients int) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("status", status),
	)
	o.runCounter.Add(ctx, 1, attrs)
	o.runDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	o.recipientCount.Record(ctx, int64(recipients), attrs)
}

// StartSpan opens a span on the configured tracer, or on the global no-op
// tracer when tracing is off.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	var tracer trace.Tracer
	if o != nil && o.tracing != nil {
		tracer = o.tracing.Tracer()
	} else {
		tracer = otel.Tracer("shift-notify")
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) Shutdown(ctx context.Context) {
	if o == nil {
		return
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracing != nil {
		_ = o.tracing.Shutdown(ctx)
	}
}
