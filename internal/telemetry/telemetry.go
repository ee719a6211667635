// Package telemetry wires OpenTelemetry tracing and metrics. Without an
// exporter endpoint the global no-op providers stay in place and every
// instrument is still safe to use.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/smartcity/saferoute"

// Instruments holds the counters and histograms recorded by the service.
type Instruments struct {
	ProviderFailures       metric.Int64Counter
	CandidatesDisqualified metric.Int64Counter
	CandidatesDropped      metric.Int64Counter
	RetryAttempts          metric.Int64Counter
	SelectionLatency       metric.Float64Histogram
}

var (
	instruments     Instruments
	instrumentsOnce sync.Once
)

// Metrics returns the process-wide instruments. They are bound to the global
// meter provider, so providers installed later by Init still receive data.
func Metrics() Instruments {
	instrumentsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		instruments.ProviderFailures, _ = meter.Int64Counter("saferoute_provider_failures_total",
			metric.WithDescription("Routing provider requests that failed for one search radius"))
		instruments.CandidatesDisqualified, _ = meter.Int64Counter("saferoute_candidates_disqualified_total",
			metric.WithDescription("Candidate routes rejected by a danger barrier"))
		instruments.CandidatesDropped, _ = meter.Int64Counter("saferoute_candidates_dropped_total",
			metric.WithDescription("Candidate routes dropped after a scoring error"))
		instruments.RetryAttempts, _ = meter.Int64Counter("saferoute_retry_attempts_total")
		instruments.SelectionLatency, _ = meter.Float64Histogram("saferoute_selection_seconds",
			metric.WithUnit("s"))
	})
	return instruments
}

// Init installs OTLP gRPC trace and metric exporters for endpoint.
// An empty endpoint leaves telemetry disabled. The returned shutdown flushes both.
func Init(ctx context.Context, service, endpoint string) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if endpoint == "" {
		return noop
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
		attribute.String("service", service),
	))
	if err != nil {
		slog.Warn("otel resource merge failed", "error", err)
		res = resource.Default()
	}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	traceExp, err := otlptracegrpc.New(initCtx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		slog.Warn("otel trace exporter init failed", "error", err)
		return noop
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp), sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	metricExp, err := otlpmetricgrpc.New(initCtx, otlpmetricgrpc.WithEndpoint(endpoint), otlpmetricgrpc.WithInsecure())
	if err != nil {
		slog.Warn("otel metrics exporter init failed", "error", err)
		return tp.Shutdown
	}
	reader := sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(10*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	slog.Info("telemetry initialized", "endpoint", endpoint)
	return func(ctx context.Context) error {
		terr := tp.Shutdown(ctx)
		merr := mp.Shutdown(ctx)
		if terr != nil {
			return terr
		}
		return merr
	}
}

// StartSpan starts a span on the service tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// Flush runs shutdown with a bounded timeout.
func Flush(ctx context.Context, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.Warn("telemetry shutdown failed", "error", err)
	}
}
