package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// SDKConfig configures the concrete tracer provider built by
// NewSDKTracerProvider, as opposed to NewOTelTracer which only ever
// reads whatever provider (if any) has already been registered
// globally.
type SDKConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// SamplingRate is the fraction of traces recorded, 0.0 to 1.0.
	// Zero defaults to 1.0 (always sample).
	SamplingRate float64
}

// NewSDKTracerProvider builds a *sdktrace.TracerProvider resourced and
// sampled per cfg, exports completed spans through sink, registers
// itself as the process-global provider and propagator, and returns a
// Tracer view of it alongside a shutdown func that must be called on
// process exit. sink is typically a Logger, so spans surface in the
// same structured log stream as everything else; a nil sink drops
// spans after sampling, which is still useful for propagation-only
// deployments.
func NewSDKTracerProvider(cfg SDKConfig, sink Logger) (Tracer, func(context.Context) error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "skreaver"
	}
	if cfg.SamplingRate == 0 {
		cfg.SamplingRate = 1.0
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		res = resource.Default()
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SamplingRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithSyncer(&logExporter{sink: sink}),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &OTelTracer{tracer: provider.Tracer(cfg.ServiceName)}, provider.Shutdown
}

// logExporter adapts a Logger to sdktrace.SpanExporter, so finished
// spans flow into the same structured log sink as everything else
// instead of requiring a separate collector dependency.
type logExporter struct {
	sink Logger
}

func (e *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.sink == nil {
		return nil
	}
	for _, s := range spans {
		sc := s.SpanContext()
		e.sink.Info(ctx, "span.end",
			"name", s.Name(),
			"trace_id", sc.TraceID().String(),
			"span_id", sc.SpanID().String(),
			"status", s.Status().Code.String(),
			"duration_ms", s.EndTime().Sub(s.StartTime()).Milliseconds(),
		)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error { return nil }

var _ trace.TracerProvider = (*sdktrace.TracerProvider)(nil)
