package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type (
	// OTelLogger logs through log/slog, tagging each line with the active
	// span's trace ID when one is present in the context.
	OTelLogger struct {
		logger *slog.Logger
	}

	// OTelMetrics records counters, timers, and gauges through an OTEL
	// metric.Meter. Uses the global MeterProvider; configure it before
	// constructing, typically via an OTLP exporter.
	OTelMetrics struct {
		meter    metric.Meter
		counters map[string]metric.Float64Counter
		gauges   map[string]metric.Float64Gauge
	}

	// OTelTracer starts spans through an OTEL trace.Tracer.
	OTelTracer struct {
		tracer trace.Tracer
	}

	otelSpan struct {
		span trace.Span
	}
)

// NewOTelLogger constructs a Logger backed by log/slog.
func NewOTelLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &OTelLogger{logger: logger}
}

// NewOTelMetrics constructs a Metrics recorder backed by the global OTEL
// MeterProvider, scoped to the given instrumentation name.
func NewOTelMetrics(instrumentationName string) Metrics {
	return &OTelMetrics{
		meter:    otel.Meter(instrumentationName),
		counters: make(map[string]metric.Float64Counter),
		gauges:   make(map[string]metric.Float64Gauge),
	}
}

// NewOTelTracer constructs a Tracer backed by the global OTEL TracerProvider.
func NewOTelTracer(instrumentationName string) Tracer {
	return &OTelTracer{tracer: otel.Tracer(instrumentationName)}
}

func (l *OTelLogger) Debug(ctx context.Context, msg string, kv ...any) {
	l.logger.DebugContext(ctx, msg, tagWithTrace(ctx, kv)...)
}
func (l *OTelLogger) Info(ctx context.Context, msg string, kv ...any) {
	l.logger.InfoContext(ctx, msg, tagWithTrace(ctx, kv)...)
}
func (l *OTelLogger) Warn(ctx context.Context, msg string, kv ...any) {
	l.logger.WarnContext(ctx, msg, tagWithTrace(ctx, kv)...)
}
func (l *OTelLogger) Error(ctx context.Context, msg string, kv ...any) {
	l.logger.ErrorContext(ctx, msg, tagWithTrace(ctx, kv)...)
}

func tagWithTrace(ctx context.Context, kv []any) []any {
	span := trace.SpanContextFromContext(ctx)
	if !span.IsValid() {
		return kv
	}
	return append(append([]any{}, kv...), "trace_id", span.TraceID().String())
}

func (m *OTelMetrics) IncCounter(name string, value float64, tags ...string) {
	c, ok := m.counters[name]
	if !ok {
		var err error
		c, err = m.meter.Float64Counter(name)
		if err != nil {
			return
		}
		m.counters[name] = c
	}
	c.Add(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

func (m *OTelMetrics) RecordTimer(name string, d time.Duration, tags ...string) {
	m.RecordGauge(name+"_ms", float64(d.Milliseconds()), tags...)
}

func (m *OTelMetrics) RecordGauge(name string, value float64, tags ...string) {
	g, ok := m.gauges[name]
	if !ok {
		var err error
		g, err = m.meter.Float64Gauge(name)
		if err != nil {
			return
		}
		m.gauges[name] = g
	}
	g.Record(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

func tagsToAttrs(tags []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		attrs = append(attrs, attribute.String(tags[i], tags[i+1]))
	}
	return attrs
}

func (t *OTelTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, &otelSpan{span: span}
}

func (t *OTelTracer) Span(ctx context.Context) Span {
	return &otelSpan{span: trace.SpanFromContext(ctx)}
}

func (s *otelSpan) End(opts ...trace.SpanEndOption) { s.span.End(opts...) }
func (s *otelSpan) AddEvent(name string, kv ...any) {
	s.span.AddEvent(name, trace.WithAttributes(tagsToAttrs(stringify(kv))...))
}
func (s *otelSpan) SetStatus(code codes.Code, description string) { s.span.SetStatus(code, description) }
func (s *otelSpan) RecordError(err error, opts ...trace.EventOption) { s.span.RecordError(err, opts...) }

func stringify(kv []any) []string {
	out := make([]string, 0, len(kv))
	for _, v := range kv {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		default:
			out = append(out, "")
		}
	}
	return out
}
