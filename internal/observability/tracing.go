package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const defaultServiceName = "realmwatch"

// Tracer emits spans for monitor ticks using OpenTelemetry.
//
// Each tick is one span; probing and every chat-platform side effect are
// child spans, so a slow or failing Discord call shows up against the tick
// that made it.
type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

// TraceConfig configures span export.
type TraceConfig struct {
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector, as host:port or a URL.
	// Empty disables export.
	Endpoint string

	// Insecure disables TLS to the collector.
	Insecure bool

	// SamplingRate is the fraction of ticks traced. Zero means all of them.
	SamplingRate float64
}

// NewTracer builds a tracer and the shutdown func that flushes it.
// Without an endpoint, or if the exporter cannot be built, spans go to the
// global provider, which is a no-op unless something else installed one.
func NewTracer(config TraceConfig) (*Tracer, func(context.Context) error) {
	if config.ServiceName == "" {
		config.ServiceName = defaultServiceName
	}
	noExport := &Tracer{tracer: otel.Tracer(config.ServiceName), serviceName: config.ServiceName}
	nothing := func(context.Context) error { return nil }

	if config.Endpoint == "" {
		return noExport, nothing
	}

	exporter, err := otlptrace.New(context.Background(), otlptracegrpc.NewClient(exporterOptions(config)...))
	if err != nil {
		return noExport, nothing
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(serviceResource(config)),
		sdktrace.WithSampler(sampler(config.SamplingRate)),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{tracer: provider.Tracer(config.ServiceName), serviceName: config.ServiceName}, provider.Shutdown
}

func exporterOptions(config TraceConfig) []otlptracegrpc.Option {
	var opts []otlptracegrpc.Option
	if strings.Contains(config.Endpoint, "://") {
		opts = append(opts, otlptracegrpc.WithEndpointURL(config.Endpoint))
	} else {
		opts = append(opts, otlptracegrpc.WithEndpoint(config.Endpoint))
	}
	if config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return opts
}

func serviceResource(config TraceConfig) *resource.Resource {
	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	))
	if err != nil {
		return resource.Default()
	}
	return res
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate == 0 || rate >= 1:
		return sdktrace.AlwaysSample()
	case rate < 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// TraceTick starts the root span for one monitor tick.
//
//	ctx, span := tracer.TraceTick(ctx, tickID)
//	defer span.End()
func (t *Tracer) TraceTick(ctx context.Context, tickID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "monitor.tick",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("tick.id", tickID)),
	)
}

// TraceProbe starts the span covering one round of port probes.
func (t *Tracer) TraceProbe(ctx context.Context, targets int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "monitor.probe",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("probe.targets", targets)),
	)
}

// TraceChatCall starts a client span for one chat-platform operation.
func (t *Tracer) TraceChatCall(ctx context.Context, op string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, fmt.Sprintf("chat.%s", op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("chat.op", op)),
	)
}

// MarkVerdict records a tick's evaluated state on its span.
func (t *Tracer) MarkVerdict(span trace.Span, playable string, failedTargets int) {
	span.SetAttributes(
		attribute.String("monitor.playable", playable),
		attribute.Int("monitor.failed_targets", failedTargets),
	)
}

// Fail records err on span and marks the span as errored. Nil is ignored.
func (t *Tracer) Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the active trace ID in ctx, or "" when none is recording.
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
