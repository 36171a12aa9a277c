// Package observability holds the monitor's logging, metrics and tracing.
//
// Logging is log/slog behind a redacting handler so the bot token never
// reaches the output. Metrics are Prometheus collectors registered on a
// caller-supplied registerer and served at /metrics by the gateway package.
// Tracing uses OpenTelemetry with an OTLP/gRPC exporter; with no endpoint
// configured the tracer is a no-op.
//
// Usage:
//
//	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "text"})
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{ServiceName: "realmwatch"})
//	defer shutdown(context.Background())
package observability
