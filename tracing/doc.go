// Package tracing wraps OpenTelemetry for the management runtime. Spans are
// exported through the stdout exporter or any SpanExporter supplied by the
// caller; until a provider is installed spans are no-ops.
package tracing
