package kproc

import (
	"io"

	"github.com/viant/kproc/runtime/kernel"
	"github.com/viant/kproc/service/event"
	"github.com/viant/kproc/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures a Service.
type Option func(s *Service)

// WithConfig sets the runtime configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithConsole redirects kernel console output.
func WithConsole(w io.Writer) Option {
	return func(s *Service) { s.console = w }
}

// WithEventService sets the event service lifecycle events are published to.
func WithEventService(service *event.Service) Option {
	return func(s *Service) { s.eventService = service }
}

// WithKernelOptions appends raw kernel options, applied after the defaults.
func WithKernelOptions(options ...kernel.Option) Option {
	return func(s *Service) { s.kernelOptions = append(s.kernelOptions, options...) }
}

// WithTracing initialises OpenTelemetry tracing using the stdout exporter.
// If outputFile is empty spans are written to stdout.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter initialises OpenTelemetry tracing with a custom exporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
