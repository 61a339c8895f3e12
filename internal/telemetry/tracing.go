// Package telemetry configures OpenTelemetry tracing for owlbridge.
//
// Spans are exported to a writer (stderr by default) with the stdout
// exporter. When tracing is disabled the global no-op provider stays in place
// and span calls in the analysis service cost nothing.
package telemetry

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ShutdownFunc flushes pending spans and releases the exporter.
type ShutdownFunc func(context.Context) error

// Options configures SetupTracing.
type Options struct {
	Enabled bool
	Pretty  bool

	// Writer receives exported spans. Defaults to os.Stderr.
	Writer io.Writer

	ServiceName    string
	ServiceVersion string
}

// SetupTracing installs a global tracer provider and returns it with its
// shutdown func. With tracing disabled it returns a no-op provider.
func SetupTracing(opts Options) (trace.TracerProvider, ShutdownFunc, error) {
	if !opts.Enabled {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	exporterOpts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if opts.Pretty {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, nil, err
	}

	name := opts.ServiceName
	if name == "" {
		name = "owlbridge"
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", name),
		attribute.String("service.version", opts.ServiceVersion),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp, tp.Shutdown, nil
}
