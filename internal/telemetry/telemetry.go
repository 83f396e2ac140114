package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName     = "bunny-dns-sync"
	defaultEndpoint = "localhost:4317"
)

// Version is stamped into the trace resource.
var Version = "dev"

// Options select the exporters.
type Options struct {
	// Exporter is "none" (default), "console", "otlp", or "both".
	Exporter string
	// Endpoint is the OTLP gRPC endpoint (default "localhost:4317").
	Endpoint string
	// Console receives console spans; stderr when nil so stdout stays clean
	// for command output.
	Console io.Writer
}

// Setup installs a global tracer provider and returns a tracer and its
// shutdown function.
func Setup(ctx context.Context, opts Options) (trace.Tracer, func(context.Context) error, error) {
	exporterType := opts.Exporter
	if exporterType == "" {
		exporterType = "none"
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(Version),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporters []sdktrace.SpanExporter
	switch exporterType {
	case "none":
		// spans are still created so ids show up in logs, just never exported
	case "console", "otlp", "both":
		if exporterType != "otlp" {
			consoleExporter, err := stdouttrace.New(stdouttrace.WithWriter(console), stdouttrace.WithPrettyPrint())
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create console exporter: %w", err)
			}
			exporters = append(exporters, consoleExporter)
		}
		if exporterType != "console" {
			otlpExporter, err := otlptracegrpc.New(ctx,
				otlptracegrpc.WithEndpoint(endpoint),
				otlptracegrpc.WithInsecure(),
			)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
			}
			exporters = append(exporters, otlpExporter)
		}
	default:
		return nil, nil, fmt.Errorf("unsupported otel exporter %q", exporterType)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	for _, exporter := range exporters {
		tp.RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter))
	}
	otel.SetTracerProvider(tp)

	shutdown := func(ctx context.Context) error {
		return tp.Shutdown(ctx)
	}
	return tp.Tracer(serviceName), shutdown, nil
}
