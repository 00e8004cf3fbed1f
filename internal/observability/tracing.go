package observability

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Tracing exporters accepted by NewTracerProvider.
const (
	TracingExporterNone   = "none"
	TracingExporterStdout = "stdout"
)

// NewTracerProvider builds the process tracer provider. The stdout exporter writes finished
// spans as JSON to w; none keeps spans in process (they still carry trace IDs).
// sampleRatio applies to root spans; child spans follow their parent.
func NewTracerProvider(service, exporter string, sampleRatio float64, w io.Writer) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", service))),
	}
	switch exporter {
	case "", TracingExporterNone:
	case TracingExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q", exporter)
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

// ShutdownTracing flushes pending spans and stops tp. A nil tp is a no-op.
func ShutdownTracing(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("flush traces: %w", err)
	}
	return nil
}
