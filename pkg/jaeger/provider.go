// Package jaeger sets up an OpenTelemetry tracer provider that exports to a
// Jaeger collector over OTLP/HTTP.
package jaeger

import (
	"context"
	"errors"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
)

var (
	errNoURL                     = errors.New("URL is empty")
	errNoSvcName                 = errors.New("service name is empty")
	errUnsupportedTraceURLScheme = errors.New("unsupported tracing url scheme")
)

// NewProvider creates a batching tracer provider that samples the given
// fraction of root spans, and installs it together with the W3C trace
// context propagator as the global default.
func NewProvider(ctx context.Context, svcName string, jaegerURL url.URL, instanceID string, fraction float64) (*tracesdk.TracerProvider, error) {
	if jaegerURL == (url.URL{}) {
		return nil, errNoURL
	}
	if svcName == "" {
		return nil, errNoSvcName
	}

	var opts []otlptracehttp.Option
	switch jaegerURL.Scheme {
	case "http":
		opts = append(opts, otlptracehttp.WithInsecure())
	case "https":
	default:
		return nil, errUnsupportedTraceURLScheme
	}
	opts = append(opts, otlptracehttp.WithEndpoint(jaegerURL.Host), otlptracehttp.WithURLPath(jaegerURL.Path))

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", svcName),
	}
	if instanceID != "" {
		attrs = append(attrs, attribute.String("service.instance.id", instanceID))
	}

	hostAttr, err := resource.New(ctx, resource.WithHost(), resource.WithOSDescription(), resource.WithContainer())
	if err != nil && !errors.Is(err, resource.ErrPartialResource) {
		return nil, err
	}
	attrs = append(attrs, hostAttr.Attributes()...)

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(fraction))),
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(resource.NewSchemaless(attrs...)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}
