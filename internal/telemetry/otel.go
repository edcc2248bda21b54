package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.uber.org/zap"
)

// Options configures tracing for one binary
type Options struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Endpoint       string
}

// ShutdownFunc flushes and stops tracing
type ShutdownFunc func(context.Context) error

// Setup installs the global tracer provider when tracing is enabled. With
// tracing disabled the returned ShutdownFunc does nothing and spans are
// dropped by the default no-op provider.
func Setup(ctx context.Context, opts Options, logger *zap.Logger) (ShutdownFunc, error) {
	if !opts.Enabled {
		logger.Info("otel_disabled")
		return func(context.Context) error { return nil }, nil
	}

	tp, err := InitTracer(ctx, opts.ServiceName, opts.ServiceVersion, opts.Endpoint)
	if err != nil {
		return nil, err
	}

	logger.Info("otel_initialized",
		zap.String("service", opts.ServiceName),
		zap.String("endpoint", opts.Endpoint),
	)
	return func(ctx context.Context) error { return Shutdown(ctx, tp) }, nil
}

// InitTracer initializes the OpenTelemetry tracer provider
func InitTracer(ctx context.Context, serviceName, serviceVersion, endpoint string) (*sdktrace.TracerProvider, error) {
	exporterOpts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
	if endpoint != "" {
		exporterOpts = append(exporterOpts, otlptracehttp.WithEndpoint(endpoint))
	}

	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)

	// Propagate trace context from API to worker through job headers
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// Shutdown gracefully shuts down the tracer provider
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}
