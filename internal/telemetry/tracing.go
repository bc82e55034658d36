// Package telemetry wires optional OpenTelemetry tracing around model
// invocations. Tracing is off unless OTEL_EXPORTER_OTLP_ENDPOINT is set.
package telemetry

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "llmparse"

var tracer trace.Tracer = otel.Tracer(tracerName)

// InitTracing configures OpenTelemetry if an OTLP endpoint is provided.
func InitTracing() func(context.Context) error {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		slog.Info("OpenTelemetry disabled (OTEL_EXPORTER_OTLP_ENDPOINT not set)")
		tracer = otel.Tracer(tracerName)
		return func(context.Context) error { return nil }
	}

	ctx := context.Background()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(endpoint),
	)
	if err != nil {
		slog.Warn("Failed to create OTLP exporter, tracing disabled",
			"error", err,
			"endpoint", endpoint,
		)
		tracer = otel.Tracer(tracerName)
		return func(context.Context) error { return nil }
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(tracerName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		slog.Warn("Failed to create resource", "error", err)
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer = tp.Tracer(tracerName)

	slog.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)

	return tp.Shutdown
}

// StartInvocation opens a span around one model call.
func StartInvocation(ctx context.Context, kind, provider, model string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "llm_invocation",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.kind", kind),
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
		),
	)
}

// EndInvocation records token usage and the outcome on a span.
func EndInvocation(span trace.Span, promptTokens, completionTokens int, err error) {
	span.SetAttributes(
		attribute.Int("llm.tokens.prompt", promptTokens),
		attribute.Int("llm.tokens.completion", completionTokens),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
