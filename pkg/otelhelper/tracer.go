// Package otelhelper provides distributed tracing for flow step runs.
package otelhelper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Common attribute keys.
	TenantIDKey       = "flowengine.tenant.id"
	ConversationIDKey = "flowengine.conversation.id"
	FlowIDKey         = "flowengine.flow.id"
	NodeIDKey         = "flowengine.node.id"
	NodeKindKey       = "flowengine.node.kind"
	TaskIDKey         = "flowengine.task.id"
	TriggerIDKey      = "flowengine.trigger.id"
	ReasonKey         = "flowengine.reason"
	HopsKey           = "flowengine.hops"
)

// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, serviceName string) (trace.Tracer, func(context.Context) error, error) {
	provider, err := newTracerProvider(ctx, serviceName)
	if err != nil {
		return nil, nil, err
	}

	return provider.Tracer(serviceName), provider.Shutdown, nil
}

// GlobalTracer returns a tracer from the global provider, a no-op unless
// NewTracer installed one.
//
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func GlobalTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// ConversationAttributes are the attributes every step span carries.
func ConversationAttributes(tenantID, conversationID, flowID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(TenantIDKey, tenantID),
		attribute.String(ConversationIDKey, conversationID),
		attribute.String(FlowIDKey, flowID),
	}
}

// nolint:ireturn,spancheck // Returning interface is intentional for OpenTelemetry tracing
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func newTracerProvider(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return tp, nil
}
