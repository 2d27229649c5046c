package otelhelper

import (
	"github.com/KallebyX/simao-sub001/pkg/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span failed and records the flow reason the error maps to.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	attrs = append(attrs, attribute.String(ReasonKey, string(models.ReasonFor(err))))
	span.AddEvent("flow_error", trace.WithAttributes(attrs...))
}
