package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span failed and records err on it.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(
		attrs...,
	))
}

// SetStatus records a terminal status attribute and marks the span as
// failed when reason is not empty.
func SetStatus(span trace.Span, key, status, reason string) {
	span.SetAttributes(attribute.String(key, status))

	if reason != "" {
		span.SetStatus(codes.Error, reason)

		return
	}

	span.SetStatus(codes.Ok, "")
}
