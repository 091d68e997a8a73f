package otelhelper

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError records err on span and marks the span failed.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// SetOutcome records the terminal status of an execution span. Failed,
// timed out and cancelled runs mark the span as an error carrying message.
func SetOutcome(span trace.Span, status, message string) {
	span.SetAttributes(attribute.String(ExecutionStatusKey, status))

	switch status {
	case "failed", "timeout", "cancelled":
		if message == "" {
			message = "execution " + status
		}

		SetError(span, errors.New(message))
	default:
		span.SetStatus(codes.Ok, "")
	}
}
