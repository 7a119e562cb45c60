package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	AttrMessagingSystem         = "messaging.system"
	AttrMessagingDestination    = "messaging.destination"
	AttrMessagingOperation      = "messaging.operation"
	AttrMessagingKafkaPartition = "messaging.kafka.partition"
	AttrMessagingKafkaOffset    = "messaging.kafka.offset"

	AttrNotificationID      = "notification.id"
	AttrNotificationChannel = "notification.channel"
)

// Tracer wraps an otel tracer with span helpers
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new tracer instance
func NewTracer(tracer trace.Tracer) *Tracer {
	return &Tracer{
		tracer: tracer,
	}
}

// StartServerSpan creates a new server span
func (t *Tracer) StartServerSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.startSpan(ctx, operation, trace.SpanKindServer, attrs...)
}

// StartProducerSpan creates a span for publishing to the broker
func (t *Tracer) StartProducerSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.startSpan(ctx, operation, trace.SpanKindProducer, attrs...)
}

// StartConsumerSpan creates a span for handling a consumed message
func (t *Tracer) StartConsumerSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.startSpan(ctx, operation, trace.SpanKindConsumer, attrs...)
}

func (t *Tracer) startSpan(ctx context.Context, operation string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, operation,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(kind),
	)
	return ctx, span
}

// RecordError records an error on the span
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddKafkaAttributes adds Kafka operation attributes
func (t *Tracer) AddKafkaAttributes(span trace.Span, topic, operation string, partition int32, offset int64) {
	span.SetAttributes(
		attribute.String(AttrMessagingSystem, "kafka"),
		attribute.String(AttrMessagingDestination, topic),
		attribute.String(AttrMessagingOperation, operation),
		attribute.Int64(AttrMessagingKafkaPartition, int64(partition)),
		attribute.Int64(AttrMessagingKafkaOffset, offset),
	)
}

// NotificationAttributes tags a span with the record it works on
func NotificationAttributes(id, channel string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrNotificationID, id),
		attribute.String(AttrNotificationChannel, channel),
	}
}

// GetTracer returns a named tracer from the global provider
func GetTracer(name string) *Tracer {
	return NewTracer(otel.Tracer(name))
}
