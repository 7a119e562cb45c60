package tracing

import (
	"context"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// headerCarrier adapts sarama record headers to a TextMapCarrier
type headerCarrier struct {
	headers *[]sarama.RecordHeader
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if string(h.Key) == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, string(h.Key))
	}
	return keys
}

var _ propagation.TextMapCarrier = headerCarrier{}

// InjectTraceContext returns a copy of headers carrying the trace context of ctx
func InjectTraceContext(ctx context.Context, headers []sarama.RecordHeader) []sarama.RecordHeader {
	out := make([]sarama.RecordHeader, len(headers))
	copy(out, headers)
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{headers: &out})
	return out
}

// ExtractTraceContext returns ctx joined to the trace carried in consumed headers
func ExtractTraceContext(ctx context.Context, headers []*sarama.RecordHeader) context.Context {
	flat := make([]sarama.RecordHeader, 0, len(headers))
	for _, h := range headers {
		if h != nil {
			flat = append(flat, *h)
		}
	}
	return otel.GetTextMapPropagator().Extract(ctx, headerCarrier{headers: &flat})
}
