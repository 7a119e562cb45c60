package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/samims/notify/internal/model"
	"github.com/samims/notify/pkg/tracing"
)

var ErrProducerClosed = errors.New("kafka producer is closed")

// DispatchProducer publishes dispatch events and reports broker acknowledgement
type DispatchProducer interface {
	Start()
	Publish(ctx context.Context, ev model.DispatchEvent) error
	Close(ctx context.Context)
}

type producer struct {
	asyncProducer sarama.AsyncProducer
	topic         string
	log           *slog.Logger
	wg            sync.WaitGroup
	mu            sync.RWMutex
	closed        bool
	closeOnce     sync.Once
	tracer        *tracing.Tracer
}

// NewProducer wraps an AsyncProducer configured with Return.Successes and Return.Errors
func NewProducer(asyncProducer sarama.AsyncProducer, topic string, log *slog.Logger, tracer *tracing.Tracer) DispatchProducer {
	if asyncProducer == nil || log == nil || tracer == nil {
		panic("NewProducer: nil dependencies provided")
	}
	if topic == "" {
		panic("NewProducer: topic must not be empty")
	}
	return &producer{
		asyncProducer: asyncProducer,
		topic:         topic,
		log:           log.With("layer", "kafka", "component", "producer"),
		tracer:        tracer,
	}
}

// Start launches the success and error handlers. They run until the producer closes.
func (p *producer) Start() {
	p.log.Info("Starting Kafka producer handlers")
	p.wg.Add(2)
	go p.handleSuccess()
	go p.handleErrors()
}

func (p *producer) handleSuccess() {
	defer p.wg.Done()
	for msg := range p.asyncProducer.Successes() {
		key, _ := msg.Key.Encode()
		p.log.Debug("Message delivered",
			slog.String("topic", msg.Topic),
			slog.Int("partition", int(msg.Partition)),
			slog.Int64("offset", msg.Offset),
			slog.String("key", string(key)))
		ack(msg, nil)
	}
	p.log.Info("Kafka successes channel closed")
}

func (p *producer) handleErrors() {
	defer p.wg.Done()
	for perr := range p.asyncProducer.Errors() {
		p.log.Error("Message delivery failed",
			slog.String("topic", perr.Msg.Topic),
			slog.Any("error", perr.Err))
		ack(perr.Msg, perr.Err)
	}
	p.log.Info("Kafka errors channel closed")
}

// ack completes the Publish call waiting on msg, if any
func ack(msg *sarama.ProducerMessage, err error) {
	if ch, ok := msg.Metadata.(chan error); ok {
		ch <- err
	}
}

// Publish sends ev keyed by notification id and waits for the broker's acknowledgement
func (p *producer) Publish(ctx context.Context, ev model.DispatchEvent) error {
	id := ev.NotificationID.String()
	ctx, span := p.tracer.StartProducerSpan(ctx, "KafkaPublish",
		tracing.NotificationAttributes(id, string(ev.Channel))...)
	defer span.End()

	data, err := json.Marshal(ev)
	if err != nil {
		p.tracer.RecordError(span, err)
		return fmt.Errorf("failed to marshal dispatch event: %w", err)
	}

	done := make(chan error, 1)
	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(id),
		Value:     sarama.ByteEncoder(data),
		Timestamp: time.Now(),
		Headers:   tracing.InjectTraceContext(ctx, nil),
		Metadata:  done,
	}

	if err := p.enqueue(ctx, msg); err != nil {
		p.tracer.RecordError(span, err)
		return err
	}

	select {
	case err := <-done:
		if err != nil {
			p.tracer.RecordError(span, err)
			return fmt.Errorf("kafka publish failed: %w", err)
		}
		p.tracer.AddKafkaAttributes(span, p.topic, "publish", msg.Partition, msg.Offset)
		p.log.Debug("Dispatch event published", slog.String("notification_id", id))
		return nil
	case <-ctx.Done():
		p.log.Warn("Publish cancelled while awaiting ack", slog.String("notification_id", id))
		p.tracer.RecordError(span, ctx.Err())
		return ctx.Err()
	}
}

func (p *producer) enqueue(ctx context.Context, msg *sarama.ProducerMessage) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	select {
	case p.asyncProducer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes buffered messages and waits for the handlers
func (p *producer) Close(_ context.Context) {
	p.closeOnce.Do(func() {
		p.log.Info("Closing Kafka producer...")
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.asyncProducer.AsyncClose()
		p.wg.Wait()
		p.log.Info("Kafka producer closed")
	})
}
