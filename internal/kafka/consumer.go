package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/samims/notify/internal/model"
	"github.com/samims/notify/internal/service"
	"github.com/samims/notify/pkg/tracing"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// Consumer is responsible for handling Kafka message consumption from a topic using a consumer group.
type Consumer struct {
	topic         string
	worker        service.DeliveryWorker
	consumerGroup sarama.ConsumerGroup
	tracer        *tracing.Tracer
	log           *slog.Logger
	backoff       time.Duration
}

// NewKafkaConsumer constructs a new Kafka Consumer.
// It receives its consumer group via dependency injection.
func NewKafkaConsumer(
	topic string,
	consumerGroup sarama.ConsumerGroup,
	worker service.DeliveryWorker,
	tracer *tracing.Tracer,
	log *slog.Logger,
) *Consumer {
	return &Consumer{
		topic:         topic,
		consumerGroup: consumerGroup,
		worker:        worker,
		tracer:        tracer,
		log:           log.With("layer", "kafka", "component", "consumer"),
		backoff:       initialBackoff,
	}
}

// Start begins the Kafka consumer loop, listening for messages on the configured topic.
// It will block until the context is canceled or the consumer group is closed.
func (c *Consumer) Start(ctx context.Context) error {
	defer func() {
		if err := c.consumerGroup.Close(); err != nil {
			c.log.Warn("Failed to close consumer group", slog.Any("error", err))
		}
	}()

	c.log.Info("Kafka consumer started", slog.String("topic", c.topic))

	backoff := c.backoff
	for {
		// Consume blocks for the lifetime of one group session
		err := c.consumerGroup.Consume(ctx, []string{c.topic}, c)
		if err != nil {
			c.log.Error("Error consuming messages", slog.Any("error", err))

			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return err
			}
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = c.backoff

		if ctx.Err() != nil {
			c.log.Info("Context cancelled, stopping consumer")
			return ctx.Err()
		}
	}
}

// Setup is called once when a new consumer session starts.
func (c *Consumer) Setup(session sarama.ConsumerGroupSession) error {
	for topic, partitions := range session.Claims() {
		c.log.Info("Partition assignment",
			slog.String("topic", topic),
			slog.Any("partitions", partitions),
		)
	}
	return nil
}

// Cleanup is called once when the consumer session ends (rebalance, shutdown, etc).
func (c *Consumer) Cleanup(_ sarama.ConsumerGroupSession) error {
	c.log.Info("Kafka session cleanup complete")
	return nil
}

// ConsumeClaim handles one partition. Messages are processed one at a time so
// that events for the same notification never run concurrently.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if !c.process(session, message) {
				// session is ending; the unmarked message is redelivered to the next owner
				return nil
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// process hands one message to the worker, retrying infrastructure errors
// until they clear. It reports false only when the session ended first.
func (c *Consumer) process(session sarama.ConsumerGroupSession, message *sarama.ConsumerMessage) bool {
	log := c.log.With(
		slog.String("topic", message.Topic),
		slog.Int("partition", int(message.Partition)),
		slog.Int64("offset", message.Offset),
	)
	log.Debug("Message received")

	var ev model.DispatchEvent
	if err := json.Unmarshal(message.Value, &ev); err != nil {
		log.Error("Failed to decode dispatch event, skipping", slog.Any("error", err))
		return true
	}

	ctx := tracing.ExtractTraceContext(session.Context(), message.Headers)
	ctx, span := c.tracer.StartConsumerSpan(ctx, "KafkaConsume",
		tracing.NotificationAttributes(ev.NotificationID.String(), string(ev.Channel))...)
	defer span.End()
	c.tracer.AddKafkaAttributes(span, message.Topic, "process", message.Partition, message.Offset)

	backoff := c.backoff
	for {
		err := c.worker.Handle(ctx, ev)
		if err == nil {
			return true
		}
		c.tracer.RecordError(span, err)
		log.Error("Dispatch event handling failed, retrying",
			slog.String("notification_id", ev.NotificationID.String()),
			slog.Duration("backoff", backoff),
			slog.Any("error", err))

		if !sleep(session.Context(), backoff) {
			return false
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
