package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samims/notify/internal/model"
)

type fakeSession struct {
	ctx context.Context

	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32                        { return map[string][]int32{"notification-send": {0}} }
func (s *fakeSession) MemberID() string                                  { return "member-1" }
func (s *fakeSession) GenerationID() int32                               { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)           {}
func (s *fakeSession) Commit()                                           {}
func (s *fakeSession) ResetOffset(string, int32, int64, string)          {}
func (s *fakeSession) Context() context.Context                          { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) { s.mark(msg.Offset) }

func (s *fakeSession) mark(offset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, offset)
}

func (s *fakeSession) markedOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                              { return "notification-send" }
func (c *fakeClaim) Partition() int32                           { return 0 }
func (c *fakeClaim) InitialOffset() int64                       { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64                 { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage   { return c.messages }

type workerFunc func(ctx context.Context, ev model.DispatchEvent) error

func (f workerFunc) Handle(ctx context.Context, ev model.DispatchEvent) error { return f(ctx, ev) }

func eventMessage(t *testing.T, offset int64, ev model.DispatchEvent) *sarama.ConsumerMessage {
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "notification-send", Offset: offset, Key: []byte(ev.NotificationID.String()), Value: raw}
}

func newTestConsumer(worker workerFunc) *Consumer {
	c := NewKafkaConsumer("notification-send", nil, worker, testTracer(), slog.Default())
	c.backoff = time.Millisecond
	return c
}

func TestConsumer_ConsumeClaimInOrder(t *testing.T) {
	var mu sync.Mutex
	var handled []uuid.UUID
	c := newTestConsumer(func(ctx context.Context, ev model.DispatchEvent) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, ev.NotificationID)
		return nil
	})

	first, second := uuid.New(), uuid.New()
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 3)}
	claim.messages <- eventMessage(t, 10, model.DispatchEvent{NotificationID: first})
	claim.messages <- &sarama.ConsumerMessage{Topic: "notification-send", Offset: 11, Value: []byte("not json")}
	claim.messages <- eventMessage(t, 12, model.DispatchEvent{NotificationID: second})
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, c.ConsumeClaim(session, claim))

	assert.Equal(t, []uuid.UUID{first, second}, handled)
	assert.Equal(t, []int64{10, 11, 12}, session.markedOffsets(), "malformed messages are skipped but marked")
}

func TestConsumer_RetriesInfrastructureErrors(t *testing.T) {
	attempts := 0
	c := newTestConsumer(func(ctx context.Context, ev model.DispatchEvent) error {
		attempts++
		if attempts < 3 {
			return errors.New("store unavailable")
		}
		return nil
	})

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- eventMessage(t, 5, model.DispatchEvent{NotificationID: uuid.New()})
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, c.ConsumeClaim(session, claim))

	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int64{5}, session.markedOffsets())
}

func TestConsumer_SessionEndLeavesMessageUnmarked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newTestConsumer(func(context.Context, model.DispatchEvent) error {
		cancel()
		return errors.New("store unavailable")
	})

	c.backoff = time.Hour

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- eventMessage(t, 7, model.DispatchEvent{NotificationID: uuid.New()})

	session := &fakeSession{ctx: ctx}
	require.NoError(t, c.ConsumeClaim(session, claim))
	assert.Empty(t, session.markedOffsets())
}
