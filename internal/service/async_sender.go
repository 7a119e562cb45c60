package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samims/notify/internal/channel"
	appErr "github.com/samims/notify/internal/errors"
	"github.com/samims/notify/internal/metrics"
	"github.com/samims/notify/internal/model"
	"github.com/samims/notify/internal/store"
)

var ErrSenderClosed = errors.New("async sender is closed")

// AsyncSender delivers records in-process when no broker is configured.
// Each record gets a single attempt; a failure is final.
type AsyncSender interface {
	Dispatcher
	// SendAsync schedules delivery of rec and returns once a worker slot is taken
	SendAsync(ctx context.Context, rec model.Notification) error
	// Close stops accepting work and waits for in-flight sends
	Close(ctx context.Context) error
}

type asyncSender struct {
	store    store.NotificationStorage
	registry *channel.Registry
	policy   Policy
	now      func() time.Time
	l        *slog.Logger

	sem    chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool

	// sends outlive the request that scheduled them
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewAsyncSender creates a sender running at most workerLimit sends at once
func NewAsyncSender(
	store store.NotificationStorage,
	registry *channel.Registry,
	workerLimit int,
	logger *slog.Logger,
) AsyncSender {
	if workerLimit < 1 {
		workerLimit = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &asyncSender{
		store:    store,
		registry: registry,
		policy:   DirectPolicy(),
		now:      func() time.Time { return time.Now().UTC() },
		l:        logger.With("layer", "service", "component", "async_sender"),
		sem:      make(chan struct{}, workerLimit),
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

func (s *asyncSender) Path() string { return PathDirect }

func (s *asyncSender) Dispatch(ctx context.Context, rec model.Notification) error {
	err := s.SendAsync(ctx, rec)
	countDispatch(s.Path(), err)
	return err
}

func (s *asyncSender) SendAsync(ctx context.Context, rec model.Notification) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.sem
		return ErrSenderClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	id := rec.ID
	go func() {
		defer s.wg.Done()
		defer func() { <-s.sem }()
		s.deliver(s.baseCtx, id)
	}()
	return nil
}

// deliver is the completion path: it reloads the record, sends once and
// commits the outcome by id. The caller's copy is never touched.
func (s *asyncSender) deliver(ctx context.Context, id uuid.UUID) {
	log := s.l.With(slog.String("notification_id", id.String()))
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic during direct delivery", slog.Any("panic", r))
		}
	}()

	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		log.Error("Failed to load notification for direct delivery", slog.Any("error", err))
		return
	}
	if rec.Status.IsTerminal() {
		log.Info("Notification already terminal, skipping send", slog.String("status", string(rec.Status)))
		return
	}

	var outcome Outcome
	if adapter, ok := s.registry.Get(rec.Channel); ok {
		outcome = OutcomeFromResult(<-channel.SendAsync(ctx, adapter, channel.PayloadFromRecord(*rec), 0))
	} else {
		outcome = UnsupportedOutcome(rec.Channel)
	}
	if err := outcome.Err(); err != nil {
		log.Warn("Direct delivery attempt failed", slog.Any("error", err))
	}

	updated, err := s.store.Update(ctx, id, func(cur model.Notification) (model.Notification, error) {
		return Apply(cur, outcome, s.policy, s.now())
	})
	if err != nil {
		if appErr.IsTerminal(err) {
			log.Info("Notification reached a terminal state concurrently, outcome discarded")
			return
		}
		log.Error("Failed to persist direct delivery outcome", slog.Any("error", err))
		return
	}

	metrics.DeliveryOutcomes.WithLabelValues(string(updated.Channel), string(updated.Status), s.policy.Name).Inc()
	log.Info("Direct delivery recorded",
		slog.String("status", string(updated.Status)),
		slog.String("error_message", updated.ErrorMessage))
}

func (s *asyncSender) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}
