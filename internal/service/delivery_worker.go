package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samims/notify/internal/channel"
	appErr "github.com/samims/notify/internal/errors"
	"github.com/samims/notify/internal/metrics"
	"github.com/samims/notify/internal/model"
	"github.com/samims/notify/internal/store"
)

// DeliveryWorker processes dispatch events consumed from the broker
type DeliveryWorker interface {
	// Handle runs one delivery attempt. Only infrastructure errors are
	// returned, so the caller can leave the event for redelivery.
	Handle(ctx context.Context, ev model.DispatchEvent) error
}

type deliveryWorker struct {
	store     store.NotificationStorage
	registry  *channel.Registry
	publisher Publisher
	policy    Policy
	now       func() time.Time
	l         *slog.Logger
}

// NewDeliveryWorker creates the queue-path worker. A record that fails with
// budget left is republished through publisher after its update commits.
func NewDeliveryWorker(
	store store.NotificationStorage,
	registry *channel.Registry,
	publisher Publisher,
	maxRetries int,
	logger *slog.Logger,
) DeliveryWorker {
	return &deliveryWorker{
		store:     store,
		registry:  registry,
		publisher: publisher,
		policy:    QueuePolicy(maxRetries),
		now:       func() time.Time { return time.Now().UTC() },
		l:         logger.With("layer", "service", "component", "delivery_worker"),
	}
}

func (w *deliveryWorker) Handle(ctx context.Context, ev model.DispatchEvent) error {
	log := w.l.With(slog.String("notification_id", ev.NotificationID.String()))

	rec, err := w.store.FindByID(ctx, ev.NotificationID)
	if err != nil {
		if appErr.IsNotFound(err) {
			log.WarnContext(ctx, "Dispatch event references unknown notification, dropping")
			return nil
		}
		return err
	}
	if rec.Status.IsTerminal() {
		log.InfoContext(ctx, "Notification already terminal, dropping event", slog.String("status", string(rec.Status)))
		return nil
	}

	var outcome Outcome
	adapter, ok := w.registry.Get(rec.Channel)
	if !ok {
		log.WarnContext(ctx, "No adapter registered for channel", slog.String("channel", string(rec.Channel)))
		outcome = UnsupportedOutcome(rec.Channel)
	} else {
		outcome = OutcomeFromResult(adapter.Send(ctx, channel.PayloadFromRecord(*rec)))
	}
	if err := outcome.Err(); err != nil {
		log.WarnContext(ctx, "Delivery attempt failed", slog.Int("retry_count", rec.RetryCount), slog.Any("error", err))
	}

	updated, err := w.store.Update(ctx, rec.ID, func(cur model.Notification) (model.Notification, error) {
		return Apply(cur, outcome, w.policy, w.now())
	})
	if err != nil {
		switch {
		case errors.Is(err, appErr.ErrTerminalState):
			log.InfoContext(ctx, "Notification reached a terminal state concurrently, outcome discarded")
			return nil
		case appErr.IsNotFound(err):
			log.WarnContext(ctx, "Notification disappeared before update, dropping")
			return nil
		}
		log.ErrorContext(ctx, "Failed to persist delivery outcome", slog.Any("error", err))
		return err
	}

	metrics.DeliveryOutcomes.WithLabelValues(string(updated.Channel), string(updated.Status), w.policy.Name).Inc()
	log.InfoContext(ctx, "Delivery attempt recorded",
		slog.String("status", string(updated.Status)),
		slog.Int("retry_count", updated.RetryCount),
		slog.String("error_message", updated.ErrorMessage))

	if updated.Status == model.StatusPending && w.publisher != nil {
		if err := w.publisher.Publish(ctx, model.NewDispatchEvent(*updated)); err != nil {
			// the sweeper picks the record up once it goes stale
			log.ErrorContext(ctx, "Failed to republish retry", slog.Any("error", err))
		}
	}
	return nil
}
