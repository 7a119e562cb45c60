package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samims/notify/internal/model"
	"github.com/samims/notify/internal/store"
)

// Sweeper re-dispatches records left PENDING, either because a hand-off
// failed or because a retry was committed but never republished. On the
// direct path it also picks up ACCEPTED records whose in-process send was
// lost, since no broker holds a copy of them.
type Sweeper interface {
	Start(ctx context.Context) error
}

type sweeper struct {
	store       store.NotificationStorage
	dispatcher  Dispatcher
	interval    time.Duration
	staleAfter  time.Duration
	workerLimit int
	statuses    []model.Status
	now         func() time.Time
	l           *slog.Logger
}

func NewSweeper(
	store store.NotificationStorage,
	dispatcher Dispatcher,
	interval, staleAfter time.Duration,
	workerLimit int,
	logger *slog.Logger,
) Sweeper {
	if workerLimit < 1 {
		workerLimit = 1
	}
	return &sweeper{
		store:       store,
		dispatcher:  dispatcher,
		interval:    interval,
		staleAfter:  staleAfter,
		workerLimit: workerLimit,
		statuses:    sweptStatuses(dispatcher.Path()),
		now:         func() time.Time { return time.Now().UTC() },
		l:           logger.With("layer", "service", "component", "sweeper"),
	}
}

// Start sweeps every interval until ctx is cancelled
func (s *sweeper) Start(ctx context.Context) error {
	s.l.InfoContext(ctx, "Starting pending sweeper",
		slog.Duration("interval", s.interval), slog.Duration("stale_after", s.staleAfter))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.l.InfoContext(ctx, "Sweeper shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := s.processBatch(ctx); err != nil {
				s.l.ErrorContext(ctx, "Error sweeping pending notifications", slog.Any("error", err))
			}
		}
	}
}

// sweptStatuses lists the non-terminal statuses a path can strand a record in
func sweptStatuses(path string) []model.Status {
	if path == PathDirect {
		return []model.Status{model.StatusPending, model.StatusAccepted}
	}
	return []model.Status{model.StatusPending}
}

// processBatch re-dispatches stale records concurrently
func (s *sweeper) processBatch(ctx context.Context) error {
	cutoff := s.now().Add(-s.staleAfter)
	var stale []model.Notification
	for _, status := range s.statuses {
		found, err := s.store.FindByStatus(ctx, status)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", status, err)
		}
		for _, n := range found {
			if n.UpdatedAt.Before(cutoff) {
				stale = append(stale, n)
			}
		}
	}
	if len(stale) == 0 {
		return nil
	}
	s.l.InfoContext(ctx, "Re-dispatching stale notifications",
		slog.Int("count", len(stale)), slog.String("path", s.dispatcher.Path()))

	eg, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.workerLimit)
	for _, n := range stale {
		sem <- struct{}{}
		eg.Go(func() error {
			defer func() { <-sem }()
			s.redispatch(ctx, n)
			return nil
		})
	}
	return eg.Wait()
}

func (s *sweeper) redispatch(ctx context.Context, n model.Notification) {
	log := s.l.With(slog.String("notification_id", n.ID.String()))

	// bump updated_at so the record leaves the stale window; skip it if it moved on
	_, err := s.store.Update(ctx, n.ID, func(cur model.Notification) (model.Notification, error) {
		if cur.Status != n.Status {
			return cur, fmt.Errorf("status changed to %s", cur.Status)
		}
		return cur, nil
	})
	if err != nil {
		log.InfoContext(ctx, "Skipping sweep of notification", slog.Any("reason", err))
		return
	}

	if err := s.dispatcher.Dispatch(ctx, n); err != nil {
		log.ErrorContext(ctx, "Failed to re-dispatch notification", slog.Any("error", err))
	}
}
