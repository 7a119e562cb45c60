package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	appErr "github.com/samims/notify/internal/errors"
	"github.com/samims/notify/internal/model"
	"github.com/samims/notify/internal/store"
	"github.com/samims/notify/internal/template"
)

// NotificationService accepts notification requests and reports on their records
type NotificationService interface {
	// Accept expands req into one record per matching (channel, recipient)
	// pair, persists them and hands each to the configured delivery path
	Accept(ctx context.Context, req model.NotificationRequest) ([]model.Notification, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
}

type notificationService struct {
	store      store.NotificationStorage
	resolver   template.Resolver
	dispatcher Dispatcher
	newID      func() uuid.UUID
	now        func() time.Time
	l          *slog.Logger
}

func NewNotificationService(
	store store.NotificationStorage,
	resolver template.Resolver,
	dispatcher Dispatcher,
	logger *slog.Logger,
) NotificationService {
	return &notificationService{
		store:      store,
		resolver:   resolver,
		dispatcher: dispatcher,
		newID:      uuid.New,
		now:        func() time.Time { return time.Now().UTC() },
		l:          logger.With("layer", "service", "component", "notification_service"),
	}
}

func (s *notificationService) Accept(ctx context.Context, req model.NotificationRequest) ([]model.Notification, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	records, err := s.buildRecords(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, appErr.NewInvalidRequest("no recipients match requested channels")
	}

	if err := s.store.SaveAll(ctx, records); err != nil {
		s.l.ErrorContext(ctx, "Failed to persist notification batch", slog.Any("error", err))
		return nil, fmt.Errorf("persist notifications: %w", err)
	}

	handedOff := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		if err := s.dispatcher.Dispatch(ctx, rec); err != nil {
			// left PENDING for the sweeper
			s.l.ErrorContext(ctx, "Failed to dispatch notification",
				slog.String("notification_id", rec.ID.String()),
				slog.String("path", s.dispatcher.Path()),
				slog.Any("error", err))
			continue
		}
		handedOff = append(handedOff, rec.ID)
	}

	marked := 0
	if len(handedOff) > 0 {
		n, err := s.store.MarkAccepted(ctx, handedOff)
		if err != nil {
			s.l.ErrorContext(ctx, "Failed to mark notifications accepted", slog.Any("error", err))
			return nil, fmt.Errorf("mark accepted: %w", err)
		}
		marked = n
		s.l.DebugContext(ctx, "Marked notifications accepted",
			slog.Int("handed_off", len(handedOff)), slog.Int("updated", n))
	}

	if marked == len(handedOff) {
		accepted := make(map[uuid.UUID]struct{}, len(handedOff))
		for _, id := range handedOff {
			accepted[id] = struct{}{}
		}
		for i := range records {
			if _, ok := accepted[records[i].ID]; ok {
				records[i].Status = model.StatusAccepted
			}
		}
	} else {
		// a worker already recorded an attempt for some records; report what is stored
		s.refresh(ctx, records)
	}

	s.l.InfoContext(ctx, "Accepted notification request",
		slog.String("template_id", req.TemplateID),
		slog.Int("records", len(records)),
		slog.Int("dispatched", len(handedOff)))
	return records, nil
}

// buildRecords resolves content for every pair before anything is written
func (s *notificationService) buildRecords(ctx context.Context, req model.NotificationRequest) ([]model.Notification, error) {
	priority := req.Priority
	if priority == "" {
		priority = model.DefaultPriority
	}
	locale := req.Locale
	if locale == "" {
		locale = model.DefaultLocale
	}

	now := s.now()
	var records []model.Notification
	seen := make(map[model.Channel]bool, len(req.Channels))
	for _, ch := range req.Channels {
		if seen[ch] {
			continue
		}
		seen[ch] = true

		for _, r := range req.Recipients {
			if r.Channel != ch {
				continue
			}
			content, err := s.resolver.Resolve(ctx, req.TemplateID, ch, locale, req.Variables)
			if err != nil {
				if errors.Is(err, appErr.ErrTemplateNotFound) || errors.Is(err, appErr.ErrTemplateChannelMismatch) {
					return nil, fmt.Errorf("%w: %w", appErr.ErrInvalidRequest, err)
				}
				return nil, fmt.Errorf("resolve template: %w", err)
			}
			records = append(records, model.Notification{
				ID:         s.newID(),
				TemplateID: req.TemplateID,
				Channel:    ch,
				Recipient:  strings.TrimSpace(r.Address),
				Variables:  copyVars(req.Variables),
				Priority:   priority,
				Status:     model.StatusPending,
				Subject:    content.Subject,
				Body:       content.Body,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}
	}
	return records, nil
}

// refresh replaces each record with its stored version, keeping the local copy on error
func (s *notificationService) refresh(ctx context.Context, records []model.Notification) {
	for i := range records {
		stored, err := s.store.FindByID(ctx, records[i].ID)
		if err != nil {
			s.l.WarnContext(ctx, "Failed to reload notification",
				slog.String("notification_id", records[i].ID.String()), slog.Any("error", err))
			continue
		}
		records[i] = *stored
	}
}

func (s *notificationService) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	return s.store.FindByID(ctx, id)
}

func validateRequest(req model.NotificationRequest) error {
	if strings.TrimSpace(req.TemplateID) == "" {
		return appErr.NewInvalidRequest("template_id is required")
	}
	if len(req.Channels) == 0 {
		return appErr.NewInvalidRequest("at least one channel is required")
	}
	if len(req.Recipients) == 0 {
		return appErr.NewInvalidRequest("at least one recipient is required")
	}
	for _, ch := range req.Channels {
		if !ch.Valid() {
			return appErr.NewInvalidRequest("unknown channel %q", ch)
		}
	}
	for i, r := range req.Recipients {
		if !r.Channel.Valid() {
			return appErr.NewInvalidRequest("recipient %d: unknown channel %q", i, r.Channel)
		}
		if strings.TrimSpace(r.Address) == "" {
			return appErr.NewInvalidRequest("recipient %d: address is required", i)
		}
	}
	return nil
}

func copyVars(vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}
