package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/samims/notify/internal/model"
)

// UpdateFunc computes the next version of a record from the current stored one.
// Returning an error aborts the update and leaves the row untouched.
type UpdateFunc func(current model.Notification) (model.Notification, error)

// NotificationStorage defines DB operations for delivery records.
// The store is the single source of truth for record state; Update is the
// only way status changes after creation and runs atomically per row.
type NotificationStorage interface {
	Save(ctx context.Context, n *model.Notification) error
	// SaveAll persists a batch in one transaction: all rows or none
	SaveAll(ctx context.Context, ns []model.Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	FindByStatus(ctx context.Context, status model.Status) ([]model.Notification, error)
	Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*model.Notification, error)
	// MarkAccepted moves the given records from PENDING to ACCEPTED and
	// returns how many rows changed. Only rows with no recorded attempt change;
	// a PENDING row already carrying a retry stays PENDING for the sweeper.
	MarkAccepted(ctx context.Context, ids []uuid.UUID) (int, error)
	Ping(ctx context.Context) error
}

// TemplateStorage reads template definitions
type TemplateStorage interface {
	// FindActive returns the active row for exactly (id, locale)
	FindActive(ctx context.Context, id, locale string) (*model.Template, error)
	// FindDefault returns the unlocalized active row for id, or any active
	// row for id when no unlocalized one exists
	FindDefault(ctx context.Context, id string) (*model.Template, error)
	Upsert(ctx context.Context, t model.Template) error
}
