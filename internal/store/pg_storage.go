package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appErr "github.com/samims/notify/internal/errors"
	"github.com/samims/notify/internal/model"
)

const notificationColumns = `id, template_id, channel, recipient, variables, priority, status,
	subject, body, retry_count, external_id, error_message, created_at, updated_at, sent_at`

type postgresStorage struct {
	db *pgxpool.Pool
}

// NewPostgresStorage wraps an existing pool
func NewPostgresStorage(db *pgxpool.Pool) NotificationStorage {
	return &postgresStorage{db: db}
}

func (s *postgresStorage) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

const insertNotification = `INSERT INTO notifications (` + notificationColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// Save inserts a new record
func (s *postgresStorage) Save(ctx context.Context, n *model.Notification) error {
	if n == nil {
		return fmt.Errorf("notification cannot be nil")
	}
	stampCreate(n, time.Now().UTC())
	if _, err := s.db.Exec(ctx, insertNotification, insertArgs(n)...); err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// SaveAll inserts the batch inside a single transaction
func (s *postgresStorage) SaveAll(ctx context.Context, ns []model.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for i := range ns {
		stampCreate(&ns[i], now)
		batch.Queue(insertNotification, insertArgs(&ns[i])...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save notifications: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit notifications: %w", err)
	}
	return nil
}

func (s *postgresStorage) FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(s.db.QueryRow(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, appErr.NewNotFound("id %s", id)
		}
		return nil, fmt.Errorf("find by id failed: %w", err)
	}
	return n, nil
}

// FindByStatus returns records in the given status, oldest update first
func (s *postgresStorage) FindByStatus(ctx context.Context, status model.Status) ([]model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE status = $1 ORDER BY updated_at`
	rows, err := s.db.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return out, nil
}

// Update locks the row, applies fn and writes the result in one transaction
func (s *postgresStorage) Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*model.Notification, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1 FOR UPDATE`
	cur, err := scanNotification(tx.QueryRow(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, appErr.NewNotFound("id %s", id)
		}
		return nil, fmt.Errorf("lock row failed: %w", err)
	}

	next, err := fn(*cur)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()

	const update = `UPDATE notifications
		SET status = $1, retry_count = $2, external_id = $3, error_message = $4, sent_at = $5, updated_at = $6
		WHERE id = $7`
	_, err = tx.Exec(ctx, update,
		string(next.Status), next.RetryCount, nullable(next.ExternalID), nullable(next.ErrorMessage),
		next.SentAt, next.UpdatedAt, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to update notification: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return &next, nil
}

func (s *postgresStorage) MarkAccepted(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	const query = `UPDATE notifications SET status = $1, updated_at = $2
		WHERE id = ANY($3::uuid[]) AND status = $4 AND retry_count = 0 AND error_message IS NULL`
	tag, err := s.db.Exec(ctx, query,
		string(model.StatusAccepted), time.Now().UTC(), strIDs, string(model.StatusPending))
	if err != nil {
		return 0, fmt.Errorf("failed to mark accepted: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func stampCreate(n *model.Notification, now time.Time) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	if n.Variables == nil {
		n.Variables = map[string]string{}
	}
}

func insertArgs(n *model.Notification) []any {
	return []any{
		n.ID.String(), n.TemplateID, string(n.Channel), n.Recipient, n.Variables, n.Priority,
		string(n.Status), nullable(n.Subject), n.Body, n.RetryCount, nullable(n.ExternalID),
		nullable(n.ErrorMessage), n.CreatedAt, n.UpdatedAt, n.SentAt,
	}
}

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var (
		n                              model.Notification
		id                             string
		channel, status                string
		subject, externalID, errorText *string
	)
	err := row.Scan(&id, &n.TemplateID, &channel, &n.Recipient, &n.Variables, &n.Priority, &status,
		&subject, &n.Body, &n.RetryCount, &externalID, &errorText, &n.CreatedAt, &n.UpdatedAt, &n.SentAt)
	if err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", id, err)
	}
	n.ID = parsed
	n.Channel = model.Channel(channel)
	n.Status = model.Status(status)
	n.Subject = deref(subject)
	n.ExternalID = deref(externalID)
	n.ErrorMessage = deref(errorText)
	return &n, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
