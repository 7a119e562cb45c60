package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	appErr "github.com/samims/notify/internal/errors"
	"github.com/samims/notify/internal/model"
)

const templateColumns = `id, name, locale, channel_type, subject_template, body_template, active`

type sqlTemplateStorage struct {
	db *sqlx.DB
}

// NewTemplateStorage returns a TemplateStorage backed by sqlx
func NewTemplateStorage(db *sqlx.DB) TemplateStorage {
	return &sqlTemplateStorage{db: db}
}

func (s *sqlTemplateStorage) FindActive(ctx context.Context, id, locale string) (*model.Template, error) {
	query := s.db.Rebind(`SELECT ` + templateColumns + ` FROM templates
		WHERE id = ? AND locale = ? AND active = TRUE`)

	var t model.Template
	if err := s.db.GetContext(ctx, &t, query, id, locale); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", appErr.ErrTemplateNotFound, id, locale)
		}
		return nil, fmt.Errorf("find template failed: %w", err)
	}
	return &t, nil
}

func (s *sqlTemplateStorage) FindDefault(ctx context.Context, id string) (*model.Template, error) {
	// the unlocalized row sorts first, then any other active locale
	query := s.db.Rebind(`SELECT ` + templateColumns + ` FROM templates
		WHERE id = ? AND active = TRUE
		ORDER BY (locale = '') DESC, locale
		LIMIT 1`)

	var t model.Template
	if err := s.db.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", appErr.ErrTemplateNotFound, id)
		}
		return nil, fmt.Errorf("find default template failed: %w", err)
	}
	return &t, nil
}

func (s *sqlTemplateStorage) Upsert(ctx context.Context, t model.Template) error {
	const query = `INSERT INTO templates (` + templateColumns + `)
		VALUES (:id, :name, :locale, :channel_type, :subject_template, :body_template, :active)
		ON CONFLICT (id, locale) DO UPDATE SET
			name = EXCLUDED.name,
			channel_type = EXCLUDED.channel_type,
			subject_template = EXCLUDED.subject_template,
			body_template = EXCLUDED.body_template,
			active = EXCLUDED.active,
			updated_at = NOW()`
	if _, err := s.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("upsert template failed: %w", err)
	}
	return nil
}
