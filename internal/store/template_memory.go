package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	appErr "github.com/samims/notify/internal/errors"
	"github.com/samims/notify/internal/model"
)

type templateKey struct {
	id     string
	locale string
}

type memoryTemplateStorage struct {
	mu        sync.RWMutex
	templates map[templateKey]model.Template
}

// NewMemoryTemplateStorage returns an in-process TemplateStorage
func NewMemoryTemplateStorage() TemplateStorage {
	return &memoryTemplateStorage{templates: make(map[templateKey]model.Template)}
}

func (s *memoryTemplateStorage) FindActive(ctx context.Context, id, locale string) (*model.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[templateKey{id: id, locale: locale}]
	if !ok || !t.Active {
		return nil, fmt.Errorf("%w: %s/%s", appErr.ErrTemplateNotFound, id, locale)
	}
	return &t, nil
}

func (s *memoryTemplateStorage) FindDefault(ctx context.Context, id string) (*model.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []model.Template
	for k, t := range s.templates {
		if k.id == id && t.Active {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", appErr.ErrTemplateNotFound, id)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if (candidates[i].Locale == "") != (candidates[j].Locale == "") {
			return candidates[i].Locale == ""
		}
		return candidates[i].Locale < candidates[j].Locale
	})
	t := candidates[0]
	return &t, nil
}

func (s *memoryTemplateStorage) Upsert(ctx context.Context, t model.Template) error {
	if t.ID == "" {
		return fmt.Errorf("template id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[templateKey{id: t.ID, locale: t.Locale}] = t
	return nil
}
