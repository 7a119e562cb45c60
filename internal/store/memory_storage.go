package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	appErr "github.com/samims/notify/internal/errors"
	"github.com/samims/notify/internal/model"
)

type memoryStorage struct {
	mu      sync.Mutex
	records map[uuid.UUID]model.Notification
	now     func() time.Time
}

// NewMemoryStorage returns a process-local store used when STORE_DRIVER=memory and in tests
func NewMemoryStorage() NotificationStorage {
	return &memoryStorage{
		records: make(map[uuid.UUID]model.Notification),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryStorage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *memoryStorage) Save(ctx context.Context, n *model.Notification) error {
	if n == nil {
		return fmt.Errorf("notification cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[n.ID]; ok {
		return fmt.Errorf("%w: id %s already exists", appErr.ErrConflict, n.ID)
	}
	stampCreate(n, s.now())
	s.records[n.ID] = n.Clone()
	return nil
}

func (s *memoryStorage) SaveAll(ctx context.Context, ns []model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uuid.UUID]struct{}, len(ns))
	for _, n := range ns {
		if _, ok := s.records[n.ID]; ok {
			return fmt.Errorf("%w: id %s already exists", appErr.ErrConflict, n.ID)
		}
		if _, ok := seen[n.ID]; ok {
			return fmt.Errorf("%w: duplicate id %s in batch", appErr.ErrConflict, n.ID)
		}
		seen[n.ID] = struct{}{}
	}

	now := s.now()
	for i := range ns {
		stampCreate(&ns[i], now)
		s.records[ns[i].ID] = ns[i].Clone()
	}
	return nil
}

func (s *memoryStorage) FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.records[id]
	if !ok {
		return nil, appErr.NewNotFound("id %s", id)
	}
	out := n.Clone()
	return &out, nil
}

func (s *memoryStorage) FindByStatus(ctx context.Context, status model.Status) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Notification
	for _, n := range s.records {
		if n.Status == status {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// Update holds the store lock across fn so concurrent updates to a record serialize
func (s *memoryStorage) Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[id]
	if !ok {
		return nil, appErr.NewNotFound("id %s", id)
	}
	next, err := fn(cur.Clone())
	if err != nil {
		return nil, err
	}
	next.ID = id
	next.UpdatedAt = s.now()
	s.records[id] = next.Clone()
	return &next, nil
}

func (s *memoryStorage) MarkAccepted(ctx context.Context, ids []uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	now := s.now()
	for _, id := range ids {
		n, ok := s.records[id]
		if !ok || !neverAttempted(n) {
			continue
		}
		n.Status = model.StatusAccepted
		n.UpdatedAt = now
		s.records[id] = n
		changed++
	}
	return changed, nil
}

// neverAttempted reports whether no delivery outcome has been recorded for n yet
func neverAttempted(n model.Notification) bool {
	return n.Status == model.StatusPending && n.RetryCount == 0 && n.ErrorMessage == ""
}
