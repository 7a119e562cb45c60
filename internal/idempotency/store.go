package idempotency

import (
	"context"
	"sync"
	"time"
)

// Response is the first reply recorded for an Idempotency-Key
type Response struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Store remembers responses by client supplied key for a bounded time
type Store interface {
	// Get reports the stored response for key, if any
	Get(ctx context.Context, key string) (Response, bool, error)
	// Save records resp unless key already holds a response; the first write wins
	Save(ctx context.Context, key string, resp Response) error
	Ping(ctx context.Context) error
}

type entry struct {
	resp      Response
	expiresAt time.Time
}

type memoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore keeps keys in process. Used when no Redis URL is configured.
func NewMemoryStore(ttl time.Duration) Store {
	return &memoryStore{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (s *memoryStore) Get(_ context.Context, key string) (Response, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Response{}, false, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return Response{}, false, nil
	}
	return cloneResponse(e.resp), true, nil
}

func (s *memoryStore) Save(_ context.Context, key string, resp Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return nil
	}
	s.evictExpired(now)
	s.entries[key] = entry{resp: cloneResponse(resp), expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *memoryStore) Ping(context.Context) error { return nil }

// evictExpired must be called with mu held
func (s *memoryStore) evictExpired(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}

func cloneResponse(r Response) Response {
	return Response{Status: r.Status, Body: append([]byte(nil), r.Body...)}
}
