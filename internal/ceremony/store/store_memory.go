package store

import (
	"context"
	"sync"
	"time"

	"rollcall/internal/ceremony/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

type key struct {
	kind models.Kind
	id   domain.CeremonyID
}

type entry struct {
	payload   *models.Ceremony
	expiresAt time.Time
}

// InMemory keeps ceremonies for a single instance. Expired entries are
// pruned on Put.
type InMemory struct {
	mu   sync.Mutex
	data map[key]entry
	now  func() time.Time
}

type MemoryOption func(*InMemory)

// WithClock overrides the expiry clock.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemory) {
		s.now = now
	}
}

func NewInMemory(opts ...MemoryOption) *InMemory {
	s := &InMemory{data: make(map[key]entry), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemory) Put(_ context.Context, c *models.Ceremony, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.data {
		if !now.Before(e.expiresAt) {
			delete(s.data, k)
		}
	}
	cp := *c
	s.data[key{kind: c.Kind, id: c.ID}] = entry{payload: &cp, expiresAt: now.Add(ttl)}
	return nil
}

// Take removes and returns the ceremony. Only one caller can take a given
// ceremony.
func (s *InMemory) Take(_ context.Context, kind models.Kind, id domain.CeremonyID) (*models.Ceremony, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{kind: kind, id: id}
	e, ok := s.data[k]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.data, k)
	if !s.now().Before(e.expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	return e.payload, nil
}

func (s *InMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
