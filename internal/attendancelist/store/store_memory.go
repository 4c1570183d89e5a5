package store

import (
	"context"
	"sort"
	"sync"

	"rollcall/internal/attendancelist/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// InMemory keeps lists in a map. The single-active rule is checked under the
// same lock as the write.
type InMemory struct {
	mu     sync.RWMutex
	lists  map[domain.ListID]*models.List
	active domain.ListID
}

func NewInMemory() *InMemory {
	return &InMemory{lists: make(map[domain.ListID]*models.List)}
}

func (s *InMemory) Create(_ context.Context, l *models.List) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lists[l.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if l.IsActive() && !s.active.IsNil() {
		return ErrActiveListExists
	}
	stored := cloneList(l)
	s.lists[l.ID] = stored
	if l.IsActive() {
		s.active = l.ID
	}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.ListID) (*models.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lists[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneList(l), nil
}

func (s *InMemory) FindActive(_ context.Context) (*models.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active.IsNil() {
		return nil, sentinel.ErrNotFound
	}
	return cloneList(s.lists[s.active]), nil
}

// ListAll returns every list, newest first.
func (s *InMemory) ListAll(_ context.Context) ([]*models.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.List, 0, len(s.lists))
	for _, l := range s.lists {
		out = append(out, cloneList(l))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Execute runs validate then mutate on the stored list under the write lock.
func (s *InMemory) Execute(_ context.Context, id domain.ListID, validate func(*models.List) error, mutate func(*models.List)) (*models.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lists[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := cloneList(l)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.lists[id] = working
	if s.active == id && !working.IsActive() {
		s.active = domain.ListID{}
	}
	return cloneList(working), nil
}

func cloneList(l *models.List) *models.List {
	cp := *l
	if l.EndTime != nil {
		end := *l.EndTime
		cp.EndTime = &end
	}
	return &cp
}
