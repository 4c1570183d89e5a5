package store

import (
	"context"
	"sort"
	"sync"

	"rollcall/internal/registry/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// InMemory is a map-backed professional store. Uniqueness is enforced under
// one lock, the in-memory equivalent of the UNIQUE constraints.
type InMemory struct {
	mu           sync.RWMutex
	byCredential map[domain.CredentialID]*models.Professional
	byID         map[domain.ProfessionalID]*models.Professional
	emails       map[string]struct{}
	byCode       map[string]*models.Professional
	ordered      []*models.Professional
	seq          int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		byCredential: make(map[domain.CredentialID]*models.Professional),
		byID:         make(map[domain.ProfessionalID]*models.Professional),
		emails:       make(map[string]struct{}),
		byCode:       make(map[string]*models.Professional),
	}
}

func (s *InMemory) CreateIfAvailable(_ context.Context, p *models.Professional) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCredential[p.CredentialID]; ok {
		return ErrCredentialTaken
	}
	if _, ok := s.emails[p.Email]; ok {
		return ErrEmailTaken
	}
	if _, ok := s.byCode[p.RegistrationCode]; ok {
		return ErrCodeTaken
	}
	if _, ok := s.byID[p.ID]; ok {
		return ErrIDTaken
	}

	s.seq++
	p.Seq = s.seq
	stored := *p
	s.byCredential[p.CredentialID] = &stored
	s.byID[p.ID] = &stored
	s.emails[p.Email] = struct{}{}
	s.byCode[p.RegistrationCode] = &stored
	s.ordered = append(s.ordered, &stored)
	return nil
}

func (s *InMemory) FindByCredentialID(_ context.Context, credentialID domain.CredentialID) (*models.Professional, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byCredential[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s *InMemory) FindByRegistrationCode(_ context.Context, code string) (*models.Professional, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byCode[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *p
	return &out, nil
}

// UpdateCredential replaces the stored WebAuthn credential, which carries the
// authenticator sign count.
func (s *InMemory) UpdateCredential(_ context.Context, credentialID domain.CredentialID, publicKeyCredential []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byCredential[credentialID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.PublicKeyCredential = append([]byte(nil), publicKeyCredential...)
	return nil
}

func (s *InMemory) List(_ context.Context, afterSeq int64, limit int) ([]*models.Professional, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// ordered is sorted by Seq; find the first entry past the cursor.
	start := sort.Search(len(s.ordered), func(i int) bool {
		return s.ordered[i].Seq > afterSeq
	})
	end := min(start+limit, len(s.ordered))

	out := make([]*models.Professional, 0, end-start)
	for _, p := range s.ordered[start:end] {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}
