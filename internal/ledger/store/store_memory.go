package store

import (
	"context"
	"sync"

	"rollcall/internal/ledger/models"
	"rollcall/pkg/domain"
)

// InMemory serializes appends per list; different lists do not contend.
type InMemory struct {
	mu    sync.Mutex
	lists map[domain.ListID]*listLedger
}

type listLedger struct {
	mu           sync.Mutex
	byCredential map[domain.CredentialID]*models.Record
	rows         []*models.Record
}

func NewInMemory() *InMemory {
	return &InMemory{lists: make(map[domain.ListID]*listLedger)}
}

func (s *InMemory) ledger(listID domain.ListID) *listLedger {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok {
		l = &listLedger{byCredential: make(map[domain.CredentialID]*models.Record)}
		s.lists[listID] = l
	}
	return l
}

// AppendOnce stores rec with the next row number unless the credential
// already has a record on the list, in which case that record is returned.
func (s *InMemory) AppendOnce(_ context.Context, rec *models.Record) (*models.Record, bool, error) {
	l := s.ledger(rec.ListID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.byCredential[rec.CredentialID]; ok {
		out := *existing
		return &out, false, nil
	}
	stored := *rec
	stored.RowNumber = len(l.rows) + 1
	l.byCredential[stored.CredentialID] = &stored
	l.rows = append(l.rows, &stored)

	out := stored
	return &out, true, nil
}

// ListByList returns the list's records by row number.
func (s *InMemory) ListByList(_ context.Context, listID domain.ListID) ([]*models.Record, error) {
	l := s.ledger(listID)
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*models.Record, 0, len(l.rows))
	for _, r := range l.rows {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}
