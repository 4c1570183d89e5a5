//go:build integration

package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/registry/models"
	"rollcall/internal/registry/store"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
	txcontext "rollcall/pkg/platform/tx"
	"rollcall/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "attendance_records", "attendance_lists", "professionals")
	s.Require().NoError(err)
}

var seq atomic.Int64

func newTestProfessional(credentialID string) *models.Professional {
	n := seq.Add(1)
	return &models.Professional{
		ID:               domain.NewProfessionalID(),
		CredentialID:     domain.CredentialID(credentialID),
		Name:             "Ana",
		Email:            fmt.Sprintf("ana%d@x.com", n),
		Profession:       "Engineer",
		Company:          "Acme",
		RegistrationCode: fmt.Sprintf("PRF-2026-%06d", n),
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
}

// TestConcurrentSameCredential verifies the UNIQUE constraint lets exactly
// one of many concurrent enrollments through.
func (s *PostgresStoreSuite) TestConcurrentSameCredential() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.CreateIfAvailable(ctx, newTestProfessional("YWJjMTIz"))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, store.ErrCredentialTaken) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())

	found, err := s.store.FindByCredentialID(ctx, "YWJjMTIz")
	s.Require().NoError(err)
	s.Equal("Ana", found.Name)
}

func (s *PostgresStoreSuite) TestConflictMapping() {
	ctx := context.Background()
	first := newTestProfessional("cred-1")
	s.Require().NoError(s.store.CreateIfAvailable(ctx, first))

	s.Run("email", func() {
		p := newTestProfessional("cred-2")
		p.Email = first.Email
		s.Require().ErrorIs(s.store.CreateIfAvailable(ctx, p), store.ErrEmailTaken)
	})

	s.Run("registration code", func() {
		p := newTestProfessional("cred-3")
		p.RegistrationCode = first.RegistrationCode
		s.Require().ErrorIs(s.store.CreateIfAvailable(ctx, p), store.ErrCodeTaken)
	})

	s.Run("credential wins over email", func() {
		p := newTestProfessional("cred-1")
		p.Email = first.Email
		s.Require().ErrorIs(s.store.CreateIfAvailable(ctx, p), store.ErrCredentialTaken)
	})
}

func (s *PostgresStoreSuite) TestRolledBackInsertIsInvisible() {
	ctx := context.Background()
	runner := txcontext.NewSQLRunner(s.postgres.DB)

	err := runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateIfAvailable(txCtx, newTestProfessional("rolled-back")); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Require().Error(err)

	_, err = s.store.FindByCredentialID(ctx, "rolled-back")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListOrder() {
	ctx := context.Background()
	for i := range 3 {
		s.Require().NoError(s.store.CreateIfAvailable(ctx, newTestProfessional(fmt.Sprintf("order-%d", i))))
	}
	page, err := s.store.List(ctx, 0, 2)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(domain.CredentialID("order-0"), page[0].CredentialID)

	rest, err := s.store.List(ctx, page[1].Seq, 10)
	s.Require().NoError(err)
	s.Require().Len(rest, 1)
	s.Equal(domain.CredentialID("order-2"), rest[0].CredentialID)
}

func (s *PostgresStoreSuite) TestLookupByCodeAndCredentialRefresh() {
	ctx := context.Background()
	p := newTestProfessional("cG9zdGdyZXM")
	p.PublicKeyCredential = []byte(`{"authenticator":{"signCount":1}}`)
	s.Require().NoError(s.store.CreateIfAvailable(ctx, p))

	found, err := s.store.FindByRegistrationCode(ctx, p.RegistrationCode)
	s.Require().NoError(err)
	s.Equal(p.ID, found.ID)

	_, err = s.store.FindByRegistrationCode(ctx, "PRF-2026-UNUSED")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.UpdateCredential(ctx, p.CredentialID, []byte(`{"authenticator":{"signCount":9}}`)))
	found, err = s.store.FindByCredentialID(ctx, p.CredentialID)
	s.Require().NoError(err)
	s.JSONEq(`{"authenticator":{"signCount":9}}`, string(found.PublicKeyCredential))

	err = s.store.UpdateCredential(ctx, "bm9ib2R5", []byte(`{}`))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
