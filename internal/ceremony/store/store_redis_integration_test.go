//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/suite"

	"rollcall/internal/ceremony/models"
	"rollcall/internal/ceremony/store"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestRoundTripKeepsSession() {
	ctx := context.Background()
	c := &models.Ceremony{
		ID:             domain.NewCeremonyID(),
		Kind:           models.KindEnrollment,
		State:          models.StateCredentialCaptured,
		ProfessionalID: domain.NewProfessionalID(),
		Email:          "ana@x.com",
		CredentialID:   domain.CredentialIDFromRaw([]byte{1, 2, 3}),
		Session: webauthn.SessionData{
			Challenge:        "c2lnbi1tZQ",
			RelyingPartyID:   "localhost",
			UserVerification: protocol.VerificationRequired,
		},
		ExpiresAt: time.Now().Add(time.Minute).UTC().Truncate(time.Millisecond),
	}
	s.Require().NoError(s.store.Put(ctx, c, time.Minute))

	got, err := s.store.Take(ctx, models.KindEnrollment, c.ID)
	s.Require().NoError(err)
	s.Equal(c.ProfessionalID, got.ProfessionalID)
	s.Equal(c.CredentialID, got.CredentialID)
	s.Equal(c.Session.Challenge, got.Session.Challenge)
	s.Equal(protocol.VerificationRequired, got.Session.UserVerification)
	s.True(c.ExpiresAt.Equal(got.ExpiresAt))
}

func (s *RedisStoreSuite) TestTTLExpires() {
	ctx := context.Background()
	c := &models.Ceremony{ID: domain.NewCeremonyID(), Kind: models.KindCheckIn}
	s.Require().NoError(s.store.Put(ctx, c, 200*time.Millisecond))

	time.Sleep(500 * time.Millisecond)
	_, err := s.store.Take(ctx, models.KindCheckIn, c.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestConcurrentTakeHasOneWinner() {
	ctx := context.Background()
	c := &models.Ceremony{ID: domain.NewCeremonyID(), Kind: models.KindCheckIn}
	s.Require().NoError(s.store.Put(ctx, c, time.Minute))

	const goroutines = 50
	var wg sync.WaitGroup
	var winners, misses atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Take(ctx, models.KindCheckIn, c.ID)
			switch err {
			case nil:
				winners.Add(1)
			case sentinel.ErrNotFound:
				misses.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), winners.Load())
	s.Equal(int32(goroutines-1), misses.Load())
}
