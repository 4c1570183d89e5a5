package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/ceremony/models"
	ledgermodels "rollcall/internal/ledger/models"
	registrymodels "rollcall/internal/registry/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/testutil"
)

type stubService struct {
	finishErr    error
	created      bool
	gotProfile   models.Profile
	gotJSON      []byte
	gotReason    models.AbortReason
	noActive     bool
	professional domain.ProfessionalID
}

func (s *stubService) BeginEnrollment(_ context.Context, req models.BeginEnrollmentRequest) (*models.Started, error) {
	if req.Email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	return &models.Started{CeremonyID: domain.NewCeremonyID(), Options: json.RawMessage(`{"publicKey":{}}`)}, nil
}

func (s *stubService) FinishEnrollment(_ context.Context, _ domain.CeremonyID, credentialJSON []byte, profile models.Profile) (*registrymodels.Enrollment, error) {
	s.gotJSON = credentialJSON
	s.gotProfile = profile
	if s.finishErr != nil {
		return nil, s.finishErr
	}
	return &registrymodels.Enrollment{ProfessionalID: s.professional, RegistrationCode: "PRF-2026-ABC123"}, nil
}

func (s *stubService) SubmitEnrollment(ctx context.Context, id domain.CeremonyID, profile models.Profile) (*registrymodels.Enrollment, error) {
	return s.FinishEnrollment(ctx, id, nil, profile)
}

func (s *stubService) AbortEnrollment(_ context.Context, _ domain.CeremonyID, reason models.AbortReason) error {
	s.gotReason = reason
	return dErrors.New(dErrors.CodeAuthenticatorDeclined, reason.Message())
}

func (s *stubService) BeginCheckIn(context.Context) (*models.Started, error) {
	if s.noActive {
		return nil, dErrors.New(dErrors.CodeNoActiveList, "no attendance list is active")
	}
	return &models.Started{CeremonyID: domain.NewCeremonyID(), Options: json.RawMessage(`{}`)}, nil
}

func (s *stubService) FinishCheckIn(_ context.Context, _ domain.CeremonyID, assertionJSON []byte) (*ledgermodels.Entry, error) {
	s.gotJSON = assertionJSON
	if s.finishErr != nil {
		return nil, s.finishErr
	}
	return &ledgermodels.Entry{Record: ledgermodels.Record{RowNumber: 1, EntryTime: time.Now()}, Name: "Ana", Created: s.created}, nil
}

func (s *stubService) SubmitCheckIn(ctx context.Context, id domain.CeremonyID) (*ledgermodels.Entry, error) {
	return s.FinishCheckIn(ctx, id, nil)
}

func (s *stubService) AbortCheckIn(_ context.Context, _ domain.CeremonyID, reason models.AbortReason) error {
	s.gotReason = reason
	return dErrors.New(dErrors.CodeAuthenticatorDeclined, reason.Message())
}

func newRouter(svc Service, perMinute int) http.Handler {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), perMinute).Register(r)
	return r
}

func TestEnrollmentEndpoints(t *testing.T) {
	svc := &stubService{professional: domain.NewProfessionalID()}
	router := newRouter(svc, 0)
	id := domain.NewCeremonyID().String()

	t.Run("begin returns ceremony and options", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/enrollments",
			map[string]string{"name": "Ana", "email": "ana@x.com"}))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		testutil.AssertJSONHasKey(t, rr, "ceremony_id")
		testutil.AssertJSONHasKey(t, rr, "options")
	})

	t.Run("finish passes credential JSON through", func(t *testing.T) {
		body := map[string]any{
			"credential": map[string]string{"id": "YWJjMTIz", "type": "public-key"},
			"name":       "Ana", "email": "ana@x.com", "profession": "Engineer", "company": "Acme",
		}
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/enrollments/"+id+"/finish", body))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		testutil.AssertJSONContains(t, rr, "registration_code", "PRF-2026-ABC123")
		assert.JSONEq(t, `{"id":"YWJjMTIz","type":"public-key"}`, string(svc.gotJSON))
		assert.Equal(t, "Engineer", svc.gotProfile.Profession)
	})

	t.Run("finish without credential", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/enrollments/"+id+"/finish",
			map[string]string{"name": "Ana"}))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})

	t.Run("duplicate credential has its own status", func(t *testing.T) {
		svc.finishErr = dErrors.New(dErrors.CodeDuplicateCredential, "credential already enrolled")
		defer func() { svc.finishErr = nil }()
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/enrollments/"+id+"/submit",
			map[string]string{"name": "Ana"}))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "duplicate_credential")
	})

	t.Run("abort reports declined", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/enrollments/"+id+"/abort",
			map[string]string{"reason": "no_biometrics"}))
		testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "authenticator_declined")
		assert.Equal(t, models.AbortNoBiometrics, svc.gotReason)
	})

	t.Run("unknown abort reason", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/enrollments/"+id+"/abort",
			map[string]string{"reason": "bored"}))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})

	t.Run("malformed ceremony id", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/enrollments/nope/submit",
			map[string]string{"name": "Ana"}))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestCheckInEndpoints(t *testing.T) {
	id := domain.NewCeremonyID().String()

	t.Run("begin without active list", func(t *testing.T) {
		router := newRouter(&stubService{noActive: true}, 0)
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/api/check-ins"))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "no_active_list")
	})

	t.Run("first check-in is created", func(t *testing.T) {
		router := newRouter(&stubService{created: true}, 0)
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/check-ins/"+id+"/finish",
			map[string]any{"assertion": map[string]string{"id": "YWJjMTIz"}}))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		entry := testutil.UnmarshalResponse[ledgermodels.Entry](t, rr)
		assert.Equal(t, 1, entry.RowNumber)
	})

	t.Run("repeat check-in is ok", func(t *testing.T) {
		router := newRouter(&stubService{}, 0)
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/api/check-ins/"+id+"/submit"))
		testutil.AssertStatusOK(t, rr)
	})

	t.Run("unknown credential", func(t *testing.T) {
		router := newRouter(&stubService{finishErr: dErrors.New(dErrors.CodeUnknownCredential, "biometric captured but not registered")}, 0)
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/check-ins/"+id+"/finish",
			map[string]any{"assertion": map[string]string{"id": "zzz999"}}))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "unknown_credential")
	})

	t.Run("abort defaults to cancelled", func(t *testing.T) {
		svc := &stubService{}
		router := newRouter(svc, 0)
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/check-ins/"+id+"/abort", map[string]string{}))
		testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "authenticator_declined")
		assert.Equal(t, models.AbortCancelled, svc.gotReason)
	})
}

func TestRateLimit(t *testing.T) {
	router := newRouter(&stubService{}, 2)
	for i := range 2 {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/api/check-ins"))
		require.Equal(t, http.StatusCreated, rr.Code, "request %d", i)
	}
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/api/check-ins"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}
