package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	listmodels "rollcall/internal/attendancelist/models"
	listservice "rollcall/internal/attendancelist/service"
	liststore "rollcall/internal/attendancelist/store"
	"rollcall/internal/ledger/models"
	"rollcall/internal/ledger/service"
	"rollcall/internal/ledger/store"
	registrymodels "rollcall/internal/registry/models"
	registryservice "rollcall/internal/registry/service"
	registrystore "rollcall/internal/registry/store"
	"rollcall/pkg/testutil"
)

type env struct {
	router http.Handler
	listID string
}

func newEnv(t *testing.T, trust bool) env {
	ctx := context.Background()
	registry := registryservice.New(registrystore.NewInMemory())
	lists := listservice.New(liststore.NewInMemory())

	_, err := registry.Enroll(ctx, registrymodels.Candidate{
		CredentialID: "YWJjMTIz", Name: "Ana", Email: "ana@x.com", Profession: "Engineer", Company: "Acme",
	})
	require.NoError(t, err)
	list, err := lists.Create(ctx, listmodels.CreateRequest{
		InstallationName: "Plant A", MeetingDate: "2026-03-01", MeetingTime: "09:00",
		CourseTitle: "Safety", CourseContent: "Lockout", InstructorName: "Bia",
		InstructorRole: "Supervisor", InstructorQualification: "NR-10", Location: "Room 1",
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	New(service.New(store.NewInMemory(), registry, lists), logger, trust).Register(r)
	return env{router: r, listID: list.ID.String()}
}

func TestHandleRecord(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		e := newEnv(t, false)
		rr := testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost, "/api/attendance-records",
			map[string]string{"list_id": e.listID, "credential_id": "YWJjMTIz"}))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})

	e := newEnv(t, true)

	t.Run("first check-in creates row 1", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost, "/api/attendance-records",
			map[string]string{"list_id": e.listID, "credential_id": "YWJjMTIz"}))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		entry := testutil.UnmarshalResponse[models.Entry](t, rr)
		assert.Equal(t, 1, entry.RowNumber)
		assert.Equal(t, "Ana", entry.Name)
		assert.True(t, entry.Created)
	})

	t.Run("repeat returns the existing row", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost, "/api/attendance-records",
			map[string]string{"list_id": e.listID, "credential_id": "YWJjMTIz"}))
		testutil.AssertStatusOK(t, rr)
		entry := testutil.UnmarshalResponse[models.Entry](t, rr)
		assert.Equal(t, 1, entry.RowNumber)
		assert.False(t, entry.Created)
	})

	t.Run("unknown credential", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost, "/api/attendance-records",
			map[string]string{"list_id": e.listID, "credential_id": "enp6"}))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "unknown_credential")
	})

	t.Run("non-canonical credential id", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost, "/api/attendance-records",
			map[string]string{"list_id": e.listID, "credential_id": "YWJj\nMTIz"}))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})

	t.Run("missing list id", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost, "/api/attendance-records",
			map[string]string{"credential_id": "YWJjMTIz"}))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})

	t.Run("roster lists the entry", func(t *testing.T) {
		rr := testutil.DoRequest(e.router, testutil.NewRequest(t, http.MethodGet, "/api/attendance-lists/"+e.listID+"/records"))
		testutil.AssertStatusOK(t, rr)
		roster := testutil.UnmarshalResponse[[]models.Entry](t, rr)
		require.Len(t, *roster, 1)
		assert.Equal(t, "YWJjMTIz", (*roster)[0].CredentialID.String())
	})
}
