package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/ledger/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

type Service interface {
	RecordAttendance(ctx context.Context, listID domain.ListID, credentialID domain.CredentialID) (*models.Entry, error)
	ListByList(ctx context.Context, listID domain.ListID) ([]*models.Entry, error)
}

type Handler struct {
	service                Service
	logger                 *slog.Logger
	trustClientCredentials bool
}

func New(service Service, logger *slog.Logger, trustClientCredentials bool) *Handler {
	return &Handler{service: service, logger: logger, trustClientCredentials: trustClientCredentials}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/attendance-records", h.HandleRecord)
	r.Get("/api/attendance-lists/{id}/records", h.HandleRoster)
}

// RecordRequest checks a client-supplied credential id into a list.
type RecordRequest struct {
	ListID       string `json:"list_id"`
	CredentialID string `json:"credential_id"`

	listID       domain.ListID
	credentialID domain.CredentialID
}

func (r *RecordRequest) Normalize() {
	r.ListID = strings.TrimSpace(r.ListID)
	r.CredentialID = strings.TrimSpace(r.CredentialID)
}

func (r *RecordRequest) Validate() error {
	if r.ListID == "" {
		return dErrors.New(dErrors.CodeValidation, "list_id is required")
	}
	listID, err := domain.ParseListID(r.ListID)
	if err != nil {
		return err
	}
	credentialID, err := domain.ParseCredentialID(r.CredentialID)
	if err != nil {
		return err
	}
	r.listID = listID
	r.credentialID = credentialID
	return nil
}

func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !h.trustClientCredentials {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "direct check-in is disabled, use /api/check-ins"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[RecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entry, err := h.service.RecordAttendance(ctx, req.listID, req.credentialID)
	if err != nil {
		h.logger.WarnContext(ctx, "direct check-in failed",
			"request_id", requestID,
			"list_id", req.ListID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if entry.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, entry)
}

func (h *Handler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listID, err := domain.ParseListID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.service.ListByList(ctx, listID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read roster",
			"request_id", requestcontext.RequestID(ctx),
			"list_id", listID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}
