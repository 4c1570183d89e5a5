package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"rollcall/internal/ceremony/models"
	ledgermodels "rollcall/internal/ledger/models"
	registryhandler "rollcall/internal/registry/handler"
	registrymodels "rollcall/internal/registry/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

type Service interface {
	BeginEnrollment(ctx context.Context, req models.BeginEnrollmentRequest) (*models.Started, error)
	FinishEnrollment(ctx context.Context, id domain.CeremonyID, credentialJSON []byte, profile models.Profile) (*registrymodels.Enrollment, error)
	SubmitEnrollment(ctx context.Context, id domain.CeremonyID, profile models.Profile) (*registrymodels.Enrollment, error)
	AbortEnrollment(ctx context.Context, id domain.CeremonyID, reason models.AbortReason) error

	BeginCheckIn(ctx context.Context) (*models.Started, error)
	FinishCheckIn(ctx context.Context, id domain.CeremonyID, assertionJSON []byte) (*ledgermodels.Entry, error)
	SubmitCheckIn(ctx context.Context, id domain.CeremonyID) (*ledgermodels.Entry, error)
	AbortCheckIn(ctx context.Context, id domain.CeremonyID, reason models.AbortReason) error
}

type Handler struct {
	service           Service
	logger            *slog.Logger
	requestsPerMinute int
}

// New builds the ceremony endpoints. requestsPerMinute limits each client IP;
// zero disables the limit.
func New(service Service, logger *slog.Logger, requestsPerMinute int) *Handler {
	return &Handler{service: service, logger: logger, requestsPerMinute: requestsPerMinute}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.requestsPerMinute > 0 {
			r.Use(httprate.LimitByIP(h.requestsPerMinute, time.Minute))
		}

		r.Post("/api/enrollments", h.HandleBeginEnrollment)
		r.Post("/api/enrollments/{id}/finish", h.HandleFinishEnrollment)
		r.Post("/api/enrollments/{id}/submit", h.HandleSubmitEnrollment)
		r.Post("/api/enrollments/{id}/abort", h.HandleAbortEnrollment)

		r.Post("/api/check-ins", h.HandleBeginCheckIn)
		r.Post("/api/check-ins/{id}/finish", h.HandleFinishCheckIn)
		r.Post("/api/check-ins/{id}/submit", h.HandleSubmitCheckIn)
		r.Post("/api/check-ins/{id}/abort", h.HandleAbortCheckIn)
	})
}

func (h *Handler) HandleBeginEnrollment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[BeginEnrollmentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	started, err := h.service.BeginEnrollment(ctx, req.BeginEnrollmentRequest)
	if err != nil {
		h.fail(w, r, "begin enrollment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, started)
}

func (h *Handler) HandleFinishEnrollment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.ceremonyID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[FinishEnrollmentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	enrollment, err := h.service.FinishEnrollment(ctx, id, req.Credential, req.Profile)
	if err != nil {
		h.fail(w, r, "finish enrollment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, registryhandler.ToEnrollmentResponse(enrollment))
}

func (h *Handler) HandleSubmitEnrollment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.ceremonyID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitEnrollmentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	enrollment, err := h.service.SubmitEnrollment(ctx, id, req.Profile)
	if err != nil {
		h.fail(w, r, "submit enrollment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, registryhandler.ToEnrollmentResponse(enrollment))
}

func (h *Handler) HandleAbortEnrollment(w http.ResponseWriter, r *http.Request) {
	h.handleAbort(w, r, h.service.AbortEnrollment)
}

func (h *Handler) HandleBeginCheckIn(w http.ResponseWriter, r *http.Request) {
	started, err := h.service.BeginCheckIn(r.Context())
	if err != nil {
		h.fail(w, r, "begin check-in", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, started)
}

func (h *Handler) HandleFinishCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.ceremonyID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[FinishCheckInRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	entry, err := h.service.FinishCheckIn(ctx, id, req.Assertion)
	if err != nil {
		h.fail(w, r, "finish check-in", err)
		return
	}
	writeEntry(w, entry)
}

func (h *Handler) HandleSubmitCheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ceremonyID(w, r)
	if !ok {
		return
	}
	entry, err := h.service.SubmitCheckIn(r.Context(), id)
	if err != nil {
		h.fail(w, r, "submit check-in", err)
		return
	}
	writeEntry(w, entry)
}

func (h *Handler) HandleAbortCheckIn(w http.ResponseWriter, r *http.Request) {
	h.handleAbort(w, r, h.service.AbortCheckIn)
}

func (h *Handler) handleAbort(w http.ResponseWriter, r *http.Request, abort func(context.Context, domain.CeremonyID, models.AbortReason) error) {
	ctx := r.Context()
	id, ok := h.ceremonyID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AbortRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	err := abort(ctx, id, req.Reason)
	if err == nil {
		err = dErrors.New(dErrors.CodeAuthenticatorDeclined, req.Reason.Message())
	}
	httputil.WriteError(w, err)
}

// writeEntry answers 201 for a new attendance row and 200 for a repeat.
func writeEntry(w http.ResponseWriter, entry *ledgermodels.Entry) {
	status := http.StatusOK
	if entry.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, entry)
}

func (h *Handler) ceremonyID(w http.ResponseWriter, r *http.Request) (domain.CeremonyID, bool) {
	id, err := domain.ParseCeremonyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.CeremonyID{}, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"error_code", string(dErrors.CodeOf(err)),
		"error", err,
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, op+" failed", attrs...)
	} else {
		h.logger.InfoContext(ctx, op+" rejected", attrs...)
	}
	httputil.WriteError(w, err)
}
