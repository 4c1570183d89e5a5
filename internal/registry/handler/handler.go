package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/registry/models"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// Service defines the registry operations exposed over HTTP.
type Service interface {
	Enroll(ctx context.Context, candidate models.Candidate) (*models.Enrollment, error)
	List(ctx context.Context, opts models.ListOptions) (*models.Page, error)
	ResolveCode(ctx context.Context, code string) (*models.Professional, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
	// trustClientCredentials enables binding a credential id supplied by the
	// client without a verified WebAuthn ceremony.
	trustClientCredentials bool
}

func New(service Service, logger *slog.Logger, trustClientCredentials bool) *Handler {
	return &Handler{
		service:                service,
		logger:                 logger,
		trustClientCredentials: trustClientCredentials,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/professionals", h.HandleList)
	r.Post("/api/professionals", h.HandleEnroll)
	r.Get("/api/professionals/by-code/{code}", h.HandleByCode)
}

// HandleEnroll binds a client-supplied credential id directly.
func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !h.trustClientCredentials {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "direct enrollment is disabled, use /api/enrollments"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[EnrollRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	enrollment, err := h.service.Enroll(ctx, req.toCandidate())
	if err != nil {
		h.logger.WarnContext(ctx, "direct enrollment failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ToEnrollmentResponse(enrollment))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	opts, err := parseListOptions(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.List(ctx, opts)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list professionals",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPageResponse(page))
}

// HandleByCode looks a professional up by the registration code issued at
// enrollment.
func (h *Handler) HandleByCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	professional, err := h.service.ResolveCode(ctx, chi.URLParam(r, "code"))
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to resolve registration code",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfessionalResponse(professional))
}

func parseListOptions(r *http.Request) (models.ListOptions, error) {
	var opts models.ListOptions
	q := r.URL.Query()
	if v := q.Get("after"); v != "" {
		after, err := strconv.ParseInt(v, 10, 64)
		if err != nil || after < 0 {
			return opts, dErrors.New(dErrors.CodeBadRequest, "after must be a non-negative integer")
		}
		opts.After = after
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return opts, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
		}
		opts.Limit = limit
	}
	return opts, nil
}
