package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/attendancelist/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/platform/middleware/admin"
	"rollcall/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, req models.CreateRequest) (*models.List, error)
	Get(ctx context.Context, id domain.ListID) (*models.List, error)
	List(ctx context.Context) ([]*models.List, error)
	Active(ctx context.Context) (*models.List, error)
	Complete(ctx context.Context, id domain.ListID) (*models.List, error)
}

type Handler struct {
	service  Service
	verifier admin.TokenVerifier
	logger   *slog.Logger
}

func New(service Service, verifier admin.TokenVerifier, logger *slog.Logger) *Handler {
	return &Handler{service: service, verifier: verifier, logger: logger}
}

// Register mounts the read routes publicly and the write routes behind the
// admin token.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/attendance-lists", h.HandleList)
	r.Get("/api/attendance-lists/active", h.HandleActive)
	r.Get("/api/attendance-lists/{id}", h.HandleGet)

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.verifier, h.logger))
		r.Post("/api/attendance-lists", h.HandleCreate)
		r.Put("/api/attendance-lists/{id}/complete", h.HandleComplete)
	})
}

type ListResponse struct {
	ID                      string     `json:"id"`
	InstallationName        string     `json:"installation_name"`
	MeetingDate             string     `json:"meeting_date"`
	MeetingTime             string     `json:"meeting_time"`
	CourseTitle             string     `json:"course_title"`
	CourseContent           string     `json:"course_content"`
	InstructorName          string     `json:"instructor_name"`
	InstructorRole          string     `json:"instructor_role"`
	InstructorQualification string     `json:"instructor_qualification"`
	Location                string     `json:"location"`
	Status                  string     `json:"status"`
	StartTime               time.Time  `json:"start_time"`
	EndTime                 *time.Time `json:"end_time,omitempty"`
	Duration                string     `json:"duration,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
}

func toListResponse(l *models.List) ListResponse {
	return ListResponse{
		ID:                      l.ID.String(),
		InstallationName:        l.InstallationName,
		MeetingDate:             l.MeetingDate,
		MeetingTime:             l.MeetingTime,
		CourseTitle:             l.CourseTitle,
		CourseContent:           l.CourseContent,
		InstructorName:          l.InstructorName,
		InstructorRole:          l.InstructorRole,
		InstructorQualification: l.InstructorQualification,
		Location:                l.Location,
		Status:                  string(l.Status),
		StartTime:               l.StartTime,
		EndTime:                 l.EndTime,
		Duration:                l.Duration,
		CreatedAt:               l.CreatedAt,
	}
}

// CreateListRequest is the body of POST /api/attendance-lists.
type CreateListRequest struct {
	models.CreateRequest
}

func (r *CreateListRequest) Normalize() { r.CreateRequest.Normalize() }

// Validate is left to the service so the rules live in one place.
func (r *CreateListRequest) Validate() error { return nil }

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateListRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	l, err := h.service.Create(ctx, req.CreateRequest)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create attendance list",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toListResponse(l))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	lists, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]ListResponse, 0, len(lists))
	for _, l := range lists {
		out = append(out, toListResponse(l))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleActive(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.Active(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(l))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseListID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	l, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(l))
}

func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseListID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	l, err := h.service.Complete(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to complete attendance list",
			"request_id", requestcontext.RequestID(ctx),
			"list_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(l))
}
