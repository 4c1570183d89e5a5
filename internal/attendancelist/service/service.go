// Package service administers attendance lists. It is the only writer of a
// list's status; check-in only reads it.
package service

import (
	"context"
	"errors"
	"log/slog"

	"rollcall/internal/attendancelist/metrics"
	"rollcall/internal/attendancelist/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/platform/validation"
	"rollcall/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, l *models.List) error
	FindByID(ctx context.Context, id domain.ListID) (*models.List, error)
	FindActive(ctx context.Context) (*models.List, error)
	ListAll(ctx context.Context) ([]*models.List, error)
	Execute(ctx context.Context, id domain.ListID, validate func(*models.List) error, mutate func(*models.List)) (*models.List, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a new list. Only one list may be active at a time.
func (s *Service) Create(ctx context.Context, req models.CreateRequest) (*models.List, error) {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	l := &models.List{
		ID:                      domain.NewListID(),
		InstallationName:        req.InstallationName,
		MeetingDate:             req.MeetingDate,
		MeetingTime:             req.MeetingTime,
		CourseTitle:             req.CourseTitle,
		CourseContent:           req.CourseContent,
		InstructorName:          req.InstructorName,
		InstructorRole:          req.InstructorRole,
		InstructorQualification: req.InstructorQualification,
		Location:                req.Location,
		Status:                  models.StatusActive,
		StartTime:               now,
		CreatedAt:               now,
	}
	if err := s.store.Create(ctx, l); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "another attendance list is already active")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create attendance list")
	}

	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	s.logAudit(ctx, audit.EventListCreated, l, "course_title", l.CourseTitle)
	return l, nil
}

func (s *Service) Get(ctx context.Context, id domain.ListID) (*models.List, error) {
	l, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapListErr(err, "attendance list not found")
	}
	return l, nil
}

// List returns every list, newest first.
func (s *Service) List(ctx context.Context) ([]*models.List, error) {
	lists, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attendance lists")
	}
	if lists == nil {
		lists = []*models.List{}
	}
	return lists, nil
}

// Active returns the open list or CodeNotFound.
func (s *Service) Active(ctx context.Context) (*models.List, error) {
	l, err := s.store.FindActive(ctx)
	if err != nil {
		return nil, wrapListErr(err, "no active attendance list")
	}
	return l, nil
}

// Complete closes an active list, recording its end time and duration.
func (s *Service) Complete(ctx context.Context, id domain.ListID) (*models.List, error) {
	now := requestcontext.Now(ctx)
	l, err := s.store.Execute(ctx, id,
		func(cur *models.List) error {
			if !cur.IsActive() {
				return dErrors.New(dErrors.CodeConflict, "attendance list is already completed")
			}
			return nil
		},
		func(cur *models.List) {
			_ = cur.Complete(now)
		},
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, err
		}
		return nil, wrapListErr(err, "attendance list not found")
	}

	if s.metrics != nil {
		s.metrics.IncrementCompleted()
	}
	s.logAudit(ctx, audit.EventListCompleted, l, "duration", l.Duration)
	return l, nil
}

func wrapListErr(err error, notFound string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFound)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "attendance list store failed")
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, l *models.List, attributes ...any) {
	actor := requestcontext.AdminSubject(ctx)
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes,
		"event", string(event),
		"log_type", "audit",
		"list_id", l.ID.String(),
		"actor_id", actor,
	)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:  string(event),
		Subject: l.ID.String(),
		ListID:  l.ID.String(),
		ActorID: actor,
	}); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
