// Package service binds platform credentials to professionals and resolves
// them back on check-in.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"rollcall/internal/registry/metrics"
	"rollcall/internal/registry/models"
	"rollcall/internal/registry/store"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/sentinel"
	txcontext "rollcall/pkg/platform/tx"
	"rollcall/pkg/platform/validation"
	"rollcall/pkg/requestcontext"
)

// maxCodeAttempts bounds registration code regeneration after collisions.
const maxCodeAttempts = 5

type Store interface {
	CreateIfAvailable(ctx context.Context, p *models.Professional) error
	FindByCredentialID(ctx context.Context, credentialID domain.CredentialID) (*models.Professional, error)
	FindByRegistrationCode(ctx context.Context, code string) (*models.Professional, error)
	UpdateCredential(ctx context.Context, credentialID domain.CredentialID, publicKeyCredential []byte) error
	List(ctx context.Context, afterSeq int64, limit int) ([]*models.Professional, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the credential registry.
type Service struct {
	store          Store
	codes          CodeGenerator
	tx             txcontext.Runner
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

// WithTx makes each enrollment attempt and its audit event atomic.
func WithTx(runner txcontext.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithCodeGenerator(gen CodeGenerator) Option {
	return func(s *Service) {
		s.codes = gen
	}
}

func New(st Store, opts ...Option) *Service {
	s := &Service{
		store: st,
		codes: RandomCodeGenerator{},
		tx:    txcontext.NoopRunner{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enroll validates the candidate, binds its credential to a new professional
// and issues a registration code. A credential that is already bound is
// reported as CodeDuplicateCredential whatever the other fields contain.
func (s *Service) Enroll(ctx context.Context, candidate models.Candidate) (*models.Enrollment, error) {
	if s.metrics != nil {
		defer s.metrics.ObserveEnroll(time.Now())
	}

	candidate.Normalize()
	if err := validation.Struct(candidate); err != nil {
		return nil, err
	}
	credentialID, err := domain.ParseCredentialID(candidate.CredentialID)
	if err != nil {
		return nil, err
	}

	professionalID := candidate.ID
	if professionalID.IsNil() {
		professionalID = domain.NewProfessionalID()
	}
	now := requestcontext.Now(ctx)

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.codes.Generate(now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate registration code")
		}
		p := &models.Professional{
			ID:                  professionalID,
			CredentialID:        credentialID,
			Name:                candidate.Name,
			Email:               candidate.Email,
			Profession:          candidate.Profession,
			Company:             candidate.Company,
			RegistrationCode:    code,
			PublicKeyCredential: candidate.PublicKeyCredential,
			CreatedAt:           now,
		}

		// Postgres aborts a transaction on a unique violation, so every
		// attempt gets its own.
		err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.store.CreateIfAvailable(txCtx, p); err != nil {
				return err
			}
			s.logAudit(txCtx, audit.Event{
				Action:       string(audit.EventProfessionalEnrolled),
				Subject:      p.ID.String(),
				CredentialID: p.CredentialID.String(),
			}, "registration_code", p.RegistrationCode)
			return nil
		})

		switch {
		case err == nil:
			if s.metrics != nil {
				s.metrics.IncrementEnrolled()
			}
			return &models.Enrollment{
				ProfessionalID:   p.ID,
				RegistrationCode: p.RegistrationCode,
				Professional:     p,
			}, nil
		case errors.Is(err, store.ErrCredentialTaken):
			if s.metrics != nil {
				s.metrics.IncrementDuplicateCredential()
			}
			s.logAudit(ctx, audit.Event{
				Action:       string(audit.EventDuplicateEnrollment),
				CredentialID: credentialID.String(),
				Reason:       "credential already enrolled",
			})
			return nil, dErrors.New(dErrors.CodeDuplicateCredential, "this biometric credential is already enrolled")
		case errors.Is(err, store.ErrEmailTaken):
			return nil, dErrors.New(dErrors.CodeConflict, "email already enrolled")
		case errors.Is(err, store.ErrIDTaken):
			return nil, dErrors.New(dErrors.CodeConflict, "professional id already exists")
		case errors.Is(err, store.ErrCodeTaken):
			if s.metrics != nil {
				s.metrics.IncrementCodeCollision()
			}
			if s.logger != nil {
				s.logger.WarnContext(ctx, "registration code collision, regenerating",
					"attempt", attempt,
					"request_id", requestcontext.RequestID(ctx),
				)
			}
			continue
		case dErrors.CodeOf(err) != dErrors.CodeInternal:
			return nil, err
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enroll professional")
		}
	}

	return nil, dErrors.New(dErrors.CodeCodeGeneration, "could not allocate a unique registration code, try again")
}

// Resolve returns the professional bound to credentialID.
func (s *Service) Resolve(ctx context.Context, credentialID domain.CredentialID) (*models.Professional, error) {
	if credentialID.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "credential_id is required")
	}
	p, err := s.store.FindByCredentialID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "professional not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve credential")
	}
	return p, nil
}

// ResolveCode returns the professional a registration code was issued to.
// Codes are matched case-insensitively.
func (s *Service) ResolveCode(ctx context.Context, code string) (*models.Professional, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "registration code is required")
	}
	p, err := s.store.FindByRegistrationCode(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration code not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve registration code")
	}
	return p, nil
}

// RefreshCredential stores the credential state returned by a verified
// assertion so the next check-in compares against the latest sign count.
func (s *Service) RefreshCredential(ctx context.Context, credentialID domain.CredentialID, publicKeyCredential []byte) error {
	if credentialID.IsZero() || len(publicKeyCredential) == 0 {
		return dErrors.New(dErrors.CodeValidation, "credential_id and credential are required")
	}
	if err := s.store.UpdateCredential(ctx, credentialID, publicKeyCredential); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "professional not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update credential")
	}
	return nil
}

// List pages through professionals in enrollment order.
func (s *Service) List(ctx context.Context, opts models.ListOptions) (*models.Page, error) {
	opts = opts.Clamp()
	rows, err := s.store.List(ctx, opts.After, opts.Limit+1)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list professionals")
	}
	page := &models.Page{Professionals: rows}
	if len(rows) > opts.Limit {
		page.Professionals = rows[:opts.Limit]
		page.NextCursor = page.Professionals[opts.Limit-1].Seq
	}
	if page.Professionals == nil {
		page.Professionals = []*models.Professional{}
	}
	return page, nil
}

// logAudit writes the audit log line and emits the event. Emit failures are
// logged; inside a SQL transaction a failed outbox write also fails the
// commit.
func (s *Service) logAudit(ctx context.Context, event audit.Event, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes,
		"event", event.Action,
		"log_type", "audit",
		"subject", event.Subject,
		"credential_id", event.CredentialID,
	)
	if s.logger != nil {
		s.logger.InfoContext(ctx, event.Action, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"event", event.Action,
			"error", err,
		)
	}
}
