// Package service runs the WebAuthn enrollment and check-in ceremonies.
// Each ceremony is begun by one request and finished by a later one; between
// requests its state lives only in the ceremony store.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	listmodels "rollcall/internal/attendancelist/models"
	"rollcall/internal/ceremony/metrics"
	"rollcall/internal/ceremony/models"
	ledgermodels "rollcall/internal/ledger/models"
	registrymodels "rollcall/internal/registry/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"
)

// DefaultTTL is the authenticator timeout plus grace for slow clients.
const DefaultTTL = 90 * time.Second

type Store interface {
	Put(ctx context.Context, c *models.Ceremony, ttl time.Duration) error
	Take(ctx context.Context, kind models.Kind, id domain.CeremonyID) (*models.Ceremony, error)
}

type Registry interface {
	Enroll(ctx context.Context, candidate registrymodels.Candidate) (*registrymodels.Enrollment, error)
	Resolve(ctx context.Context, credentialID domain.CredentialID) (*registrymodels.Professional, error)
	RefreshCredential(ctx context.Context, credentialID domain.CredentialID, publicKeyCredential []byte) error
}

type Ledger interface {
	RecordAttendance(ctx context.Context, listID domain.ListID, credentialID domain.CredentialID) (*ledgermodels.Entry, error)
}

type Lists interface {
	Active(ctx context.Context) (*listmodels.List, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	provider       Provider
	parser         Parser
	store          Store
	registry       Registry
	ledger         Ledger
	lists          Lists
	ttl            time.Duration
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
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

func WithParser(p Parser) Option {
	return func(s *Service) {
		s.parser = p
	}
}

// WithTTL sets how long an unfinished ceremony survives.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func New(provider Provider, store Store, registry Registry, ledger Ledger, lists Lists, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		parser:   protocolParser{},
		store:    store,
		registry: registry,
		ledger:   ledger,
		lists:    lists,
		ttl:      DefaultTTL,
		tracer:   otel.Tracer("rollcall/ceremony"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string, id domain.CeremonyID) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{}
	if !id.IsNil() {
		attrs = append(attrs, attribute.String("ceremony_id", id.String()))
	}
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// observe records the outcome of a ceremony step on the span and metrics.
func (s *Service) observe(span trace.Span, kind models.Kind, err error) error {
	if err == nil {
		return nil
	}
	code := dErrors.CodeOf(err)
	span.SetStatus(codes.Error, string(code))
	if s.metrics != nil {
		s.metrics.IncrementFailed(string(kind), string(code))
	}
	return err
}

func (s *Service) open(ctx context.Context, c *models.Ceremony) error {
	now := requestcontext.Now(ctx)
	c.ExpiresAt = now.Add(s.ttl)
	if err := s.store.Put(ctx, c, s.ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store ceremony")
	}
	if s.metrics != nil {
		s.metrics.IncrementStarted(string(c.Kind))
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "ceremony started",
			"request_id", requestcontext.RequestID(ctx),
			"ceremony_id", c.ID.String(),
			"kind", string(c.Kind),
		)
	}
	return nil
}

// take consumes a stored ceremony. A ceremony can be taken once; a caller
// that wants to allow a retry must park it again.
func (s *Service) take(ctx context.Context, kind models.Kind, id domain.CeremonyID) (*models.Ceremony, error) {
	c, err := s.store.Take(ctx, kind, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "ceremony not found or expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ceremony")
	}
	if c.Expired(requestcontext.Now(ctx)) {
		return nil, dErrors.New(dErrors.CodeNotFound, "ceremony not found or expired")
	}
	return c, nil
}

// park puts a ceremony back for the rest of its lifetime so the client can
// resubmit without another authenticator prompt.
func (s *Service) park(ctx context.Context, c *models.Ceremony) {
	remaining := c.Remaining(requestcontext.Now(ctx))
	if err := s.store.Put(ctx, c, remaining); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to keep ceremony for retry",
			"request_id", requestcontext.RequestID(ctx),
			"ceremony_id", c.ID.String(),
			"error", err,
		)
	}
}

// expectState parks c again when it is not in want, so a stray request
// cannot destroy a ceremony that is waiting for its proper next step.
func (s *Service) expectState(ctx context.Context, c *models.Ceremony, want models.State) error {
	if err := c.Expect(want); err != nil {
		s.park(ctx, c)
		return err
	}
	return nil
}

// decline ends a ceremony at the authenticator step. The ceremony is not
// parked again, so its challenge is spent.
func (s *Service) decline(ctx context.Context, c *models.Ceremony, code dErrors.Code, message string, cause error) error {
	_ = c.Transition(models.StateIdle)
	event := audit.EventEnrollmentDeclined
	if c.Kind == models.KindCheckIn {
		event = audit.EventCheckInDeclined
	}
	reason := message
	if cause != nil {
		reason = message + ": " + cause.Error()
	}
	s.logAudit(ctx, audit.Event{
		Action:  string(event),
		Subject: c.ID.String(),
		ListID:  listIDString(c),
		Reason:  reason,
	}, "kind", string(c.Kind))
	if cause != nil {
		return dErrors.Wrap(cause, code, message)
	}
	return dErrors.New(code, message)
}

func (s *Service) complete(ctx context.Context, c *models.Ceremony) {
	if s.metrics != nil {
		s.metrics.IncrementCompleted(string(c.Kind))
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "ceremony completed",
			"request_id", requestcontext.RequestID(ctx),
			"ceremony_id", c.ID.String(),
			"kind", string(c.Kind),
			"state", string(c.State),
		)
	}
}

func (s *Service) abort(ctx context.Context, kind models.Kind, id domain.CeremonyID, reason models.AbortReason) error {
	c, err := s.store.Take(ctx, kind, id)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to drop ceremony")
	}
	if c == nil {
		c = &models.Ceremony{ID: id, Kind: kind, State: models.StateAwaitingAuthenticator}
	}
	return s.decline(ctx, c, dErrors.CodeAuthenticatorDeclined, reason.Message(), nil)
}

func listIDString(c *models.Ceremony) string {
	if c.ListID.IsNil() {
		return ""
	}
	return c.ListID.String()
}

func (s *Service) logAudit(ctx context.Context, event audit.Event, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	event.ClientIP = requestcontext.ClientIP(ctx)
	args := append(attributes,
		"event", event.Action,
		"log_type", "audit",
		"subject", event.Subject,
		"reason", event.Reason,
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
