// Package service records attendance: it resolves a credential to a
// professional and appends at most one record per credential per list.
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
	"rollcall/internal/ledger/metrics"
	"rollcall/internal/ledger/models"
	registrymodels "rollcall/internal/registry/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/sentinel"
	txcontext "rollcall/pkg/platform/tx"
	"rollcall/pkg/requestcontext"
)

type Store interface {
	AppendOnce(ctx context.Context, rec *models.Record) (*models.Record, bool, error)
	ListByList(ctx context.Context, listID domain.ListID) ([]*models.Record, error)
}

// Registry resolves credentials to professionals.
type Registry interface {
	Resolve(ctx context.Context, credentialID domain.CredentialID) (*registrymodels.Professional, error)
}

// Lists reads attendance lists. Status is read on every call.
type Lists interface {
	Get(ctx context.Context, id domain.ListID) (*listmodels.List, error)
}

// Notifier receives newly created entries for the live roster.
type Notifier interface {
	Publish(ctx context.Context, entry *models.Entry) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	registry       Registry
	lists          Lists
	tx             txcontext.Runner
	notifier       Notifier
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

// WithTx makes the record insert and its audit event atomic.
func WithTx(runner txcontext.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func New(store Store, registry Registry, lists Lists, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: registry,
		lists:    lists,
		tx:       txcontext.NoopRunner{},
		tracer:   otel.Tracer("rollcall/ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordAttendance checks credentialID into listID. Repeating a check-in
// returns the original entry with Created=false.
func (s *Service) RecordAttendance(ctx context.Context, listID domain.ListID, credentialID domain.CredentialID) (*models.Entry, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.RecordAttendance",
		trace.WithAttributes(attribute.String("list_id", listID.String())))
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveRecord(time.Now())
	}

	entry, err := s.recordAttendance(ctx, listID, credentialID)
	if err != nil {
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.Int("row_number", entry.RowNumber), attribute.Bool("created", entry.Created))
	return entry, nil
}

func (s *Service) recordAttendance(ctx context.Context, listID domain.ListID, credentialID domain.CredentialID) (*models.Entry, error) {
	if credentialID.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "credential_id is required")
	}

	list, err := s.lists.Get(ctx, listID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.countNoActiveList()
			return nil, dErrors.New(dErrors.CodeNoActiveList, "attendance list does not exist")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read attendance list")
	}
	if !list.IsActive() {
		s.countNoActiveList()
		return nil, dErrors.New(dErrors.CodeNoActiveList, "attendance list is closed")
	}

	professional, err := s.registry.Resolve(ctx, credentialID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			if s.metrics != nil {
				s.metrics.IncrementUnknownCredential()
			}
			s.logAudit(ctx, audit.Event{
				Action:       string(audit.EventUnknownCredential),
				ListID:       listID.String(),
				CredentialID: credentialID.String(),
				Reason:       "credential not enrolled",
			})
			return nil, dErrors.New(dErrors.CodeUnknownCredential, "biometric captured but not registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve credential")
	}

	candidate := &models.Record{
		ID:             domain.NewRecordID(),
		ListID:         listID,
		ProfessionalID: professional.ID,
		CredentialID:   credentialID,
		EntryTime:      requestcontext.Now(ctx),
		Location:       list.Location,
	}

	var (
		record  *models.Record
		created bool
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		record, created, err = s.store.AppendOnce(txCtx, candidate)
		if err != nil {
			return err
		}
		if created {
			s.logAudit(txCtx, audit.Event{
				Action:       string(audit.EventAttendanceRecorded),
				Subject:      professional.ID.String(),
				ListID:       listID.String(),
				CredentialID: credentialID.String(),
			}, "row_number", record.RowNumber)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			s.countNoActiveList()
			return nil, dErrors.New(dErrors.CodeNoActiveList, "attendance list was completed")
		}
		if dErrors.CodeOf(err) != dErrors.CodeInternal {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record attendance")
	}

	entry := toEntry(record, professional)
	entry.Created = created
	if !created {
		if s.metrics != nil {
			s.metrics.IncrementRepeated()
		}
		return entry, nil
	}

	if s.metrics != nil {
		s.metrics.IncrementRecorded()
	}
	s.notify(ctx, entry)
	return entry, nil
}

// ListByList returns the roster of listID ordered by row number.
func (s *Service) ListByList(ctx context.Context, listID domain.ListID) ([]*models.Entry, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.ListByList",
		trace.WithAttributes(attribute.String("list_id", listID.String())))
	defer span.End()

	if _, err := s.lists.Get(ctx, listID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "attendance list not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read attendance list")
	}

	records, err := s.store.ListByList(ctx, listID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attendance records")
	}

	entries := make([]*models.Entry, 0, len(records))
	for _, r := range records {
		professional, err := s.registry.Resolve(ctx, r.CredentialID)
		if err != nil {
			// Professionals are never deleted, so a miss means the stores disagree.
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "attendance record references an unknown professional")
		}
		entries = append(entries, toEntry(r, professional))
	}
	return entries, nil
}

func toEntry(r *models.Record, p *registrymodels.Professional) *models.Entry {
	return &models.Entry{
		Record:     *r,
		Name:       p.Name,
		Email:      p.Email,
		Profession: p.Profession,
		Company:    p.Company,
	}
}

func (s *Service) notify(ctx context.Context, entry *models.Entry) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, entry); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementNotificationFailed()
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to publish roster update",
				"request_id", requestcontext.RequestID(ctx),
				"list_id", entry.ListID.String(),
				"error", err,
			)
		}
	}
}

func (s *Service) countNoActiveList() {
	if s.metrics != nil {
		s.metrics.IncrementNoActiveList()
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.Event, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes,
		"event", event.Action,
		"log_type", "audit",
		"list_id", event.ListID,
		"credential_id", event.CredentialID,
	)
	if s.logger != nil {
		s.logger.InfoContext(ctx, event.Action, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event", "event", event.Action, "error", err)
	}
}
