package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers durable facts: who enrolled, who attended.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers rejected ceremonies and credentials that do not
	// resolve to anyone.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine list administration.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category     EventCategory
	Timestamp    time.Time
	Action       string
	Subject      string // professional or list id
	ListID       string
	CredentialID string
	Reason       string
	RequestID    string
	ActorID      string // admin subject for list administration
	ClientIP     string
	Device       string // summarized User-Agent
}

type AuditEvent string

const (
	EventProfessionalEnrolled AuditEvent = "professional_enrolled"
	EventAttendanceRecorded   AuditEvent = "attendance_recorded"

	EventEnrollmentDeclined  AuditEvent = "enrollment_declined"
	EventCheckInDeclined     AuditEvent = "check_in_declined"
	EventUnknownCredential   AuditEvent = "unknown_credential_presented"
	EventDuplicateEnrollment AuditEvent = "duplicate_enrollment_rejected"

	EventListCreated   AuditEvent = "attendance_list_created"
	EventListCompleted AuditEvent = "attendance_list_completed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventProfessionalEnrolled: CategoryCompliance,
	EventAttendanceRecorded:   CategoryCompliance,

	EventEnrollmentDeclined:  CategorySecurity,
	EventCheckInDeclined:     CategorySecurity,
	EventUnknownCredential:   CategorySecurity,
	EventDuplicateEnrollment: CategorySecurity,

	EventListCreated:   CategoryOperations,
	EventListCompleted: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is what services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
