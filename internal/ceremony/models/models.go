package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

type Kind string

const (
	KindEnrollment Kind = "enrollment"
	KindCheckIn    Kind = "check_in"
)

// State is a ceremony's position in its flow. Idle and the terminal states
// are never persisted: a ceremony that is not stored is idle, enrolled or
// recorded.
type State string

const (
	StateIdle                  State = "idle"
	StateAwaitingAuthenticator State = "awaiting_authenticator"
	StateCredentialCaptured    State = "credential_captured"
	StateAsserted              State = "asserted"
	StateSubmitting            State = "submitting"
	StateEnrolled              State = "enrolled"
	StateRecorded              State = "recorded"
)

var transitions = map[Kind]map[State][]State{
	KindEnrollment: {
		StateIdle:                  {StateAwaitingAuthenticator},
		StateAwaitingAuthenticator: {StateCredentialCaptured, StateIdle},
		StateCredentialCaptured:    {StateSubmitting},
		StateSubmitting:            {StateEnrolled, StateCredentialCaptured},
	},
	KindCheckIn: {
		StateIdle:                  {StateAwaitingAuthenticator},
		StateAwaitingAuthenticator: {StateAsserted, StateIdle},
		StateAsserted:              {StateSubmitting},
		StateSubmitting:            {StateRecorded, StateAsserted},
	},
}

// Ceremony is the server side of one WebAuthn round trip. It lives in the
// ceremony store until it is consumed or expires.
type Ceremony struct {
	ID        domain.CeremonyID    `json:"id"`
	Kind      Kind                 `json:"kind"`
	State     State                `json:"state"`
	Session   webauthn.SessionData `json:"session"`
	ExpiresAt time.Time            `json:"expires_at"`

	// Enrollment: the pre-allocated professional id doubles as the WebAuthn
	// user handle.
	ProfessionalID domain.ProfessionalID `json:"professional_id"`
	DisplayName    string                `json:"display_name,omitempty"`
	Email          string                `json:"email,omitempty"`
	CredentialJSON json.RawMessage       `json:"credential_json,omitempty"`

	// Check-in: the list that was active when the ceremony began.
	ListID domain.ListID `json:"list_id"`

	CredentialID domain.CredentialID `json:"credential_id,omitempty"`
}

// Transition moves the ceremony to next or fails with an invariant violation.
func (c *Ceremony) Transition(next State) error {
	for _, allowed := range transitions[c.Kind][c.State] {
		if allowed == next {
			c.State = next
			return nil
		}
	}
	return dErrors.New(dErrors.CodeInvariantViolation,
		fmt.Sprintf("%s ceremony cannot move from %s to %s", c.Kind, c.State, next))
}

// Expect fails with invalid_state unless the ceremony is in want.
func (c *Ceremony) Expect(want State) error {
	if c.State != want {
		return dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("%s ceremony is %s, expected %s", c.Kind, c.State, want))
	}
	return nil
}

func (c *Ceremony) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Remaining is the time left before expiry, never negative.
func (c *Ceremony) Remaining(now time.Time) time.Duration {
	if d := c.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Profile is what the professional fills in on the enrollment form.
type Profile struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Profession string `json:"profession"`
	Company    string `json:"company"`
}

func (p *Profile) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Profession = strings.TrimSpace(p.Profession)
	p.Company = strings.TrimSpace(p.Company)
}

// BeginEnrollmentRequest carries the names shown by the authenticator.
type BeginEnrollmentRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email,max=254"`
}

func (r *BeginEnrollmentRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// AbortReason is the client's account of why the authenticator step ended
// without a result.
type AbortReason string

const (
	AbortCancelled    AbortReason = "cancelled"
	AbortTimeout      AbortReason = "timeout"
	AbortUnsupported  AbortReason = "unsupported"
	AbortNoBiometrics AbortReason = "no_biometrics"
)

// Message is the user-facing description of the reason.
func (r AbortReason) Message() string {
	switch r {
	case AbortTimeout:
		return "the authenticator timed out"
	case AbortUnsupported:
		return "this device has no platform authenticator"
	case AbortNoBiometrics:
		return "no biometric is set up on this device"
	default:
		return "the authenticator prompt was cancelled"
	}
}

// Started is returned by Begin: the ceremony id and the options JSON the
// client hands to navigator.credentials.
type Started struct {
	CeremonyID domain.CeremonyID `json:"ceremony_id"`
	Options    json.RawMessage   `json:"options"`
	ExpiresAt  time.Time         `json:"expires_at"`
}
