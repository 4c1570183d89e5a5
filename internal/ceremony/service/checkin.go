package service

import (
	"context"
	"encoding/json"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"rollcall/internal/ceremony/models"
	ledgermodels "rollcall/internal/ledger/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/audit"
)

// BeginCheckIn fails fast when no list is active, before the authenticator
// is ever prompted. The login is discoverable: the credential tells us who
// is checking in.
func (s *Service) BeginCheckIn(ctx context.Context) (*models.Started, error) {
	ctx, span := s.startSpan(ctx, "ceremony.BeginCheckIn", domain.CeremonyID{})
	defer span.End()

	started, err := s.beginCheckIn(ctx)
	return started, s.observe(span, models.KindCheckIn, err)
}

func (s *Service) beginCheckIn(ctx context.Context) (*models.Started, error) {
	list, err := s.lists.Active(ctx)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeNoActiveList, "no attendance list is active")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read active attendance list")
	}

	assertion, session, err := s.provider.BeginDiscoverableLogin(
		webauthn.WithUserVerification(protocol.VerificationRequired),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin login")
	}
	options, err := json.Marshal(assertion)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode login options")
	}

	c := &models.Ceremony{
		ID:      domain.NewCeremonyID(),
		Kind:    models.KindCheckIn,
		State:   models.StateIdle,
		Session: *session,
		ListID:  list.ID,
	}
	if err := c.Transition(models.StateAwaitingAuthenticator); err != nil {
		return nil, err
	}
	if err := s.open(ctx, c); err != nil {
		return nil, err
	}
	return &models.Started{CeremonyID: c.ID, Options: options, ExpiresAt: c.ExpiresAt}, nil
}

// FinishCheckIn verifies the assertion and records attendance on the list
// captured at BeginCheckIn.
func (s *Service) FinishCheckIn(ctx context.Context, id domain.CeremonyID, assertionJSON []byte) (*ledgermodels.Entry, error) {
	ctx, span := s.startSpan(ctx, "ceremony.FinishCheckIn", id)
	defer span.End()

	entry, err := s.finishCheckIn(ctx, id, assertionJSON)
	return entry, s.observe(span, models.KindCheckIn, err)
}

func (s *Service) finishCheckIn(ctx context.Context, id domain.CeremonyID, assertionJSON []byte) (*ledgermodels.Entry, error) {
	if len(assertionJSON) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "assertion is required")
	}
	c, err := s.take(ctx, models.KindCheckIn, id)
	if err != nil {
		return nil, err
	}
	if err := s.expectState(ctx, c, models.StateAwaitingAuthenticator); err != nil {
		return nil, err
	}

	parsed, err := s.parser.ParseCredentialRequestResponseBytes(assertionJSON)
	if err != nil {
		return nil, s.decline(ctx, c, dErrors.CodeValidation, "malformed assertion response", err)
	}
	if !parsed.Response.AuthenticatorData.Flags.UserVerified() {
		return nil, s.decline(ctx, c, dErrors.CodeAuthenticatorDeclined, "the authenticator did not verify the user", nil)
	}

	credentialID := domain.CredentialIDFromRaw(parsed.RawID)
	professional, err := s.registry.Resolve(ctx, credentialID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.logAudit(ctx, audit.Event{
				Action:       string(audit.EventUnknownCredential),
				ListID:       c.ListID.String(),
				CredentialID: credentialID.String(),
				Reason:       "assertion from a credential that is not enrolled",
			})
			return nil, dErrors.New(dErrors.CodeUnknownCredential, "biometric captured but not registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve credential")
	}

	_, credential, err := s.provider.ValidatePasskeyLogin(discoverableUser(professional), c.Session, parsed)
	if err != nil {
		return nil, s.decline(ctx, c, dErrors.CodeAuthenticatorDeclined, "assertion could not be verified", err)
	}
	if credential.Authenticator.CloneWarning {
		// A suspected clone never advances the stored counter.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "authenticator sign count went backwards",
				"ceremony_id", c.ID.String(),
				"credential_id", credentialID.String(),
				"stored_sign_count", credential.Authenticator.SignCount,
			)
		}
	} else {
		s.refreshCredential(ctx, credentialID, credential)
	}

	c.CredentialID = credentialID
	if err := c.Transition(models.StateAsserted); err != nil {
		return nil, err
	}
	return s.submitCheckIn(ctx, c)
}

// refreshCredential persists the sign count advanced by a verified
// assertion. A failed write does not undo the check-in.
func (s *Service) refreshCredential(ctx context.Context, credentialID domain.CredentialID, credential *webauthn.Credential) {
	encoded, err := json.Marshal(credential)
	if err == nil {
		err = s.registry.RefreshCredential(ctx, credentialID, encoded)
	}
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to store authenticator sign count",
			"credential_id", credentialID.String(),
			"error", err,
		)
	}
}

// SubmitCheckIn retries recording an assertion that was already verified.
func (s *Service) SubmitCheckIn(ctx context.Context, id domain.CeremonyID) (*ledgermodels.Entry, error) {
	ctx, span := s.startSpan(ctx, "ceremony.SubmitCheckIn", id)
	defer span.End()

	entry, err := s.resubmitCheckIn(ctx, id)
	return entry, s.observe(span, models.KindCheckIn, err)
}

func (s *Service) resubmitCheckIn(ctx context.Context, id domain.CeremonyID) (*ledgermodels.Entry, error) {
	c, err := s.take(ctx, models.KindCheckIn, id)
	if err != nil {
		return nil, err
	}
	if err := s.expectState(ctx, c, models.StateAsserted); err != nil {
		return nil, err
	}
	return s.submitCheckIn(ctx, c)
}

func (s *Service) submitCheckIn(ctx context.Context, c *models.Ceremony) (*ledgermodels.Entry, error) {
	if err := c.Transition(models.StateSubmitting); err != nil {
		return nil, err
	}
	entry, err := s.ledger.RecordAttendance(ctx, c.ListID, c.CredentialID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeUnknownCredential) {
			_ = c.Transition(models.StateAsserted)
			s.park(ctx, c)
		}
		return nil, err
	}
	if err := c.Transition(models.StateRecorded); err != nil {
		return nil, err
	}
	s.complete(ctx, c)
	return entry, nil
}

// AbortCheckIn drops the ceremony after the client reports that the
// authenticator step failed.
func (s *Service) AbortCheckIn(ctx context.Context, id domain.CeremonyID, reason models.AbortReason) error {
	ctx, span := s.startSpan(ctx, "ceremony.AbortCheckIn", id)
	defer span.End()

	return s.observe(span, models.KindCheckIn, s.abort(ctx, models.KindCheckIn, id, reason))
}
