package service

import (
	"context"
	"encoding/json"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"rollcall/internal/ceremony/models"
	registrymodels "rollcall/internal/registry/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/validation"
)

// BeginEnrollment issues a fresh registration challenge for a platform
// authenticator. The professional id is allocated here and becomes the
// WebAuthn user handle.
func (s *Service) BeginEnrollment(ctx context.Context, req models.BeginEnrollmentRequest) (*models.Started, error) {
	ctx, span := s.startSpan(ctx, "ceremony.BeginEnrollment", domain.CeremonyID{})
	defer span.End()

	started, err := s.beginEnrollment(ctx, req)
	return started, s.observe(span, models.KindEnrollment, err)
}

func (s *Service) beginEnrollment(ctx context.Context, req models.BeginEnrollmentRequest) (*models.Started, error) {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	c := &models.Ceremony{
		ID:             domain.NewCeremonyID(),
		Kind:           models.KindEnrollment,
		State:          models.StateIdle,
		ProfessionalID: domain.NewProfessionalID(),
		DisplayName:    req.Name,
		Email:          req.Email,
	}
	creation, session, err := s.provider.BeginRegistration(enrollee(c),
		webauthn.WithAuthenticatorSelection(platformSelection),
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin registration")
	}
	options, err := json.Marshal(creation)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode registration options")
	}
	c.Session = *session
	if err := c.Transition(models.StateAwaitingAuthenticator); err != nil {
		return nil, err
	}
	if err := s.open(ctx, c); err != nil {
		return nil, err
	}
	return &models.Started{CeremonyID: c.ID, Options: options, ExpiresAt: c.ExpiresAt}, nil
}

// FinishEnrollment verifies the attestation, captures the credential and
// submits the enrollment. The challenge is spent whatever the outcome; a
// rejected submission can be retried with SubmitEnrollment.
func (s *Service) FinishEnrollment(ctx context.Context, id domain.CeremonyID, credentialJSON []byte, profile models.Profile) (*registrymodels.Enrollment, error) {
	ctx, span := s.startSpan(ctx, "ceremony.FinishEnrollment", id)
	defer span.End()

	enrollment, err := s.finishEnrollment(ctx, id, credentialJSON, profile)
	return enrollment, s.observe(span, models.KindEnrollment, err)
}

func (s *Service) finishEnrollment(ctx context.Context, id domain.CeremonyID, credentialJSON []byte, profile models.Profile) (*registrymodels.Enrollment, error) {
	if len(credentialJSON) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "credential is required")
	}
	c, err := s.take(ctx, models.KindEnrollment, id)
	if err != nil {
		return nil, err
	}
	if err := s.expectState(ctx, c, models.StateAwaitingAuthenticator); err != nil {
		return nil, err
	}

	parsed, err := s.parser.ParseCredentialCreationResponseBytes(credentialJSON)
	if err != nil {
		return nil, s.decline(ctx, c, dErrors.CodeValidation, "malformed credential response", err)
	}
	if !parsed.Response.AttestationObject.AuthData.Flags.UserVerified() {
		return nil, s.decline(ctx, c, dErrors.CodeAuthenticatorDeclined, "the authenticator did not verify the user", nil)
	}
	credential, err := s.provider.CreateCredential(enrollee(c), c.Session, parsed)
	if err != nil {
		return nil, s.decline(ctx, c, dErrors.CodeAuthenticatorDeclined, "credential could not be verified", err)
	}
	encoded, err := json.Marshal(credential)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode credential")
	}

	c.CredentialID = domain.CredentialIDFromRaw(credential.ID)
	c.CredentialJSON = encoded
	if err := c.Transition(models.StateCredentialCaptured); err != nil {
		return nil, err
	}
	return s.submitEnrollment(ctx, c, profile)
}

// SubmitEnrollment resubmits a captured credential, typically after the
// professional corrected the form.
func (s *Service) SubmitEnrollment(ctx context.Context, id domain.CeremonyID, profile models.Profile) (*registrymodels.Enrollment, error) {
	ctx, span := s.startSpan(ctx, "ceremony.SubmitEnrollment", id)
	defer span.End()

	enrollment, err := s.resubmitEnrollment(ctx, id, profile)
	return enrollment, s.observe(span, models.KindEnrollment, err)
}

func (s *Service) resubmitEnrollment(ctx context.Context, id domain.CeremonyID, profile models.Profile) (*registrymodels.Enrollment, error) {
	c, err := s.take(ctx, models.KindEnrollment, id)
	if err != nil {
		return nil, err
	}
	if err := s.expectState(ctx, c, models.StateCredentialCaptured); err != nil {
		return nil, err
	}
	return s.submitEnrollment(ctx, c, profile)
}

func (s *Service) submitEnrollment(ctx context.Context, c *models.Ceremony, profile models.Profile) (*registrymodels.Enrollment, error) {
	if err := c.Transition(models.StateSubmitting); err != nil {
		return nil, err
	}
	profile.Normalize()
	enrollment, err := s.registry.Enroll(ctx, registrymodels.Candidate{
		ID:                  c.ProfessionalID,
		CredentialID:        c.CredentialID.String(),
		Name:                profile.Name,
		Email:               profile.Email,
		Profession:          profile.Profession,
		Company:             profile.Company,
		PublicKeyCredential: c.CredentialJSON,
	})
	if err != nil {
		// A credential that is already bound can never be enrolled again.
		if !dErrors.HasCode(err, dErrors.CodeDuplicateCredential) {
			_ = c.Transition(models.StateCredentialCaptured)
			s.park(ctx, c)
		}
		return nil, err
	}
	if err := c.Transition(models.StateEnrolled); err != nil {
		return nil, err
	}
	s.complete(ctx, c)
	return enrollment, nil
}

// AbortEnrollment drops the ceremony after the client reports that the
// authenticator step failed.
func (s *Service) AbortEnrollment(ctx context.Context, id domain.CeremonyID, reason models.AbortReason) error {
	ctx, span := s.startSpan(ctx, "ceremony.AbortEnrollment", id)
	defer span.End()

	return s.observe(span, models.KindEnrollment, s.abort(ctx, models.KindEnrollment, id, reason))
}

func enrollee(c *models.Ceremony) *professionalUser {
	return &professionalUser{id: c.ProfessionalID, name: c.Email, displayName: c.DisplayName}
}
