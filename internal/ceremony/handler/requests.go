package handler

import (
	"encoding/json"

	"rollcall/internal/ceremony/models"
	dErrors "rollcall/pkg/domain-errors"
)

type BeginEnrollmentRequest struct {
	models.BeginEnrollmentRequest
}

// Validate is a no-op; the service validates tags after normalizing.
func (r *BeginEnrollmentRequest) Validate() error { return nil }

// FinishEnrollmentRequest carries the PublicKeyCredential JSON from
// navigator.credentials.create next to the form fields.
type FinishEnrollmentRequest struct {
	Credential json.RawMessage `json:"credential"`
	models.Profile
}

func (r *FinishEnrollmentRequest) Validate() error {
	if len(r.Credential) == 0 || string(r.Credential) == "null" {
		return dErrors.New(dErrors.CodeValidation, "credential is required")
	}
	return nil
}

type SubmitEnrollmentRequest struct {
	models.Profile
}

func (r *SubmitEnrollmentRequest) Validate() error { return nil }

// FinishCheckInRequest carries the PublicKeyCredential JSON from
// navigator.credentials.get.
type FinishCheckInRequest struct {
	Assertion json.RawMessage `json:"assertion"`
}

func (r *FinishCheckInRequest) Validate() error {
	if len(r.Assertion) == 0 || string(r.Assertion) == "null" {
		return dErrors.New(dErrors.CodeValidation, "assertion is required")
	}
	return nil
}

type AbortRequest struct {
	Reason models.AbortReason `json:"reason"`
}

func (r *AbortRequest) Validate() error {
	switch r.Reason {
	case models.AbortCancelled, models.AbortTimeout, models.AbortUnsupported, models.AbortNoBiometrics:
		return nil
	case "":
		r.Reason = models.AbortCancelled
		return nil
	default:
		return dErrors.New(dErrors.CodeValidation, "unknown abort reason "+string(r.Reason))
	}
}
