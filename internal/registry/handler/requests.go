package handler

import (
	"rollcall/internal/registry/models"
	"rollcall/pkg/platform/validation"
)

// EnrollRequest is the body of a direct enrollment.
type EnrollRequest struct {
	models.Candidate
}

func (r *EnrollRequest) Normalize() {
	r.Candidate.Normalize()
}

func (r *EnrollRequest) Validate() error {
	return validation.Struct(r.Candidate)
}

func (r *EnrollRequest) toCandidate() models.Candidate {
	return r.Candidate
}
