package handler

import (
	"time"

	"rollcall/internal/registry/models"
)

type ProfessionalResponse struct {
	ID               string    `json:"id"`
	CredentialID     string    `json:"credential_id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Profession       string    `json:"profession"`
	Company          string    `json:"company"`
	RegistrationCode string    `json:"registration_code"`
	CreatedAt        time.Time `json:"created_at"`
}

type EnrollmentResponse struct {
	ProfessionalID   string               `json:"professional_id"`
	RegistrationCode string               `json:"registration_code"`
	Professional     ProfessionalResponse `json:"professional"`
}

type PageResponse struct {
	Professionals []ProfessionalResponse `json:"professionals"`
	NextCursor    int64                  `json:"next_cursor,omitempty"`
}

func toProfessionalResponse(p *models.Professional) ProfessionalResponse {
	return ProfessionalResponse{
		ID:               p.ID.String(),
		CredentialID:     p.CredentialID.String(),
		Name:             p.Name,
		Email:            p.Email,
		Profession:       p.Profession,
		Company:          p.Company,
		RegistrationCode: p.RegistrationCode,
		CreatedAt:        p.CreatedAt,
	}
}

// ToEnrollmentResponse is shared with the enrollment ceremony handler.
func ToEnrollmentResponse(e *models.Enrollment) EnrollmentResponse {
	resp := EnrollmentResponse{
		ProfessionalID:   e.ProfessionalID.String(),
		RegistrationCode: e.RegistrationCode,
	}
	if e.Professional != nil {
		resp.Professional = toProfessionalResponse(e.Professional)
	}
	return resp
}

func toPageResponse(page *models.Page) PageResponse {
	out := PageResponse{
		Professionals: make([]ProfessionalResponse, 0, len(page.Professionals)),
		NextCursor:    page.NextCursor,
	}
	for _, p := range page.Professionals {
		out.Professionals = append(out.Professionals, toProfessionalResponse(p))
	}
	return out
}
