package models

import (
	"encoding/json"
	"strings"
	"time"

	"rollcall/pkg/domain"
)

// Professional is an enrolled identity bound to one platform credential.
type Professional struct {
	ID                  domain.ProfessionalID
	CredentialID        domain.CredentialID
	Name                string
	Email               string
	Profession          string
	Company             string
	RegistrationCode    string
	PublicKeyCredential json.RawMessage
	Seq                 int64
	CreatedAt           time.Time
}

// Candidate is the input to an enrollment.
type Candidate struct {
	// ID is optional; the enrollment ceremony pre-allocates it as the
	// WebAuthn user handle.
	ID                  domain.ProfessionalID `json:"-"`
	CredentialID        string                `json:"credential_id" validate:"required,max=1364"`
	Name                string                `json:"name" validate:"required,max=200"`
	Email               string                `json:"email" validate:"required,email,max=254"`
	Profession          string                `json:"profession" validate:"required,max=200"`
	Company             string                `json:"company" validate:"required,max=200"`
	PublicKeyCredential json.RawMessage       `json:"-"`
}

// Normalize trims free text and lowercases the email so uniqueness is
// case-insensitive.
func (c *Candidate) Normalize() {
	c.CredentialID = strings.TrimSpace(c.CredentialID)
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Profession = strings.TrimSpace(c.Profession)
	c.Company = strings.TrimSpace(c.Company)
}

// Enrollment is the result of a successful enrollment.
type Enrollment struct {
	ProfessionalID   domain.ProfessionalID
	RegistrationCode string
	Professional     *Professional
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ListOptions selects a page in enrollment order. After is the Seq of the
// last professional on the previous page.
type ListOptions struct {
	After int64
	Limit int
}

// Clamp applies the default and maximum page size.
func (o ListOptions) Clamp() ListOptions {
	switch {
	case o.Limit <= 0:
		o.Limit = DefaultPageSize
	case o.Limit > MaxPageSize:
		o.Limit = MaxPageSize
	}
	if o.After < 0 {
		o.After = 0
	}
	return o
}

// Page is one page of professionals. NextCursor is zero on the last page.
type Page struct {
	Professionals []*Professional
	NextCursor    int64
}
