package models

import (
	"time"

	"rollcall/pkg/domain"
)

// Record is one attendance row. At most one exists per (list, credential)
// and row numbers are gapless per list. Records are never updated.
type Record struct {
	ID             domain.RecordID       `json:"id"`
	ListID         domain.ListID         `json:"list_id"`
	ProfessionalID domain.ProfessionalID `json:"professional_id"`
	CredentialID   domain.CredentialID   `json:"credential_id"`
	RowNumber      int                   `json:"row_number"`
	EntryTime      time.Time             `json:"entry_time"`
	Location       string                `json:"location"`
}

// Entry is a record with the professional's display fields. Created is false
// when the check-in matched an existing record.
type Entry struct {
	Record
	Name       string `json:"name"`
	Email      string `json:"email"`
	Profession string `json:"profession"`
	Company    string `json:"company"`
	Created    bool   `json:"created"`
}
