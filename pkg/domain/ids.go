package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "rollcall/pkg/domain-errors"
)

// Typed identifiers keep professionals, lists, records and ceremonies from
// being passed where another kind of ID is expected.
type (
	ProfessionalID uuid.UUID
	ListID         uuid.UUID
	RecordID       uuid.UUID
	CeremonyID     uuid.UUID
)

const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is too long")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return u, nil
}

func NewProfessionalID() ProfessionalID { return ProfessionalID(uuid.New()) }
func NewListID() ListID                 { return ListID(uuid.New()) }
func NewRecordID() RecordID             { return RecordID(uuid.New()) }
func NewCeremonyID() CeremonyID         { return CeremonyID(uuid.New()) }

// ParseProfessionalID parses a professional ID at a trust boundary.
func ParseProfessionalID(s string) (ProfessionalID, error) {
	u, err := parseUUID("professional_id", s)
	return ProfessionalID(u), err
}

// ParseListID parses an attendance list ID at a trust boundary.
func ParseListID(s string) (ListID, error) {
	u, err := parseUUID("list_id", s)
	return ListID(u), err
}

// ParseRecordID parses an attendance record ID at a trust boundary.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID("record_id", s)
	return RecordID(u), err
}

// ParseCeremonyID parses a ceremony ID at a trust boundary.
func ParseCeremonyID(s string) (CeremonyID, error) {
	u, err := parseUUID("ceremony_id", s)
	return CeremonyID(u), err
}

func (id ProfessionalID) String() string { return uuid.UUID(id).String() }
func (id ProfessionalID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id ListID) String() string { return uuid.UUID(id).String() }
func (id ListID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id RecordID) String() string { return uuid.UUID(id).String() }
func (id RecordID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id CeremonyID) String() string { return uuid.UUID(id).String() }
func (id CeremonyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id ProfessionalID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ListID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id RecordID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id CeremonyID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }

func (id *ProfessionalID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *ListID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *RecordID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *CeremonyID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
