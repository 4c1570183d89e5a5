package domain

import (
	"encoding/base64"

	dErrors "rollcall/pkg/domain-errors"
)

// CredentialID is the text form of an authenticator credential identifier:
// the raw bytes encoded as base64url without padding. It is the key shared by
// the credential registry and the attendance ledger.
type CredentialID string

// WebAuthn caps credential ids at 1023 bytes.
const maxCredentialIDLength = 1364

// CredentialIDFromRaw encodes raw authenticator bytes. All ceremony code paths
// go through here so one physical credential always yields one key.
func CredentialIDFromRaw(raw []byte) CredentialID {
	return CredentialID(base64.RawURLEncoding.EncodeToString(raw))
}

// ParseCredentialID validates credential id text received at a trust boundary.
func ParseCredentialID(s string) (CredentialID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "credential_id is required")
	}
	if len(s) > maxCredentialIDLength {
		return "", dErrors.New(dErrors.CodeValidation, "credential_id is too long")
	}
	raw, err := base64.RawURLEncoding.Strict().DecodeString(s)
	if err != nil || len(raw) == 0 {
		return "", dErrors.New(dErrors.CodeValidation, "credential_id must be unpadded base64url")
	}
	// The decoder skips CR and LF even in strict mode. Only the canonical
	// encoding of the bytes is a key.
	if CredentialIDFromRaw(raw) != CredentialID(s) {
		return "", dErrors.New(dErrors.CodeValidation, "credential_id is not canonical base64url")
	}
	return CredentialID(s), nil
}

// Raw decodes the credential id back to authenticator bytes.
func (c CredentialID) Raw() ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(string(c))
}

func (c CredentialID) String() string { return string(c) }

func (c CredentialID) IsZero() bool { return c == "" }
