package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"rollcall/internal/platform/config"
	registrymodels "rollcall/internal/registry/models"
	"rollcall/pkg/domain"
)

// Provider is the subset of *webauthn.WebAuthn the ceremonies use.
type Provider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error)
}

// Parser decodes the JSON the browser returns from navigator.credentials.
type Parser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type protocolParser struct{}

func (protocolParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (protocolParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// platformSelection asks for a resident key on the device's own
// authenticator with a biometric or PIN check.
var platformSelection = protocol.AuthenticatorSelection{
	AuthenticatorAttachment: protocol.Platform,
	RequireResidentKey:      protocol.ResidentKeyRequired(),
	ResidentKey:             protocol.ResidentKeyRequirementRequired,
	UserVerification:        protocol.VerificationRequired,
}

// NewProvider builds the relying party from configuration. Origins are
// already checked against the RP id by config.Validate.
func NewProvider(cfg config.WebAuthnConfig) (*webauthn.WebAuthn, error) {
	timeout := webauthn.TimeoutConfig{
		Enforce:    true,
		Timeout:    cfg.Timeout,
		TimeoutUVD: cfg.Timeout,
	}
	w, err := webauthn.New(&webauthn.Config{
		RPID:                   cfg.RPID,
		RPDisplayName:          cfg.RPDisplayName,
		RPOrigins:              cfg.RPOrigins,
		AuthenticatorSelection: platformSelection,
		Timeouts: webauthn.TimeoutsConfig{
			Login:        timeout,
			Registration: timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("configure webauthn: %w", err)
	}
	return w, nil
}

// professionalUser adapts a professional to webauthn.User. The user handle
// is the 16 raw bytes of the professional id.
type professionalUser struct {
	id          domain.ProfessionalID
	name        string
	displayName string
	credentials []webauthn.Credential
}

func userHandle(id domain.ProfessionalID) []byte {
	u := uuid.UUID(id)
	return u[:]
}

func (u *professionalUser) WebAuthnID() []byte                         { return userHandle(u.id) }
func (u *professionalUser) WebAuthnName() string                       { return u.name }
func (u *professionalUser) WebAuthnDisplayName() string                { return u.displayName }
func (u *professionalUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

var (
	errCredentialMismatch = errors.New("asserted credential does not match the resolved professional")
	errUserHandleMismatch = errors.New("user handle does not match the credential owner")
	errNoPublicKey        = errors.New("professional has no verified public key on file")
)

// discoverableUser returns the handler go-webauthn calls during a
// discoverable login. The professional was already resolved from the raw
// credential id, so the handler only confirms the pairing.
func discoverableUser(p *registrymodels.Professional) webauthn.DiscoverableUserHandler {
	return func(rawID, handle []byte) (webauthn.User, error) {
		if domain.CredentialIDFromRaw(rawID) != p.CredentialID {
			return nil, errCredentialMismatch
		}
		if len(handle) > 0 && !bytes.Equal(handle, userHandle(p.ID)) {
			return nil, errUserHandleMismatch
		}
		credential, err := decodeCredential(p.PublicKeyCredential)
		if err != nil {
			return nil, err
		}
		return &professionalUser{
			id:          p.ID,
			name:        p.Email,
			displayName: p.Name,
			credentials: []webauthn.Credential{credential},
		}, nil
	}
}

func decodeCredential(raw json.RawMessage) (webauthn.Credential, error) {
	var credential webauthn.Credential
	if len(raw) == 0 {
		return credential, errNoPublicKey
	}
	if err := json.Unmarshal(raw, &credential); err != nil {
		return credential, fmt.Errorf("decode stored credential: %w", err)
	}
	return credential, nil
}
