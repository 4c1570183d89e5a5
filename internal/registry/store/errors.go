package store

import (
	"fmt"

	"rollcall/pkg/platform/sentinel"
)

// Unique key conflicts. Each wraps sentinel.ErrAlreadyUsed. When several keys
// collide at once the credential conflict is reported.
var (
	ErrCredentialTaken = fmt.Errorf("credential id: %w", sentinel.ErrAlreadyUsed)
	ErrEmailTaken      = fmt.Errorf("email: %w", sentinel.ErrAlreadyUsed)
	ErrCodeTaken       = fmt.Errorf("registration code: %w", sentinel.ErrAlreadyUsed)
	ErrIDTaken         = fmt.Errorf("professional id: %w", sentinel.ErrAlreadyUsed)
)
