package store

import (
	"fmt"

	"rollcall/pkg/platform/sentinel"
)

// ErrActiveListExists is returned when a second list would be active.
var ErrActiveListExists = fmt.Errorf("active attendance list: %w", sentinel.ErrAlreadyUsed)
