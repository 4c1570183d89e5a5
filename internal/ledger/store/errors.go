package store

import (
	"fmt"

	"rollcall/pkg/platform/sentinel"
)

const listActive = "active"

// ErrListClosed is returned when the list stopped being active before the
// append took its lock.
var ErrListClosed = fmt.Errorf("attendance list is not active: %w", sentinel.ErrInvalidState)
