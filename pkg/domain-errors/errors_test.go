package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeNoActiveList, "no list is open")
		assert.True(t, HasCode(err, CodeNoActiveList))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("check in: %w", New(CodeUnknownCredential, "not registered"))
		assert.True(t, HasCode(err, CodeUnknownCredential))
	})

	t.Run("matches nested domain errors", func(t *testing.T) {
		inner := New(CodeDuplicateCredential, "already enrolled")
		outer := Wrap(inner, CodeInternal, "submit failed")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeDuplicateCredential))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestCodeAndMessageOf(t *testing.T) {
	err := Wrap(errors.New("pq: connection refused"), CodeInternal, "failed to load list")
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Equal(t, "failed to load list", MessageOf(err))

	raw := errors.New("secret detail")
	assert.Equal(t, CodeInternal, CodeOf(raw))
	assert.Equal(t, "internal error", MessageOf(raw))
}

// Each ceremony outcome must reach the client as a distinct status/code pair.
func TestToHTTPStatus_CeremonyOutcomesAreDistinguishable(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:            http.StatusBadRequest,
		CodeDuplicateCredential:   http.StatusConflict,
		CodeCodeGeneration:        http.StatusServiceUnavailable,
		CodeNoActiveList:          http.StatusConflict,
		CodeUnknownCredential:     http.StatusNotFound,
		CodeAuthenticatorDeclined: http.StatusUnprocessableEntity,
		CodeInternal:              http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, ToHTTPStatus(code), "code %s", code)
	}
}
