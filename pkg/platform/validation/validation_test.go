package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rollcall/pkg/domain-errors"
)

type sample struct {
	Name  string `json:"name" validate:"required,max=5"`
	Email string `json:"email" validate:"required,email"`
	Date  string `json:"meeting_date" validate:"required,datetime=2006-01-02"`
}

func TestStruct(t *testing.T) {
	valid := sample{Name: "Ana", Email: "ana@example.com", Date: "2025-03-14"}
	require.NoError(t, Struct(valid))

	tests := []struct {
		name    string
		mutate  func(s *sample)
		message string
	}{
		{"missing name", func(s *sample) { s.Name = "" }, "name is required"},
		{"long name", func(s *sample) { s.Name = "Anastasia" }, "name must be at most 5 characters"},
		{"bad email", func(s *sample) { s.Email = "ana" }, "email must be a valid email address"},
		{"bad date", func(s *sample) { s.Date = "14/03/2025" }, "meeting_date must match layout 2006-01-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := Struct(s)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tt.message, dErrors.MessageOf(err))
		})
	}
}

func TestVar(t *testing.T) {
	require.NoError(t, Var("email", "ana@example.com", "email"))

	err := Var("email", "nope", "email")
	require.Error(t, err)
	assert.Equal(t, "email must be a valid email address", dErrors.MessageOf(err))
}
