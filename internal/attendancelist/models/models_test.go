package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rollcall/pkg/domain-errors"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0min"},
		{59 * time.Second, "0min"},
		{45 * time.Minute, "45min"},
		{time.Hour, "1h0min"},
		{2*time.Hour + 5*time.Minute + 30*time.Second, "2h5min"},
		{-time.Minute, "0min"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), "duration %s", tt.in)
	}
}

func TestListComplete(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := &List{Status: StatusActive, StartTime: start}

	require.NoError(t, l.Complete(start.Add(90*time.Minute)))
	assert.Equal(t, StatusCompleted, l.Status)
	assert.Equal(t, "1h30min", l.Duration)
	require.NotNil(t, l.EndTime)
	assert.True(t, l.EndTime.Equal(start.Add(90*time.Minute)))

	err := l.Complete(start.Add(2 * time.Hour))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	assert.Equal(t, "1h30min", l.Duration, "a completed list is never reopened or re-timed")
}
