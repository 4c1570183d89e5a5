package admintoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rollcall/pkg/domain-errors"
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := New("test-signing-key", "rollcall", "rollcall-admin")
	require.NoError(t, err)
	return svc
}

func TestIssueAndVerify(t *testing.T) {
	svc := newService(t)

	token, err := svc.Issue("coordinator@example.com", time.Hour)
	require.NoError(t, err)

	subject, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "coordinator@example.com", subject)
}

func TestVerify_Rejections(t *testing.T) {
	svc := newService(t)

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Verify("not-a-token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("expired", func(t *testing.T) {
		token, err := svc.Issue("coordinator", -time.Hour)
		require.NoError(t, err)
		_, err = svc.Verify(token)
		require.Error(t, err)
		assert.Equal(t, "token has expired", dErrors.MessageOf(err))
	})

	t.Run("signed with another key", func(t *testing.T) {
		other, err := New("another-key", "rollcall", "rollcall-admin")
		require.NoError(t, err)
		token, err := other.Issue("coordinator", time.Hour)
		require.NoError(t, err)
		_, err = svc.Verify(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong audience", func(t *testing.T) {
		other, err := New("test-signing-key", "rollcall", "somebody-else")
		require.NoError(t, err)
		token, err := other.Issue("coordinator", time.Hour)
		require.NoError(t, err)
		_, err = svc.Verify(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New("  ", "rollcall", "rollcall-admin")
	assert.Error(t, err)
}
