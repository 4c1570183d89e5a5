package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("ROLLCALL_ENV_FILE", t.TempDir()+"/missing.env")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "localhost", cfg.WebAuthn.RPID)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.WebAuthn.RPOrigins)
	assert.Equal(t, 60*time.Second, cfg.WebAuthn.Timeout)
	assert.Equal(t, 90*time.Second, cfg.WebAuthn.CeremonyTTL())
	assert.False(t, cfg.TrustClientCredentials)
	assert.Equal(t, devAdminSigningKey, cfg.Admin.SigningKey)
	assert.Empty(t, cfg.Tracing.Endpoint)
	assert.Equal(t, "rollcall", cfg.NATS.Name)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ROLLCALL_ENV_FILE", t.TempDir()+"/missing.env")
	t.Setenv("ROLLCALL_STORAGE", "postgres")
	t.Setenv("ROLLCALL_DATABASE_URL", "postgres://rollcall@db/rollcall")
	t.Setenv("ROLLCALL_WEBAUTHN_RP_ID", "attendance.example.org")
	t.Setenv("ROLLCALL_WEBAUTHN_RP_ORIGINS", "https://attendance.example.org,https://attendance.example.org:8443")
	t.Setenv("ROLLCALL_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ROLLCALL_TRUST_CLIENT_CREDENTIALS", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Len(t, cfg.WebAuthn.RPOrigins, 2)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.TrustClientCredentials)
}

func TestValidate(t *testing.T) {
	valid := func() Server {
		return Server{
			Storage:                   StorageMemory,
			CeremonyRequestsPerMinute: 30,
			WebAuthn: WebAuthnConfig{
				RPID:      "attendance.example.org",
				RPOrigins: []string{"https://attendance.example.org"},
				Timeout:   time.Minute,
			},
			Admin: AdminConfig{SigningKey: "k"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Server)
	}{
		{"origin host differs from RP id", func(c *Server) { c.WebAuthn.RPOrigins = []string{"https://evil.example.net"} }},
		{"plain http outside localhost", func(c *Server) { c.WebAuthn.RPOrigins = []string{"http://attendance.example.org"} }},
		{"origin without scheme", func(c *Server) { c.WebAuthn.RPOrigins = []string{"attendance.example.org"} }},
		{"postgres without url", func(c *Server) { c.Storage = StoragePostgres }},
		{"unknown storage", func(c *Server) { c.Storage = "mongo" }},
		{"missing admin key", func(c *Server) { c.Admin.SigningKey = "" }},
		{"non-positive timeout", func(c *Server) { c.WebAuthn.Timeout = 0 }},
		{"sample ratio above one", func(c *Server) { c.Tracing.SampleRatio = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestAdminFromEnv(t *testing.T) {
	t.Setenv("ROLLCALL_ENV_FILE", t.TempDir()+"/missing.env")

	t.Run("development falls back to the dev key", func(t *testing.T) {
		t.Setenv("ROLLCALL_ENV", "development")
		cfg, err := AdminFromEnv()
		require.NoError(t, err)
		assert.Equal(t, devAdminSigningKey, cfg.SigningKey)
		assert.Equal(t, "rollcall-admin", cfg.Audience)
	})

	t.Run("production has no fallback", func(t *testing.T) {
		t.Setenv("ROLLCALL_ENV", "production")
		cfg, err := AdminFromEnv()
		require.NoError(t, err)
		assert.Empty(t, cfg.SigningKey)
	})

	t.Run("explicit key wins", func(t *testing.T) {
		t.Setenv("ROLLCALL_ADMIN_SIGNING_KEY", "from-env")
		cfg, err := AdminFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.SigningKey)
	})
}
