package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/platform/config"
)

func TestSetupDisabled(t *testing.T) {
	for name, cfg := range map[string]config.TracingConfig{
		"no endpoint": {Enabled: true},
		"disabled":    {Enabled: false, Endpoint: "http://localhost:4318"},
	} {
		t.Run(name, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), cfg)
			require.NoError(t, err)
			assert.NoError(t, shutdown(context.Background()))
		})
	}
}

func TestSetupInstallsProvider(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracingConfig{
		Enabled:     true,
		Endpoint:    "http://127.0.0.1:4318/v1/traces",
		ServiceName: "rollcall-test",
		SampleRatio: 1,
	})
	require.NoError(t, err)
	// Nothing was exported, so flushing does not need the collector.
	assert.NoError(t, shutdown(context.Background()))
}
