package telemetry_test

import (
	"context"
	"testing"

	"github.com/ainexus/ainexus/gateway/internal/config"
	"github.com/ainexus/ainexus/gateway/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := telemetry.Init(config.TelemetryConfig{Enabled: false, OTLPEndpoint: "localhost:4317"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	shutdown, err = telemetry.Init(config.TelemetryConfig{Enabled: true})
	require.NoError(t, err, "an empty endpoint disables export")
	assert.NoError(t, shutdown(context.Background()))
}
