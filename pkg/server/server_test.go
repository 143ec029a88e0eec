package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ainexus/ainexus/gateway/internal/config"
	"github.com/ainexus/ainexus/gateway/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.Port = 0
	cfg.Providers.OpenAI.APIKey = ""
	cfg.Providers.Groq.APIKey = ""
	cfg.Providers.Google.APIKey = ""
	cfg.RateLimit.DatabaseURL = ""
	cfg.RateLimit.SweepInterval = time.Minute
	cfg.Telemetry.Enabled = false
	return cfg
}

func TestNewWithConfig_NoProvider(t *testing.T) {
	srv, err := server.NewWithConfig(context.Background(), testConfig())
	require.NoError(t, err)
	defer srv.ShutdownFunc(context.Background())

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/agent", strings.NewReader(`{"message":"hi"}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "no_provider_configured")
	assert.Equal(t, "19", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestNewWithConfig_ReportsProviders(t *testing.T) {
	cfg := testConfig()
	cfg.Providers.Groq.APIKey = "gsk-test"
	cfg.Providers.Google.APIKey = "g-test"

	srv, err := server.NewWithConfig(context.Background(), cfg)
	require.NoError(t, err)
	defer srv.ShutdownFunc(context.Background())
	assert.Equal(t, cfg.Providers.Timeout+30*time.Second, srv.WriteTimeout)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	assert.JSONEq(t, `{"providers":{"openai":false,"groq":true,"google":true},"streamingSupported":false,"active":"groq"}`, rec.Body.String())
}
