package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ainexus/ainexus/gateway/internal/agents"
	"github.com/ainexus/ainexus/gateway/internal/api"
	"github.com/ainexus/ainexus/gateway/internal/api/handlers"
	"github.com/ainexus/ainexus/gateway/internal/config"
	"github.com/ainexus/ainexus/gateway/internal/rag"
	"github.com/ainexus/ainexus/gateway/internal/ratelimit"
	"github.com/ainexus/ainexus/gateway/internal/router"
	"github.com/ainexus/ainexus/gateway/internal/validate"
	"github.com/ainexus/ainexus/gateway/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoBackend struct{}

func (echoBackend) Kind() models.BackendKind { return models.BackendGoogle }
func (echoBackend) Name() string             { return "Google Gemini API" }
func (echoBackend) Label() string            { return models.LabelGoogle }
func (echoBackend) Complete(_ context.Context, prompt string, _ *models.ResolvedAgent) (string, error) {
	return "echo: " + prompt, nil
}

func newTestRouter(t *testing.T, limit int) http.Handler {
	t.Helper()
	selector, err := agents.NewSelector()
	require.NoError(t, err)

	h := handlers.New(
		ratelimit.New(ratelimit.NewMemoryStore()),
		validate.New(validate.DefaultLimits()),
		rag.NewAssembler(rag.NewHTTPExtractor("http://127.0.0.1:0", 1024)),
		selector,
		router.New(time.Second, echoBackend{}),
		handlers.RatePolicy{Limit: limit, Window: time.Hour},
	)
	return api.NewRouter(&config.Config{Version: "1.2.3"}, h)
}

func TestRouter_HealthAndVersion(t *testing.T) {
	r := newTestRouter(t, 20)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"ainexus-gateway"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.JSONEq(t, `{"version":"1.2.3","service":"ainexus-gateway"}`, rec.Body.String())
}

func TestRouter_TurnThroughFallback(t *testing.T) {
	r := newTestRouter(t, 20)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/agent", strings.NewReader(`{"message":"Explain photosynthesis"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.TurnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "echo: Explain photosynthesis", body.Output)
	assert.Equal(t, "Google Gemini API (fallback)", body.Agent)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/agent", strings.NewReader(`{"message":"hi","stream":true}`)))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Contains(t, rec.Body.String(), "Streaming is not supported for Google Gemini API fallback")
}

func TestRouter_ClientKeyFromForwardedFor(t *testing.T) {
	r := newTestRouter(t, 1)

	send := func(ip string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/agent", strings.NewReader(`{"message":"hi"}`))
		req.Header.Set("X-Forwarded-For", ip)
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1"))
	assert.Equal(t, http.StatusOK, send("198.51.100.2"), "budgets are per client")
}

func TestRouter_Config(t *testing.T) {
	r := newTestRouter(t, 20)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	assert.JSONEq(t, `{"providers":{"openai":false,"groq":false,"google":true},"streamingSupported":false,"active":"google"}`, rec.Body.String())
}
