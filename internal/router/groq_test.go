package router_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ainexus/ainexus/gateway/internal/config"
	"github.com/ainexus/ainexus/gateway/internal/router"
	"github.com/ainexus/ainexus/gateway/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groqConfig(url string) config.HTTPProviderConfig {
	return config.HTTPProviderConfig{
		APIKey:      "gsk-test",
		Model:       "llama-3.1-8b-instant",
		Endpoint:    url,
		Temperature: 0.2,
		MaxTokens:   1024,
	}
}

func TestGroq_Complete(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama-3.1-8b-instant", body["model"])
		assert.EqualValues(t, 1024, body["max_tokens"])
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 1)
		assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
		assert.Equal(t, "What is 2+2?", msgs[0].(map[string]any)["content"])

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"4"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	b := router.NewGroqBackend(groqConfig(srv.URL), srv.Client())
	text, err := b.Complete(context.Background(), "What is 2+2?", testAgent)
	require.NoError(t, err)
	assert.Equal(t, "4", text)
	assert.Equal(t, 1, calls)
}

func TestGroq_UnexpectedShapeReturnsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"odd"}`))
	}))
	defer srv.Close()

	text, err := router.NewGroqBackend(groqConfig(srv.URL), srv.Client()).
		Complete(context.Background(), "hi", testAgent)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"odd"}`, text)
}

func TestGroq_ContentFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":null},"finish_reason":"content_filter"}]}`))
	}))
	defer srv.Close()

	_, err := router.NewGroqBackend(groqConfig(srv.URL), srv.Client()).
		Complete(context.Background(), "hi", testAgent)
	assert.Equal(t, models.ErrContentBlocked, models.KindOf(err))
}

func TestGroq_ErrorStatusThroughGateway(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`upstream exploded`))
	}))
	defer srv.Close()

	g := router.New(0, router.NewGroqBackend(groqConfig(srv.URL), srv.Client()))
	_, err := g.Dispatch(context.Background(), "hi", testAgent, 0)

	var te *models.TurnError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, models.ErrBackendCallFailed, te.Kind)
	assert.Equal(t, "Groq API call failed", te.Message)

	var pe *router.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
	assert.Equal(t, "upstream exploded", pe.Body)
	assert.Equal(t, 1, calls, "no retry")
}
