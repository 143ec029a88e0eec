package config_test

import (
	"testing"
	"time"

	"github.com/ainexus/ainexus/gateway/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"OPENAI_API_KEY", "GROQ_API_KEY", "GOOGLE_API_KEY", "RATE_LIMIT", "RATE_WINDOW", "BACKEND_TIMEOUT"} {
		t.Setenv(k, "")
	}

	cfg := config.Load()

	assert.Equal(t, 20, cfg.RateLimit.Limit)
	assert.Equal(t, time.Hour, cfg.RateLimit.Window)
	assert.Equal(t, 120*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Providers.Groq.Model)
	assert.Equal(t, 1024, cfg.Providers.Google.MaxTokens)
	assert.False(t, cfg.AnyProvider())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("RATE_LIMIT", "5")
	t.Setenv("RATE_WINDOW", "90s")
	t.Setenv("BACKEND_TIMEOUT", "not-a-duration")

	cfg := config.Load()

	assert.True(t, cfg.AnyProvider())
	assert.Equal(t, 5, cfg.RateLimit.Limit)
	assert.Equal(t, 90*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 120*time.Second, cfg.Providers.Timeout, "unparseable values fall back")
}

func TestAnyProvider_EachKey(t *testing.T) {
	for _, key := range []string{"OPENAI_API_KEY", "GROQ_API_KEY", "GOOGLE_API_KEY"} {
		t.Run(key, func(t *testing.T) {
			for _, k := range []string{"OPENAI_API_KEY", "GROQ_API_KEY", "GOOGLE_API_KEY"} {
				t.Setenv(k, "")
			}
			t.Setenv(key, "secret")
			assert.True(t, config.Load().AnyProvider())
		})
	}
}
