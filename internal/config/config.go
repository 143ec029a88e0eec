package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the chat gateway.
type Config struct {
	Port      int
	Version   string
	Providers ProvidersConfig
	RateLimit RateLimitConfig
	Files     FilesConfig
	Telemetry TelemetryConfig
}

// ProvidersConfig lists backend credentials. A backend is configured when
// its API key is non-empty.
type ProvidersConfig struct {
	OpenAI OpenAIConfig
	Groq   HTTPProviderConfig
	Google HTTPProviderConfig
	// Timeout bounds every backend call, including a whole stream.
	Timeout time.Duration
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type HTTPProviderConfig struct {
	APIKey      string
	Model       string
	Endpoint    string
	Temperature float64
	MaxTokens   int
}

type RateLimitConfig struct {
	Limit  int
	Window time.Duration
	// DatabaseURL selects the Postgres store; empty keeps windows in memory.
	DatabaseURL string
	// SweepInterval drops expired in-memory windows; zero disables sweeping.
	SweepInterval time.Duration
}

type FilesConfig struct {
	// StoreURL is the base URL attachments are fetched from (<StoreURL>/<id>).
	StoreURL string
	// MaxExtractBytes caps how much of a file is read for context.
	MaxExtractBytes int64
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
	Version      string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	version := envStr("GATEWAY_VERSION", "0.1.0")
	return &Config{
		Port:    envInt("GATEWAY_PORT", 1290),
		Version: version,
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:  envStr("OPENAI_API_KEY", ""),
				Model:   envStr("OPENAI_MODEL", "gpt-4o-mini"),
				BaseURL: envStr("OPENAI_BASE_URL", ""),
			},
			Groq: HTTPProviderConfig{
				APIKey:      envStr("GROQ_API_KEY", ""),
				Model:       envStr("GROQ_MODEL", "llama-3.1-8b-instant"),
				Endpoint:    envStr("GROQ_ENDPOINT", "https://api.groq.com/openai/v1"),
				Temperature: envFloat("GROQ_TEMPERATURE", 0.2),
				MaxTokens:   envInt("GROQ_MAX_TOKENS", 1024),
			},
			Google: HTTPProviderConfig{
				APIKey:      envStr("GOOGLE_API_KEY", ""),
				Model:       envStr("GOOGLE_MODEL", "gemini-2.0-flash"),
				Endpoint:    envStr("GOOGLE_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta"),
				Temperature: envFloat("GOOGLE_TEMPERATURE", 0.2),
				MaxTokens:   envInt("GOOGLE_MAX_TOKENS", 1024),
			},
			Timeout: envDuration("BACKEND_TIMEOUT", 120*time.Second),
		},
		RateLimit: RateLimitConfig{
			Limit:         envInt("RATE_LIMIT", 20),
			Window:        envDuration("RATE_WINDOW", time.Hour),
			DatabaseURL:   envStr("RATE_LIMIT_DATABASE_URL", ""),
			SweepInterval: envDuration("RATE_SWEEP_INTERVAL", 0),
		},
		Files: FilesConfig{
			StoreURL:        envStr("FILE_STORE_URL", "http://localhost:8787/files"),
			MaxExtractBytes: int64(envInt("FILE_MAX_EXTRACT_BYTES", 10*1024*1024)),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "ainexus-gateway"),
			Version:      version,
		},
	}
}

// AnyProvider reports whether at least one backend credential is present.
func (c *Config) AnyProvider() bool {
	p := c.Providers
	return p.OpenAI.APIKey != "" || p.Groq.APIKey != "" || p.Google.APIKey != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
