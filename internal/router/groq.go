package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ainexus/ainexus/gateway/internal/config"
	"github.com/ainexus/ainexus/gateway/pkg/models"
)

// ── Groq (OpenAI-compatible chat completions) ───────────────

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type groqResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// GroqBackend is a buffered-only fallback. It sends the prompt as a single
// user message; personas are not forwarded.
type GroqBackend struct {
	cfg    config.HTTPProviderConfig
	client *http.Client
}

// NewGroqBackend creates the Groq backend. A nil client uses http.DefaultClient.
func NewGroqBackend(cfg config.HTTPProviderConfig, client *http.Client) *GroqBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &GroqBackend{cfg: cfg, client: client}
}

func (b *GroqBackend) Kind() models.BackendKind { return models.BackendGroq }
func (b *GroqBackend) Name() string             { return "Groq API" }
func (b *GroqBackend) Label() string            { return models.LabelGroq }

// Complete implements Backend.
func (b *GroqBackend) Complete(ctx context.Context, prompt string, _ *models.ResolvedAgent) (string, error) {
	if b.cfg.APIKey == "" {
		return "", fmt.Errorf("groq: api key not configured")
	}

	url := strings.TrimRight(b.cfg.Endpoint, "/") + "/chat/completions"
	payload, err := postJSON(ctx, b.client, "groq", url,
		map[string]string{"Authorization": "Bearer " + b.cfg.APIKey},
		groqRequest{
			Model:       b.cfg.Model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: b.cfg.Temperature,
			MaxTokens:   b.cfg.MaxTokens,
		})
	if err != nil {
		return "", err
	}

	var resp groqResponse
	if err := json.Unmarshal(payload, &resp); err != nil || len(resp.Choices) == 0 {
		// Unknown shape: hand back the payload rather than failing the turn.
		return string(payload), nil
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", blocked("Groq", "finish_reason=content_filter")
	}
	if choice.Message.Content == nil {
		return "", nil
	}
	return *choice.Message.Content, nil
}
