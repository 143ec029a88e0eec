package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ainexus/ainexus/gateway/internal/config"
	"github.com/ainexus/ainexus/gateway/pkg/models"
)

// ── Google Gemini (generateContent) ─────────────────────────

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GoogleBackend is the last-resort buffered fallback.
type GoogleBackend struct {
	cfg    config.HTTPProviderConfig
	client *http.Client
}

// NewGoogleBackend creates the Gemini backend. A nil client uses http.DefaultClient.
func NewGoogleBackend(cfg config.HTTPProviderConfig, client *http.Client) *GoogleBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &GoogleBackend{cfg: cfg, client: client}
}

func (b *GoogleBackend) Kind() models.BackendKind { return models.BackendGoogle }
func (b *GoogleBackend) Name() string             { return "Google Gemini API" }
func (b *GoogleBackend) Label() string            { return models.LabelGoogle }

// Complete implements Backend.
func (b *GoogleBackend) Complete(ctx context.Context, prompt string, _ *models.ResolvedAgent) (string, error) {
	if b.cfg.APIKey == "" {
		return "", fmt.Errorf("google: api key not configured")
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(b.cfg.Endpoint, "/"), url.PathEscape(b.cfg.Model))
	payload, err := postJSON(ctx, b.client, "google", endpoint,
		map[string]string{"x-goog-api-key": b.cfg.APIKey},
		geminiRequest{
			Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
			GenerationConfig: geminiGenerationConfig{
				Temperature:     b.cfg.Temperature,
				MaxOutputTokens: b.cfg.MaxTokens,
			},
		})
	if err != nil {
		return "", err
	}

	var resp geminiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return string(payload), nil
	}

	if len(resp.Candidates) > 0 {
		c := resp.Candidates[0]
		if c.Content != nil && len(c.Content.Parts) > 0 {
			var sb strings.Builder
			for _, p := range c.Content.Parts {
				sb.WriteString(p.Text)
			}
			return sb.String(), nil
		}
		if c.FinishReason == "SAFETY" {
			return "", blocked("Google Gemini", "finishReason=SAFETY")
		}
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", blocked("Google Gemini", "blockReason="+resp.PromptFeedback.BlockReason)
	}

	return string(payload), nil
}
