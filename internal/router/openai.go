package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ainexus/ainexus/gateway/internal/config"
	"github.com/ainexus/ainexus/gateway/pkg/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog/log"
)

// maxHandoffs bounds how many times one turn may change agents.
const maxHandoffs = 3

var errHandoffLimit = fmt.Errorf("openai: agent hand-off limit (%d) reached", maxHandoffs)

// OpenAIBackend is the primary backend. It supports buffered and streaming
// turns and executes agent hand-offs: each hand-off target is offered to
// the model as a transfer_to_<name> function, and calling it reruns the
// turn with that specialist's instructions.
type OpenAIBackend struct {
	client openai.Client
	model  string
}

// NewOpenAIBackend creates the primary backend. SDK retries are disabled;
// a failed call is reported, not retried.
func NewOpenAIBackend(cfg config.OpenAIConfig) *OpenAIBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIBackend{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

func (b *OpenAIBackend) Kind() models.BackendKind { return models.BackendPrimary }
func (b *OpenAIBackend) Name() string             { return "OpenAI API" }
func (b *OpenAIBackend) Label() string            { return models.LabelPrimary }

// HandoffToolName is the function name offered for a hand-off to agent.
func HandoffToolName(agent *models.ResolvedAgent) string {
	var sb strings.Builder
	sb.WriteString("transfer_to_")
	underscore := false
	for _, r := range strings.ToLower(agent.Name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			underscore = false
		} else if !underscore {
			sb.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimRight(sb.String(), "_")
}

func (b *OpenAIBackend) params(agent *models.ResolvedAgent, prompt string) openai.ChatCompletionNewParams {
	p := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(agent.Instructions),
			openai.UserMessage(prompt),
		},
	}
	for _, h := range agent.Handoffs {
		desc := h.HandoffDescription
		if desc == "" {
			desc = "Hand off to the " + h.Name + " agent."
		}
		p.Tools = append(p.Tools, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        HandoffToolName(h),
				Description: openai.String(desc),
				Parameters: shared.FunctionParameters{
					"type":                 "object",
					"properties":           map[string]any{},
					"additionalProperties": false,
				},
			},
		})
	}
	return p
}

// handoffTarget returns the specialist a tool call transfers to, if any.
func handoffTarget(agent *models.ResolvedAgent, toolName string) *models.ResolvedAgent {
	for _, h := range agent.Handoffs {
		if HandoffToolName(h) == toolName {
			return h
		}
	}
	return nil
}

// Complete implements Backend.
func (b *OpenAIBackend) Complete(ctx context.Context, prompt string, agent *models.ResolvedAgent) (string, error) {
	current := agent
	for hop := 0; ; hop++ {
		comp, err := b.client.Chat.Completions.New(ctx, b.params(current, prompt))
		if err != nil {
			return "", wrapOpenAIError(err)
		}
		if len(comp.Choices) == 0 {
			return comp.RawJSON(), nil
		}

		choice := comp.Choices[0]
		if choice.FinishReason == "content_filter" {
			return "", blocked("OpenAI", "finish_reason=content_filter")
		}
		if choice.Message.Refusal != "" {
			return "", blocked("OpenAI", "refusal: "+choice.Message.Refusal)
		}

		var next *models.ResolvedAgent
		for _, tc := range choice.Message.ToolCalls {
			if next = handoffTarget(current, tc.Function.Name); next != nil {
				break
			}
		}
		if next == nil {
			return choice.Message.Content, nil
		}
		if hop >= maxHandoffs {
			log.Warn().
				Str("agent", current.Name).
				Str("requested", next.Name).
				Int("handoffs", hop).
				Msg("Hand-off limit reached")
			if choice.Message.Content == "" {
				return "", errHandoffLimit
			}
			return choice.Message.Content, nil
		}
		log.Debug().Str("from", current.Name).Str("to", next.Name).Msg("Agent hand-off")
		current = next
	}
}

// Stream implements Streamer.
func (b *OpenAIBackend) Stream(ctx context.Context, prompt string, agent *models.ResolvedAgent, onDelta func(string) error) error {
	current := agent
	for hop := 0; ; hop++ {
		next, err := b.streamOnce(ctx, prompt, current, onDelta)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		if hop >= maxHandoffs {
			log.Warn().Str("agent", current.Name).Str("requested", next.Name).Msg("Hand-off limit reached")
			return errHandoffLimit
		}
		log.Debug().Str("from", current.Name).Str("to", next.Name).Msg("Agent hand-off")
		current = next
	}
}

// streamOnce streams one completion and returns the hand-off target the
// model chose, if any.
func (b *OpenAIBackend) streamOnce(ctx context.Context, prompt string, agent *models.ResolvedAgent, onDelta func(string) error) (*models.ResolvedAgent, error) {
	stream := b.client.Chat.Completions.NewStreaming(ctx, b.params(agent, prompt))
	defer stream.Close()

	var (
		next    *models.ResolvedAgent
		finish  string
		refusal strings.Builder
	)
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			if err := onDelta(choice.Delta.Content); err != nil {
				return nil, err
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			if tc.Function.Name == "" {
				continue
			}
			if h := handoffTarget(agent, tc.Function.Name); h != nil && next == nil {
				next = h
			}
		}
		refusal.WriteString(choice.Delta.Refusal)
		if choice.FinishReason != "" {
			finish = string(choice.FinishReason)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, wrapOpenAIError(err)
	}
	if finish == "content_filter" {
		return nil, blocked("OpenAI", "finish_reason=content_filter")
	}
	if refusal.Len() > 0 {
		return nil, blocked("OpenAI", "refusal: "+refusal.String())
	}
	return next, nil
}

func wrapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: "openai", StatusCode: apiErr.StatusCode, Body: apiErr.Message}
	}
	return err
}
