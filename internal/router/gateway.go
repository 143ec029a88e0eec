// Package router implements the provider gateway.
//
// Exactly one backend serves every turn. It is chosen once, when the
// gateway is built, by a fixed preference: the OpenAI primary, then Groq,
// then Google. A failing backend is reported to the caller as-is; there is
// no retry and no runtime failover to the next backend.
package router

import (
	"context"
	"sort"
	"time"

	"github.com/ainexus/ainexus/gateway/internal/config"
	"github.com/ainexus/ainexus/gateway/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ainexus-gateway/router")

// Backend is one LLM provider.
type Backend interface {
	// Kind identifies the provider.
	Kind() models.BackendKind

	// Name is used in error messages ("Groq API").
	Name() string

	// Label is reported to callers in the "agent" field.
	Label() string

	// Complete runs agent against prompt and returns the full answer.
	Complete(ctx context.Context, prompt string, agent *models.ResolvedAgent) (string, error)
}

// Streamer is implemented by backends that can stream. onDelta is called
// for each text fragment in arrival order; a non-nil return stops the
// upstream stream.
type Streamer interface {
	Stream(ctx context.Context, prompt string, agent *models.ResolvedAgent, onDelta func(string) error) error
}

var priority = map[models.BackendKind]int{
	models.BackendPrimary: 0,
	models.BackendGroq:    1,
	models.BackendGoogle:  2,
}

// Gateway implements contracts.ProviderGateway.
type Gateway struct {
	active     Backend
	configured map[models.BackendKind]bool
	timeout    time.Duration
}

// New builds a gateway over the configured backends. The highest-priority
// one becomes the active backend for the process lifetime.
func New(timeout time.Duration, backends ...Backend) *Gateway {
	g := &Gateway{
		configured: map[models.BackendKind]bool{
			models.BackendPrimary: false,
			models.BackendGroq:    false,
			models.BackendGoogle:  false,
		},
		timeout: timeout,
	}

	ordered := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b != nil {
			ordered = append(ordered, b)
			g.configured[b.Kind()] = true
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return priority[ordered[i].Kind()] < priority[ordered[j].Kind()]
	})
	if len(ordered) > 0 {
		g.active = ordered[0]
	}
	return g
}

// NewFromConfig creates a backend for every provider with an API key.
func NewFromConfig(cfg config.ProvidersConfig) *Gateway {
	var backends []Backend
	if cfg.OpenAI.APIKey != "" {
		backends = append(backends, NewOpenAIBackend(cfg.OpenAI))
	}
	if cfg.Groq.APIKey != "" {
		backends = append(backends, NewGroqBackend(cfg.Groq, nil))
	}
	if cfg.Google.APIKey != "" {
		backends = append(backends, NewGoogleBackend(cfg.Google, nil))
	}

	g := New(cfg.Timeout, backends...)
	if g.active != nil {
		log.Info().
			Str("backend", string(g.active.Kind())).
			Bool("streaming", g.canStream()).
			Dur("timeout", cfg.Timeout).
			Msg("Provider gateway initialized")
	}
	return g
}

// Ready reports NoProviderConfigured when no backend has credentials.
func (g *Gateway) Ready() error {
	if g.active == nil {
		return models.NewTurnError(models.ErrNoProviderConfigured,
			"No LLM API key configured. Please set OPENAI_API_KEY, GROQ_API_KEY, or GOOGLE_API_KEY")
	}
	return nil
}

// Status reports configured backends and streaming capability.
func (g *Gateway) Status() models.ProviderStatus {
	st := models.ProviderStatus{
		Providers:          make(map[models.BackendKind]bool, len(g.configured)),
		StreamingSupported: g.canStream(),
	}
	for k, v := range g.configured {
		st.Providers[k] = v
	}
	if g.active != nil {
		st.Active = g.active.Kind()
	}
	return st
}

func (g *Gateway) canStream() bool {
	if g.active == nil {
		return false
	}
	_, ok := g.active.(Streamer)
	return ok
}

func (g *Gateway) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Gateway) startSpan(ctx context.Context, name string, files int, stream bool) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("llm.backend", string(g.active.Kind())),
		attribute.Int("llm.files", files),
		attribute.Bool("llm.stream", stream),
	))
}

// Dispatch runs a buffered turn on the active backend.
func (g *Gateway) Dispatch(ctx context.Context, prompt string, agent *models.ResolvedAgent, files int) (*models.TurnResult, error) {
	if err := g.Ready(); err != nil {
		return nil, err
	}

	ctx, cancel := g.bound(ctx)
	defer cancel()
	ctx, span := g.startSpan(ctx, "router.dispatch", files, false)
	defer span.End()

	start := time.Now()
	text, err := g.active.Complete(ctx, prompt, agent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend call failed")
		log.Warn().Err(err).Str("backend", string(g.active.Kind())).Msg("Backend call failed")
		return nil, classify(g.active, err)
	}

	log.Info().
		Str("backend", string(g.active.Kind())).
		Str("agent", agent.Name).
		Int("files", files).
		Dur("latency", time.Since(start)).
		Msg("Turn completed")

	return &models.TurnResult{
		Text:           text,
		ProviderLabel:  g.active.Label(),
		FilesProcessed: files,
	}, nil
}

// DispatchStream runs a streaming turn. When files > 0 a file_analysis
// tool event precedes every delta. Done is emitted only after the backend
// finished normally; on error nothing further is emitted.
func (g *Gateway) DispatchStream(ctx context.Context, prompt string, agent *models.ResolvedAgent, files int, emit func(models.StreamEvent) error) error {
	if err := g.Ready(); err != nil {
		return err
	}

	streamer, ok := g.active.(Streamer)
	if !ok {
		return models.NewTurnError(models.ErrStreamingUnsupported,
			"Streaming is not supported for "+g.active.Name()+" fallback")
	}

	ctx, cancel := g.bound(ctx)
	defer cancel()
	ctx, span := g.startSpan(ctx, "router.dispatch_stream", files, true)
	defer span.End()

	if files > 0 {
		if err := emit(models.ToolStarted(models.FileAnalysisTool)); err != nil {
			return err
		}
	}

	var (
		emitErr error
		deltas  int
	)
	start := time.Now()
	err := streamer.Stream(ctx, prompt, agent, func(text string) error {
		if emitErr = emit(models.Delta(text)); emitErr != nil {
			return emitErr
		}
		deltas++
		return nil
	})
	if emitErr != nil {
		// The consumer went away; the backend stream is already closed.
		log.Info().Err(emitErr).Int("deltas", deltas).Msg("Stream consumer stopped")
		return emitErr
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream failed")
		log.Warn().Err(err).Int("deltas", deltas).Msg("Backend stream failed")
		return classify(g.active, err)
	}

	span.SetAttributes(attribute.Int("llm.deltas", deltas))
	log.Info().
		Str("backend", string(g.active.Kind())).
		Str("agent", agent.Name).
		Int("files", files).
		Int("deltas", deltas).
		Dur("latency", time.Since(start)).
		Msg("Streamed turn completed")

	return emit(models.Done(g.active.Label(), files))
}
