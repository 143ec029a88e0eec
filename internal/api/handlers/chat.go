package handlers

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/ainexus/ainexus/gateway/internal/emitter"
	"github.com/ainexus/ainexus/gateway/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxBodyBytes caps the request document. Attachments travel by reference,
// so real bodies are far smaller.
const maxBodyBytes = 1 << 20

// ClientKey identifies the caller for rate limiting. RemoteAddr has
// already been rewritten by chi's RealIP middleware when proxy headers are
// present.
func ClientKey(r *http.Request) string {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if addr == "" {
		return "unknown"
	}
	return addr
}

// Turn runs one chat turn: admission, validation, context assembly, agent
// selection, dispatch, and rendering.
// POST /api/agent
func (h *Handlers) Turn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	turnID := uuid.NewString()
	logger := log.With().Str("turn_id", turnID).Logger()
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("turn.id", turnID))

	key := ClientKey(r)
	decision := h.Limiter.Admit(ctx, key, h.Policy.Limit, h.Policy.Window)
	if !decision.Allowed {
		logger.Warn().Str("client", key).Time("reset_at", decision.ResetAt).Msg("Rate limit exceeded")
		emitter.RateLimited(w, decision, h.now())
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		emitter.Error(w, decision, models.WrapTurnError(models.ErrMalformedBody, "Invalid request body", err))
		return
	}
	turn, err := h.Validator.Decode(body)
	if err != nil {
		logger.Debug().Err(err).Msg("Turn rejected")
		emitter.Error(w, decision, err)
		return
	}

	if err := h.Gateway.Ready(); err != nil {
		logger.Error().Err(err).Msg("No backend configured")
		emitter.Error(w, decision, err)
		return
	}

	files := len(turn.Attachments)
	prompt, err := h.Assembler.Assemble(ctx, turn.Attachments, turn.Text())
	if err != nil {
		logger.Error().Err(err).Int("files", files).Msg("Attachment processing failed")
		emitter.Error(w, decision, err)
		return
	}

	agent := h.Agents.Select(turn.Agent)
	logger.Info().
		Str("client", key).
		Str("agent", agent.Name).
		Int("files", files).
		Bool("stream", turn.Stream).
		Int("remaining", decision.Remaining).
		Msg("Turn admitted")

	if turn.Stream {
		h.streamTurn(ctx, w, decision, logger, prompt, agent, files)
		return
	}

	res, err := h.Gateway.Dispatch(ctx, prompt, agent, files)
	if err != nil {
		emitter.Error(w, decision, err)
		return
	}
	emitter.Result(w, decision, res)
}

// streamTurn opens the event stream on the first event, so failures that
// happen before any output (including StreamingUnsupported) are still
// answered with a status code and a JSON error document.
func (h *Handlers) streamTurn(ctx context.Context, w http.ResponseWriter, decision models.RateDecision, logger zerolog.Logger, prompt string, agent *models.ResolvedAgent, files int) {
	var stream *emitter.Stream
	emit := func(e models.StreamEvent) error {
		if stream == nil {
			s, err := emitter.NewStream(w, decision)
			if err != nil {
				return err
			}
			stream = s
		}
		return stream.Emit(e)
	}

	err := h.Gateway.DispatchStream(ctx, prompt, agent, files, emit)
	switch {
	case err == nil:
		return
	case stream == nil:
		if errors.Is(err, emitter.ErrStreamingUnavailable) {
			err = models.WrapTurnError(models.ErrStreamingUnsupported, "Streaming is not supported by this connection", err)
		}
		emitter.Error(w, decision, err)
	case ctx.Err() != nil:
		logger.Info().Int("frames", stream.Frames()).Msg("Client disconnected mid-stream")
	default:
		logger.Warn().Err(err).Int("frames", stream.Frames()).Msg("Stream ended with error")
		stream.Fail(err)
	}
}
