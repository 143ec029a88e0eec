// Package contracts defines the service interfaces the chat gateway is
// assembled from.
//
// The HTTP handlers depend only on these interfaces. The server wiring in
// pkg/server picks the concrete implementations (in-memory or Postgres rate
// store, HTTP file-store extractor, the configured backend) and tests swap
// in fakes.
package contracts

import (
	"context"
	"time"

	"github.com/ainexus/ainexus/gateway/pkg/models"
)

// ── Rate Limiter ────────────────────────────────────────────

// RateLimiterService admits or rejects a request for a client key.
// Implementations never fail; they always return a decision.
type RateLimiterService interface {
	Admit(ctx context.Context, key string, limit int, window time.Duration) models.RateDecision
}

// RateStore is the backing table of fixed windows.
// Increment atomically starts a new window when none exists or the current
// one ended before now, then adds one to the count.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (models.RateWindow, error)
}

// ── Context Assembly ────────────────────────────────────────

// Extractor turns one stored attachment into plain text. It is the
// boundary to the file-parsing collaborator.
type Extractor interface {
	Extract(ctx context.Context, ref models.AttachmentRef) (string, error)
}

// ContextAssembler builds the prompt a backend receives.
type ContextAssembler interface {
	Assemble(ctx context.Context, attachments []models.AttachmentRef, message string) (string, error)
}

// ── Agents ──────────────────────────────────────────────────

// AgentSelector resolves the persona for a turn.
type AgentSelector interface {
	Select(spec *models.AgentSpec) *models.ResolvedAgent
}

// ── Provider Gateway ────────────────────────────────────────

// ProviderGateway runs a turn against the backend chosen at startup.
type ProviderGateway interface {
	// Dispatch runs the turn and waits for the full answer.
	Dispatch(ctx context.Context, prompt string, agent *models.ResolvedAgent, files int) (*models.TurnResult, error)

	// DispatchStream runs the turn and hands each event to emit as it
	// arrives. A non-nil error from emit stops the upstream producer.
	DispatchStream(ctx context.Context, prompt string, agent *models.ResolvedAgent, files int, emit func(models.StreamEvent) error) error

	// Status reports which backends are configured and whether the active
	// one can stream.
	Status() models.ProviderStatus

	// Ready returns a NoProviderConfigured error when no backend exists.
	Ready() error
}
