// Package handlers implements the HTTP handlers for the chat gateway.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ainexus/ainexus/gateway/internal/validate"
	"github.com/ainexus/ainexus/gateway/pkg/contracts"
)

// RatePolicy is the per-client admission budget.
type RatePolicy struct {
	Limit  int
	Window time.Duration
}

// Handlers holds all handler dependencies.
type Handlers struct {
	Limiter   contracts.RateLimiterService
	Validator *validate.Validator
	Assembler contracts.ContextAssembler
	Agents    contracts.AgentSelector
	Gateway   contracts.ProviderGateway
	Policy    RatePolicy

	now func() time.Time
}

// New creates a Handlers instance with all dependencies.
func New(
	limiter contracts.RateLimiterService,
	validator *validate.Validator,
	assembler contracts.ContextAssembler,
	agents contracts.AgentSelector,
	gateway contracts.ProviderGateway,
	policy RatePolicy,
) *Handlers {
	return &Handlers{
		Limiter:   limiter,
		Validator: validator,
		Assembler: assembler,
		Agents:    agents,
		Gateway:   gateway,
		Policy:    policy,
		now:       time.Now,
	}
}

// WithClock replaces the clock used for Retry-After.
func (h *Handlers) WithClock(now func() time.Time) *Handlers {
	h.now = now
	return h
}

// GetConfig reports configured providers and streaming capability.
// GET /api/config
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Gateway.Status())
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
