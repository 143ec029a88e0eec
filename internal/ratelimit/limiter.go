// Package ratelimit implements fixed-window admission control keyed by
// client identity.
//
// The window table lives behind contracts.RateStore so a single process can
// keep it in memory while several gateway replicas share one Postgres table.
// Every call counts, including rejected ones, so retrying while limited
// never frees budget.
package ratelimit

import (
	"context"
	"time"

	"github.com/ainexus/ainexus/gateway/pkg/contracts"
	"github.com/ainexus/ainexus/gateway/pkg/models"
	"github.com/rs/zerolog/log"
)

// Limiter admits requests against a RateStore.
type Limiter struct {
	store contracts.RateStore
	now   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter over store.
func New(store contracts.RateStore, opts ...Option) *Limiter {
	l := &Limiter{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit counts one request for key and reports whether it fits in the
// current window. A store failure admits the request: losing the limiter
// must not take the chat endpoint down with it.
func (l *Limiter) Admit(ctx context.Context, key string, limit int, window time.Duration) models.RateDecision {
	now := l.now()

	w, err := l.store.Increment(ctx, key, window, now)
	if err != nil {
		log.Warn().Err(err).Str("client", key).Msg("Rate store unavailable, admitting request")
		return models.RateDecision{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetAt:   now.Add(window),
		}
	}

	remaining := limit - w.Count
	if remaining < 0 {
		remaining = 0
	}
	return models.RateDecision{
		Allowed:   w.Count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   w.WindowStart.Add(window),
	}
}

// windowExpired reports whether a window that began at start has passed.
// The reset instant itself still belongs to the old window.
func windowExpired(start time.Time, window time.Duration, now time.Time) bool {
	return start.IsZero() || now.After(start.Add(window))
}
