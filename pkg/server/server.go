// Package server provides the public entry point for initializing the
// chat gateway.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":1290", srv.Handler)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ainexus/ainexus/gateway/internal/agents"
	"github.com/ainexus/ainexus/gateway/internal/api"
	"github.com/ainexus/ainexus/gateway/internal/api/handlers"
	"github.com/ainexus/ainexus/gateway/internal/config"
	"github.com/ainexus/ainexus/gateway/internal/rag"
	"github.com/ainexus/ainexus/gateway/internal/ratelimit"
	"github.com/ainexus/ainexus/gateway/internal/router"
	"github.com/ainexus/ainexus/gateway/internal/telemetry"
	"github.com/ainexus/ainexus/gateway/internal/validate"
	"github.com/ainexus/ainexus/gateway/pkg/contracts"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized gateway.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Config is the configuration the server was built from.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// WriteTimeout leaves room for a full backend call, streams included.
	WriteTimeout time.Duration

	// ShutdownFunc stops background work, closes the rate store and
	// flushes telemetry.
	ShutdownFunc func(context.Context) error
}

// New loads configuration from the environment and builds the server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig builds every pipeline component from cfg.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	store, closeStore, err := newRateStore(ctx, bgCtx, cfg.RateLimit)
	if err != nil {
		stopBackground()
		shutdownTelemetry(ctx)
		return nil, err
	}

	selector, err := agents.NewSelector()
	if err != nil {
		stopBackground()
		closeStore()
		shutdownTelemetry(ctx)
		return nil, fmt.Errorf("load agent catalog: %w", err)
	}
	log.Info().Int("specialists", len(selector.Triage().Handoffs)).Msg("✅ Agent catalog loaded")

	if !cfg.AnyProvider() {
		// The server still starts; every turn answers NoProviderConfigured.
		log.Error().Msg("No LLM backend configured: set OPENAI_API_KEY, GROQ_API_KEY, or GOOGLE_API_KEY")
	}
	gateway := router.NewFromConfig(cfg.Providers)

	assembler := rag.NewAssembler(rag.NewHTTPExtractor(cfg.Files.StoreURL, cfg.Files.MaxExtractBytes))
	log.Info().Str("file_store", cfg.Files.StoreURL).Msg("✅ Context assembler initialized")

	h := handlers.New(
		ratelimit.New(store),
		validate.New(validate.DefaultLimits()),
		assembler,
		selector,
		gateway,
		handlers.RatePolicy{Limit: cfg.RateLimit.Limit, Window: cfg.RateLimit.Window},
	)

	return &Server{
		Handler:      api.NewRouter(cfg, h),
		Config:       cfg,
		Port:         cfg.Port,
		WriteTimeout: cfg.Providers.Timeout + 30*time.Second,
		ShutdownFunc: func(ctx context.Context) error {
			stopBackground()
			closeStore()
			return shutdownTelemetry(ctx)
		},
	}, nil
}

// newRateStore picks Postgres when a database URL is configured and the
// in-memory store otherwise.
func newRateStore(ctx, bgCtx context.Context, cfg config.RateLimitConfig) (contracts.RateStore, func(), error) {
	if cfg.DatabaseURL != "" {
		pg, err := ratelimit.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("init rate store: %w", err)
		}
		if cfg.SweepInterval > 0 {
			go sweepPostgres(bgCtx, pg, cfg)
		}
		log.Info().Msg("✅ PostgreSQL rate store initialized")
		return pg, pg.Close, nil
	}

	mem := ratelimit.NewMemoryStore()
	if cfg.SweepInterval > 0 {
		go mem.RunSweeper(bgCtx, cfg.SweepInterval)
	}
	log.Info().
		Int("limit", cfg.Limit).
		Dur("window", cfg.Window).
		Msg("✅ In-memory rate store initialized")
	return mem, func() {}, nil
}

func sweepPostgres(ctx context.Context, pg *ratelimit.PostgresStore, cfg config.RateLimitConfig) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := pg.Sweep(ctx, cfg.Window, now)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("Rate window sweep failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("Expired rate windows swept")
			}
		}
	}
}
