// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fmind/slides-translator-agent/auth"
	"github.com/fmind/slides-translator-agent/common/usage"
	"github.com/fmind/slides-translator-agent/config"
	"github.com/fmind/slides-translator-agent/connectors/gcs"
	"github.com/fmind/slides-translator-agent/orchestrator/agent"
	"github.com/fmind/slides-translator-agent/orchestrator/history"
	"github.com/fmind/slides-translator-agent/orchestrator/llm/gemini"
	"github.com/fmind/slides-translator-agent/orchestrator/translator"
	"github.com/fmind/slides-translator-agent/shared/logger"
)

const shutdownTimeout = 30 * time.Second

// Components are the long-lived dependencies built from configuration.
type Components struct {
	Config     *config.Config
	Logger     *logger.Logger
	Pricing    *usage.PricingTable
	Negotiator *auth.Negotiator
	Users      *auth.UserTokens
	Provider   *gemini.Provider
	Tool       *translator.Tool
	Agent      *agent.Agent
	Sessions   agent.SessionStore
	History    history.Repository
	Checks     map[string]HealthCheck

	closers []func() error
}

// NewLogger creates the service logger at the configured level.
func NewLogger(cfg *config.Config) *logger.Logger {
	log := logger.New(ServiceName)
	log.SetLevel(logger.ParseLevel(cfg.LoggingLevel))
	return log
}

// Build wires every component. Optional backends (Redis, Postgres, GCS) are
// used when their URL or bucket is configured, in-memory fallbacks otherwise.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Components, error) {
	c := &Components{
		Config: cfg,
		Logger: log,
		Checks: make(map[string]HealthCheck),
	}
	if err := c.build(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) build(ctx context.Context) error {
	cfg, log := c.Config, c.Logger

	c.Pricing = usage.NewPricingTable()
	if cfg.PricingFile != "" {
		table, err := usage.LoadPricingFile(cfg.PricingFile)
		if err != nil {
			return err
		}
		c.Pricing = table
	}

	var store auth.TokenStore = auth.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := auth.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, client.Close)
		c.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		store = auth.NewRedisStore(client, auth.DefaultTokenTTL)
		log.Info("", "", "Token store: redis", nil)
	} else {
		log.Warn("", "", "REDIS_URL not set, tokens are kept in memory", nil)
	}

	states, err := auth.NewStateSigner(cfg.StateSigningKey, auth.DefaultStateTTL)
	if err != nil {
		return err
	}
	if cfg.APITokenKey != "" {
		if c.Users, err = auth.NewUserTokens(cfg.APITokenKey); err != nil {
			return err
		}
		log.Info("", "", "API callers: bearer tokens", nil)
	} else {
		log.Warn("", "", "API_TOKEN_KEY not set, X-User-ID is trusted; run behind an authenticating proxy", nil)
	}

	oauthConfig := auth.NewOAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL)
	c.Negotiator = auth.NewNegotiator(oauthConfig, store, states, cfg.TokenCacheKey, log.With(map[string]interface{}{"module": "auth"}))

	genaiClient, err := gemini.NewVertexClient(ctx, cfg.ProjectID, cfg.ProjectLocation)
	if err != nil {
		return err
	}
	c.Provider, err = gemini.NewProvider(genaiClient.Models, gemini.Config{Model: cfg.ModelTranslation})
	if err != nil {
		return err
	}
	c.Checks["translation_model"] = func(context.Context) error {
		if !c.Provider.IsHealthy() {
			return errors.New("last model call failed")
		}
		return nil
	}

	c.History = history.NewMemoryRepository()
	if cfg.DatabaseURL != "" {
		db, err := history.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, db.Close)
		repo := history.NewPostgresRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		c.History = repo
		log.Info("", "", "Translation history: postgres", nil)
	}
	c.Checks["history"] = c.History.Ping

	deps := translator.Deps{
		Negotiator: c.Negotiator,
		Workspaces: translator.SlidesWorkspace,
		Translator: c.Provider,
		Pricing:    c.Pricing,
		History:    c.History,
		Metrics:    PrometheusMetrics{},
		Logger:     log.With(map[string]interface{}{"module": "translator"}),
	}
	if cfg.ReportsBucket != "" {
		archiver, err := gcs.NewReportArchiver(ctx, cfg.ReportsBucket, log)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, archiver.Close)
		c.Checks["reports_bucket"] = archiver.HealthCheck
		deps.Archiver = archiver
		log.Info("", "", "Report archive: gcs", map[string]interface{}{"bucket": archiver.Bucket()})
	}

	c.Tool, err = translator.NewTool(deps, translator.Options{
		Workers:   cfg.TranslationWorkers,
		PerWorker: cfg.TranslationsPerWorker,
		BatchSize: cfg.SlidesBatchUpdates,
	})
	if err != nil {
		return err
	}

	c.Sessions = agent.NewMemorySessionStore()
	c.Agent = agent.New(genaiClient.Models, cfg.ModelAgent, c.Tool, log.With(map[string]interface{}{"module": "agent"}))
	return nil
}

// Server returns the HTTP server over the components.
func (c *Components) Server() *Server {
	deps := ServerDeps{
		Agent:          c.Agent,
		Sessions:       c.Sessions,
		Tool:           c.Tool,
		OAuth:          c.Negotiator,
		History:        c.History,
		HealthChecks:   c.Checks,
		AllowedOrigins: c.Config.CORSAllowedOrigins,
		Logger:         c.Logger,
	}
	if c.Users != nil {
		deps.Users = c.Users
	}
	return NewServer(deps)
}

// Close releases backend connections in reverse order of creation.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Run serves the HTTP API until ctx is cancelled or the process receives
// SIGINT or SIGTERM, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config) error {
	log := NewLogger(cfg)
	log.Info("", "", "Starting slides translator", cfg.RedactedMap())

	c, err := Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn("", "", "Error closing components", map[string]interface{}{"error": err.Error()})
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Server().Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("", "", "Slides translator listening", map[string]interface{}{"port": cfg.Port})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("", "", "Shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
