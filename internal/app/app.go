// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the sitefront server.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"sitefront/config"
	"sitefront/internal/blocks"
	"sitefront/internal/cache"
	"sitefront/internal/cms"
	"sitefront/internal/components"
	"sitefront/internal/leads"
	"sitefront/internal/render"
	"sitefront/internal/server"
	"sitefront/internal/strategy"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config   *config.Config
	store    cache.Store
	cache    *strategy.Manager[json.RawMessage]
	cms      *cms.Client
	registry *blocks.Registry
	server   *server.Server

	stopCleanup []func()

	shutdownMu sync.Mutex
	shutdown   bool
}

// Options overrides parts of the wiring, mainly for tests.
type Options struct {
	// Store replaces the store built from cfg.Cache.Store.
	Store cache.Store
	// HTTPClient replaces the CMS client's transport.
	HTTPClient *http.Client
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is required")
	}

	app := &App{config: cfg}

	store := opts.Store
	if store == nil {
		var err error
		store, err = cache.NewStore(ctx, cfg.Cache.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cache store: %w", err)
		}
	}
	app.store = store

	memory := cache.NewMemoryCache[json.RawMessage](cfg.Cache.Memory)
	persistent := cache.NewPersistentCache[json.RawMessage](store, cfg.Cache.Persistent)
	app.stopCleanup = append(app.stopCleanup,
		memory.StartCleanup(cfg.Cache.MemoryCleanupInterval),
		persistent.StartCleanup(cfg.Cache.PersistentCleanupInterval),
	)
	app.cache = strategy.New(memory, persistent, cfg.Cache.Bindings...)

	cmsOpts := []cms.Option{cms.WithCache(app.cache)}
	if opts.HTTPClient != nil {
		cmsOpts = append(cmsOpts, cms.WithHTTPClient(opts.HTTPClient))
	}
	app.cms = cms.New(cfg.CMS, cmsOpts...)
	leadClient := leads.New(cfg.Leads, app.cms)

	library, err := components.New()
	if err != nil {
		closeErr := app.closeCache()
		if closeErr != nil {
			return nil, fmt.Errorf("failed to load components: %w (also: cache close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to load components: %w", err)
	}
	app.registry = blocks.NewDefaultRegistry(library)
	pipeline := render.New(app.registry, render.WithConcurrency(cfg.Render.Concurrency))

	handler := server.NewHandler(app.cms, leadClient, app.cache, app.registry, pipeline, library, server.Site{
		Name:      cfg.Server.SiteName,
		PublicURL: cfg.Server.PublicURL,
	})
	app.server = server.New(handler, &server.Config{
		AdminKey:        cfg.Server.AdminKey,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		BodySizeLimit:   cfg.Server.BodySizeLimit,
	})

	app.logStartupInfo(leadClient)
	return app, nil
}

// Handler returns the HTTP handler serving the site.
func (a *App) Handler() http.Handler {
	return a.server
}

// Cache returns the strategy manager shared by the CMS client.
func (a *App) Cache() *strategy.Manager[json.RawMessage] {
	return a.cache
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order:
// the HTTP server first, then background cache refreshes and cleanup loops,
// then the cache store.
//
// Shutdown is idempotent; after the first call, subsequent calls are no-ops.
// It attempts every step and returns a joined error if any step fails.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if err := a.closeCache(); err != nil {
		slog.Error("cache store close error", "error", err)
		errs = append(errs, fmt.Errorf("cache close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

// closeCache waits for background refreshes, stops the cleanup loops and
// closes the store.
func (a *App) closeCache() error {
	if a.cache != nil {
		a.cache.Wait()
	}
	for _, stop := range a.stopCleanup {
		stop()
	}
	a.stopCleanup = nil
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo(leadClient *leads.Client) {
	cfg := a.config

	if cfg.Server.AdminKey == "" {
		slog.Warn("SITEFRONT_ADMIN_KEY not set - cache administration endpoints are unauthenticated")
	} else {
		slog.Info("cache administration enabled", "auth", "admin_key")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	backend := cfg.Cache.Store.Backend
	if backend == "" {
		backend = cache.BackendMemory
	}
	slog.Info("cache configured",
		"backend", backend,
		"memory_ttl", cfg.Cache.Memory.TTL,
		"memory_max_size", cfg.Cache.Memory.MaxSize,
		"persistent_ttl", cfg.Cache.Persistent.TTL,
		"bindings", len(cfg.Cache.Bindings),
	)

	slog.Info("cms configured",
		"base_url", a.cms.BaseURL(),
		"timeout", cfg.CMS.Timeout,
		"retries", cfg.CMS.Retries,
		"circuit_breaker", a.cms.BreakerState(),
	)
	slog.Info("leads configured", "target", leadClient.Target())

	stats := a.registry.Stats()
	slog.Info("block registry loaded", "blocks", stats.TotalBlocks, "categories", len(stats.Categories))
}
