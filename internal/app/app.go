// Package app assembles the catalog service from configuration. Both the HTTP
// server and the admin CLI start here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/catalog/internal/broadcast"
	"github.com/JonMunkholm/catalog/internal/config"
	"github.com/JonMunkholm/catalog/internal/core"
	"github.com/JonMunkholm/catalog/internal/fetch"
	"github.com/JonMunkholm/catalog/internal/store/memory"
	"github.com/JonMunkholm/catalog/internal/store/postgres"
)

// Store is what a backend must provide.
type Store interface {
	core.ProductStore
	core.AdminStore
	core.Pinger
}

// App holds the wired service and the resources behind it.
type App struct {
	Service *core.Service
	Store   Store

	broadcaster *broadcast.Invalidator
	closers     []func()
}

// RetryPolicy converts the configured backoff settings.
func RetryPolicy(cfg config.RetryConfig) core.RetryPolicy {
	return core.RetryPolicy{
		MaxAttempts:   cfg.MaxAttempts,
		BackoffFactor: cfg.BackoffFactor,
		MinDelay:      cfg.MinDelay,
		MaxDelay:      cfg.MaxDelay,
	}
}

// New connects the configured backends and builds the service. Call Close
// when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}
	policy := RetryPolicy(cfg.Retry)

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	cache := core.NewProductCache(store,
		core.WithTTL(cfg.Catalog.CacheTTL),
		core.WithLoadTimeout(cfg.Catalog.LoadTimeout),
		core.WithRetryPolicy(policy),
	)

	var invalidator core.Invalidator = cache
	if cfg.Redis.Enabled() {
		client, err := broadcast.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { client.Close() })
		a.broadcaster = broadcast.New(client, cfg.Redis.Channel, cache)
		invalidator = a.broadcaster
		slog.Info("cross-instance cache invalidation enabled", "redis", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}

	fetcher, err := fetch.NewHTTPFetcher(cfg.Import.FetchBaseURL, cfg.Import.FetchTimeout, cfg.Import.MaxFileSize)
	if err != nil {
		a.Close()
		return nil, err
	}

	allowList := core.NewAllowListStrategy(cfg.Auth.AdminIDs)
	if allowList.Len() == 0 {
		slog.Warn("ADMIN_IDS is empty; only admins stored in the database can administer the catalog")
	}

	a.Service = core.NewService(core.ServiceDeps{
		Resolver:      core.NewAuthorizationResolver(allowList, core.NewStoreStrategy(store, policy)),
		Cache:         cache,
		Mutator:       core.NewCatalogMutator(store, store, invalidator, policy),
		Limiter:       core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		Fetcher:       fetcher,
		Pinger:        store,
		Retry:         policy,
		ImportTimeout: cfg.Import.Timeout,
	})
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case config.BackendMemory:
		slog.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil

	case config.BackendPostgres:
		pool, err := postgres.Open(ctx, postgres.PoolOptions{
			URL:             cfg.Store.URL,
			MaxConns:        cfg.Store.MaxConns,
			MinConns:        cfg.Store.MinConns,
			MaxConnLifetime: cfg.Store.MaxConnLifetime,
			MaxConnIdleTime: cfg.Store.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)

		// Log which database we connected to
		if u, err := url.Parse(cfg.Store.URL); err == nil {
			slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		}

		store := postgres.New(pool, cfg.Import.BatchSize)
		if cfg.Store.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Listen applies invalidations broadcast by other instances until ctx ends.
// Without Redis it returns immediately.
func (a *App) Listen(ctx context.Context) error {
	if a.broadcaster == nil {
		return nil
	}
	return a.broadcaster.Listen(ctx)
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
