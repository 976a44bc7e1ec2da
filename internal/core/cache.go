package core

// cache.go implements the read-through cache over the visible product subset.
//
// State machine:
//
//	EMPTY --Visible--> LOADING --ok--> FRESH(t) --ttl--> EMPTY
//	                          \--err--> EMPTY (error delivered to every waiter)
//	any   --Invalidate--> EMPTY (generation bumped)
//
// Loads are single-flight per generation. Invalidate bumps the generation, so
// a load that started before the invalidation cannot store its result, and the
// next reader starts a fresh load under the new generation key.

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/catalog/internal/logging"
)

// Cache defaults.
const (
	DefaultCacheTTL    = 5 * time.Minute
	DefaultLoadTimeout = 10 * time.Second
)

type cacheEntry struct {
	products  []Product
	fetchedAt time.Time
}

// CacheStats is a point-in-time view of cache activity.
type CacheStats struct {
	Hits          uint64    `json:"hits"`
	Misses        uint64    `json:"misses"`
	Loads         uint64    `json:"loads"`
	Invalidations uint64    `json:"invalidations"`
	Generation    uint64    `json:"generation"`
	FetchedAt     time.Time `json:"fetched_at,omitempty"`
}

// CacheOption customizes a ProductCache.
type CacheOption func(*ProductCache)

// WithTTL sets how long a loaded list stays fresh.
func WithTTL(d time.Duration) CacheOption {
	return func(c *ProductCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithLoadTimeout bounds a single store load, including retries.
func WithLoadTimeout(d time.Duration) CacheOption {
	return func(c *ProductCache) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

// WithRetryPolicy sets the policy used for store reads.
func WithRetryPolicy(p RetryPolicy) CacheOption {
	return func(c *ProductCache) { c.policy = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *ProductCache) { c.now = now }
}

// ProductCache holds the visible product list for a bounded time.
// Callers must treat returned slices as read-only; they are shared.
type ProductCache struct {
	store       ProductStore
	policy      RetryPolicy
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time

	group singleflight.Group

	mu    sync.Mutex
	entry *cacheEntry
	gen   uint64
	stats CacheStats
}

// NewProductCache creates an empty cache over store.
func NewProductCache(store ProductStore, opts ...CacheOption) *ProductCache {
	c := &ProductCache{
		store:       store,
		policy:      DefaultRetryPolicy(),
		ttl:         DefaultCacheTTL,
		loadTimeout: DefaultLoadTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Visible returns the visible products, loading them on a miss. Concurrent
// misses share one load; ctx only bounds how long this caller waits.
func (c *ProductCache) Visible(ctx context.Context) ([]Product, error) {
	c.mu.Lock()
	if e := c.entry; e != nil && c.now().Sub(e.fetchedAt) < c.ttl {
		c.stats.Hits++
		c.mu.Unlock()
		return e.products, nil
	}
	c.stats.Misses++
	gen := c.gen
	c.mu.Unlock()

	ch := c.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		return c.load(ctx, gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cacheEntry).products, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load runs detached from the caller that triggered it so one cancelled
// request does not fail every waiter.
func (c *ProductCache) load(ctx context.Context, gen uint64) (*cacheEntry, error) {
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
	defer cancel()

	logger := logging.WithFields(ctx, "generation", gen)
	start := c.now()

	c.mu.Lock()
	c.stats.Loads++
	c.mu.Unlock()

	products, err := Retry(loadCtx, c.policy, "load visible products", func(ctx context.Context) ([]Product, error) {
		return c.store.ListProducts(ctx, ProductFilter{VisibleOnly: true})
	})
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.entry = nil
		}
		c.mu.Unlock()
		logger.Error("visible products load failed", "error", err)
		return nil, err
	}

	visible := make([]Product, 0, len(products))
	for _, p := range products {
		if p.IsVisible {
			visible = append(visible, p)
		}
	}

	entry := &cacheEntry{products: visible, fetchedAt: c.now()}

	c.mu.Lock()
	stored := c.gen == gen
	if stored {
		c.entry = entry
		c.stats.FetchedAt = entry.fetchedAt
	}
	c.mu.Unlock()

	logger.Debug("visible products loaded",
		"count", len(visible),
		"stored", stored,
		"duration_ms", c.now().Sub(start).Milliseconds(),
	)
	return entry, nil
}

// Invalidate drops the cached list. The next Visible call reloads.
func (c *ProductCache) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.gen++
	c.stats.Invalidations++
	c.stats.FetchedAt = time.Time{}
	c.mu.Unlock()
}

// Stats returns a snapshot of cache counters.
func (c *ProductCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Generation = c.gen
	return s
}
