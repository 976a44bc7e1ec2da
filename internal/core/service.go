package core

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/catalog/internal/logging"
)

// DefaultImportTimeout is the maximum duration for a single import.
const DefaultImportTimeout = 10 * time.Minute

// ServiceDeps wires a Service. Fetcher and Pinger are optional.
type ServiceDeps struct {
	Resolver *AuthorizationResolver
	Cache    *ProductCache
	Mutator  *CatalogMutator
	Limiter  *ImportLimiter
	Fetcher  DocumentFetcher
	Pinger   Pinger
	Retry    RetryPolicy

	ImportTimeout time.Duration
}

// Service is the entry point used by every transport. All admin operations
// are authorized here, so a transport cannot skip the check.
type Service struct {
	resolver      *AuthorizationResolver
	cache         *ProductCache
	mutator       *CatalogMutator
	limiter       *ImportLimiter
	fetcher       DocumentFetcher
	pinger        Pinger
	retry         RetryPolicy
	importTimeout time.Duration
}

// NewService creates a new Service instance.
func NewService(deps ServiceDeps) *Service {
	s := &Service{
		resolver:      deps.Resolver,
		cache:         deps.Cache,
		mutator:       deps.Mutator,
		limiter:       deps.Limiter,
		fetcher:       deps.Fetcher,
		pinger:        deps.Pinger,
		retry:         deps.Retry,
		importTimeout: deps.ImportTimeout,
	}
	if s.limiter == nil {
		s.limiter = NewImportLimiter(DefaultMaxConcurrentImports, DefaultMaxWaitTime)
	}
	if s.importTimeout <= 0 {
		s.importTimeout = DefaultImportTimeout
	}
	return s
}

// VisibleProducts returns the published catalog. No authorization.
func (s *Service) VisibleProducts(ctx context.Context) ([]Product, error) {
	return s.cache.Visible(ctx)
}

// AdminStatus reports whether callerID is an admin and whether the check was degraded.
func (s *Service) AdminStatus(ctx context.Context, callerID string) AuthDecision {
	return s.resolver.Check(ctx, callerID)
}

// ListProducts returns every product, hidden ones included.
func (s *Service) ListProducts(ctx context.Context, callerID string) ([]Product, error) {
	if err := s.authorize(ctx, callerID, "list products"); err != nil {
		return nil, err
	}
	return s.mutator.ListAll(ctx)
}

// ImportDocument fetches a document by reference and imports it.
func (s *Service) ImportDocument(ctx context.Context, callerID, ref string, opts ...IngestOption) (ImportResult, error) {
	if err := s.authorize(ctx, callerID, "import"); err != nil {
		return ImportResult{}, err
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ImportResult{}, invalidf("document reference is required")
	}
	if s.fetcher == nil {
		return ImportResult{}, invalidf("document fetching is not configured")
	}

	return s.runImport(ctx, ref, func(ctx context.Context) (io.ReadCloser, error) {
		return Retry(ctx, s.retry, "fetch document", func(ctx context.Context) (io.ReadCloser, error) {
			return s.fetcher.Fetch(ctx, ref)
		})
	}, opts)
}

// ImportReader imports an upload that is already in hand. source names it in
// logs and results.
func (s *Service) ImportReader(ctx context.Context, callerID, source string, r io.Reader, opts ...IngestOption) (ImportResult, error) {
	if err := s.authorize(ctx, callerID, "import"); err != nil {
		return ImportResult{}, err
	}
	return s.runImport(ctx, source, func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	}, opts)
}

func (s *Service) runImport(ctx context.Context, source string, open func(context.Context) (io.ReadCloser, error), opts []IngestOption) (ImportResult, error) {
	start := time.Now()
	result := ImportResult{ImportID: uuid.NewString(), Source: source}
	logger := logging.WithFields(ctx, "import_id", result.ImportID, "source", source)

	if err := s.limiter.Acquire(ctx); err != nil {
		logger.Warn("import rejected", "error", err)
		return result, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.importTimeout)
	defer cancel()

	rc, err := open(ctx)
	if err != nil {
		logger.Error("import source unavailable", "error", err)
		return result, err
	}
	defer rc.Close()

	reader := Ingest(rc, append([]IngestOption{WithLogger(logger)}, opts...)...)
	products, err := reader.ReadAll(ctx)
	if err != nil {
		logger.Error("import failed", "error", err)
		return result, err
	}

	stats := reader.Stats()
	for _, f := range stats.Columns {
		result.Columns = append(result.Columns, string(f))
	}
	result.Degraded = stats.Degraded

	if len(products) == 0 {
		result.Empty = true
		result.Duration = time.Since(start)
		logger.Warn("import contained no data rows", "format", string(stats.Format))
		return result, nil
	}

	if err := s.mutator.ImportProducts(ctx, products); err != nil {
		logger.Error("import write failed", "rows", len(products), "error", err)
		return result, err
	}

	result.Inserted = len(products)
	result.ProductIDs = make([]string, len(products))
	for i, p := range products {
		result.ProductIDs[i] = p.ID
	}
	result.Duration = time.Since(start)

	logger.Info("import completed",
		"format", string(stats.Format),
		"inserted", result.Inserted,
		"degraded_rows", result.Degraded,
		"skipped_rows", stats.Skipped,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// UpdateProduct applies a merge-patch to one product.
func (s *Service) UpdateProduct(ctx context.Context, callerID, id string, patch ProductPatch) (Product, error) {
	if err := s.authorize(ctx, callerID, "update product"); err != nil {
		return Product{}, err
	}
	return s.mutator.UpdateProduct(ctx, id, patch)
}

// SetVisibility publishes or hides one product.
func (s *Service) SetVisibility(ctx context.Context, callerID, id string, visible bool) error {
	if err := s.authorize(ctx, callerID, "set visibility"); err != nil {
		return err
	}
	return s.mutator.SetVisibility(ctx, id, visible)
}

// BulkAdjustPrice changes every product's price.
func (s *Service) BulkAdjustPrice(ctx context.Context, callerID string, mode PriceMode, value decimal.Decimal) (int, error) {
	if err := s.authorize(ctx, callerID, "bulk price update"); err != nil {
		return 0, err
	}
	return s.mutator.BulkAdjustPrice(ctx, mode, value)
}

// AddAdmin grants admin capability to userID.
func (s *Service) AddAdmin(ctx context.Context, callerID, userID string) error {
	if err := s.authorize(ctx, callerID, "add admin"); err != nil {
		return err
	}
	return s.mutator.AddAdmin(ctx, userID)
}

// Ping checks store connectivity. Without a pinger it always succeeds.
func (s *Service) Ping(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	if err := s.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return nil
}

// HealthStatus is reported by the health endpoint.
type HealthStatus struct {
	Store   string              `json:"store"`
	Cache   CacheStats          `json:"cache"`
	Imports ImportLimiterStatus `json:"imports"`
}

// Health combines connectivity with cache and import counters.
func (s *Service) Health(ctx context.Context) (HealthStatus, error) {
	h := HealthStatus{
		Store:   "ok",
		Cache:   s.cache.Stats(),
		Imports: s.limiter.Status(),
	}
	err := s.Ping(ctx)
	if err != nil {
		h.Store = "unavailable"
	}
	return h, err
}

// Drain waits for in-flight imports to finish.
func (s *Service) Drain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Invalidate drops the visible-products cache.
func (s *Service) Invalidate() {
	s.cache.Invalidate()
}

func (s *Service) authorize(ctx context.Context, callerID, op string) error {
	d := s.resolver.Check(ctx, callerID)
	if d.Admin {
		return nil
	}
	logging.FromContext(logging.ContextWithCaller(ctx, callerID)).Warn("permission denied",
		"operation", op,
		"degraded", d.Degraded,
	)
	if d.Degraded {
		return fmt.Errorf("%w: %s (admin check unavailable)", ErrPermissionDenied, op)
	}
	return fmt.Errorf("%w: %s", ErrPermissionDenied, op)
}
