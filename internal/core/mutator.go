package core

// mutator.go applies catalog writes and keeps the visible-products cache
// coherent. Every operation invalidates the cache only after the store
// accepted the write.
//
// Reads and absolute-value writes (update, visibility, upsert) are retried.
// Inserts are not: a retried insert after a lost response would duplicate rows.

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/catalog/internal/logging"
)

var (
	adminIDPattern = regexp.MustCompile(`^\d+$`)
	hundred        = decimal.NewFromInt(100)
)

// CatalogMutator performs product and admin writes.
type CatalogMutator struct {
	products ProductStore
	admins   AdminStore
	cache    Invalidator
	policy   RetryPolicy
}

// NewCatalogMutator wires the mutator. cache may be nil in tools that run
// without a read cache.
func NewCatalogMutator(products ProductStore, admins AdminStore, cache Invalidator, policy RetryPolicy) *CatalogMutator {
	return &CatalogMutator{
		products: products,
		admins:   admins,
		cache:    cache,
		policy:   policy,
	}
}

// UpdateProduct merges patch into the stored product. Fields absent from the
// patch keep their current values.
func (m *CatalogMutator) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, invalidf("product id is required")
	}
	if err := validatePatch(patch); err != nil {
		return Product{}, err
	}

	existing, err := m.getProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}

	updated := patch.Apply(existing)
	err = RetryDo(ctx, m.policy, "update product", func(ctx context.Context) error {
		return m.products.UpdateProduct(ctx, updated)
	})
	if err != nil {
		return Product{}, fmt.Errorf("update product %s: %w", id, err)
	}

	m.invalidate()
	logging.FromContext(ctx).Info("product updated", "product_id", id)
	return updated, nil
}

// BulkAdjustPrice rewrites the price of every product and returns how many
// were written. A failure part-way through can leave some prices updated;
// the error then wraps ErrUpstreamUnavailable and no count is guaranteed.
func (m *CatalogMutator) BulkAdjustPrice(ctx context.Context, mode PriceMode, value decimal.Decimal) (int, error) {
	if _, ok := ParsePriceMode(string(mode)); !ok {
		return 0, invalidf("unknown price mode %q", mode)
	}

	all, err := m.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(all) == 0 {
		return 0, nil
	}

	for i := range all {
		all[i].Price = AdjustPrice(all[i].Price, mode, value)
		if !PriceInRange(all[i].Price) {
			return 0, invalidf("adjusted price %s of product %s is too large", all[i].Price, all[i].ID)
		}
	}

	err = RetryDo(ctx, m.policy, "upsert prices", func(ctx context.Context) error {
		return m.products.UpsertProducts(ctx, all)
	})
	if err != nil {
		return 0, fmt.Errorf("bulk price update: %w", err)
	}

	m.invalidate()
	logging.FromContext(ctx).Info("prices adjusted",
		"mode", string(mode),
		"value", value.String(),
		"products", len(all),
	)
	return len(all), nil
}

// AdjustPrice computes a new price. Percent mode multiplies by (1 + value/100),
// fixed mode adds value. Results are rounded to cents and never negative.
func AdjustPrice(price decimal.Decimal, mode PriceMode, value decimal.Decimal) decimal.Decimal {
	var next decimal.Decimal
	switch mode {
	case PricePercent:
		next = price.Mul(decimal.NewFromInt(1).Add(value.Div(hundred)))
	case PriceFixed:
		next = price.Add(value)
	default:
		return price
	}
	next = next.Round(2)
	if next.IsNegative() {
		return decimal.Zero
	}
	return next
}

// SetVisibility publishes or hides a product.
func (m *CatalogMutator) SetVisibility(ctx context.Context, id string, visible bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return invalidf("product id is required")
	}
	if _, err := m.getProduct(ctx, id); err != nil {
		return err
	}

	err := RetryDo(ctx, m.policy, "set visibility", func(ctx context.Context) error {
		return m.products.SetVisibility(ctx, id, visible)
	})
	if err != nil {
		return fmt.Errorf("set visibility of %s: %w", id, err)
	}

	m.invalidate()
	logging.FromContext(ctx).Info("product visibility changed", "product_id", id, "visible", visible)
	return nil
}

// AddAdmin grants admin capability to a numeric platform user id.
// Duplicates are left to the store.
func (m *CatalogMutator) AddAdmin(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if !adminIDPattern.MatchString(userID) {
		return invalidf("admin id must be numeric, got %q", userID)
	}
	if err := m.admins.InsertAdmin(ctx, userID); err != nil {
		return fmt.Errorf("add admin %s: %w", userID, err)
	}
	logging.FromContext(ctx).Info("admin added", "user_id", userID)
	return nil
}

// ImportProducts persists freshly ingested products.
func (m *CatalogMutator) ImportProducts(ctx context.Context, products []Product) error {
	if len(products) == 0 {
		return nil
	}
	if err := m.products.InsertProducts(ctx, products); err != nil {
		return fmt.Errorf("insert %d products: %w", len(products), err)
	}
	m.invalidate()
	return nil
}

// ListAll returns every product, visible or not, bypassing the cache.
func (m *CatalogMutator) ListAll(ctx context.Context) ([]Product, error) {
	return Retry(ctx, m.policy, "list products", func(ctx context.Context) ([]Product, error) {
		return m.products.ListProducts(ctx, ProductFilter{})
	})
}

func (m *CatalogMutator) getProduct(ctx context.Context, id string) (Product, error) {
	return Retry(ctx, m.policy, "get product", func(ctx context.Context) (Product, error) {
		return m.products.GetProduct(ctx, id)
	})
}

func (m *CatalogMutator) invalidate() {
	if m.cache != nil {
		m.cache.Invalidate()
	}
}

func validatePatch(p ProductPatch) error {
	if p.IsEmpty() {
		return invalidf("patch has no fields")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return invalidf("name must not be empty")
	}
	if p.Price != nil && p.Price.IsNegative() {
		return invalidf("price must not be negative")
	}
	if p.Price != nil && !PriceInRange(*p.Price) {
		return invalidf("price %s is too large", *p.Price)
	}
	if p.Stock != nil && *p.Stock < 0 {
		return invalidf("stock must not be negative")
	}
	if p.Stock != nil && *p.Stock > MaxStock {
		return invalidf("stock %d exceeds %d", *p.Stock, MaxStock)
	}
	return nil
}
