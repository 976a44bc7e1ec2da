package core

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestMutator(store *fakeStore) (*CatalogMutator, *countingInvalidator) {
	inv := &countingInvalidator{}
	return NewCatalogMutator(store, store, inv, fastRetry), inv
}

func ptr[T any](v T) *T { return &v }

func TestCatalogMutator_UpdateProductMergesPatch(t *testing.T) {
	original := Product{
		ID:          "p1",
		Name:        "Подушка",
		Price:       decimal.NewFromInt(999),
		Description: "Пух",
		ImageURL:    "https://cdn.example/1.jpg",
		Category:    "Текстиль",
		Stock:       5,
		Tags:        []string{"хит", "новинка"},
		IsVisible:   true,
	}
	store := newFakeStore(original)
	m, inv := newTestMutator(store)

	price := decimal.RequireFromString("1099.50")
	got, err := m.UpdateProduct(context.Background(), "p1", ProductPatch{Price: &price})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}

	want := original
	want.Price = price
	if !reflect.DeepEqual(got, want) {
		t.Errorf("returned %+v, want %+v", got, want)
	}
	if stored := store.get("p1"); !reflect.DeepEqual(stored, want) {
		t.Errorf("stored %+v, want %+v", stored, want)
	}
	if inv.n.Load() != 1 {
		t.Errorf("cache invalidated %d times, want 1", inv.n.Load())
	}
}

func TestCatalogMutator_UpdateProductErrors(t *testing.T) {
	store := newFakeStore(Product{ID: "p1", Name: "A"})
	m, inv := newTestMutator(store)
	ctx := context.Background()

	tests := []struct {
		name  string
		id    string
		patch ProductPatch
		want  error
	}{
		{"missing product", "nope", ProductPatch{Name: ptr("B")}, ErrNotFound},
		{"empty id", " ", ProductPatch{Name: ptr("B")}, ErrInvalidInput},
		{"empty patch", "p1", ProductPatch{}, ErrInvalidInput},
		{"blank name", "p1", ProductPatch{Name: ptr("  ")}, ErrInvalidInput},
		{"negative stock", "p1", ProductPatch{Stock: ptr(-1)}, ErrInvalidInput},
		{"negative price", "p1", ProductPatch{Price: ptr(decimal.NewFromInt(-1))}, ErrInvalidInput},
		{"stock too large", "p1", ProductPatch{Stock: ptr(5_000_000_000)}, ErrInvalidInput},
		{"price too large", "p1", ProductPatch{Price: ptr(decimal.New(1, 12))}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.UpdateProduct(ctx, tt.id, tt.patch)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
	if inv.n.Load() != 0 {
		t.Error("failed updates must not invalidate the cache")
	}
}

func TestAdjustPrice(t *testing.T) {
	tests := []struct {
		name  string
		price string
		mode  PriceMode
		value string
		want  string
	}{
		{"percent increase", "100", PricePercent, "10", "110"},
		{"percent decrease", "999", PricePercent, "-15", "849.15"},
		{"percent rounds to cents", "0.99", PricePercent, "33", "1.32"},
		{"fixed increase", "100", PriceFixed, "49.90", "149.9"},
		{"fixed decrease clamps at zero", "30", PriceFixed, "-50", "0"},
		{"percent -100", "250", PricePercent, "-100", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdjustPrice(decimal.RequireFromString(tt.price), tt.mode, decimal.RequireFromString(tt.value))
			if got.String() != tt.want {
				t.Errorf("AdjustPrice(%s, %s, %s) = %s, want %s", tt.price, tt.mode, tt.value, got, tt.want)
			}
		})
	}
}

func TestCatalogMutator_BulkAdjustPrice(t *testing.T) {
	store := newFakeStore(
		Product{ID: "p1", Name: "A", Price: decimal.NewFromInt(100), IsVisible: true},
		Product{ID: "p2", Name: "B", Price: decimal.NewFromInt(200)},
	)
	m, inv := newTestMutator(store)

	n, err := m.BulkAdjustPrice(context.Background(), PricePercent, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("BulkAdjustPrice: %v", err)
	}
	if n != 2 {
		t.Errorf("updated %d products, want 2", n)
	}
	if got := store.get("p1").Price.String(); got != "110" {
		t.Errorf("p1 price = %s, want 110", got)
	}
	if got := store.get("p2").Price.String(); got != "220" {
		t.Errorf("p2 price = %s, want 220", got)
	}
	if !store.get("p1").IsVisible || store.get("p2").IsVisible {
		t.Error("bulk price update must not change visibility")
	}
	if inv.n.Load() != 1 {
		t.Errorf("cache invalidated %d times, want 1", inv.n.Load())
	}
}

func TestCatalogMutator_BulkAdjustPriceFailure(t *testing.T) {
	store := newFakeStore(Product{ID: "p1", Price: decimal.NewFromInt(100)})
	store.failUpsert.Store(true)
	m, inv := newTestMutator(store)

	_, err := m.BulkAdjustPrice(context.Background(), PriceFixed, decimal.NewFromInt(5))
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("got %v, want ErrUpstreamUnavailable", err)
	}
	if inv.n.Load() != 0 {
		t.Error("failed bulk update must not invalidate the cache")
	}

	if _, err := m.BulkAdjustPrice(context.Background(), PriceMode("double"), decimal.NewFromInt(1)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown mode: got %v, want ErrInvalidInput", err)
	}
}

func TestCatalogMutator_BulkAdjustPriceOutOfRange(t *testing.T) {
	store := newFakeStore(
		Product{ID: "p1", Price: decimal.NewFromInt(100)},
		Product{ID: "p2", Price: decimal.RequireFromString("999999999999")},
	)
	m, inv := newTestMutator(store)

	_, err := m.BulkAdjustPrice(context.Background(), PricePercent, decimal.NewFromInt(10))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
	if got := store.get("p1").Price.String(); got != "100" {
		t.Errorf("p1 price = %s, want unchanged 100", got)
	}
	if inv.n.Load() != 0 {
		t.Error("rejected bulk update must not invalidate the cache")
	}
}

func TestCatalogMutator_SetVisibility(t *testing.T) {
	store := newFakeStore(Product{ID: "p1", Name: "A"})
	m, inv := newTestMutator(store)
	ctx := context.Background()

	if err := m.SetVisibility(ctx, "p1", true); err != nil {
		t.Fatalf("SetVisibility: %v", err)
	}
	if !store.get("p1").IsVisible {
		t.Error("product not published")
	}
	if inv.n.Load() != 1 {
		t.Errorf("cache invalidated %d times, want 1", inv.n.Load())
	}

	if err := m.SetVisibility(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if inv.n.Load() != 1 {
		t.Error("failed visibility change must not invalidate the cache")
	}
}

func TestCatalogMutator_AddAdmin(t *testing.T) {
	store := newFakeStore()
	m, _ := newTestMutator(store)
	ctx := context.Background()

	if err := m.AddAdmin(ctx, " 123456789 "); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}
	if !reflect.DeepEqual(store.admins, []string{"123456789"}) {
		t.Errorf("admins = %v", store.admins)
	}

	for _, bad := range []string{"", "abc", "12a", "-5", "1.5"} {
		if err := m.AddAdmin(ctx, bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("AddAdmin(%q) = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestCatalogMutator_ImportProducts(t *testing.T) {
	store := newFakeStore()
	m, inv := newTestMutator(store)
	ctx := context.Background()

	if err := m.ImportProducts(ctx, nil); err != nil {
		t.Fatalf("empty import: %v", err)
	}
	if inv.n.Load() != 0 {
		t.Error("empty import must not invalidate")
	}

	err := m.ImportProducts(ctx, []Product{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}})
	if err != nil {
		t.Fatalf("ImportProducts: %v", err)
	}
	all, err := m.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("stored %d products, want 2", len(all))
	}
	if inv.n.Load() != 1 {
		t.Errorf("cache invalidated %d times, want 1", inv.n.Load())
	}
}

func TestCatalogMutator_WritesInvalidateRealCache(t *testing.T) {
	store := newFakeStore(Product{ID: "p1", Name: "A", Price: decimal.NewFromInt(100)})
	cache := NewProductCache(store, WithRetryPolicy(fastRetry))
	m := NewCatalogMutator(store, store, cache, fastRetry)
	ctx := context.Background()

	visible, _ := cache.Visible(ctx)
	if len(visible) != 0 {
		t.Fatalf("got %d visible products before publishing", len(visible))
	}

	if err := m.SetVisibility(ctx, "p1", true); err != nil {
		t.Fatal(err)
	}
	visible, _ = cache.Visible(ctx)
	if len(visible) != 1 {
		t.Fatalf("published product not visible after invalidation")
	}

	if _, err := m.BulkAdjustPrice(ctx, PricePercent, decimal.NewFromInt(10)); err != nil {
		t.Fatal(err)
	}
	visible, _ = cache.Visible(ctx)
	if got := visible[0].Price.String(); got != "110" {
		t.Errorf("cached price = %s, want 110", got)
	}

	// One load per generation: initial, after publish, after the bulk update.
	// BulkAdjustPrice itself lists once more.
	listsForVisible := store.listCalls.Load() - 1
	if listsForVisible != 3 {
		t.Errorf("visible loads = %d, want 3", listsForVisible)
	}
}
