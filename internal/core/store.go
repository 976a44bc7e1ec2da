package core

// store.go declares the collaborators the core consumes. Implementations live
// in internal/store (Postgres, in-memory) and internal/fetch.

import (
	"context"
	"io"
)

// ProductFilter narrows ListProducts.
type ProductFilter struct {
	VisibleOnly bool
}

// ProductStore persists products. GetProduct, UpdateProduct and SetVisibility
// return an error wrapping ErrNotFound when the id is absent.
type ProductStore interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	InsertProducts(ctx context.Context, products []Product) error
	UpdateProduct(ctx context.Context, p Product) error
	SetVisibility(ctx context.Context, id string, visible bool) error
	UpsertProducts(ctx context.Context, products []Product) error
}

// AdminStore persists admin identities. Membership is additive only.
type AdminStore interface {
	ListAdminIDs(ctx context.Context) ([]string, error)
	InsertAdmin(ctx context.Context, userID string) error
}

// Pinger reports store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DocumentFetcher resolves a document reference to its raw bytes.
// A missing document is reported as ErrNotFound.
type DocumentFetcher interface {
	Fetch(ctx context.Context, ref string) (io.ReadCloser, error)
}

// Invalidator is anything that can drop cached catalog state.
type Invalidator interface {
	Invalidate()
}
