// Package memory provides an in-process catalog store for development and
// tests. Data does not survive a restart.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/JonMunkholm/catalog/internal/core"
)

// ErrInjected is returned by operations after Fail has been called.
var ErrInjected = errors.New("memory store: injected failure")

// Store implements core.ProductStore, core.AdminStore and core.Pinger.
type Store struct {
	mu       sync.RWMutex
	products map[string]core.Product
	order    []string
	admins   map[string]struct{}
	failing  error
	now      func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		products: make(map[string]core.Product),
		admins:   make(map[string]struct{}),
		now:      time.Now,
	}
}

// Fail makes every subsequent call return err. Pass nil to recover.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = err
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failing
}

func (s *Store) ListProducts(ctx context.Context, filter core.ProductFilter) ([]core.Product, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Product, 0, len(s.order))
	for _, id := range s.order {
		p := s.products[id]
		if filter.VisibleOnly && !p.IsVisible {
			continue
		}
		out = append(out, clone(p))
	}
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (core.Product, error) {
	if err := s.check(ctx); err != nil {
		return core.Product{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return core.Product{}, fmt.Errorf("product %s: %w", id, core.ErrNotFound)
	}
	return clone(p), nil
}

// InsertProducts adds new products. A duplicate id rejects the whole call.
func (s *Store) InsertProducts(ctx context.Context, products []core.Product) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		if _, dup := s.products[p.ID]; dup || p.ID == "" {
			return fmt.Errorf("%w: duplicate or empty product id %q", core.ErrInvalidInput, p.ID)
		}
		if err := p.CheckRange(); err != nil {
			return err
		}
	}
	now := s.now()
	for _, p := range products {
		p = clone(p)
		p.CreatedAt, p.UpdatedAt = now, now
		s.products[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, p core.Product) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.products[p.ID]
	if !ok {
		return fmt.Errorf("product %s: %w", p.ID, core.ErrNotFound)
	}
	if err := p.CheckRange(); err != nil {
		return err
	}
	p = clone(p)
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = s.now()
	s.products[p.ID] = p
	return nil
}

func (s *Store) SetVisibility(ctx context.Context, id string, visible bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, core.ErrNotFound)
	}
	p.IsVisible = visible
	p.UpdatedAt = s.now()
	s.products[id] = p
	return nil
}

// UpsertProducts writes each product, inserting unknown ids at the end.
func (s *Store) UpsertProducts(ctx context.Context, products []core.Product) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		if err := p.CheckRange(); err != nil {
			return err
		}
	}
	now := s.now()
	for _, p := range products {
		p = clone(p)
		if cur, ok := s.products[p.ID]; ok {
			p.CreatedAt = cur.CreatedAt
		} else {
			p.CreatedAt = now
			s.order = append(s.order, p.ID)
		}
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	return nil
}

func (s *Store) ListAdminIDs(ctx context.Context) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.admins))
	for id := range s.admins {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) InsertAdmin(ctx context.Context, userID string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.admins[userID]; ok {
		return fmt.Errorf("%w: %s is already an admin", core.ErrInvalidInput, userID)
	}
	s.admins[userID] = struct{}{}
	return nil
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failing
}

func clone(p core.Product) core.Product {
	p.Tags = slices.Clone(p.Tags)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p
}
