package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var errFlaky = errors.New("connection reset by peer")

// fastRetry keeps retry tests in the millisecond range.
var fastRetry = RetryPolicy{
	MaxAttempts:   3,
	BackoffFactor: 2,
	MinDelay:      time.Millisecond,
	MaxDelay:      2 * time.Millisecond,
}

// fakeStore is an in-memory ProductStore and AdminStore with call counters
// and failure injection.
type fakeStore struct {
	mu       sync.Mutex
	products map[string]Product
	order    []string
	admins   []string

	listCalls  atomic.Int32
	adminCalls atomic.Int32

	// failList makes the next n ListProducts calls fail.
	failList atomic.Int32
	// adminsDown makes every ListAdminIDs call fail.
	adminsDown atomic.Bool
	// failUpsert makes UpsertProducts fail.
	failUpsert atomic.Bool

	// listGate, when set, blocks ListProducts until closed.
	listGate chan struct{}
}

func newFakeStore(products ...Product) *fakeStore {
	s := &fakeStore{products: make(map[string]Product)}
	for _, p := range products {
		s.products[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	return s
}

func (s *fakeStore) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	s.listCalls.Add(1)
	if s.listGate != nil {
		select {
		case <-s.listGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.failList.Load() > 0 {
		s.failList.Add(-1)
		return nil, errFlaky
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Product, 0, len(s.order))
	for _, id := range s.order {
		p := s.products[id]
		if f.VisibleOnly && !p.IsVisible {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) GetProduct(_ context.Context, id string) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *fakeStore) InsertProducts(_ context.Context, products []Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		if _, dup := s.products[p.ID]; dup {
			return fmt.Errorf("duplicate id %s", p.ID)
		}
		s.products[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	return nil
}

func (s *fakeStore) UpdateProduct(_ context.Context, p Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return fmt.Errorf("product %s: %w", p.ID, ErrNotFound)
	}
	s.products[p.ID] = p
	return nil
}

func (s *fakeStore) SetVisibility(_ context.Context, id string, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	p.IsVisible = visible
	s.products[id] = p
	return nil
}

func (s *fakeStore) UpsertProducts(_ context.Context, products []Product) error {
	if s.failUpsert.Load() {
		return errFlaky
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		if _, ok := s.products[p.ID]; !ok {
			s.order = append(s.order, p.ID)
		}
		s.products[p.ID] = p
	}
	return nil
}

func (s *fakeStore) ListAdminIDs(context.Context) ([]string, error) {
	s.adminCalls.Add(1)
	if s.adminsDown.Load() {
		return nil, errFlaky
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.admins...), nil
}

func (s *fakeStore) InsertAdmin(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins = append(s.admins, id)
	sort.Strings(s.admins)
	return nil
}

func (s *fakeStore) get(id string) Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

// countingInvalidator records Invalidate calls.
type countingInvalidator struct{ n atomic.Int32 }

func (c *countingInvalidator) Invalidate() { c.n.Add(1) }
