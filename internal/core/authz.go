package core

// authz.go resolves whether a caller has administrative capability.
//
// Resolution walks an ordered list of strategies and stops at the first
// Matched. The static allow-list comes first: it needs no I/O and keeps
// working when the store is down. The persisted admins table follows, read
// through Retry.
//
// The resolver fails closed. If any strategy was Unavailable and none
// matched, the caller is treated as a non-admin and the degradation is logged
// so operators can tell it apart from a confirmed non-admin.

import (
	"context"
	"strings"

	"github.com/JonMunkholm/catalog/internal/logging"
)

// AuthOutcome is the result of a single strategy.
type AuthOutcome int

const (
	NotMatched AuthOutcome = iota
	Matched
	Unavailable
)

func (o AuthOutcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Unavailable:
		return "unavailable"
	default:
		return "not_matched"
	}
}

// AuthStrategy is one named source of admin identities.
type AuthStrategy interface {
	Name() string
	Resolve(ctx context.Context, callerID string) (AuthOutcome, error)
}

// AuthDecision is the full outcome of a check.
type AuthDecision struct {
	Admin    bool   `json:"admin"`
	Degraded bool   `json:"degraded"`
	Source   string `json:"source,omitempty"`
}

// AuthorizationResolver evaluates strategies in order.
type AuthorizationResolver struct {
	strategies []AuthStrategy
}

// NewAuthorizationResolver creates a resolver over the given strategies.
func NewAuthorizationResolver(strategies ...AuthStrategy) *AuthorizationResolver {
	return &AuthorizationResolver{strategies: strategies}
}

// Check runs the strategies and reports what was decided and why.
func (r *AuthorizationResolver) Check(ctx context.Context, callerID string) AuthDecision {
	id := normalizeIdentity(callerID)
	if id == "" {
		return AuthDecision{}
	}

	var decision AuthDecision
	for _, s := range r.strategies {
		outcome, err := s.Resolve(ctx, id)
		switch outcome {
		case Matched:
			return AuthDecision{Admin: true, Source: s.Name(), Degraded: decision.Degraded}
		case Unavailable:
			decision.Degraded = true
			logging.FromContext(logging.ContextWithCaller(ctx, id)).Error("admin check degraded, failing closed",
				"strategy", s.Name(),
				"error", err,
			)
		}
	}
	return decision
}

// IsAdmin reports whether callerID is an administrator. It never returns an
// error; an unavailable source counts as "not an admin".
func (r *AuthorizationResolver) IsAdmin(ctx context.Context, callerID string) bool {
	return r.Check(ctx, callerID).Admin
}

// AllowListStrategy matches identities from static configuration.
type AllowListStrategy struct {
	ids map[string]struct{}
}

// NewAllowListStrategy builds the static allow-list.
func NewAllowListStrategy(ids []string) *AllowListStrategy {
	s := &AllowListStrategy{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if n := normalizeIdentity(id); n != "" {
			s.ids[n] = struct{}{}
		}
	}
	return s
}

func (s *AllowListStrategy) Name() string { return "allow_list" }

func (s *AllowListStrategy) Resolve(_ context.Context, callerID string) (AuthOutcome, error) {
	if _, ok := s.ids[normalizeIdentity(callerID)]; ok {
		return Matched, nil
	}
	return NotMatched, nil
}

// Len returns the number of statically configured admins.
func (s *AllowListStrategy) Len() int { return len(s.ids) }

// StoreStrategy matches identities from the persisted admins table.
type StoreStrategy struct {
	store  AdminStore
	policy RetryPolicy
}

// NewStoreStrategy reads admins from store using the retry policy.
func NewStoreStrategy(store AdminStore, policy RetryPolicy) *StoreStrategy {
	return &StoreStrategy{store: store, policy: policy}
}

func (s *StoreStrategy) Name() string { return "admin_store" }

func (s *StoreStrategy) Resolve(ctx context.Context, callerID string) (AuthOutcome, error) {
	ids, err := Retry(ctx, s.policy, "list admins", s.store.ListAdminIDs)
	if err != nil {
		return Unavailable, err
	}

	want := normalizeIdentity(callerID)
	for _, id := range ids {
		if normalizeIdentity(id) == want {
			return Matched, nil
		}
	}
	return NotMatched, nil
}

func normalizeIdentity(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
