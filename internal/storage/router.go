package storage

import (
	"fmt"

	"github.com/a2arium/memflow/pkg/types"
)

// Router resolves store kinds to adapters. The mapping is total: building
// a Router fails unless every kind has an adapter. One adapter instance
// may serve several kinds.
type Router struct {
	stores map[types.StoreKind]Store
}

// NewRouter builds a router over the given kind assignment.
func NewRouter(stores map[types.StoreKind]Store) (*Router, error) {
	assigned := make(map[types.StoreKind]Store, len(types.AllStoreKinds()))
	for _, kind := range types.AllStoreKinds() {
		s, ok := stores[kind]
		if !ok || s == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingStore, kind)
		}
		assigned[kind] = s
	}
	return &Router{stores: assigned}, nil
}

// NewSingleStoreRouter routes every kind to one adapter. This is the
// default wiring for embedded use and tests.
func NewSingleStoreRouter(s Store) *Router {
	stores := make(map[types.StoreKind]Store, len(types.AllStoreKinds()))
	for _, kind := range types.AllStoreKinds() {
		stores[kind] = s
	}
	return &Router{stores: stores}
}

// For returns the adapter serving a store kind.
func (r *Router) For(kind types.StoreKind) Store {
	return r.stores[kind]
}

// ForIntent returns the adapter that items with the given intent are
// persisted to.
func (r *Router) ForIntent(intent types.Intent) Store {
	return r.stores[intent.StoreKind()]
}

// Close closes every distinct adapter once and returns the first error.
func (r *Router) Close() error {
	var first error
	seen := make(map[Store]bool, len(r.stores))
	for _, kind := range types.AllStoreKinds() {
		s := r.stores[kind]
		if s == nil || seen[s] {
			continue
		}
		seen[s] = true
		if err := s.Close(); err != nil && first == nil {
			first = fmt.Errorf("close %s store: %w", kind, err)
		}
	}
	return first
}
