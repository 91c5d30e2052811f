// Package memory provides the in-process store adapter. It is the default
// backend for embedded use and the reference the adapter tests are written
// against: every other adapter matches its query semantics.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/a2arium/memflow/internal/storage"
)

// Store keeps records in tenant-partitioned maps. All operations copy
// records on the way in and out, so callers can never alias stored state.
type Store struct {
	mu      sync.RWMutex
	tenants map[string]map[string]*storage.Record
}

var _ storage.Store = (*Store)(nil)

// New returns an empty in-process store.
func New() *Store {
	return &Store{tenants: make(map[string]map[string]*storage.Record)}
}

// Put creates or updates a record. The first write fixes CreatedAt;
// replacements keep it and refresh UpdatedAt.
func (s *Store) Put(ctx context.Context, rec *storage.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cp := rec.Clone()
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.tenants[cp.TenantID]
	if !ok {
		bucket = make(map[string]*storage.Record)
		s.tenants[cp.TenantID] = bucket
	}
	if prev, exists := bucket[cp.Key]; exists {
		cp.CreatedAt = prev.CreatedAt
	}
	bucket[cp.Key] = cp
	return nil
}

// Get retrieves one record.
func (s *Store) Get(ctx context.Context, tenantID, key string) (*storage.Record, error) {
	if tenantID == "" {
		return nil, storage.ErrMissingTenant
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tenants[tenantID][key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec.Clone(), nil
}

// Query filters one tenant's records. With a vector the results are ranked
// most-similar first (records without embeddings sort last); otherwise
// newest first.
func (s *Store) Query(ctx context.Context, q storage.Query) ([]*storage.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var matched []*storage.Record
	for _, rec := range s.tenants[q.TenantID] {
		if storage.MatchRecord(rec, q) {
			matched = append(matched, rec.Clone())
		}
	}
	s.mu.RUnlock()

	return storage.RankRecords(matched, q), nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, tenantID, key string) error {
	if tenantID == "" {
		return storage.ErrMissingTenant
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.tenants[tenantID]
	if !ok {
		return storage.ErrNotFound
	}
	if _, exists := bucket[key]; !exists {
		return storage.ErrNotFound
	}
	delete(bucket, key)
	return nil
}

// Close releases nothing; the store lives and dies with the process.
func (s *Store) Close() error {
	return nil
}

// Len reports the number of records for a tenant, for tests and
// diagnostics.
func (s *Store) Len(tenantID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants[tenantID])
}
