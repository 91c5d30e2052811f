// Package chromem provides a vector-indexed store adapter on chromem-go,
// an embedded pure-Go vector database. It backs the retrieval store,
// where every record carries an embedding and queries rank by similarity
// without leaving the process.
//
// chromem holds one collection per tenant and answers vector queries; a
// record mirror alongside it serves lookups, non-vector queries and
// deletes. Deleted records disappear from the mirror immediately, their
// vectors linger in the collection and are dropped at query time.
package chromem

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/a2arium/memflow/internal/logging"
	"github.com/a2arium/memflow/internal/storage"
)

// Store implements storage.Store on chromem-go.
type Store struct {
	db *chromem.DB

	mu   sync.RWMutex
	cols map[string]*chromem.Collection
	recs map[string]map[string]*storage.Record
	docs map[string]map[string]struct{} // keys ever written per tenant
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-process vector store.
func New() *Store {
	return &Store{
		db:   chromem.NewDB(),
		cols: make(map[string]*chromem.Collection),
		recs: make(map[string]map[string]*storage.Record),
		docs: make(map[string]map[string]struct{}),
	}
}

// getOrCreateCollection returns the tenant's collection, creating it on
// first use.
func (s *Store) getOrCreateCollection(tenantID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.cols[tenantID]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring the write lock.
	if col, ok := s.cols[tenantID]; ok {
		return col, nil
	}

	// nil embedding func: callers always provide embeddings.
	// nil distance func: default cosine similarity.
	col, err := s.db.CreateCollection("tenant_"+tenantID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection for tenant %s: %w", tenantID, err)
	}
	s.cols[tenantID] = col
	return col, nil
}

// Put upserts a record. Every record needs an embedding; writes without
// one fail with storage.ErrEmbeddingRequired.
func (s *Store) Put(ctx context.Context, rec *storage.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("record %s: %w", rec.Key, storage.ErrEmbeddingRequired)
	}

	col, err := s.getOrCreateCollection(rec.TenantID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	cp := rec.Clone()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	s.mu.RLock()
	if prev, ok := s.recs[rec.TenantID][cp.Key]; ok {
		cp.CreatedAt = prev.CreatedAt
	}
	s.mu.RUnlock()

	metadata := map[string]string{"created_at": cp.CreatedAt.Format(time.RFC3339Nano)}
	if cp.AgentID != "" {
		metadata["agent_id"] = cp.AgentID
	}

	// Same-ID adds overwrite the previous document.
	err = col.AddDocument(ctx, chromem.Document{
		ID:        cp.Key,
		Content:   cp.Value,
		Embedding: cp.Embedding,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("add document %s: %w", cp.Key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tenant := s.recs[rec.TenantID]
	if tenant == nil {
		tenant = make(map[string]*storage.Record)
		s.recs[rec.TenantID] = tenant
	}
	tenant[cp.Key] = cp

	keys := s.docs[rec.TenantID]
	if keys == nil {
		keys = make(map[string]struct{})
		s.docs[rec.TenantID] = keys
	}
	keys[cp.Key] = struct{}{}
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
	rec, ok := s.recs[tenantID][key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec.Clone(), nil
}

// Query answers vector queries through the tenant collection, in
// similarity order, and everything else from the mirror in the shared
// recency order.
func (s *Store) Query(ctx context.Context, q storage.Query) ([]*storage.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if len(q.Vector) == 0 {
		s.mu.RLock()
		var matched []*storage.Record
		for _, rec := range s.recs[q.TenantID] {
			if storage.MatchRecord(rec, q) {
				matched = append(matched, rec.Clone())
			}
		}
		s.mu.RUnlock()
		return storage.RankRecords(matched, q), nil
	}

	s.mu.RLock()
	col := s.cols[q.TenantID]
	want := len(s.docs[q.TenantID])
	s.mu.RUnlock()
	if col == nil || want == 0 {
		return nil, nil
	}

	// chromem rejects nResults above the collection size; the document
	// count tracks it, the retry guards against drift.
	var results []chromem.Result
	for ; want >= 1; want-- {
		var err error
		results, err = col.QueryEmbedding(ctx, q.Vector, want, nil, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if want == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("query collection for tenant %s: %w", q.TenantID, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*storage.Record
	for _, result := range results {
		rec, ok := s.recs[q.TenantID][result.ID]
		if !ok {
			// Deleted record whose vector is still in the collection.
			continue
		}
		if !storage.MatchRecord(rec, q) {
			continue
		}
		matched = append(matched, rec.Clone())
		if q.Limit > 0 && len(matched) == q.Limit {
			break
		}
	}
	return matched, nil
}

// Delete removes a record from the mirror. The collection keeps the
// vector until the process ends; queries no longer return it.
func (s *Store) Delete(ctx context.Context, tenantID, key string) error {
	if tenantID == "" {
		return storage.ErrMissingTenant
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tenant := s.recs[tenantID]
	if _, ok := tenant[key]; !ok {
		return storage.ErrNotFound
	}
	delete(tenant, key)
	logging.Debug("[Chromem] deleted record %s, vector retained until restart", key)
	return nil
}

// Close releases nothing; the database lives in process memory.
func (s *Store) Close() error {
	return nil
}

func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
