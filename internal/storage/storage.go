// Package storage provides the persistence contract for the memory
// lifecycle system.
//
// A Store holds tenant-scoped records behind a small CRUD+query surface;
// adapters exist for in-process maps, Redis, SQLite, Postgres and a local
// vector database. The Router maps every store kind to one adapter so the
// orchestrator never picks backends itself.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/a2arium/memflow/pkg/types"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrMissingTenant indicates a record or query without a tenant id.
	ErrMissingTenant = errors.New("tenant id required")

	// ErrEmbeddingRequired indicates a vector-indexed store was handed a
	// record without an embedding.
	ErrEmbeddingRequired = errors.New("record requires an embedding")

	// ErrMissingStore indicates a Router was built without an adapter
	// for some store kind.
	ErrMissingStore = errors.New("no store registered for kind")
)

// Record is the persisted form of a processed memory item or a working
// memory entry. Records are keyed by (TenantID, Key); writing the same
// pair again replaces the previous version.
type Record struct {
	TenantID    string         `json:"tenant_id"`
	AgentID     string         `json:"agent_id,omitempty"`
	Key         string         `json:"key"`
	Value       string         `json:"value"`
	DataType    types.DataType `json:"data_type,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Embedding   []float32      `json:"embedding,omitempty"`
	Annotations map[string]any `json:"annotations,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := *r
	if r.Tags != nil {
		cp.Tags = append([]string(nil), r.Tags...)
	}
	if r.Embedding != nil {
		cp.Embedding = append([]float32(nil), r.Embedding...)
	}
	if r.Annotations != nil {
		cp.Annotations = make(map[string]any, len(r.Annotations))
		for k, v := range r.Annotations {
			cp.Annotations[k] = v
		}
	}
	return &cp
}

// Validate checks the fields every adapter relies on.
func (r *Record) Validate() error {
	if r == nil {
		return errors.New("nil record")
	}
	if r.TenantID == "" {
		return ErrMissingTenant
	}
	if r.Key == "" {
		return errors.New("record key required")
	}
	return nil
}

// Query selects records within one tenant. Zero-value fields do not
// filter. KeyPattern uses glob syntax ("thought:agent-1:*"); Tags must all
// be present on a matching record; Since compares against CreatedAt.
//
// When Vector is set and the adapter can rank by similarity, results come
// back most-similar first. Adapters without vector support apply the
// remaining filters and order by recency; they never fail just because a
// vector was provided.
type Query struct {
	TenantID   string
	AgentID    string
	KeyPattern string
	Tags       []string
	Text       string
	Vector     []float32
	Limit      int
	Since      time.Time
}

// Validate checks the query can be executed at all.
func (q Query) Validate() error {
	if q.TenantID == "" {
		return ErrMissingTenant
	}
	return nil
}

// Store is the persistence adapter contract. Implementations are safe for
// concurrent use.
type Store interface {
	// Put creates or updates a record (upsert by tenant and key).
	Put(ctx context.Context, rec *Record) error

	// Get retrieves one record. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, tenantID, key string) (*Record, error)

	// Query returns the records matching q, newest first unless the
	// adapter ranked them by vector similarity.
	Query(ctx context.Context, q Query) ([]*Record, error)

	// Delete removes a record. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, tenantID, key string) error

	// Close releases any resources held by the store.
	Close() error
}
