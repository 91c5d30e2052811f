// Package sqlite provides the SQLite store adapter, the usual backend for
// episodic memory: durable, file-local and dependency-free at runtime.
//
// Vector queries load a bounded candidate pool and rank it in Go; SQLite
// has no native vector index. For large semantic datasets use the postgres
// adapter instead.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/a2arium/memflow/internal/storage"
	"github.com/a2arium/memflow/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	tenant_id   TEXT NOT NULL,
	key         TEXT NOT NULL,
	agent_id    TEXT NOT NULL DEFAULT '',
	value       TEXT NOT NULL,
	data_type   TEXT NOT NULL DEFAULT '',
	tags        TEXT,
	embedding   BLOB,
	annotations TEXT,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (tenant_id, key)
);

CREATE INDEX IF NOT EXISTS idx_records_tenant_created ON records(tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_tenant_agent ON records(tenant_id, agent_id);
`

// queryCandidateLimit caps how many rows one query pulls into Go for
// filtering and ranking. Newest rows are considered first, so recent
// memories always make the pool.
const queryCandidateLimit = 10_000

// Store implements storage.Store on SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens a SQLite database, configures WAL mode and creates the
// schema. Use ":memory:" for an ephemeral store.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open
	// connection serialises writes and avoids SQLITE_BUSY under load;
	// WAL mode lets readers proceed while a write is in progress.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Put upserts a record. ON CONFLICT leaves created_at alone so the first
// write fixes it.
func (s *Store) Put(ctx context.Context, rec *storage.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	tagsJSON, err := marshalJSONColumn(rec.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags for %s: %w", rec.Key, err)
	}
	annotationsJSON, err := marshalJSONColumn(rec.Annotations)
	if err != nil {
		return fmt.Errorf("marshal annotations for %s: %w", rec.Key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (
			tenant_id, key, agent_id, value, data_type,
			tags, embedding, annotations, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, key) DO UPDATE SET
			agent_id = excluded.agent_id,
			value = excluded.value,
			data_type = excluded.data_type,
			tags = excluded.tags,
			embedding = excluded.embedding,
			annotations = excluded.annotations,
			updated_at = excluded.updated_at`,
		rec.TenantID, rec.Key, rec.AgentID, rec.Value, string(rec.DataType),
		tagsJSON, serializeEmbedding(rec.Embedding), annotationsJSON,
		createdAt.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.Key, err)
	}
	return nil
}

// Get retrieves one record.
func (s *Store) Get(ctx context.Context, tenantID, key string) (*storage.Record, error) {
	if tenantID == "" {
		return nil, storage.ErrMissingTenant
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, key, agent_id, value, data_type,
		       tags, embedding, annotations, created_at, updated_at
		FROM records WHERE tenant_id = ? AND key = ?`, tenantID, key)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", key, err)
	}
	return rec, nil
}

// Query narrows in SQL what SQL can express (tenant, agent, recency, key
// glob) over a bounded newest-first pool, then applies the shared filter
// and ranking semantics in Go.
func (s *Store) Query(ctx context.Context, q storage.Query) ([]*storage.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	where := "tenant_id = ?"
	args := []any{q.TenantID}
	if q.AgentID != "" {
		where += " AND agent_id = ?"
		args = append(args, q.AgentID)
	}
	if q.KeyPattern != "" {
		where += " AND key GLOB ?"
		args = append(args, q.KeyPattern)
	}
	if !q.Since.IsZero() {
		where += " AND created_at >= ?"
		args = append(args, q.Since.UnixNano())
	}
	args = append(args, queryCandidateLimit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, key, agent_id, value, data_type,
		       tags, embedding, annotations, created_at, updated_at
		FROM records WHERE `+where+`
		ORDER BY created_at DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matched []*storage.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			continue
		}
		if storage.MatchRecord(rec, q) {
			matched = append(matched, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return storage.RankRecords(matched, q), nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, tenantID, key string) error {
	if tenantID == "" {
		return storage.ErrMissingTenant
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE tenant_id = ? AND key = ?`, tenantID, key)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record %s: %w", key, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*storage.Record, error) {
	var rec storage.Record
	var dataType string
	var tagsJSON, annotationsJSON sql.NullString
	var embeddingBlob []byte
	var createdNano, updatedNano int64

	err := row.Scan(
		&rec.TenantID, &rec.Key, &rec.AgentID, &rec.Value, &dataType,
		&tagsJSON, &embeddingBlob, &annotationsJSON, &createdNano, &updatedNano,
	)
	if err != nil {
		return nil, err
	}

	rec.DataType = types.DataType(dataType)
	rec.CreatedAt = time.Unix(0, createdNano).UTC()
	rec.UpdatedAt = time.Unix(0, updatedNano).UTC()

	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &rec.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if annotationsJSON.Valid && annotationsJSON.String != "" {
		if err := json.Unmarshal([]byte(annotationsJSON.String), &rec.Annotations); err != nil {
			return nil, fmt.Errorf("unmarshal annotations: %w", err)
		}
	}
	if len(embeddingBlob) > 0 {
		emb, err := deserializeEmbedding(embeddingBlob)
		if err != nil {
			return nil, err
		}
		rec.Embedding = emb
	}
	return &rec, nil
}

func marshalJSONColumn(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return sql.NullString{}, nil
		}
	case map[string]any:
		if len(t) == 0 {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// serializeEmbedding packs float32 values little-endian, 4 bytes each.
func serializeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func deserializeEmbedding(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob size %d is not a multiple of 4", len(buf))
	}
	embedding := make([]float32, len(buf)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return embedding, nil
}
