// Package redis provides the Redis store adapter, the usual backend for
// working memory: fast, shared across processes, and optionally expiring.
//
// Layout: each record lives as JSON under "<prefix>rec:<tenant>:<key>",
// and a per-tenant set "<prefix>idx:<tenant>" indexes the record keys so
// queries never scan the whole keyspace.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/a2arium/memflow/internal/storage"
)

// Options configures the Redis connection and key layout.
type Options struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces all keys. Default "memflow:".
	Prefix string

	// TTL expires records after the given duration; 0 means no
	// expiration. The tenant index expires alongside.
	TTL time.Duration
}

// Store implements storage.Store on Redis.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ storage.Store = (*Store)(nil)

// New connects a store. The connection is lazy; the first operation
// reports connectivity problems.
func New(opts Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "memflow:"
	}
	return &Store{client: client, prefix: prefix, ttl: opts.TTL}
}

func (s *Store) recordKey(tenantID, key string) string {
	return fmt.Sprintf("%srec:%s:%s", s.prefix, tenantID, key)
}

func (s *Store) indexKey(tenantID string) string {
	return fmt.Sprintf("%sidx:%s", s.prefix, tenantID)
}

// Put upserts a record, keeping the original CreatedAt on replacement.
func (s *Store) Put(ctx context.Context, rec *storage.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	cp := rec.Clone()
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	if prev, err := s.Get(ctx, cp.TenantID, cp.Key); err == nil {
		cp.CreatedAt = prev.CreatedAt
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", cp.Key, err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.recordKey(cp.TenantID, cp.Key), data, s.ttl)
	pipe.SAdd(ctx, s.indexKey(cp.TenantID), cp.Key)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.indexKey(cp.TenantID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write record %s to redis: %w", cp.Key, err)
	}
	return nil
}

// Get retrieves one record.
func (s *Store) Get(ctx context.Context, tenantID, key string) (*storage.Record, error) {
	if tenantID == "" {
		return nil, storage.ErrMissingTenant
	}

	data, err := s.client.Get(ctx, s.recordKey(tenantID, key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read record %s from redis: %w", key, err)
	}

	var rec storage.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", key, err)
	}
	return &rec, nil
}

// Query enumerates the tenant index, fetches the candidates in one MGET
// and filters and ranks them with the shared semantics. Records that
// expired between SMEMBERS and MGET are skipped and dropped from the
// index.
func (s *Store) Query(ctx context.Context, q storage.Query) ([]*storage.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	keys, err := s.client.SMembers(ctx, s.indexKey(q.TenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read tenant index from redis: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	recordKeys := make([]string, len(keys))
	for i, k := range keys {
		recordKeys[i] = s.recordKey(q.TenantID, k)
	}
	values, err := s.client.MGet(ctx, recordKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch records from redis: %w", err)
	}

	var matched []*storage.Record
	var stale []any
	for i, v := range values {
		if v == nil {
			stale = append(stale, keys[i])
			continue
		}
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec storage.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		if storage.MatchRecord(&rec, q) {
			matched = append(matched, &rec)
		}
	}
	if len(stale) > 0 {
		s.client.SRem(ctx, s.indexKey(q.TenantID), stale...)
	}

	return storage.RankRecords(matched, q), nil
}

// Delete removes a record and its index entry.
func (s *Store) Delete(ctx context.Context, tenantID, key string) error {
	if tenantID == "" {
		return storage.ErrMissingTenant
	}

	removed, err := s.client.Del(ctx, s.recordKey(tenantID, key)).Result()
	if err != nil {
		return fmt.Errorf("delete record %s from redis: %w", key, err)
	}
	if removed == 0 {
		return storage.ErrNotFound
	}
	if err := s.client.SRem(ctx, s.indexKey(tenantID), key).Err(); err != nil {
		return fmt.Errorf("unindex record %s: %w", key, err)
	}
	return nil
}

// Close closes the client connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
