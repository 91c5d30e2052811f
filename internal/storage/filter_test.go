package storage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/a2arium/memflow/internal/storage"
)

func TestMatchRecordEdgeCases(t *testing.T) {
	rec := &storage.Record{
		TenantID:  "t1",
		AgentID:   "a1",
		Key:       "thought:a1:001",
		Value:     "Prefer the Simpler design",
		Tags:      []string{"thought"},
		CreatedAt: time.Now().UTC(),
	}

	assert.False(t, storage.MatchRecord(nil, storage.Query{TenantID: "t1"}))

	// A malformed glob matches nothing rather than failing the query.
	assert.False(t, storage.MatchRecord(rec, storage.Query{TenantID: "t1", KeyPattern: "thought:[a1"}))

	assert.True(t, storage.MatchRecord(rec, storage.Query{TenantID: "t1", KeyPattern: "thought:a1:*"}))
	assert.True(t, storage.MatchRecord(rec, storage.Query{TenantID: "t1", Text: "simpler"}))
	assert.False(t, storage.MatchRecord(rec, storage.Query{TenantID: "t1", Tags: []string{"thought", "missing"}}))

	// The vector is an ordering concern; it never filters.
	assert.True(t, storage.MatchRecord(rec, storage.Query{TenantID: "t1", Vector: []float32{1, 0}}))
}

func TestRankRecordsVectorOrdering(t *testing.T) {
	now := time.Now().UTC()
	near := &storage.Record{TenantID: "t", Key: "near", Embedding: []float32{1, 0}, CreatedAt: now}
	anti := &storage.Record{TenantID: "t", Key: "anti", Embedding: []float32{-1, 0}, CreatedAt: now}
	plain := &storage.Record{TenantID: "t", Key: "plain", CreatedAt: now.Add(time.Hour)}

	ranked := storage.RankRecords([]*storage.Record{plain, anti, near}, storage.Query{
		TenantID: "t",
		Vector:   []float32{1, 0},
	})

	// Anti-similar still beats no-signal: records without embeddings
	// always sort last, newest candidate or not.
	assert.Equal(t, []string{"near", "anti", "plain"}, keysOf(ranked))
}

func TestRankRecordsRecencyAndLimit(t *testing.T) {
	now := time.Now().UTC()
	a := &storage.Record{TenantID: "t", Key: "a", CreatedAt: now.Add(-time.Hour)}
	b := &storage.Record{TenantID: "t", Key: "b", CreatedAt: now}
	c := &storage.Record{TenantID: "t", Key: "c", CreatedAt: now}

	ranked := storage.RankRecords([]*storage.Record{a, c, b}, storage.Query{TenantID: "t", Limit: 2})
	assert.Equal(t, []string{"b", "c"}, keysOf(ranked), "ties break on key")
}

func keysOf(recs []*storage.Record) []string {
	keys := make([]string, len(recs))
	for i, r := range recs {
		keys[i] = r.Key
	}
	return keys
}
