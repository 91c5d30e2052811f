package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2arium/memflow/internal/storage"
	"github.com/a2arium/memflow/internal/storage/memory"
)

func rec(tenant, key, value string) *storage.Record {
	return &storage.Record{TenantID: tenant, Key: key, Value: value}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	in := rec("t1", "k1", "hello")
	in.Tags = []string{"a"}
	require.NoError(t, s.Put(ctx, in))

	out, err := s.Get(ctx, "t1", "k1")
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Value)
	assert.False(t, out.CreatedAt.IsZero())
	assert.False(t, out.UpdatedAt.IsZero())

	// Mutating what we got back must not touch stored state.
	out.Value = "mutated"
	out.Tags[0] = "zzz"
	again, err := s.Get(ctx, "t1", "k1")
	require.NoError(t, err)
	assert.Equal(t, "hello", again.Value)
	assert.Equal(t, []string{"a"}, again.Tags)
}

func TestPutUpsertKeepsCreatedAt(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, rec("t1", "k1", "v1")))
	first, err := s.Get(ctx, "t1", "k1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Put(ctx, rec("t1", "k1", "v2")))
	second, err := s.Get(ctx, "t1", "k1")
	require.NoError(t, err)

	assert.Equal(t, "v2", second.Value)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt), "upsert must keep CreatedAt")
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt) || second.UpdatedAt.Equal(first.UpdatedAt))
}

func TestPutValidation(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	err := s.Put(ctx, rec("", "k", "v"))
	assert.ErrorIs(t, err, storage.ErrMissingTenant)

	err = s.Put(ctx, rec("t", "", "v"))
	assert.Error(t, err)
}

func TestGetMissing(t *testing.T) {
	s := memory.New()
	_, err := s.Get(context.Background(), "t1", "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTenantIsolation(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, rec("t1", "shared-key", "tenant one")))
	require.NoError(t, s.Put(ctx, rec("t2", "shared-key", "tenant two")))

	out, err := s.Get(ctx, "t1", "shared-key")
	require.NoError(t, err)
	assert.Equal(t, "tenant one", out.Value)

	results, err := s.Query(ctx, storage.Query{TenantID: "t2"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "tenant two", results[0].Value)
}

func TestQueryFilters(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	old := rec("t1", "thought:a1:001", "first idea about caching")
	old.AgentID = "a1"
	old.Tags = []string{"thought", "cache"}
	old.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, s.Put(ctx, old))

	mid := rec("t1", "thought:a1:002", "second idea about sharding")
	mid.AgentID = "a1"
	mid.Tags = []string{"thought"}
	mid.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.Put(ctx, mid))

	other := rec("t1", "goal:a2", "ship the release")
	other.AgentID = "a2"
	require.NoError(t, s.Put(ctx, other))

	t.Run("key pattern", func(t *testing.T) {
		results, err := s.Query(ctx, storage.Query{TenantID: "t1", KeyPattern: "thought:a1:*"})
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("agent filter", func(t *testing.T) {
		results, err := s.Query(ctx, storage.Query{TenantID: "t1", AgentID: "a2"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "goal:a2", results[0].Key)
	})

	t.Run("tags must all match", func(t *testing.T) {
		results, err := s.Query(ctx, storage.Query{TenantID: "t1", Tags: []string{"thought", "cache"}})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "thought:a1:001", results[0].Key)
	})

	t.Run("text is case-insensitive substring", func(t *testing.T) {
		results, err := s.Query(ctx, storage.Query{TenantID: "t1", Text: "SHARDING"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "thought:a1:002", results[0].Key)
	})

	t.Run("since cuts older records", func(t *testing.T) {
		results, err := s.Query(ctx, storage.Query{TenantID: "t1", Since: time.Now().UTC().Add(-90 * time.Minute)})
		require.NoError(t, err)
		assert.Len(t, results, 2) // mid and other
	})

	t.Run("newest first with limit", func(t *testing.T) {
		results, err := s.Query(ctx, storage.Query{TenantID: "t1", Limit: 2})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "goal:a2", results[0].Key)
		assert.Equal(t, "thought:a1:002", results[1].Key)
	})

	t.Run("missing tenant rejected", func(t *testing.T) {
		_, err := s.Query(ctx, storage.Query{})
		assert.ErrorIs(t, err, storage.ErrMissingTenant)
	})
}

func TestQueryVectorRanking(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	near := rec("t1", "near", "close match")
	near.Embedding = []float32{1, 0}
	require.NoError(t, s.Put(ctx, near))

	far := rec("t1", "far", "distant match")
	far.Embedding = []float32{0, 1}
	require.NoError(t, s.Put(ctx, far))

	plain := rec("t1", "plain", "no embedding at all")
	require.NoError(t, s.Put(ctx, plain))

	results, err := s.Query(ctx, storage.Query{TenantID: "t1", Vector: []float32{0.9, 0.1}})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "near", results[0].Key)
	assert.Equal(t, "far", results[1].Key)
	assert.Equal(t, "plain", results[2].Key, "records without embeddings sort last")
}

func TestDelete(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, rec("t1", "k1", "v")))
	require.NoError(t, s.Delete(ctx, "t1", "k1"))
	_, err := s.Get(ctx, "t1", "k1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "t1", "k1"), storage.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "missing-tenant", "k1"), storage.ErrNotFound)
}

func TestConcurrentPutQuery(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = s.Put(ctx, &storage.Record{TenantID: "t1", Key: "k", Value: "v"})
		}
	}()
	for i := 0; i < 200; i++ {
		_, _ = s.Query(ctx, storage.Query{TenantID: "t1"})
	}
	<-done

	assert.Equal(t, 1, s.Len("t1"))
}
