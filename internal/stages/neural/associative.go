// Package neural implements the builtin strategies for the neural-memory
// stage: associative co-occurrence tracking and importance integration.
package neural

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategyCooccurrence names the builtin associative strategy.
const StrategyCooccurrence = "cooccurrence"

// AnnotationRelated holds the ids of items that shared a tag recently.
const AnnotationRelated = "associative.related"

// Associative tracks which items share tags, through a best-effort
// ristretto cache keyed per (tenant, tag). Each processed item learns the
// ids of earlier items with overlapping tags and is remembered for the
// ones that follow. Items without tags pass untouched, so the slot pairs
// naturally with retrieval indexing, which fills tags upstream.
//
// Options:
//
//	maxEntries      int  cache capacity in tag entries, default 4096
//	maxAssociations int  item ids remembered per tag, default 8
type Associative struct {
	pipeline.Recorder

	mu              sync.Mutex
	cache           *ristretto.Cache
	maxAssociations int
}

// NewAssociative returns an unconfigured associative processor.
func NewAssociative() *Associative {
	return &Associative{}
}

// Configure sizes and resets the co-occurrence cache.
func (a *Associative) Configure(options map[string]any) error {
	maxEntries, err := pipeline.IntOption(options, "maxEntries", 4096)
	if err != nil {
		return err
	}
	maxAssociations, err := pipeline.IntOption(options, "maxAssociations", 8)
	if err != nil {
		return err
	}
	if maxEntries <= 0 {
		return fmt.Errorf("option %q: must be positive, got %d", "maxEntries", maxEntries)
	}
	if maxAssociations <= 0 {
		return fmt.Errorf("option %q: must be positive, got %d", "maxAssociations", maxAssociations)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,
	})
	if err != nil {
		return fmt.Errorf("create association cache: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cache != nil {
		a.cache.Close()
	}
	a.cache = cache
	a.maxAssociations = maxAssociations
	return nil
}

// Process annotates related item ids and records this item's tags.
func (a *Associative) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	if len(item.Metadata.Tags) == 0 {
		a.RecordProcessed(time.Since(start))
		return []*types.Item[string]{item}, nil
	}

	a.mu.Lock()
	if a.cache == nil {
		a.mu.Unlock()
		return nil, fmt.Errorf("associative not configured")
	}

	related := make(map[string]struct{})
	for _, tag := range item.Metadata.Tags {
		key := item.Metadata.TenantID + "\x00" + tag

		var prior []string
		if v, ok := a.cache.Get(key); ok {
			prior, _ = v.([]string)
		}
		for _, id := range prior {
			if id != item.ID {
				related[id] = struct{}{}
			}
		}

		next := append(prior, item.ID)
		if len(next) > a.maxAssociations {
			next = next[len(next)-a.maxAssociations:]
		}
		a.cache.Set(key, next, 1)
	}
	// Flush the write buffer so the next item in this run sees the update.
	a.cache.Wait()
	a.mu.Unlock()

	if len(related) > 0 {
		ids := make([]string, 0, len(related))
		for id := range related {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		item.SetAnnotation(AnnotationRelated, ids)
	}

	a.RecordProcessed(time.Since(start))
	return []*types.Item[string]{item}, nil
}

// Name returns the slot token.
func (a *Associative) Name() string {
	return pipeline.SlotAssociative.Token()
}

// Close releases the co-occurrence cache. A closed processor reports
// itself unconfigured.
func (a *Associative) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cache != nil {
		a.cache.Close()
		a.cache = nil
	}
}
