package acquisition

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategyDedup names the builtin consolidator strategy.
const StrategyDedup = "dedup"

// Consolidator drops items whose (tenant, payload) pair was already seen
// within a bounded LRU window. The window is shared by every concurrent
// run of the owning pipeline; the check-and-insert is a single atomic
// cache operation, so two concurrent duplicates admit at most one.
//
// Options:
//
//	window int  number of recent items remembered, default 1024
type Consolidator struct {
	pipeline.Recorder

	window *lru.Cache[uint64, struct{}]
}

// NewConsolidator returns an unconfigured consolidator.
func NewConsolidator() *Consolidator {
	return &Consolidator{}
}

// Configure sizes and resets the deduplication window.
func (c *Consolidator) Configure(options map[string]any) error {
	size, err := pipeline.IntOption(options, "window", 1024)
	if err != nil {
		return err
	}
	if size <= 0 {
		return fmt.Errorf("option %q: must be positive, got %d", "window", size)
	}

	window, err := lru.New[uint64, struct{}](size)
	if err != nil {
		return fmt.Errorf("create dedup window: %w", err)
	}
	c.window = window
	return nil
}

// Process admits first sightings and drops window duplicates.
func (c *Consolidator) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	if c.window == nil {
		return nil, fmt.Errorf("consolidator not configured")
	}

	seen, _ := c.window.ContainsOrAdd(fingerprint(item.Metadata.TenantID, item.Data), struct{}{})
	if seen {
		c.RecordDrop(time.Since(start))
		return nil, nil
	}

	c.RecordProcessed(time.Since(start))
	return []*types.Item[string]{item}, nil
}

// Name returns the slot token.
func (c *Consolidator) Name() string {
	return pipeline.SlotConsolidator.Token()
}

func fingerprint(tenantID, payload string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(tenantID))
	h.Write([]byte{0})
	h.Write([]byte(payload))
	return h.Sum64()
}
