package utilization

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/internal/stages/retrieval"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategyBudget names the builtin long-context strategy.
const StrategyBudget = "budget"

// Annotations written by LongContext.
const (
	AnnotationShare     = "longContext.share"
	AnnotationTruncated = "longContext.truncated"
)

// LongContext divides a total byte budget across the matched set so that
// a large result set cannot flood the caller's prompt window. Each item
// gets budget/setSize bytes, floored at minShare, and oversized payloads
// are cut at a word boundary. Unmatched items pass through whole.
//
// Options:
//
//	budget   int  total bytes across the matched set, default 2000
//	minShare int  floor for the per-item share, default 100
type LongContext struct {
	pipeline.Recorder

	budget   int
	minShare int
}

// NewLongContext returns a budgeter with defaults applied.
func NewLongContext() *LongContext {
	return &LongContext{budget: 2000, minShare: 100}
}

// Configure applies budget options.
func (l *LongContext) Configure(options map[string]any) error {
	budget, err := pipeline.IntOption(options, "budget", 2000)
	if err != nil {
		return err
	}
	minShare, err := pipeline.IntOption(options, "minShare", 100)
	if err != nil {
		return err
	}
	if budget <= 0 {
		return fmt.Errorf("option %q: must be positive, got %d", "budget", budget)
	}
	if minShare <= 0 {
		return fmt.Errorf("option %q: must be positive, got %d", "minShare", minShare)
	}
	if minShare > budget {
		return fmt.Errorf("option %q: must not exceed budget %d, got %d", "minShare", budget, minShare)
	}
	l.budget = budget
	l.minShare = minShare
	return nil
}

// Process trims the item to its share of the budget.
func (l *LongContext) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	setSize, ok := asInt(item, retrieval.AnnotationMatchedSetSize)
	if !ok || setSize < 1 {
		l.RecordProcessed(time.Since(start))
		return []*types.Item[string]{item}, nil
	}

	share := l.budget / setSize
	if share < l.minShare {
		share = l.minShare
	}
	item.SetAnnotation(AnnotationShare, share)

	if len(item.Data) > share {
		item.Data = cutAtWord(item.Data, share)
		item.SetAnnotation(AnnotationTruncated, true)
	}

	l.RecordProcessed(time.Since(start))
	return []*types.Item[string]{item}, nil
}

// Name returns the slot token.
func (l *LongContext) Name() string {
	return pipeline.SlotLongContext.Token()
}

// cutAtWord shortens s to at most limit bytes, preferring the last space
// before the limit and never splitting a rune.
func cutAtWord(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	head := s[:cut]
	if idx := strings.LastIndexAny(head, " \t\n"); idx > 0 {
		head = head[:idx]
	}
	return strings.TrimRight(head, " \t\n")
}

// asInt reads an annotation that may carry an int or, after a JSON round
// trip, a float64.
func asInt(item *types.Item[string], key string) (int, bool) {
	v, ok := item.Annotation(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}
