// Package acquisition implements the builtin strategies for the
// acquisition stage: tenant/size/relevance filtering, boundary-aware
// payload truncation and windowed deduplication.
package acquisition

import (
	"context"
	"fmt"
	"time"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategyTenant names the builtin filter strategy.
const StrategyTenant = "tenant"

// Filter gates items on tenant membership, payload size and declared
// importance. Rejected items drop; nothing downstream sees them.
//
// Options:
//
//	allowedTenants []string  tenants admitted; empty admits all
//	maxInputSize   int       payload byte ceiling; 0 means unlimited
//	minRelevance   float64   importance floor in [0,1]; unrated items pass
type Filter struct {
	pipeline.Recorder

	allowedTenants map[string]struct{}
	maxInputSize   int
	minRelevance   float64
}

// NewFilter returns an unconfigured filter.
func NewFilter() *Filter {
	return &Filter{}
}

// Configure applies and validates filter options.
func (f *Filter) Configure(options map[string]any) error {
	tenants, err := pipeline.StringSliceOption(options, "allowedTenants", nil)
	if err != nil {
		return err
	}
	maxSize, err := pipeline.IntOption(options, "maxInputSize", 0)
	if err != nil {
		return err
	}
	minRelevance, err := pipeline.Float64Option(options, "minRelevance", 0)
	if err != nil {
		return err
	}
	if maxSize < 0 {
		return fmt.Errorf("option %q: must not be negative, got %d", "maxInputSize", maxSize)
	}
	if minRelevance < 0 || minRelevance > 1 {
		return fmt.Errorf("option %q: must be in [0,1], got %v", "minRelevance", minRelevance)
	}

	f.allowedTenants = nil
	if len(tenants) > 0 {
		f.allowedTenants = make(map[string]struct{}, len(tenants))
		for _, t := range tenants {
			f.allowedTenants[t] = struct{}{}
		}
	}
	f.maxInputSize = maxSize
	f.minRelevance = minRelevance
	return nil
}

// Process admits or drops the item.
func (f *Filter) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	if f.allowedTenants != nil {
		if _, ok := f.allowedTenants[item.Metadata.TenantID]; !ok {
			f.RecordDrop(time.Since(start))
			return nil, nil
		}
	}
	if f.maxInputSize > 0 && len(item.Data) > f.maxInputSize {
		f.RecordDrop(time.Since(start))
		return nil, nil
	}
	if f.minRelevance > 0 {
		if imp, ok := importanceOf(item); ok && imp < f.minRelevance {
			f.RecordDrop(time.Since(start))
			return nil, nil
		}
	}

	f.RecordProcessed(time.Since(start))
	return []*types.Item[string]{item}, nil
}

// Name returns the slot token.
func (f *Filter) Name() string {
	return pipeline.SlotFilter.Token()
}

func importanceOf(item *types.Item[string]) (float64, bool) {
	v, ok := item.Annotation(types.AnnotationImportance)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
