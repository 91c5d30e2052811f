package derivation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategyAge names the builtin forgetting strategy.
const StrategyAge = "age"

// AnnotationDecay holds the decay score in [0,1].
const AnnotationDecay = "forgetting.decay"

// Forgetting drops items older than maxAge and annotates the survivors
// with an exponential decay score: 2^(-age/halfLife), so an item at one
// half-life sits at 0.5.
//
// Options:
//
//	maxAge   duration  drop threshold; 0 (the default) never drops
//	halfLife duration  decay half-life, default 1440h (60 days)
type Forgetting struct {
	pipeline.Recorder

	maxAge   time.Duration
	halfLife time.Duration
}

// NewForgetting returns an unconfigured forgetting processor.
func NewForgetting() *Forgetting {
	return &Forgetting{}
}

// Configure applies and validates forgetting options.
func (f *Forgetting) Configure(options map[string]any) error {
	maxAge, err := pipeline.DurationOption(options, "maxAge", 0)
	if err != nil {
		return err
	}
	halfLife, err := pipeline.DurationOption(options, "halfLife", 1440*time.Hour)
	if err != nil {
		return err
	}
	if maxAge < 0 {
		return fmt.Errorf("option %q: must not be negative, got %v", "maxAge", maxAge)
	}
	if halfLife <= 0 {
		return fmt.Errorf("option %q: must be positive, got %v", "halfLife", halfLife)
	}
	f.maxAge = maxAge
	f.halfLife = halfLife
	return nil
}

// Process drops expired items and scores the rest.
func (f *Forgetting) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	age := time.Since(item.Metadata.CreatedAt)
	if f.maxAge > 0 && age > f.maxAge {
		f.RecordDrop(time.Since(start))
		return nil, nil
	}

	decay := 1.0
	if age > 0 {
		decay = math.Pow(2, -age.Hours()/f.halfLife.Hours())
	}
	item.SetAnnotation(AnnotationDecay, math.Min(math.Max(decay, 0.0), 1.0))

	f.RecordProcessed(time.Since(start))
	return []*types.Item[string]{item}, nil
}

// Name returns the slot token.
func (f *Forgetting) Name() string {
	return pipeline.SlotForgetting.Token()
}
