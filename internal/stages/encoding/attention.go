// Package encoding implements the builtin strategies for the encoding
// stage: salience scoring and multimodal part fusion.
package encoding

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategySalience names the builtin attention strategy.
const StrategySalience = "salience"

// AnnotationSalience holds the computed attention score in [0,1].
const AnnotationSalience = "attention.salience"

// Attention scores how much downstream attention an item deserves, from
// declared importance, recency and payload brevity. The score lands in
// the salience annotation; the item always passes.
//
// Options:
//
//	recencyHalfLife duration  age at which the recency term halves, default 24h
type Attention struct {
	pipeline.Recorder

	recencyHalfLife time.Duration
}

// NewAttention returns an unconfigured attention scorer.
func NewAttention() *Attention {
	return &Attention{}
}

// Configure applies attention options.
func (a *Attention) Configure(options map[string]any) error {
	halfLife, err := pipeline.DurationOption(options, "recencyHalfLife", 24*time.Hour)
	if err != nil {
		return err
	}
	if halfLife <= 0 {
		return fmt.Errorf("option %q: must be positive, got %v", "recencyHalfLife", halfLife)
	}
	a.recencyHalfLife = halfLife
	return nil
}

// Process annotates the salience score.
func (a *Attention) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	importance := 0.5
	if v, ok := item.Annotation(types.AnnotationImportance); ok {
		switch n := v.(type) {
		case float64:
			importance = n
		case int:
			importance = float64(n)
		}
	}

	recency := 1.0
	if age := time.Since(item.Metadata.CreatedAt); age > 0 {
		recency = math.Pow(2, -age.Hours()/a.recencyHalfLife.Hours())
	}

	brevity := 1.0 / (1.0 + float64(len(item.Data))/1024.0)

	salience := 0.5*importance + 0.3*recency + 0.2*brevity
	item.SetAnnotation(AnnotationSalience, clamp01(salience))

	a.RecordProcessed(time.Since(start))
	return []*types.Item[string]{item}, nil
}

// Name returns the slot token.
func (a *Attention) Name() string {
	return pipeline.SlotAttention.Token()
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0.0), 1.0)
}
