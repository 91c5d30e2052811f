package neural

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/internal/stages/encoding"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategyEMA names the builtin parameter-integration strategy.
const StrategyEMA = "ema"

// Annotations written by ParameterIntegration.
const (
	AnnotationEMA          = "parameterIntegration.ema"
	AnnotationObservations = "parameterIntegration.observations"
)

// ParameterIntegration folds each item's signal into a per-tenant
// exponential moving average, a cheap stand-in for consolidating memory
// strength into long-lived parameters. The signal is the attention
// salience when present, otherwise the importance annotation, otherwise
// a neutral 0.5.
//
// Options:
//
//	alpha float64  smoothing factor in (0, 1], default 0.2
type ParameterIntegration struct {
	pipeline.Recorder

	alpha float64

	mu    sync.Mutex
	ema   map[string]float64
	count map[string]int
}

// NewParameterIntegration returns an integrator with default smoothing.
func NewParameterIntegration() *ParameterIntegration {
	return &ParameterIntegration{
		alpha: 0.2,
		ema:   make(map[string]float64),
		count: make(map[string]int),
	}
}

// Configure validates the smoothing factor and resets the averages.
func (p *ParameterIntegration) Configure(options map[string]any) error {
	alpha, err := pipeline.Float64Option(options, "alpha", 0.2)
	if err != nil {
		return err
	}
	if alpha <= 0 || alpha > 1 {
		return fmt.Errorf("option %q: must be in (0, 1], got %v", "alpha", alpha)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.alpha = alpha
	p.ema = make(map[string]float64)
	p.count = make(map[string]int)
	return nil
}

// Process updates the tenant average and annotates the item with it.
func (p *ParameterIntegration) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	signal := signalOf(item)
	tenant := item.Metadata.TenantID

	p.mu.Lock()
	if _, ok := p.ema[tenant]; !ok {
		p.ema[tenant] = signal
	} else {
		p.ema[tenant] = p.alpha*signal + (1-p.alpha)*p.ema[tenant]
	}
	p.count[tenant]++
	avg := p.ema[tenant]
	seen := p.count[tenant]
	p.mu.Unlock()

	item.SetAnnotation(AnnotationEMA, avg)
	item.SetAnnotation(AnnotationObservations, seen)

	p.RecordProcessed(time.Since(start))
	return []*types.Item[string]{item}, nil
}

// Name returns the slot token.
func (p *ParameterIntegration) Name() string {
	return pipeline.SlotParameterIntegration.Token()
}

func signalOf(item *types.Item[string]) float64 {
	if v, ok := item.Annotation(encoding.AnnotationSalience); ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	if v, ok := item.Annotation(types.AnnotationImportance); ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return 0.5
}
