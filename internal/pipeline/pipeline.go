package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/a2arium/memflow/internal/logging"
	"github.com/a2arium/memflow/pkg/types"
)

type step[T any] struct {
	slot     Slot
	strategy string
	proc     Processor[T]
}

// Pipeline is an immutable sequence of configured processors in the fixed
// stage order. Rebuilding configuration produces a new Pipeline; in-flight
// runs keep the instance they started with.
type Pipeline[T any] struct {
	steps []step[T]
}

// Builder resolves pipeline configurations against a factory.
type Builder[T any] struct {
	factory *Factory[T]
}

// NewBuilder returns a builder backed by the given factory.
func NewBuilder[T any](f *Factory[T]) *Builder[T] {
	return &Builder[T]{factory: f}
}

// Build turns one pipeline configuration into a runnable pipeline. Slots
// left nil are skipped entirely; a nil configuration yields the identity
// pipeline. Constructors and Configure both run here so that unknown
// strategies and bad options fail now, not when the first item flows.
func (b *Builder[T]) Build(cfg *types.PipelineConfig) (*Pipeline[T], error) {
	pl := &Pipeline[T]{}
	if cfg == nil {
		return pl, nil
	}

	for _, binding := range slotOrder {
		sc := binding.config(cfg)
		if sc == nil {
			continue
		}
		proc, err := b.factory.New(binding.slot, sc.Strategy)
		if err != nil {
			return nil, fmt.Errorf("build slot %s: %w", binding.slot.Token(), err)
		}
		if err := proc.Configure(sc.Options); err != nil {
			return nil, fmt.Errorf("configure slot %s strategy %q: %w", binding.slot.Token(), sc.Strategy, err)
		}
		pl.steps = append(pl.steps, step[T]{slot: binding.slot, strategy: sc.Strategy, proc: proc})
	}
	return pl, nil
}

// Len returns the number of configured processors.
func (p *Pipeline[T]) Len() int {
	return len(p.steps)
}

// Run moves one item through every configured slot in order. Each
// processor receives a clone; on success its outputs replace the item and
// each output gets the processor's history token. A processor fault is
// absorbed: the error is logged, counted as a drop on that processor, and
// the original item continues unchanged. An empty result with a nil error
// means every item was dropped by policy.
//
// Context cancellation is the one thing that aborts the run.
func (p *Pipeline[T]) Run(ctx context.Context, item *types.Item[T]) ([]*types.Item[T], error) {
	if item == nil {
		return nil, ErrNilItem
	}

	current := []*types.Item[T]{item}
	for _, st := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(current) == 0 {
			break
		}
		next := make([]*types.Item[T], 0, len(current))
		for _, it := range current {
			next = append(next, p.runStep(ctx, st, it)...)
		}
		current = next
	}
	return current, nil
}

// dropRecorder is satisfied by every builtin through the embedded
// Recorder; the executor uses it to charge faults to the processor.
type dropRecorder interface {
	RecordDrop(d time.Duration)
}

type resettable interface {
	Reset()
}

type closable interface {
	Close()
}

func (p *Pipeline[T]) runStep(ctx context.Context, st step[T], it *types.Item[T]) []*types.Item[T] {
	start := time.Now()
	outs, err := st.proc.Process(ctx, it.Clone())
	if err != nil {
		p.absorbFault(st, it, time.Since(start), err)
		return []*types.Item[T]{it}
	}

	kept := make([]*types.Item[T], 0, len(outs))
	for _, out := range outs {
		if out == nil {
			continue
		}
		if out.Metadata.TenantID != it.Metadata.TenantID {
			p.absorbFault(st, it, time.Since(start),
				fmt.Errorf("tenant changed from %q to %q", it.Metadata.TenantID, out.Metadata.TenantID))
			return []*types.Item[T]{it}
		}
		kept = append(kept, out)
	}
	for _, out := range kept {
		out.AppendHistory(st.proc.Name())
	}
	return kept
}

func (p *Pipeline[T]) absorbFault(st step[T], it *types.Item[T], elapsed time.Duration, err error) {
	if rec, ok := st.proc.(dropRecorder); ok {
		rec.RecordDrop(elapsed)
	}
	logging.Warn("[Pipeline] %s strategy %q failed on item %s, passing original through: %v",
		st.slot.Token(), st.strategy, it.ID, err)
}

// ProcessorStats snapshots every configured processor's counters in slot
// order. Tenant, agent and intent are filled in by the orchestrator, which
// knows where this pipeline hangs in the configuration tree.
func (p *Pipeline[T]) ProcessorStats() []types.ProcessorStat {
	stats := make([]types.ProcessorStat, 0, len(p.steps))
	for _, st := range p.steps {
		stats = append(stats, types.ProcessorStat{
			Processor: st.slot.Token(),
			Strategy:  st.strategy,
			Metrics:   st.proc.Metrics(),
		})
	}
	return stats
}

// ResetMetrics zeroes the counters of every processor that supports it.
func (p *Pipeline[T]) ResetMetrics() {
	for _, st := range p.steps {
		if r, ok := st.proc.(resettable); ok {
			r.Reset()
		}
	}
}

// Close releases every processor that owns resources, such as bounded
// caches. A closed pipeline must not run again.
func (p *Pipeline[T]) Close() {
	for _, st := range p.steps {
		if c, ok := st.proc.(closable); ok {
			c.Close()
		}
	}
}
