// Package pipeline implements the memory lifecycle engine: the processor
// contract, the strategy factory, the pipeline builder and the executor
// that moves items through the six fixed stages.
package pipeline

import (
	"context"

	"github.com/a2arium/memflow/pkg/types"
)

// Processor transforms memory items at one pipeline slot.
//
// Process returns the surviving items for one input. Returning a nil or
// empty slice with a nil error drops the item, which only filtering slots
// do; returning items is a transform or fan-out. Processors never append
// to the item's processing history themselves, the executor records the
// token after a successful call. The executor hands every call a clone, so
// implementations may mutate the argument freely.
//
// Configure is idempotent and replaces any previously applied options.
// Bad options must be rejected here so misconfiguration surfaces when the
// pipeline is built, not when the first item flows.
//
// Name returns the processor's fixed "stage:component" token, for example
// "acquisition:filter".
type Processor[T any] interface {
	Process(ctx context.Context, item *types.Item[T]) ([]*types.Item[T], error)
	Configure(options map[string]any) error
	Metrics() types.ProcessorMetrics
	Name() string
}

// Constructor produces a fresh, unconfigured processor instance. Each built
// pipeline gets its own instances so metrics and internal state are never
// shared across (tenant, agent, intent) pipelines.
type Constructor[T any] func() Processor[T]
