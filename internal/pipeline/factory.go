package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type registryKey struct {
	slot     Slot
	strategy string
}

// Factory is the explicit strategy registry. Constructors are registered
// per (slot, strategy) pair; nothing registers itself through package init
// side effects, callers wire the builtins with stages.RegisterBuiltins and
// add their own strategies next to them.
type Factory[T any] struct {
	mu       sync.RWMutex
	builders map[registryKey]Constructor[T]
}

// NewFactory returns an empty registry.
func NewFactory[T any]() *Factory[T] {
	return &Factory[T]{builders: make(map[registryKey]Constructor[T])}
}

// Register adds a constructor for a (slot, strategy) pair. Registering an
// unknown slot, a nil constructor, an empty strategy name or a pair that is
// already taken is an error.
func (f *Factory[T]) Register(slot Slot, strategy string, c Constructor[T]) error {
	if !KnownSlot(slot) {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, slot.Token())
	}
	if strategy == "" {
		return fmt.Errorf("register %s: strategy name must not be empty", slot.Token())
	}
	if c == nil {
		return fmt.Errorf("%w: %s strategy %q", ErrNilConstructor, slot.Token(), strategy)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key := registryKey{slot: slot, strategy: strategy}
	if _, exists := f.builders[key]; exists {
		return fmt.Errorf("%w: %s strategy %q", ErrDuplicateStrategy, slot.Token(), strategy)
	}
	f.builders[key] = c
	return nil
}

// New builds a fresh processor for a (slot, strategy) pair.
func (f *Factory[T]) New(slot Slot, strategy string) (Processor[T], error) {
	if !KnownSlot(slot) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSlot, slot.Token())
	}

	f.mu.RLock()
	c, ok := f.builders[registryKey{slot: slot, strategy: strategy}]
	f.mu.RUnlock()
	if !ok {
		known := f.Strategies(slot)
		if len(known) == 0 {
			return nil, fmt.Errorf("%w: %q for slot %s (no strategies registered)", ErrUnknownStrategy, strategy, slot.Token())
		}
		return nil, fmt.Errorf("%w: %q for slot %s (known: %s)", ErrUnknownStrategy, strategy, slot.Token(), strings.Join(known, ", "))
	}
	return c(), nil
}

// Strategies returns the sorted strategy names registered for a slot.
func (f *Factory[T]) Strategies(slot Slot) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var names []string
	for key := range f.builders {
		if key.slot == slot {
			names = append(names, key.strategy)
		}
	}
	sort.Strings(names)
	return names
}
