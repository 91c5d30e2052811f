package pipeline

import "errors"

// Sentinel errors for pipeline construction and execution. Callers match
// them with errors.Is; the wrapped forms carry slot and strategy context.
var (
	// ErrUnknownSlot means a slot name outside the fixed sixteen.
	ErrUnknownSlot = errors.New("unknown pipeline slot")

	// ErrUnknownStrategy means no constructor is registered for the
	// (slot, strategy) pair.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrDuplicateStrategy means a second registration for a (slot,
	// strategy) pair.
	ErrDuplicateStrategy = errors.New("strategy already registered")

	// ErrNilConstructor means Register was handed a nil constructor.
	ErrNilConstructor = errors.New("nil strategy constructor")

	// ErrNilItem means Run was handed a nil item.
	ErrNilItem = errors.New("nil item")
)
