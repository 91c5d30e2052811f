package types

import "time"

// ProcessResult reports the outcome of one orchestrated pipeline run.
// Produced holds the items that survived all six stages; an empty slice
// with a nil error from the orchestrator means every item was dropped by
// policy, which is a success, not a fault.
type ProcessResult struct {
	Produced []*Item[string] `json:"produced"`

	// Store is the kind of backend the produced items were routed to.
	Store StoreKind `json:"store,omitempty"`

	// Persisted is false when persistence was skipped (transient runs)
	// or nothing survived to write.
	Persisted bool `json:"persisted"`

	Elapsed time.Duration `json:"elapsed"`
}
