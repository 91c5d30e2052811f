package types

import "time"

// Thought is one entry of an agent's reasoning chain.
type Thought struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Decision records a choice an agent committed to, with optional reasoning.
type Decision struct {
	Choice    string    `json:"choice"`
	Reasoning string    `json:"reasoning,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// WorkingMemoryState is a point-in-time view of one agent's working memory,
// assembled on demand from the working store. ThoughtChain is ordered oldest
// first.
type WorkingMemoryState struct {
	Goal                   string              `json:"goal,omitempty"`
	ThoughtChain           []Thought           `json:"thought_chain,omitempty"`
	Decisions              map[string]Decision `json:"decisions,omitempty"`
	Variables              map[string]string   `json:"variables,omitempty"`
	LoadedLongTermMemories []string            `json:"loaded_long_term_memories,omitempty"`
	LastUpdated            time.Time           `json:"last_updated"`
	Version                int                 `json:"version"`
}
