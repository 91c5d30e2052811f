package types

import "time"

// Annotation keys shared between the orchestrator and the stage
// processors. Keys private to one processor live next to that processor.
const (
	// AnnotationCandidates carries the retrieval candidate set on a
	// query item: a []Candidate collected from the backing stores before
	// the retrieval stage ranks it.
	AnnotationCandidates = "retrieval.candidates"

	// AnnotationImportance is the caller-declared importance of an item
	// in [0,1]. Acquisition filtering, attention scoring and neural
	// integration read it; absent means unrated.
	AnnotationImportance = "importance"

	// AnnotationStorageKey overrides the record key an item persists
	// under. Without it the item's id is the key. The typed working
	// memory operations use it for their goal/thought/decision/variable
	// key shapes.
	AnnotationStorageKey = "storage.key"
)

// Candidate is one stored record offered to the retrieval matching slot
// for ranking. The matching strategy turns winners into result items.
type Candidate struct {
	Key       string    `json:"key"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
