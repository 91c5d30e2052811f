// Package types defines the core data structures for the memflow memory
// lifecycle system. These types represent memory items moving through the
// processing stages, the pipeline configuration schema, processor metrics,
// and the agent working-memory state.
package types

import (
	"time"

	"github.com/google/uuid"
)

// DataType describes the payload modality of a memory item.
type DataType string

// Payload modality constants
const (
	// DataTypeText is plain or structured prose
	DataTypeText DataType = "text"

	// DataTypeStructured is serialized structured data (JSON and similar)
	DataTypeStructured DataType = "structured"

	// DataTypeVector is a pre-computed embedding payload
	DataTypeVector DataType = "vector"

	// DataTypeImage is image content or an image reference
	DataTypeImage DataType = "image"

	// DataTypeAudio is audio content or an audio reference
	DataTypeAudio DataType = "audio"
)

// Valid reports whether dt is one of the defined payload modalities.
func (dt DataType) Valid() bool {
	switch dt {
	case DataTypeText, DataTypeStructured, DataTypeVector, DataTypeImage, DataTypeAudio:
		return true
	}
	return false
}

// Intent declares what a memory item is for. It selects both the pipeline
// configuration used to process the item and the store that receives it.
type Intent string

// Memory intent constants
const (
	// IntentWorkingMemory is short-lived task state (goals, thoughts,
	// decisions, variables)
	IntentWorkingMemory Intent = "workingMemory"

	// IntentSemanticLTM is long-term factual knowledge
	IntentSemanticLTM Intent = "semanticLTM"

	// IntentEpisodicLTM is long-term event and experience records
	IntentEpisodicLTM Intent = "episodicLTM"

	// IntentRetrieval is a read-side query item
	IntentRetrieval Intent = "retrieval"

	// IntentProceduralLTM is long-term how-to knowledge
	IntentProceduralLTM Intent = "proceduralLTM"
)

// AllIntents returns every defined intent in a stable order.
func AllIntents() []Intent {
	return []Intent{
		IntentWorkingMemory,
		IntentSemanticLTM,
		IntentEpisodicLTM,
		IntentRetrieval,
		IntentProceduralLTM,
	}
}

// Valid reports whether i is one of the defined intents.
func (i Intent) Valid() bool {
	switch i {
	case IntentWorkingMemory, IntentSemanticLTM, IntentEpisodicLTM, IntentRetrieval, IntentProceduralLTM:
		return true
	}
	return false
}

// StoreKind identifies a class of storage backend.
type StoreKind string

// Store kind constants
const (
	StoreWorking    StoreKind = "working"
	StoreSemantic   StoreKind = "semantic"
	StoreEpisodic   StoreKind = "episodic"
	StoreRetrieval  StoreKind = "retrieval"
	StoreProcedural StoreKind = "procedural"
)

// AllStoreKinds returns every defined store kind in a stable order.
func AllStoreKinds() []StoreKind {
	return []StoreKind{StoreWorking, StoreSemantic, StoreEpisodic, StoreRetrieval, StoreProcedural}
}

// StoreKind returns the store class that items with this intent are routed
// to. The mapping is fixed: every intent resolves to exactly one kind.
func (i Intent) StoreKind() StoreKind {
	switch i {
	case IntentWorkingMemory:
		return StoreWorking
	case IntentSemanticLTM:
		return StoreSemantic
	case IntentEpisodicLTM:
		return StoreEpisodic
	case IntentRetrieval:
		return StoreRetrieval
	case IntentProceduralLTM:
		return StoreProcedural
	}
	return ""
}

// Metadata carries the context that travels with an item through the
// pipeline. TenantID is required and must not change once set.
type Metadata struct {
	TenantID string `json:"tenant_id"`
	AgentID  string `json:"agent_id,omitempty"`
	TaskID   string `json:"task_id,omitempty"`

	// CreatedAt is when the item entered the system, not when it was
	// last transformed.
	CreatedAt time.Time `json:"created_at"`

	// ProcessingHistory lists the "stage:component" token of every
	// processor that transformed the item, in execution order. It is
	// append-only.
	ProcessingHistory []string `json:"processing_history,omitempty"`

	Tags []string `json:"tags,omitempty"`

	// Annotations holds processor-attached facts (scores, ratios,
	// candidate sets). Processors replace values rather than mutating
	// them in place, so a cloned item can be discarded safely.
	Annotations map[string]any `json:"annotations,omitempty"`

	Embedding []float32 `json:"embedding,omitempty"`
}

// Item is the unit of work flowing through a pipeline. The orchestrator
// instantiates T as string; the pipeline machinery works for any payload.
type Item[T any] struct {
	ID       string   `json:"id"`
	Data     T        `json:"data"`
	DataType DataType `json:"data_type"`
	Intent   Intent   `json:"intent"`
	Metadata Metadata `json:"metadata"`
}

// NewItem creates an item with a fresh ID and creation timestamp.
func NewItem[T any](data T, dataType DataType, intent Intent, tenantID string) *Item[T] {
	return &Item[T]{
		ID:       uuid.New().String(),
		Data:     data,
		DataType: dataType,
		Intent:   intent,
		Metadata: Metadata{
			TenantID:  tenantID,
			CreatedAt: time.Now().UTC(),
		},
	}
}

// AppendHistory records a completed processing step. Tokens use the
// "stage:component" form, for example "acquisition:filter".
func (it *Item[T]) AppendHistory(token string) {
	it.Metadata.ProcessingHistory = append(it.Metadata.ProcessingHistory, token)
}

// SetAnnotation attaches or replaces a named annotation.
func (it *Item[T]) SetAnnotation(key string, value any) {
	if it.Metadata.Annotations == nil {
		it.Metadata.Annotations = make(map[string]any)
	}
	it.Metadata.Annotations[key] = value
}

// Annotation returns a named annotation and whether it is present.
func (it *Item[T]) Annotation(key string) (any, bool) {
	v, ok := it.Metadata.Annotations[key]
	return v, ok
}

// Clone returns a copy with independent metadata slices and annotation map,
// so mutations on the copy never reach the original. The payload is copied
// by value; string payloads are therefore fully independent.
func (it *Item[T]) Clone() *Item[T] {
	cp := *it
	if it.Metadata.ProcessingHistory != nil {
		cp.Metadata.ProcessingHistory = append([]string(nil), it.Metadata.ProcessingHistory...)
	}
	if it.Metadata.Tags != nil {
		cp.Metadata.Tags = append([]string(nil), it.Metadata.Tags...)
	}
	if it.Metadata.Embedding != nil {
		cp.Metadata.Embedding = append([]float32(nil), it.Metadata.Embedding...)
	}
	if it.Metadata.Annotations != nil {
		ann := make(map[string]any, len(it.Metadata.Annotations))
		for k, v := range it.Metadata.Annotations {
			ann[k] = v
		}
		cp.Metadata.Annotations = ann
	}
	return &cp
}
