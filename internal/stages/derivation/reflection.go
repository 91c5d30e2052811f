package derivation

import (
	"context"
	"fmt"
	"time"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategyInsight names the builtin reflection strategy.
const StrategyInsight = "insight"

// Reflection annotation keys.
const (
	AnnotationSentences = "reflection.sentences"
	AnnotationWords     = "reflection.words"
	AnnotationDiversity = "reflection.diversity"
	AnnotationInsight   = "reflection.insight"
)

// Reflection derives structural statistics about the payload: sentence
// and word counts, lexical diversity, and a one-line insight summarizing
// them. The item always passes.
type Reflection struct {
	pipeline.Recorder
}

// NewReflection returns a reflection processor.
func NewReflection() *Reflection {
	return &Reflection{}
}

// Configure accepts no options.
func (r *Reflection) Configure(options map[string]any) error {
	return nil
}

// Process annotates payload statistics.
func (r *Reflection) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	sentences := splitSentences(item.Data)
	words := tokenize(item.Data)

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	diversity := 0.0
	if len(words) > 0 {
		diversity = float64(len(unique)) / float64(len(words))
	}

	item.SetAnnotation(AnnotationSentences, len(sentences))
	item.SetAnnotation(AnnotationWords, len(words))
	item.SetAnnotation(AnnotationDiversity, diversity)
	item.SetAnnotation(AnnotationInsight, fmt.Sprintf(
		"%d sentences, %d words, %.2f lexical diversity",
		len(sentences), len(words), diversity))

	r.RecordProcessed(time.Since(start))
	return []*types.Item[string]{item}, nil
}

// Name returns the slot token.
func (r *Reflection) Name() string {
	return pipeline.SlotReflection.Token()
}
