package derivation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategyKeypoints names the builtin distillation strategy.
const StrategyKeypoints = "keypoints"

// AnnotationKeypoints holds the distilled key sentences.
const AnnotationKeypoints = "distillation.keypoints"

// Distillation picks the most information-dense sentences: each sentence
// scores by the document-wide frequency of its words normalized by
// sentence length, and the top scorers are annotated in original order.
//
// Options:
//
//	maxPoints int  number of sentences kept, default 3
type Distillation struct {
	pipeline.Recorder

	maxPoints int
}

// NewDistillation returns an unconfigured distiller.
func NewDistillation() *Distillation {
	return &Distillation{}
}

// Configure applies and validates distillation options.
func (d *Distillation) Configure(options map[string]any) error {
	maxPoints, err := pipeline.IntOption(options, "maxPoints", 3)
	if err != nil {
		return err
	}
	if maxPoints <= 0 {
		return fmt.Errorf("option %q: must be positive, got %d", "maxPoints", maxPoints)
	}
	d.maxPoints = maxPoints
	return nil
}

// Process annotates the key points.
func (d *Distillation) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	sentences := splitSentences(item.Data)
	if len(sentences) == 0 {
		d.RecordProcessed(time.Since(start))
		return []*types.Item[string]{item}, nil
	}

	freq := make(map[string]int)
	for _, w := range tokenize(item.Data) {
		freq[w]++
	}

	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, sent := range sentences {
		words := tokenize(sent)
		total := 0
		for _, w := range words {
			total += freq[w]
		}
		score := 0.0
		if len(words) > 0 {
			score = float64(total) / float64(len(words))
		}
		ranked[i] = scored{index: i, score: score}
	}

	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
	keep := ranked
	if len(keep) > d.maxPoints {
		keep = keep[:d.maxPoints]
	}
	sort.Slice(keep, func(a, b int) bool { return keep[a].index < keep[b].index })

	points := make([]string, len(keep))
	for i, k := range keep {
		points[i] = sentences[k.index]
	}
	item.SetAnnotation(AnnotationKeypoints, points)

	d.RecordProcessed(time.Since(start))
	return []*types.Item[string]{item}, nil
}

// Name returns the slot token.
func (d *Distillation) Name() string {
	return pipeline.SlotDistillation.Token()
}
