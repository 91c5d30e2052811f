package utilization

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/internal/stages/retrieval"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategyGrounding names the builtin hallucination-mitigation strategy.
const StrategyGrounding = "grounding"

// AnnotationGrounding holds the fraction of query terms found in the item.
const AnnotationGrounding = "hallucinationMitigation.grounding"

// Hallucination scores each matched memory by how many of the query's
// terms actually appear in it and drops items below the floor. A memory
// that shares no vocabulary with the question is the kind most likely to
// mislead the model downstream. Items without a recorded query pass with
// a full score.
//
// Options:
//
//	minGrounding float64  drop threshold in [0, 1], default 0
type Hallucination struct {
	pipeline.Recorder

	minGrounding float64
}

// NewHallucination returns a grounding checker that only annotates.
func NewHallucination() *Hallucination {
	return &Hallucination{}
}

// Configure applies the drop threshold.
func (h *Hallucination) Configure(options map[string]any) error {
	minGrounding, err := pipeline.Float64Option(options, "minGrounding", 0)
	if err != nil {
		return err
	}
	if minGrounding < 0 || minGrounding > 1 {
		return fmt.Errorf("option %q: must be in [0, 1], got %v", "minGrounding", minGrounding)
	}
	h.minGrounding = minGrounding
	return nil
}

// Process annotates the grounding score and drops ungrounded items.
func (h *Hallucination) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	query := ""
	if v, ok := item.Annotation(retrieval.AnnotationMatchedQuery); ok {
		query, _ = v.(string)
	}

	score := 1.0
	if terms := groundingTerms(query); len(terms) > 0 {
		content := strings.ToLower(item.Data)
		found := 0
		for _, term := range terms {
			if strings.Contains(content, term) {
				found++
			}
		}
		score = float64(found) / float64(len(terms))
	}
	item.SetAnnotation(AnnotationGrounding, score)

	if score < h.minGrounding {
		h.RecordDrop(time.Since(start))
		return nil, nil
	}

	h.RecordProcessed(time.Since(start))
	return []*types.Item[string]{item}, nil
}

// Name returns the slot token.
func (h *Hallucination) Name() string {
	return pipeline.SlotHallucinationMitigation.Token()
}

// groundingTerms lowercases the query and keeps unique terms of three or
// more characters, so stop-length words do not inflate the score.
func groundingTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}
