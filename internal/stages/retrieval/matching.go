package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/a2arium/memflow/internal/embedding"
	"github.com/a2arium/memflow/internal/logging"
	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategySimilarity names the builtin matching strategy.
const StrategySimilarity = "similarity"

// Matching annotation keys, attached to every result item. Utilization
// strategies read them to budget and ground the results.
const (
	AnnotationMatchedKey     = "matching.key"
	AnnotationMatchedScore   = "matching.score"
	AnnotationMatchedRank    = "matching.rank"
	AnnotationMatchedSetSize = "matching.setSize"
	AnnotationMatchedQuery   = "matching.query"
)

// Matching ranks the candidate set against the query item and fans out
// into one result item per winner, best first. With an embedder (or a
// pre-embedded query) candidates score by cosine similarity blended with
// lexical term overlap; without one, lexical overlap alone. Ties go to
// the newer candidate.
//
// Items without a candidate-set annotation pass through untouched, so a
// write pipeline configured with this slot never loses items. An empty
// candidate set drops the query: the search found nothing.
//
// Options:
//
//	topK int  results kept, default 5
type Matching struct {
	pipeline.Recorder

	embedder embedding.Embedder
	topK     int
}

// NewMatching returns an unconfigured matcher. The embedder may be nil.
func NewMatching(emb embedding.Embedder) *Matching {
	return &Matching{embedder: emb}
}

// Configure applies and validates matching options.
func (m *Matching) Configure(options map[string]any) error {
	topK, err := pipeline.IntOption(options, "topK", 5)
	if err != nil {
		return err
	}
	if topK <= 0 {
		return fmt.Errorf("option %q: must be positive, got %d", "topK", topK)
	}
	m.topK = topK
	return nil
}

// Process ranks candidates and fans out the winners.
func (m *Matching) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	raw, ok := item.Annotation(types.AnnotationCandidates)
	if !ok {
		m.RecordProcessed(time.Since(start))
		return []*types.Item[string]{item}, nil
	}
	candidates, ok := raw.([]types.Candidate)
	if !ok {
		return nil, fmt.Errorf("candidate annotation: expected []types.Candidate, got %T", raw)
	}
	if len(candidates) == 0 {
		m.RecordDrop(time.Since(start))
		return nil, nil
	}

	queryText := item.Data
	queryVec := item.Metadata.Embedding
	if len(queryVec) == 0 && m.embedder != nil {
		vec, err := m.embedder.Embed(ctx, queryText)
		if err != nil {
			logging.Debug("[Matching] query embedding failed, using lexical scoring: %v", err)
		} else {
			queryVec = vec
		}
	}

	type ranked struct {
		cand  types.Candidate
		score float64
	}
	scores := make([]ranked, len(candidates))
	for i, cand := range candidates {
		scores[i] = ranked{cand: cand, score: scoreCandidate(queryText, queryVec, cand)}
	}
	sort.SliceStable(scores, func(a, b int) bool {
		if scores[a].score != scores[b].score {
			return scores[a].score > scores[b].score
		}
		if !scores[a].cand.CreatedAt.Equal(scores[b].cand.CreatedAt) {
			return scores[a].cand.CreatedAt.After(scores[b].cand.CreatedAt)
		}
		return scores[a].cand.Key < scores[b].cand.Key
	})
	if len(scores) > m.topK {
		scores = scores[:m.topK]
	}

	out := make([]*types.Item[string], len(scores))
	for i, r := range scores {
		result := item.Clone()
		result.ID = uuid.New().String()
		result.Data = r.cand.Text
		if !r.cand.CreatedAt.IsZero() {
			result.Metadata.CreatedAt = r.cand.CreatedAt
		}
		result.Metadata.Tags = append([]string(nil), r.cand.Tags...)
		result.Metadata.Embedding = append([]float32(nil), r.cand.Embedding...)
		delete(result.Metadata.Annotations, types.AnnotationCandidates)

		result.SetAnnotation(AnnotationMatchedKey, r.cand.Key)
		result.SetAnnotation(AnnotationMatchedScore, r.score)
		result.SetAnnotation(AnnotationMatchedRank, i+1)
		result.SetAnnotation(AnnotationMatchedSetSize, len(scores))
		result.SetAnnotation(AnnotationMatchedQuery, queryText)
		out[i] = result
	}

	m.RecordProcessed(time.Since(start))
	return out, nil
}

// Name returns the slot token.
func (m *Matching) Name() string {
	return pipeline.SlotMatching.Token()
}

// scoreCandidate blends cosine similarity with lexical term overlap when
// both sides carry embeddings, and falls back to lexical overlap alone.
func scoreCandidate(queryText string, queryVec []float32, cand types.Candidate) float64 {
	lexical := lexicalScore(queryText, cand.Text)
	if len(queryVec) > 0 && len(cand.Embedding) > 0 {
		return 0.7*embedding.Cosine(queryVec, cand.Embedding) + 0.3*lexical
	}
	return lexical
}

// lexicalScore counts query term occurrences in the content, normalized
// by content length.
func lexicalScore(query, content string) float64 {
	lowered := strings.ToLower(content)
	var score float64
	for _, term := range strings.Fields(strings.ToLower(query)) {
		score += float64(strings.Count(lowered, term))
	}
	if len(lowered) > 0 {
		score = score / float64(len(lowered)) * 1000
	}
	return score
}
