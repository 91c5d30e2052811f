// Package retrieval implements the builtin strategies for the retrieval
// stage: keyword indexing and candidate-set similarity matching.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategyKeywords names the builtin indexing strategy.
const StrategyKeywords = "keywords"

// AnnotationKeywords holds the keywords added to the item's tags.
const AnnotationKeywords = "indexing.keywords"

// stopwords are excluded from keyword extraction.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "had": {}, "has": {},
	"have": {}, "in": {}, "is": {}, "it": {}, "its": {}, "not": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {},
	"to": {}, "was": {}, "were": {}, "will": {}, "with": {},
}

// Indexing extracts the most frequent meaningful words from the payload
// and appends them to the item's tags, making the item findable through
// tag queries. Existing tags stay first and are never duplicated.
//
// Options:
//
//	maxKeywords int  keywords added per item, default 8
type Indexing struct {
	pipeline.Recorder

	maxKeywords int
}

// NewIndexing returns an unconfigured indexer.
func NewIndexing() *Indexing {
	return &Indexing{}
}

// Configure applies and validates indexing options.
func (ix *Indexing) Configure(options map[string]any) error {
	maxKeywords, err := pipeline.IntOption(options, "maxKeywords", 8)
	if err != nil {
		return err
	}
	if maxKeywords <= 0 {
		return fmt.Errorf("option %q: must be positive, got %d", "maxKeywords", maxKeywords)
	}
	ix.maxKeywords = maxKeywords
	return nil
}

// Process appends keyword tags.
func (ix *Indexing) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	keywords := extractKeywords(item.Data, ix.maxKeywords)

	existing := make(map[string]struct{}, len(item.Metadata.Tags))
	for _, t := range item.Metadata.Tags {
		existing[t] = struct{}{}
	}
	var added []string
	for _, kw := range keywords {
		if _, ok := existing[kw]; ok {
			continue
		}
		item.Metadata.Tags = append(item.Metadata.Tags, kw)
		added = append(added, kw)
	}
	if len(added) > 0 {
		item.SetAnnotation(AnnotationKeywords, added)
	}

	ix.RecordProcessed(time.Since(start))
	return []*types.Item[string]{item}, nil
}

// Name returns the slot token.
func (ix *Indexing) Name() string {
	return pipeline.SlotIndexing.Token()
}

// tokenize lowercases s and splits it into alphanumeric word tokens.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// extractKeywords returns the up-to-max most frequent non-stopword tokens
// of at least three characters, most frequent first, ties alphabetical.
func extractKeywords(text string, max int) []string {
	freq := make(map[string]int)
	for _, w := range tokenize(text) {
		if len(w) < 3 {
			continue
		}
		if _, ok := stopwords[w]; ok {
			continue
		}
		freq[w]++
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(a, b int) bool {
		if freq[words[a]] != freq[words[b]] {
			return freq[words[a]] > freq[words[b]]
		}
		return words[a] < words[b]
	})

	if len(words) > max {
		words = words[:max]
	}
	return words
}
