package derivation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategyExtractive names the builtin summarization strategy.
const StrategyExtractive = "extractive"

// AnnotationSummary holds the extractive summary.
const AnnotationSummary = "summarization.summary"

// Summarization annotates a leading-sentence summary: sentences are taken
// from the front until either the sentence or character budget runs out.
// The payload itself is never modified.
//
// Options:
//
//	maxSentences int  sentence budget, default 3
//	maxChars     int  character budget, default 480
type Summarization struct {
	pipeline.Recorder

	maxSentences int
	maxChars     int
}

// NewSummarization returns an unconfigured summarizer.
func NewSummarization() *Summarization {
	return &Summarization{}
}

// Configure applies and validates summarization options.
func (s *Summarization) Configure(options map[string]any) error {
	maxSentences, err := pipeline.IntOption(options, "maxSentences", 3)
	if err != nil {
		return err
	}
	maxChars, err := pipeline.IntOption(options, "maxChars", 480)
	if err != nil {
		return err
	}
	if maxSentences <= 0 {
		return fmt.Errorf("option %q: must be positive, got %d", "maxSentences", maxSentences)
	}
	if maxChars <= 0 {
		return fmt.Errorf("option %q: must be positive, got %d", "maxChars", maxChars)
	}
	s.maxSentences = maxSentences
	s.maxChars = maxChars
	return nil
}

// Process annotates the summary.
func (s *Summarization) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	sentences := splitSentences(item.Data)
	var picked []string
	length := 0
	for _, sent := range sentences {
		if len(picked) == s.maxSentences {
			break
		}
		if len(picked) > 0 && length+len(sent)+1 > s.maxChars {
			break
		}
		picked = append(picked, sent)
		length += len(sent) + 1
	}

	summary := strings.Join(picked, " ")
	if len(summary) > s.maxChars {
		cut := s.maxChars
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut]
	}
	item.SetAnnotation(AnnotationSummary, summary)

	s.RecordProcessed(time.Since(start))
	return []*types.Item[string]{item}, nil
}

// Name returns the slot token.
func (s *Summarization) Name() string {
	return pipeline.SlotSummarization.Token()
}
