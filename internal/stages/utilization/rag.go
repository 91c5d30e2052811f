// Package utilization implements the builtin strategies for the
// utilization stage, shaping retrieved memories for prompt assembly.
package utilization

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/internal/stages/retrieval"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategyContext names the builtin RAG strategy.
const StrategyContext = "context"

// AnnotationContext holds the formatted context block for one item.
const AnnotationContext = "rag.context"

// RAG renders each matched memory as a numbered context entry ready for
// prompt injection. Items that did not come out of matching, such as
// fresh writes, pass through untouched.
//
// Options:
//
//	maxLength int     context block budget in bytes, default 2000
//	header    string  first line of the block, default "Relevant memories:"
type RAG struct {
	pipeline.Recorder

	maxLength int
	header    string
}

// NewRAG returns a context renderer with defaults applied.
func NewRAG() *RAG {
	return &RAG{maxLength: 2000, header: "Relevant memories:"}
}

// Configure applies rendering options.
func (r *RAG) Configure(options map[string]any) error {
	maxLength, err := pipeline.IntOption(options, "maxLength", 2000)
	if err != nil {
		return err
	}
	if maxLength <= 0 {
		return fmt.Errorf("option %q: must be positive, got %d", "maxLength", maxLength)
	}
	header, err := pipeline.StringOption(options, "header", "Relevant memories:")
	if err != nil {
		return err
	}
	r.maxLength = maxLength
	r.header = header
	return nil
}

// Process attaches a rendered context block to matched items.
func (r *RAG) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	rank, ok := asInt(item, retrieval.AnnotationMatchedRank)
	if !ok {
		r.RecordProcessed(time.Since(start))
		return []*types.Item[string]{item}, nil
	}

	var b strings.Builder
	b.WriteString(r.header)
	b.WriteString("\n")

	entry := fmt.Sprintf("%d. %s", rank, strings.TrimSpace(item.Data))
	if key, ok := item.Annotation(retrieval.AnnotationMatchedKey); ok {
		if s, ok := key.(string); ok && s != "" {
			entry = fmt.Sprintf("%d. [%s] %s", rank, s, strings.TrimSpace(item.Data))
		}
	}
	b.WriteString(entry)

	block := b.String()
	if len(block) > r.maxLength {
		block = cutAtWord(block, r.maxLength)
	}
	item.SetAnnotation(AnnotationContext, block)

	r.RecordProcessed(time.Since(start))
	return []*types.Item[string]{item}, nil
}

// Name returns the slot token.
func (r *RAG) Name() string {
	return pipeline.SlotRAG.Token()
}
