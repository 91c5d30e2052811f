package acquisition

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategyTruncate names the builtin compressor strategy.
const StrategyTruncate = "truncate"

// Compressor annotation keys.
const (
	AnnotationOriginalSize   = "compressor.originalSize"
	AnnotationCompressedSize = "compressor.compressedSize"
	AnnotationRatio          = "compressor.ratio"
)

// Compressor truncates over-limit payloads at a sentence or word boundary
// at or before ratio×maxSize and appends a marker. Items within the limit
// pass untouched.
//
// Options:
//
//	maxSize int      payload byte limit, default 2048
//	ratio   float64  truncation target as a fraction of maxSize, default 0.8
//	marker  string   appended to truncated payloads, default " [truncated]"
type Compressor struct {
	pipeline.Recorder

	maxSize int
	ratio   float64
	marker  string
}

// NewCompressor returns an unconfigured compressor.
func NewCompressor() *Compressor {
	return &Compressor{}
}

// Configure applies and validates compressor options.
func (c *Compressor) Configure(options map[string]any) error {
	maxSize, err := pipeline.IntOption(options, "maxSize", 2048)
	if err != nil {
		return err
	}
	ratio, err := pipeline.Float64Option(options, "ratio", 0.8)
	if err != nil {
		return err
	}
	marker, err := pipeline.StringOption(options, "marker", " [truncated]")
	if err != nil {
		return err
	}
	if maxSize <= 0 {
		return fmt.Errorf("option %q: must be positive, got %d", "maxSize", maxSize)
	}
	if ratio <= 0 || ratio > 1 {
		return fmt.Errorf("option %q: must be in (0,1], got %v", "ratio", ratio)
	}

	c.maxSize = maxSize
	c.ratio = ratio
	c.marker = marker
	return nil
}

// Process truncates the payload when it exceeds the limit.
func (c *Compressor) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	if len(item.Data) <= c.maxSize {
		c.RecordProcessed(time.Since(start))
		return []*types.Item[string]{item}, nil
	}

	original := len(item.Data)
	budget := int(float64(c.maxSize) * c.ratio)
	item.Data = truncateAtBoundary(item.Data, budget) + c.marker

	item.SetAnnotation(AnnotationOriginalSize, original)
	item.SetAnnotation(AnnotationCompressedSize, len(item.Data))
	item.SetAnnotation(AnnotationRatio, float64(len(item.Data))/float64(original))

	c.RecordProcessed(time.Since(start))
	return []*types.Item[string]{item}, nil
}

// Name returns the slot token.
func (c *Compressor) Name() string {
	return pipeline.SlotCompressor.Token()
}

// truncateAtBoundary cuts s at the last sentence end at or before limit,
// falling back to the last word boundary, then to a rune-safe hard cut.
func truncateAtBoundary(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}

	window := s[:limit]
	if i := strings.LastIndexAny(window, ".!?"); i > 0 {
		return window[:i+1]
	}
	if i := strings.LastIndexAny(window, " \t\n"); i > 0 {
		return window[:i]
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
