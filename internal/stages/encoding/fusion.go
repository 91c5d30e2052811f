package encoding

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/pkg/types"
)

// StrategyModality names the builtin fusion strategy.
const StrategyModality = "modality"

// Fusion annotation keys. AnnotationParts is the input: a list of part
// maps ({"dataType": ..., "content": ...}) attached by the caller before
// processing. Fusion consumes it and leaves the modality mix behind.
const (
	AnnotationParts      = "fusion.parts"
	AnnotationModalities = "fusion.modalities"
)

// Fusion merges auxiliary content parts into the payload. Each part is
// appended as a "[modality] content" section; the resulting modality mix
// is annotated. Items without parts pass untouched. A malformed part is
// a processing fault.
//
// Options:
//
//	separator string  between merged sections, default "\n\n"
type Fusion struct {
	pipeline.Recorder

	separator string
}

// NewFusion returns an unconfigured fusion processor.
func NewFusion() *Fusion {
	return &Fusion{}
}

// Configure applies fusion options.
func (f *Fusion) Configure(options map[string]any) error {
	separator, err := pipeline.StringOption(options, "separator", "\n\n")
	if err != nil {
		return err
	}
	f.separator = separator
	return nil
}

// Process merges part annotations into the payload.
func (f *Fusion) Process(ctx context.Context, item *types.Item[string]) ([]*types.Item[string], error) {
	start := time.Now()

	raw, ok := item.Annotation(AnnotationParts)
	if !ok {
		f.RecordProcessed(time.Since(start))
		return []*types.Item[string]{item}, nil
	}

	parts, err := decodeParts(raw)
	if err != nil {
		return nil, err
	}

	modalities := map[string]struct{}{string(item.DataType): {}}
	sections := []string{item.Data}
	for _, p := range parts {
		modalities[p.dataType] = struct{}{}
		sections = append(sections, fmt.Sprintf("[%s] %s", p.dataType, p.content))
	}

	item.Data = strings.Join(sections, f.separator)
	delete(item.Metadata.Annotations, AnnotationParts)

	mix := make([]string, 0, len(modalities))
	for m := range modalities {
		mix = append(mix, m)
	}
	sort.Strings(mix)
	item.SetAnnotation(AnnotationModalities, mix)

	f.RecordProcessed(time.Since(start))
	return []*types.Item[string]{item}, nil
}

// Name returns the slot token.
func (f *Fusion) Name() string {
	return pipeline.SlotFusion.Token()
}

type fusionPart struct {
	dataType string
	content  string
}

func decodeParts(raw any) ([]fusionPart, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("fusion parts: expected list, got %T", raw)
	}

	parts := make([]fusionPart, 0, len(list))
	for i, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("fusion part %d: expected map, got %T", i, e)
		}
		dataType, _ := m["dataType"].(string)
		content, _ := m["content"].(string)
		if !types.DataType(dataType).Valid() {
			return nil, fmt.Errorf("fusion part %d: invalid data type %q", i, dataType)
		}
		if content == "" {
			return nil, fmt.Errorf("fusion part %d: empty content", i)
		}
		parts = append(parts, fusionPart{dataType: dataType, content: content})
	}
	return parts, nil
}
