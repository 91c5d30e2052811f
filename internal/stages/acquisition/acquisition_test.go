package acquisition_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2arium/memflow/internal/stages/acquisition"
	"github.com/a2arium/memflow/pkg/types"
)

func textItem(tenant, data string) *types.Item[string] {
	return types.NewItem(data, types.DataTypeText, types.IntentSemanticLTM, tenant)
}

func TestFilterAdmitsEverythingByDefault(t *testing.T) {
	f := acquisition.NewFilter()
	require.NoError(t, f.Configure(nil))

	out, err := f.Process(context.Background(), textItem("anyone", "hello"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), f.Metrics().ItemsProcessed)
}

func TestFilterTenantGate(t *testing.T) {
	f := acquisition.NewFilter()
	require.NoError(t, f.Configure(map[string]any{
		"allowedTenants": []string{"tenant-a", "tenant-b"},
	}))

	out, err := f.Process(context.Background(), textItem("tenant-a", "in"))
	require.NoError(t, err)
	assert.Len(t, out, 1)

	out, err = f.Process(context.Background(), textItem("tenant-c", "out"))
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, int64(1), f.Metrics().ItemsDropped)
}

func TestFilterSizeGate(t *testing.T) {
	f := acquisition.NewFilter()
	require.NoError(t, f.Configure(map[string]any{"maxInputSize": 10}))

	out, err := f.Process(context.Background(), textItem("t", "exactly10!"))
	require.NoError(t, err)
	assert.Len(t, out, 1, "payloads at the limit are admitted")

	out, err = f.Process(context.Background(), textItem("t", "eleven bytes"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFilterRelevanceGate(t *testing.T) {
	f := acquisition.NewFilter()
	require.NoError(t, f.Configure(map[string]any{"minRelevance": 0.5}))

	low := textItem("t", "noise")
	low.SetAnnotation(types.AnnotationImportance, 0.2)
	out, err := f.Process(context.Background(), low)
	require.NoError(t, err)
	assert.Empty(t, out)

	high := textItem("t", "signal")
	high.SetAnnotation(types.AnnotationImportance, 0.9)
	out, err = f.Process(context.Background(), high)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	// Unrated items are not penalized.
	out, err = f.Process(context.Background(), textItem("t", "unrated"))
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestFilterConfigureRejectsBadOptions(t *testing.T) {
	f := acquisition.NewFilter()
	assert.Error(t, f.Configure(map[string]any{"maxInputSize": -1}))
	assert.Error(t, f.Configure(map[string]any{"minRelevance": 1.5}))
	assert.Error(t, f.Configure(map[string]any{"maxInputSize": "ten"}))
}

func TestCompressorPassesSmallPayloads(t *testing.T) {
	c := acquisition.NewCompressor()
	require.NoError(t, c.Configure(map[string]any{"maxSize": 100}))

	item := textItem("t", "short note")
	out, err := c.Process(context.Background(), item)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "short note", out[0].Data)
	_, annotated := out[0].Annotation(acquisition.AnnotationOriginalSize)
	assert.False(t, annotated, "untouched items carry no compression annotations")
}

func TestCompressorTruncatesAtSentenceBoundary(t *testing.T) {
	c := acquisition.NewCompressor()
	require.NoError(t, c.Configure(map[string]any{
		"maxSize": 40,
		"ratio":   1.0,
		"marker":  "...",
	}))

	item := textItem("t", "First sentence here. Second one that runs well past the limit.")
	out, err := c.Process(context.Background(), item)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "First sentence here....", out[0].Data)

	orig, ok := out[0].Annotation(acquisition.AnnotationOriginalSize)
	require.True(t, ok)
	assert.Equal(t, 62, orig)
	size, ok := out[0].Annotation(acquisition.AnnotationCompressedSize)
	require.True(t, ok)
	assert.Equal(t, len(out[0].Data), size)
	ratio, ok := out[0].Annotation(acquisition.AnnotationRatio)
	require.True(t, ok)
	assert.InDelta(t, float64(len(out[0].Data))/62.0, ratio.(float64), 1e-9)
}

func TestCompressorWordBoundaryFallback(t *testing.T) {
	c := acquisition.NewCompressor()
	require.NoError(t, c.Configure(map[string]any{
		"maxSize": 20,
		"ratio":   1.0,
		"marker":  "",
	}))

	item := textItem("t", "alpha beta gamma delta epsilon")
	out, err := c.Process(context.Background(), item)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "alpha beta gamma", out[0].Data)
}

func TestCompressorHardCutIsRuneSafe(t *testing.T) {
	c := acquisition.NewCompressor()
	require.NoError(t, c.Configure(map[string]any{
		"maxSize": 10,
		"ratio":   1.0,
		"marker":  "",
	}))

	item := textItem("t", strings.Repeat("é", 20))
	out, err := c.Process(context.Background(), item)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, utf8.ValidString(out[0].Data))
	assert.LessOrEqual(t, len(out[0].Data), 10)
}

func TestCompressorConfigureRejectsBadOptions(t *testing.T) {
	c := acquisition.NewCompressor()
	assert.Error(t, c.Configure(map[string]any{"maxSize": 0}))
	assert.Error(t, c.Configure(map[string]any{"ratio": 0.0}))
	assert.Error(t, c.Configure(map[string]any{"ratio": 1.2}))
}

func TestConsolidatorDropsWindowDuplicates(t *testing.T) {
	c := acquisition.NewConsolidator()
	require.NoError(t, c.Configure(nil))

	out, err := c.Process(context.Background(), textItem("t", "same payload"))
	require.NoError(t, err)
	assert.Len(t, out, 1)

	out, err = c.Process(context.Background(), textItem("t", "same payload"))
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = c.Process(context.Background(), textItem("t", "different payload"))
	require.NoError(t, err)
	assert.Len(t, out, 1)

	m := c.Metrics()
	assert.Equal(t, int64(2), m.ItemsProcessed)
	assert.Equal(t, int64(1), m.ItemsDropped)
}

func TestConsolidatorScopesByTenant(t *testing.T) {
	c := acquisition.NewConsolidator()
	require.NoError(t, c.Configure(nil))

	out, err := c.Process(context.Background(), textItem("tenant-a", "shared text"))
	require.NoError(t, err)
	assert.Len(t, out, 1)

	// The same payload from another tenant is not a duplicate.
	out, err = c.Process(context.Background(), textItem("tenant-b", "shared text"))
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestConsolidatorWindowEviction(t *testing.T) {
	c := acquisition.NewConsolidator()
	require.NoError(t, c.Configure(map[string]any{"window": 2}))

	ctx := context.Background()
	for _, data := range []string{"one", "two", "three"} {
		out, err := c.Process(ctx, textItem("t", data))
		require.NoError(t, err)
		require.Len(t, out, 1)
	}

	// "one" was evicted by "three", so it is admitted again.
	out, err := c.Process(ctx, textItem("t", "one"))
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestConsolidatorRequiresConfigure(t *testing.T) {
	c := acquisition.NewConsolidator()
	_, err := c.Process(context.Background(), textItem("t", "x"))
	assert.Error(t, err)
}

// TestConsolidatorConcurrentDuplicates floods the window with the same
// payload from many goroutines. The check-and-insert is atomic, so exactly
// one item survives.
func TestConsolidatorConcurrentDuplicates(t *testing.T) {
	c := acquisition.NewConsolidator()
	require.NoError(t, c.Configure(nil))

	const workers = 32
	var wg sync.WaitGroup
	admitted := make(chan string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			item := textItem("t", "identical burst payload")
			item.ID = fmt.Sprintf("burst-%d", i)
			out, err := c.Process(context.Background(), item)
			assert.NoError(t, err)
			if len(out) > 0 {
				admitted <- out[0].ID
			}
		}(i)
	}
	wg.Wait()
	close(admitted)

	var survivors []string
	for id := range admitted {
		survivors = append(survivors, id)
	}
	assert.Len(t, survivors, 1)

	m := c.Metrics()
	assert.Equal(t, int64(1), m.ItemsProcessed)
	assert.Equal(t, int64(workers-1), m.ItemsDropped)
}
