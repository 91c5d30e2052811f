package encoding_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2arium/memflow/internal/stages/encoding"
	"github.com/a2arium/memflow/pkg/types"
)

func textItem(data string) *types.Item[string] {
	return types.NewItem(data, types.DataTypeText, types.IntentSemanticLTM, "tenant-a")
}

func salienceOf(t *testing.T, item *types.Item[string]) float64 {
	t.Helper()
	v, ok := item.Annotation(encoding.AnnotationSalience)
	require.True(t, ok, "salience annotation missing")
	f, ok := v.(float64)
	require.True(t, ok, "salience annotation is %T", v)
	return f
}

func TestAttentionAnnotatesBoundedScore(t *testing.T) {
	a := encoding.NewAttention()
	require.NoError(t, a.Configure(nil))

	item := textItem("a short observation")
	out, err := a.Process(context.Background(), item)
	require.NoError(t, err)
	require.Len(t, out, 1)

	s := salienceOf(t, out[0])
	assert.GreaterOrEqual(t, s, 0.0)
	assert.LessOrEqual(t, s, 1.0)
}

func TestAttentionFollowsImportance(t *testing.T) {
	a := encoding.NewAttention()
	require.NoError(t, a.Configure(nil))

	low := textItem("same length payload")
	low.SetAnnotation(types.AnnotationImportance, 0.1)
	high := textItem("same length payload")
	high.SetAnnotation(types.AnnotationImportance, 0.9)

	_, err := a.Process(context.Background(), low)
	require.NoError(t, err)
	_, err = a.Process(context.Background(), high)
	require.NoError(t, err)

	assert.Greater(t, salienceOf(t, high), salienceOf(t, low))
}

func TestAttentionDecaysWithAge(t *testing.T) {
	a := encoding.NewAttention()
	require.NoError(t, a.Configure(map[string]any{"recencyHalfLife": "1h"}))

	fresh := textItem("payload")
	stale := textItem("payload")
	stale.Metadata.CreatedAt = time.Now().UTC().Add(-6 * time.Hour)

	_, err := a.Process(context.Background(), fresh)
	require.NoError(t, err)
	_, err = a.Process(context.Background(), stale)
	require.NoError(t, err)

	assert.Greater(t, salienceOf(t, fresh), salienceOf(t, stale))
}

func TestAttentionPrefersBrevity(t *testing.T) {
	a := encoding.NewAttention()
	require.NoError(t, a.Configure(nil))

	terse := textItem("short")
	verbose := textItem(strings.Repeat("long payload ", 400))

	_, err := a.Process(context.Background(), terse)
	require.NoError(t, err)
	_, err = a.Process(context.Background(), verbose)
	require.NoError(t, err)

	assert.Greater(t, salienceOf(t, terse), salienceOf(t, verbose))
}

func TestAttentionConfigureRejectsBadHalfLife(t *testing.T) {
	a := encoding.NewAttention()
	assert.Error(t, a.Configure(map[string]any{"recencyHalfLife": "0s"}))
	assert.Error(t, a.Configure(map[string]any{"recencyHalfLife": "soon"}))
}

func TestFusionPassesItemsWithoutParts(t *testing.T) {
	f := encoding.NewFusion()
	require.NoError(t, f.Configure(nil))

	item := textItem("plain text")
	out, err := f.Process(context.Background(), item)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "plain text", out[0].Data)
	_, ok := out[0].Annotation(encoding.AnnotationModalities)
	assert.False(t, ok)
}

func TestFusionMergesParts(t *testing.T) {
	f := encoding.NewFusion()
	require.NoError(t, f.Configure(map[string]any{"separator": "\n"}))

	item := textItem("meeting notes")
	item.SetAnnotation(encoding.AnnotationParts, []any{
		map[string]any{"dataType": "image", "content": "whiteboard photo ref"},
		map[string]any{"dataType": "audio", "content": "recording ref"},
	})

	out, err := f.Process(context.Background(), item)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, "meeting notes\n[image] whiteboard photo ref\n[audio] recording ref", out[0].Data)

	mix, ok := out[0].Annotation(encoding.AnnotationModalities)
	require.True(t, ok)
	assert.Equal(t, []string{"audio", "image", "text"}, mix)

	_, ok = out[0].Annotation(encoding.AnnotationParts)
	assert.False(t, ok, "parts annotation is consumed")
}

func TestFusionRejectsMalformedParts(t *testing.T) {
	f := encoding.NewFusion()
	require.NoError(t, f.Configure(nil))

	cases := map[string]any{
		"not a list":    "oops",
		"not a map":     []any{"oops"},
		"bad type":      []any{map[string]any{"dataType": "video", "content": "x"}},
		"empty content": []any{map[string]any{"dataType": "image", "content": ""}},
	}
	for name, parts := range cases {
		t.Run(name, func(t *testing.T) {
			item := textItem("base")
			item.SetAnnotation(encoding.AnnotationParts, parts)
			_, err := f.Process(context.Background(), item)
			assert.Error(t, err)
		})
	}
}
