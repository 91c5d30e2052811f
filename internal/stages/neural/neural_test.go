package neural_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2arium/memflow/internal/stages/encoding"
	"github.com/a2arium/memflow/internal/stages/neural"
	"github.com/a2arium/memflow/pkg/types"
)

func taggedItem(tenant, data string, tags ...string) *types.Item[string] {
	item := types.NewItem(data, types.DataTypeText, types.IntentSemanticLTM, tenant)
	item.Metadata.Tags = tags
	return item
}

func relatedOf(t *testing.T, item *types.Item[string]) []string {
	t.Helper()
	v, ok := item.Annotation(neural.AnnotationRelated)
	if !ok {
		return nil
	}
	ids, ok := v.([]string)
	require.True(t, ok, "related annotation is %T", v)
	return ids
}

func TestAssociativeLinksItemsSharingTags(t *testing.T) {
	a := neural.NewAssociative()
	require.NoError(t, a.Configure(nil))
	ctx := context.Background()

	first := taggedItem("t", "postgres connection pool sizing", "postgres")
	out, err := a.Process(ctx, first)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, relatedOf(t, out[0]), "nothing to relate to yet")

	second := taggedItem("t", "postgres vacuum schedule", "postgres")
	out, err = a.Process(ctx, second)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{first.ID}, relatedOf(t, out[0]))

	// A third item sharing the tag sees both predecessors, sorted.
	third := taggedItem("t", "postgres index bloat", "postgres")
	out, err = a.Process(ctx, third)
	require.NoError(t, err)
	got := relatedOf(t, out[0])
	assert.ElementsMatch(t, []string{first.ID, second.ID}, got)
	assert.IsIncreasing(t, got)
}

func TestAssociativeScopesByTenant(t *testing.T) {
	a := neural.NewAssociative()
	require.NoError(t, a.Configure(nil))
	ctx := context.Background()

	_, err := a.Process(ctx, taggedItem("tenant-a", "note one", "shared"))
	require.NoError(t, err)

	other := taggedItem("tenant-b", "note two", "shared")
	out, err := a.Process(ctx, other)
	require.NoError(t, err)
	assert.Nil(t, relatedOf(t, out[0]), "tags never associate across tenants")
}

func TestAssociativePassesUntaggedItems(t *testing.T) {
	a := neural.NewAssociative()
	require.NoError(t, a.Configure(nil))

	item := taggedItem("t", "no tags on this one")
	out, err := a.Process(context.Background(), item)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, relatedOf(t, out[0]))
}

func TestAssociativeCapsAssociations(t *testing.T) {
	a := neural.NewAssociative()
	require.NoError(t, a.Configure(map[string]any{"maxAssociations": 2}))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		item := taggedItem("t", "entry", "hot")
		ids = append(ids, item.ID)
		_, err := a.Process(ctx, item)
		require.NoError(t, err)
	}

	probe := taggedItem("t", "probe", "hot")
	out, err := a.Process(ctx, probe)
	require.NoError(t, err)

	// Only the most recent two are remembered per tag.
	assert.ElementsMatch(t, ids[2:], relatedOf(t, out[0]))
}

func TestAssociativeRequiresConfigure(t *testing.T) {
	a := neural.NewAssociative()
	_, err := a.Process(context.Background(), taggedItem("t", "x", "tag"))
	assert.Error(t, err)
}

func TestAssociativeCloseReleasesCache(t *testing.T) {
	a := neural.NewAssociative()
	require.NoError(t, a.Configure(nil))
	ctx := context.Background()

	_, err := a.Process(ctx, taggedItem("t", "before close", "tag"))
	require.NoError(t, err)

	a.Close()
	_, err = a.Process(ctx, taggedItem("t", "after close", "tag"))
	assert.Error(t, err, "a closed processor reports itself unconfigured")
}

func TestAssociativeConfigureRejectsBadOptions(t *testing.T) {
	a := neural.NewAssociative()
	assert.Error(t, a.Configure(map[string]any{"maxEntries": 0}))
	assert.Error(t, a.Configure(map[string]any{"maxAssociations": -1}))
}

func emaOf(t *testing.T, item *types.Item[string]) float64 {
	t.Helper()
	v, ok := item.Annotation(neural.AnnotationEMA)
	require.True(t, ok, "ema annotation missing")
	return v.(float64)
}

func TestParameterIntegrationSeedsWithFirstSignal(t *testing.T) {
	p := neural.NewParameterIntegration()
	require.NoError(t, p.Configure(nil))

	item := taggedItem("t", "observation")
	item.SetAnnotation(encoding.AnnotationSalience, 0.8)
	out, err := p.Process(context.Background(), item)
	require.NoError(t, err)

	assert.InDelta(t, 0.8, emaOf(t, out[0]), 1e-9)
	obs, ok := out[0].Annotation(neural.AnnotationObservations)
	require.True(t, ok)
	assert.Equal(t, 1, obs)
}

func TestParameterIntegrationSmoothsTowardsNewSignal(t *testing.T) {
	p := neural.NewParameterIntegration()
	require.NoError(t, p.Configure(map[string]any{"alpha": 0.5}))
	ctx := context.Background()

	first := taggedItem("t", "a")
	first.SetAnnotation(encoding.AnnotationSalience, 1.0)
	_, err := p.Process(ctx, first)
	require.NoError(t, err)

	second := taggedItem("t", "b")
	second.SetAnnotation(encoding.AnnotationSalience, 0.0)
	out, err := p.Process(ctx, second)
	require.NoError(t, err)

	// 0.5*0.0 + 0.5*1.0
	assert.InDelta(t, 0.5, emaOf(t, out[0]), 1e-9)
}

func TestParameterIntegrationFallsBackToImportance(t *testing.T) {
	p := neural.NewParameterIntegration()
	require.NoError(t, p.Configure(nil))

	rated := taggedItem("t", "rated")
	rated.SetAnnotation(types.AnnotationImportance, 0.9)
	out, err := p.Process(context.Background(), rated)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, emaOf(t, out[0]), 1e-9)

	// Without salience or importance the signal is neutral.
	p2 := neural.NewParameterIntegration()
	require.NoError(t, p2.Configure(nil))
	out, err = p2.Process(context.Background(), taggedItem("t", "unrated"))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, emaOf(t, out[0]), 1e-9)
}

func TestParameterIntegrationPerTenantAverages(t *testing.T) {
	p := neural.NewParameterIntegration()
	require.NoError(t, p.Configure(nil))
	ctx := context.Background()

	a := taggedItem("tenant-a", "x")
	a.SetAnnotation(encoding.AnnotationSalience, 1.0)
	outA, err := p.Process(ctx, a)
	require.NoError(t, err)

	b := taggedItem("tenant-b", "y")
	b.SetAnnotation(encoding.AnnotationSalience, 0.2)
	outB, err := p.Process(ctx, b)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, emaOf(t, outA[0]), 1e-9)
	assert.InDelta(t, 0.2, emaOf(t, outB[0]), 1e-9)
}

func TestParameterIntegrationConfigureRejectsBadAlpha(t *testing.T) {
	p := neural.NewParameterIntegration()
	assert.Error(t, p.Configure(map[string]any{"alpha": 0.0}))
	assert.Error(t, p.Configure(map[string]any{"alpha": 1.5}))
}
