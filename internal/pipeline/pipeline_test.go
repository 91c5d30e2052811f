package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/pkg/types"
)

// fakeProc is a scriptable processor over int payloads. It embeds the
// Recorder the same way the builtins do, so fault accounting through the
// executor is covered too.
type fakeProc struct {
	pipeline.Recorder
	name      string
	fn        func(ctx context.Context, item *types.Item[int]) ([]*types.Item[int], error)
	configure func(options map[string]any) error
}

func (f *fakeProc) Process(ctx context.Context, item *types.Item[int]) ([]*types.Item[int], error) {
	start := time.Now()
	outs, err := f.fn(ctx, item)
	if err != nil {
		return nil, err
	}
	if len(outs) == 0 {
		f.RecordDrop(time.Since(start))
		return nil, nil
	}
	f.RecordProcessed(time.Since(start))
	return outs, nil
}

func (f *fakeProc) Configure(options map[string]any) error {
	if f.configure != nil {
		return f.configure(options)
	}
	return nil
}

func (f *fakeProc) Name() string { return f.name }

func passThrough(ctx context.Context, item *types.Item[int]) ([]*types.Item[int], error) {
	return []*types.Item[int]{item}, nil
}

// build registers each fake under strategy "test" and builds the pipeline.
func build(t *testing.T, cfg *types.PipelineConfig, procs map[pipeline.Slot]*fakeProc) *pipeline.Pipeline[int] {
	t.Helper()
	f := pipeline.NewFactory[int]()
	for slot, p := range procs {
		p := p
		require.NoError(t, f.Register(slot, "test", func() pipeline.Processor[int] { return p }))
	}
	pl, err := pipeline.NewBuilder(f).Build(cfg)
	require.NoError(t, err)
	return pl
}

func testSlot() *types.SlotConfig {
	return &types.SlotConfig{Strategy: "test"}
}

func newInt(n int) *types.Item[int] {
	return types.NewItem(n, types.DataTypeStructured, types.IntentSemanticLTM, "tenant-a")
}

func TestRunNilItem(t *testing.T) {
	pl := build(t, nil, nil)
	_, err := pl.Run(context.Background(), nil)
	assert.ErrorIs(t, err, pipeline.ErrNilItem)
}

func TestRunIdentityWhenUnconfigured(t *testing.T) {
	pl := build(t, nil, nil)
	require.Equal(t, 0, pl.Len())

	it := newInt(7)
	outs, err := pl.Run(context.Background(), it)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Same(t, it, outs[0])
	assert.Empty(t, outs[0].Metadata.ProcessingHistory)
}

func TestRunFollowsStageOrder(t *testing.T) {
	// Configured out of order on purpose; execution order must come from
	// the fixed slot table, not the configuration literal.
	cfg := &types.PipelineConfig{
		Matching:   testSlot(),
		Filter:     testSlot(),
		Forgetting: testSlot(),
	}
	procs := map[pipeline.Slot]*fakeProc{
		pipeline.SlotMatching:   {name: "retrieval:matching", fn: passThrough},
		pipeline.SlotFilter:     {name: "acquisition:filter", fn: passThrough},
		pipeline.SlotForgetting: {name: "derivation:forgetting", fn: passThrough},
	}
	pl := build(t, cfg, procs)
	require.Equal(t, 3, pl.Len())

	outs, err := pl.Run(context.Background(), newInt(1))
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t,
		[]string{"acquisition:filter", "derivation:forgetting", "retrieval:matching"},
		outs[0].Metadata.ProcessingHistory)
}

func TestRunDropSkipsDownstream(t *testing.T) {
	downstreamCalls := 0
	cfg := &types.PipelineConfig{Filter: testSlot(), Matching: testSlot()}
	procs := map[pipeline.Slot]*fakeProc{
		pipeline.SlotFilter: {name: "acquisition:filter", fn: func(ctx context.Context, item *types.Item[int]) ([]*types.Item[int], error) {
			return nil, nil
		}},
		pipeline.SlotMatching: {name: "retrieval:matching", fn: func(ctx context.Context, item *types.Item[int]) ([]*types.Item[int], error) {
			downstreamCalls++
			return []*types.Item[int]{item}, nil
		}},
	}
	pl := build(t, cfg, procs)

	outs, err := pl.Run(context.Background(), newInt(2))
	require.NoError(t, err)
	assert.Empty(t, outs)
	assert.Equal(t, 0, downstreamCalls)

	m := procs[pipeline.SlotFilter].Metrics()
	assert.Equal(t, int64(1), m.ItemsProcessed)
	assert.Equal(t, int64(1), m.ItemsDropped)
}

func TestRunFanOut(t *testing.T) {
	cfg := &types.PipelineConfig{Filter: testSlot(), Attention: testSlot()}
	procs := map[pipeline.Slot]*fakeProc{
		pipeline.SlotFilter: {name: "acquisition:filter", fn: func(ctx context.Context, item *types.Item[int]) ([]*types.Item[int], error) {
			a := item.Clone()
			a.Data = item.Data * 10
			b := item.Clone()
			b.Data = item.Data * 100
			return []*types.Item[int]{a, b}, nil
		}},
		pipeline.SlotAttention: {name: "encoding:attention", fn: passThrough},
	}
	pl := build(t, cfg, procs)

	outs, err := pl.Run(context.Background(), newInt(3))
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, 30, outs[0].Data)
	assert.Equal(t, 300, outs[1].Data)
	for _, out := range outs {
		assert.Equal(t, []string{"acquisition:filter", "encoding:attention"}, out.Metadata.ProcessingHistory)
	}
	assert.Equal(t, int64(2), procs[pipeline.SlotAttention].Metrics().ItemsProcessed)
}

func TestRunAbsorbsProcessorFault(t *testing.T) {
	var downstreamData int
	cfg := &types.PipelineConfig{Attention: testSlot(), Summarization: testSlot()}
	procs := map[pipeline.Slot]*fakeProc{
		pipeline.SlotAttention: {name: "encoding:attention", fn: func(ctx context.Context, item *types.Item[int]) ([]*types.Item[int], error) {
			// Mutate the clone before failing; nothing of this may
			// be visible downstream.
			item.Data = 999
			item.SetAnnotation("poison", true)
			return nil, errors.New("model unavailable")
		}},
		pipeline.SlotSummarization: {name: "derivation:summarization", fn: func(ctx context.Context, item *types.Item[int]) ([]*types.Item[int], error) {
			downstreamData = item.Data
			return []*types.Item[int]{item}, nil
		}},
	}
	pl := build(t, cfg, procs)

	it := newInt(42)
	outs, err := pl.Run(context.Background(), it)
	require.NoError(t, err)
	require.Len(t, outs, 1)

	assert.Equal(t, 42, outs[0].Data)
	assert.Equal(t, 42, downstreamData)
	_, poisoned := outs[0].Annotation("poison")
	assert.False(t, poisoned)
	assert.Equal(t, []string{"derivation:summarization"}, outs[0].Metadata.ProcessingHistory,
		"failed processor must not leave a history token")

	m := procs[pipeline.SlotAttention].Metrics()
	assert.Equal(t, int64(1), m.ItemsProcessed)
	assert.Equal(t, int64(1), m.ItemsDropped)
}

func TestRunRejectsTenantRewrite(t *testing.T) {
	cfg := &types.PipelineConfig{Fusion: testSlot()}
	procs := map[pipeline.Slot]*fakeProc{
		pipeline.SlotFusion: {name: "encoding:fusion", fn: func(ctx context.Context, item *types.Item[int]) ([]*types.Item[int], error) {
			item.Metadata.TenantID = "tenant-b"
			return []*types.Item[int]{item}, nil
		}},
	}
	pl := build(t, cfg, procs)

	outs, err := pl.Run(context.Background(), newInt(5))
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, "tenant-a", outs[0].Metadata.TenantID)
	assert.Empty(t, outs[0].Metadata.ProcessingHistory)
}

func TestRunCancelledContext(t *testing.T) {
	cfg := &types.PipelineConfig{Filter: testSlot()}
	procs := map[pipeline.Slot]*fakeProc{
		pipeline.SlotFilter: {name: "acquisition:filter", fn: passThrough},
	}
	pl := build(t, cfg, procs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pl.Run(ctx, newInt(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessorStatsAndReset(t *testing.T) {
	cfg := &types.PipelineConfig{Filter: testSlot(), Matching: testSlot()}
	procs := map[pipeline.Slot]*fakeProc{
		pipeline.SlotFilter:   {name: "acquisition:filter", fn: passThrough},
		pipeline.SlotMatching: {name: "retrieval:matching", fn: passThrough},
	}
	pl := build(t, cfg, procs)

	for i := 0; i < 3; i++ {
		_, err := pl.Run(context.Background(), newInt(i))
		require.NoError(t, err)
	}

	stats := pl.ProcessorStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "acquisition:filter", stats[0].Processor)
	assert.Equal(t, "retrieval:matching", stats[1].Processor)
	assert.Equal(t, "test", stats[0].Strategy)
	assert.Equal(t, int64(3), stats[0].Metrics.ItemsProcessed)
	assert.Equal(t, int64(3), stats[1].Metrics.ItemsProcessed)

	pl.ResetMetrics()
	for _, s := range pl.ProcessorStats() {
		assert.Zero(t, s.Metrics.ItemsProcessed)
		assert.Zero(t, s.Metrics.ItemsDropped)
	}
}

func TestBuildUnknownStrategy(t *testing.T) {
	f := pipeline.NewFactory[int]()
	require.NoError(t, f.Register(pipeline.SlotFilter, "known", func() pipeline.Processor[int] {
		return &fakeProc{name: "acquisition:filter", fn: passThrough}
	}))

	_, err := pipeline.NewBuilder(f).Build(&types.PipelineConfig{
		Filter: &types.SlotConfig{Strategy: "nope"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrUnknownStrategy)
	assert.Contains(t, err.Error(), "acquisition:filter")
	assert.Contains(t, err.Error(), "known")
}

func TestBuildConfiguresEagerly(t *testing.T) {
	var got map[string]any
	f := pipeline.NewFactory[int]()
	require.NoError(t, f.Register(pipeline.SlotFilter, "strict", func() pipeline.Processor[int] {
		return &fakeProc{
			name: "acquisition:filter",
			fn:   passThrough,
			configure: func(options map[string]any) error {
				got = options
				if _, bad := options["bad"]; bad {
					return fmt.Errorf("bad option")
				}
				return nil
			},
		}
	}))
	b := pipeline.NewBuilder(f)

	_, err := b.Build(&types.PipelineConfig{
		Filter: &types.SlotConfig{Strategy: "strict", Options: map[string]any{"max": 5}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"max": 5}, got)

	_, err = b.Build(&types.PipelineConfig{
		Filter: &types.SlotConfig{Strategy: "strict", Options: map[string]any{"bad": true}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `configure slot acquisition:filter strategy "strict"`)
}
