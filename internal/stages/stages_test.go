package stages_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/internal/stages"
)

func TestRegisterBuiltinsCoversEverySlot(t *testing.T) {
	f := pipeline.NewFactory[string]()
	require.NoError(t, stages.RegisterBuiltins(f, stages.Deps{}))

	for _, slot := range pipeline.Slots() {
		strategies := f.Strategies(slot)
		assert.NotEmpty(t, strategies, "slot %s has no builtin strategy", slot.Token())

		for _, strategy := range strategies {
			proc, err := f.New(slot, strategy)
			require.NoError(t, err)
			assert.Equal(t, slot.Token(), proc.Name())
		}
	}
}

func TestRegisterBuiltinsTwiceFails(t *testing.T) {
	f := pipeline.NewFactory[string]()
	require.NoError(t, stages.RegisterBuiltins(f, stages.Deps{}))
	assert.Error(t, stages.RegisterBuiltins(f, stages.Deps{}))
}

func TestBuiltinsConfigureWithDefaults(t *testing.T) {
	f := pipeline.NewFactory[string]()
	require.NoError(t, stages.RegisterBuiltins(f, stages.Deps{}))

	for _, slot := range pipeline.Slots() {
		for _, strategy := range f.Strategies(slot) {
			proc, err := f.New(slot, strategy)
			require.NoError(t, err)
			assert.NoError(t, proc.Configure(nil), "%s/%s rejects empty options", slot.Token(), strategy)
		}
	}
}
