// Package stages wires the builtin processor strategies into a pipeline
// factory. Each stage's strategies live in their own subpackage; this
// package only knows the registration table.
package stages

import (
	"fmt"

	"github.com/a2arium/memflow/internal/embedding"
	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/internal/stages/acquisition"
	"github.com/a2arium/memflow/internal/stages/derivation"
	"github.com/a2arium/memflow/internal/stages/encoding"
	"github.com/a2arium/memflow/internal/stages/neural"
	"github.com/a2arium/memflow/internal/stages/retrieval"
	"github.com/a2arium/memflow/internal/stages/utilization"
)

// Deps carries the shared services a builtin may need. A nil Embedder is
// fine, matching falls back to lexical scoring without one.
type Deps struct {
	Embedder embedding.Embedder
}

// RegisterBuiltins adds every builtin strategy to the factory. Callers
// register their own strategies on the same factory afterwards.
func RegisterBuiltins(f *pipeline.Factory[string], deps Deps) error {
	table := []struct {
		slot     pipeline.Slot
		strategy string
		ctor     pipeline.Constructor[string]
	}{
		{pipeline.SlotFilter, acquisition.StrategyTenant, func() pipeline.Processor[string] { return acquisition.NewFilter() }},
		{pipeline.SlotCompressor, acquisition.StrategyTruncate, func() pipeline.Processor[string] { return acquisition.NewCompressor() }},
		{pipeline.SlotConsolidator, acquisition.StrategyDedup, func() pipeline.Processor[string] { return acquisition.NewConsolidator() }},

		{pipeline.SlotAttention, encoding.StrategySalience, func() pipeline.Processor[string] { return encoding.NewAttention() }},
		{pipeline.SlotFusion, encoding.StrategyModality, func() pipeline.Processor[string] { return encoding.NewFusion() }},

		{pipeline.SlotReflection, derivation.StrategyInsight, func() pipeline.Processor[string] { return derivation.NewReflection() }},
		{pipeline.SlotSummarization, derivation.StrategyExtractive, func() pipeline.Processor[string] { return derivation.NewSummarization() }},
		{pipeline.SlotDistillation, derivation.StrategyKeypoints, func() pipeline.Processor[string] { return derivation.NewDistillation() }},
		{pipeline.SlotForgetting, derivation.StrategyAge, func() pipeline.Processor[string] { return derivation.NewForgetting() }},

		{pipeline.SlotIndexing, retrieval.StrategyKeywords, func() pipeline.Processor[string] { return retrieval.NewIndexing() }},
		{pipeline.SlotMatching, retrieval.StrategySimilarity, func() pipeline.Processor[string] { return retrieval.NewMatching(deps.Embedder) }},

		{pipeline.SlotAssociative, neural.StrategyCooccurrence, func() pipeline.Processor[string] { return neural.NewAssociative() }},
		{pipeline.SlotParameterIntegration, neural.StrategyEMA, func() pipeline.Processor[string] { return neural.NewParameterIntegration() }},

		{pipeline.SlotRAG, utilization.StrategyContext, func() pipeline.Processor[string] { return utilization.NewRAG() }},
		{pipeline.SlotLongContext, utilization.StrategyBudget, func() pipeline.Processor[string] { return utilization.NewLongContext() }},
		{pipeline.SlotHallucinationMitigation, utilization.StrategyGrounding, func() pipeline.Processor[string] { return utilization.NewHallucination() }},
	}

	for _, entry := range table {
		if err := f.Register(entry.slot, entry.strategy, entry.ctor); err != nil {
			return fmt.Errorf("register builtin %s/%s: %w", entry.slot.Token(), entry.strategy, err)
		}
	}
	return nil
}
