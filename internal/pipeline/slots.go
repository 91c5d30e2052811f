package pipeline

import "github.com/a2arium/memflow/pkg/types"

// Stage names one of the six fixed lifecycle stages.
type Stage string

// Lifecycle stage constants, in execution order
const (
	StageAcquisition  Stage = "acquisition"
	StageEncoding     Stage = "encoding"
	StageDerivation   Stage = "derivation"
	StageRetrieval    Stage = "retrieval"
	StageNeuralMemory Stage = "neuralMemory"
	StageUtilization  Stage = "utilization"
)

// Stages returns the fixed stage order.
func Stages() []Stage {
	return []Stage{
		StageAcquisition,
		StageEncoding,
		StageDerivation,
		StageRetrieval,
		StageNeuralMemory,
		StageUtilization,
	}
}

// Slot identifies one configurable position inside a stage.
type Slot struct {
	Stage Stage
	Name  string
}

// Token returns the "stage:component" form used in processing history and
// metrics keys.
func (s Slot) Token() string {
	return string(s.Stage) + ":" + s.Name
}

// The sixteen fixed slots.
var (
	SlotFilter       = Slot{StageAcquisition, "filter"}
	SlotCompressor   = Slot{StageAcquisition, "compressor"}
	SlotConsolidator = Slot{StageAcquisition, "consolidator"}

	SlotAttention = Slot{StageEncoding, "attention"}
	SlotFusion    = Slot{StageEncoding, "fusion"}

	SlotReflection    = Slot{StageDerivation, "reflection"}
	SlotSummarization = Slot{StageDerivation, "summarization"}
	SlotDistillation  = Slot{StageDerivation, "distillation"}
	SlotForgetting    = Slot{StageDerivation, "forgetting"}

	SlotIndexing = Slot{StageRetrieval, "indexing"}
	SlotMatching = Slot{StageRetrieval, "matching"}

	SlotAssociative          = Slot{StageNeuralMemory, "associative"}
	SlotParameterIntegration = Slot{StageNeuralMemory, "parameterIntegration"}

	SlotRAG                     = Slot{StageUtilization, "rag"}
	SlotLongContext             = Slot{StageUtilization, "longContext"}
	SlotHallucinationMitigation = Slot{StageUtilization, "hallucinationMitigation"}
)

// slotBinding ties a slot to its field in the configuration schema.
type slotBinding struct {
	slot   Slot
	config func(*types.PipelineConfig) *types.SlotConfig
}

// slotOrder fixes both the stage sequence and the slot sequence inside each
// stage. The executor, the builder and Slots all derive from this table.
var slotOrder = []slotBinding{
	{SlotFilter, func(p *types.PipelineConfig) *types.SlotConfig { return p.Filter }},
	{SlotCompressor, func(p *types.PipelineConfig) *types.SlotConfig { return p.Compressor }},
	{SlotConsolidator, func(p *types.PipelineConfig) *types.SlotConfig { return p.Consolidator }},
	{SlotAttention, func(p *types.PipelineConfig) *types.SlotConfig { return p.Attention }},
	{SlotFusion, func(p *types.PipelineConfig) *types.SlotConfig { return p.Fusion }},
	{SlotReflection, func(p *types.PipelineConfig) *types.SlotConfig { return p.Reflection }},
	{SlotSummarization, func(p *types.PipelineConfig) *types.SlotConfig { return p.Summarization }},
	{SlotDistillation, func(p *types.PipelineConfig) *types.SlotConfig { return p.Distillation }},
	{SlotForgetting, func(p *types.PipelineConfig) *types.SlotConfig { return p.Forgetting }},
	{SlotIndexing, func(p *types.PipelineConfig) *types.SlotConfig { return p.Indexing }},
	{SlotMatching, func(p *types.PipelineConfig) *types.SlotConfig { return p.Matching }},
	{SlotAssociative, func(p *types.PipelineConfig) *types.SlotConfig { return p.Associative }},
	{SlotParameterIntegration, func(p *types.PipelineConfig) *types.SlotConfig { return p.ParameterIntegration }},
	{SlotRAG, func(p *types.PipelineConfig) *types.SlotConfig { return p.RAG }},
	{SlotLongContext, func(p *types.PipelineConfig) *types.SlotConfig { return p.LongContext }},
	{SlotHallucinationMitigation, func(p *types.PipelineConfig) *types.SlotConfig { return p.HallucinationMitigation }},
}

// Slots returns every slot in execution order.
func Slots() []Slot {
	out := make([]Slot, len(slotOrder))
	for i, b := range slotOrder {
		out[i] = b.slot
	}
	return out
}

// KnownSlot reports whether s is one of the fixed sixteen.
func KnownSlot(s Slot) bool {
	for _, b := range slotOrder {
		if b.slot == s {
			return true
		}
	}
	return false
}
