package types

import "fmt"

// SlotConfig selects one strategy for one pipeline slot and carries its
// options. Options are interpreted by the strategy's Configure method.
type SlotConfig struct {
	Strategy string         `yaml:"strategy" json:"strategy"`
	Options  map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// PipelineConfig assigns strategies to the fixed pipeline slots. Slot order
// and stage membership are fixed by the engine; a nil slot means the item
// passes through that position untouched. The YAML schema is closed: unknown
// slot names are decode errors, not silent no-ops.
type PipelineConfig struct {
	// Acquisition
	Filter       *SlotConfig `yaml:"filter,omitempty" json:"filter,omitempty"`
	Compressor   *SlotConfig `yaml:"compressor,omitempty" json:"compressor,omitempty"`
	Consolidator *SlotConfig `yaml:"consolidator,omitempty" json:"consolidator,omitempty"`

	// Encoding
	Attention *SlotConfig `yaml:"attention,omitempty" json:"attention,omitempty"`
	Fusion    *SlotConfig `yaml:"fusion,omitempty" json:"fusion,omitempty"`

	// Derivation
	Reflection    *SlotConfig `yaml:"reflection,omitempty" json:"reflection,omitempty"`
	Summarization *SlotConfig `yaml:"summarization,omitempty" json:"summarization,omitempty"`
	Distillation  *SlotConfig `yaml:"distillation,omitempty" json:"distillation,omitempty"`
	Forgetting    *SlotConfig `yaml:"forgetting,omitempty" json:"forgetting,omitempty"`

	// Retrieval
	Indexing *SlotConfig `yaml:"indexing,omitempty" json:"indexing,omitempty"`
	Matching *SlotConfig `yaml:"matching,omitempty" json:"matching,omitempty"`

	// Neural memory
	Associative          *SlotConfig `yaml:"associative,omitempty" json:"associative,omitempty"`
	ParameterIntegration *SlotConfig `yaml:"parameterIntegration,omitempty" json:"parameterIntegration,omitempty"`

	// Utilization
	RAG                     *SlotConfig `yaml:"rag,omitempty" json:"rag,omitempty"`
	LongContext             *SlotConfig `yaml:"longContext,omitempty" json:"longContext,omitempty"`
	HallucinationMitigation *SlotConfig `yaml:"hallucinationMitigation,omitempty" json:"hallucinationMitigation,omitempty"`
}

// Validate checks that every configured slot names a strategy. Whether the
// strategy exists is decided later, when the pipeline is built against a
// factory.
func (p *PipelineConfig) Validate() error {
	for _, s := range []struct {
		name string
		cfg  *SlotConfig
	}{
		{"filter", p.Filter},
		{"compressor", p.Compressor},
		{"consolidator", p.Consolidator},
		{"attention", p.Attention},
		{"fusion", p.Fusion},
		{"reflection", p.Reflection},
		{"summarization", p.Summarization},
		{"distillation", p.Distillation},
		{"forgetting", p.Forgetting},
		{"indexing", p.Indexing},
		{"matching", p.Matching},
		{"associative", p.Associative},
		{"parameterIntegration", p.ParameterIntegration},
		{"rag", p.RAG},
		{"longContext", p.LongContext},
		{"hallucinationMitigation", p.HallucinationMitigation},
	} {
		if s.cfg != nil && s.cfg.Strategy == "" {
			return fmt.Errorf("slot %q: strategy must not be empty", s.name)
		}
	}
	return nil
}

// IntentConfigs holds at most one pipeline configuration per intent.
type IntentConfigs struct {
	WorkingMemory *PipelineConfig `yaml:"workingMemory,omitempty" json:"workingMemory,omitempty"`
	SemanticLTM   *PipelineConfig `yaml:"semanticLTM,omitempty" json:"semanticLTM,omitempty"`
	EpisodicLTM   *PipelineConfig `yaml:"episodicLTM,omitempty" json:"episodicLTM,omitempty"`
	Retrieval     *PipelineConfig `yaml:"retrieval,omitempty" json:"retrieval,omitempty"`
	ProceduralLTM *PipelineConfig `yaml:"proceduralLTM,omitempty" json:"proceduralLTM,omitempty"`
}

// ForIntent returns the pipeline configuration for one intent, or nil when
// none is set at this level.
func (c *IntentConfigs) ForIntent(intent Intent) *PipelineConfig {
	if c == nil {
		return nil
	}
	switch intent {
	case IntentWorkingMemory:
		return c.WorkingMemory
	case IntentSemanticLTM:
		return c.SemanticLTM
	case IntentEpisodicLTM:
		return c.EpisodicLTM
	case IntentRetrieval:
		return c.Retrieval
	case IntentProceduralLTM:
		return c.ProceduralLTM
	}
	return nil
}

// SetForIntent installs a pipeline configuration for one intent. Unknown
// intents are ignored.
func (c *IntentConfigs) SetForIntent(intent Intent, p *PipelineConfig) {
	switch intent {
	case IntentWorkingMemory:
		c.WorkingMemory = p
	case IntentSemanticLTM:
		c.SemanticLTM = p
	case IntentEpisodicLTM:
		c.EpisodicLTM = p
	case IntentRetrieval:
		c.Retrieval = p
	case IntentProceduralLTM:
		c.ProceduralLTM = p
	}
}

// Empty reports whether no intent has a configuration at this level.
func (c *IntentConfigs) Empty() bool {
	if c == nil {
		return true
	}
	for _, intent := range AllIntents() {
		if c.ForIntent(intent) != nil {
			return false
		}
	}
	return true
}

// TenantConfig is the per-tenant configuration layer: tenant-wide defaults
// plus per-agent overrides.
type TenantConfig struct {
	Defaults IntentConfigs            `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Agents   map[string]IntentConfigs `yaml:"agents,omitempty" json:"agents,omitempty"`
}

// LifecycleConfig is the full pipeline configuration tree. Resolution for a
// (tenant, agent, intent) triple walks agent overrides, then tenant
// defaults, then global defaults, and uses the first pipeline configuration
// found; levels never merge slot by slot.
type LifecycleConfig struct {
	Defaults IntentConfigs           `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Tenants  map[string]TenantConfig `yaml:"tenants,omitempty" json:"tenants,omitempty"`
}

// Resolve returns the pipeline configuration governing the given tenant,
// agent and intent, or nil when no level configures that intent.
func (c *LifecycleConfig) Resolve(tenantID, agentID string, intent Intent) *PipelineConfig {
	if c == nil {
		return nil
	}
	if t, ok := c.Tenants[tenantID]; ok {
		if agentID != "" {
			if a, ok := t.Agents[agentID]; ok {
				if p := a.ForIntent(intent); p != nil {
					return p
				}
			}
		}
		if p := t.Defaults.ForIntent(intent); p != nil {
			return p
		}
	}
	return c.Defaults.ForIntent(intent)
}

// Validate checks structural soundness of every configured pipeline.
func (c *LifecycleConfig) Validate() error {
	if c == nil {
		return nil
	}
	for _, intent := range AllIntents() {
		if p := c.Defaults.ForIntent(intent); p != nil {
			if err := p.Validate(); err != nil {
				return fmt.Errorf("defaults.%s: %w", intent, err)
			}
		}
	}
	for tenant, t := range c.Tenants {
		if tenant == "" {
			return fmt.Errorf("tenants: tenant id must not be empty")
		}
		for _, intent := range AllIntents() {
			if p := t.Defaults.ForIntent(intent); p != nil {
				if err := p.Validate(); err != nil {
					return fmt.Errorf("tenants.%s.defaults.%s: %w", tenant, intent, err)
				}
			}
		}
		for agent, a := range t.Agents {
			if agent == "" {
				return fmt.Errorf("tenants.%s.agents: agent id must not be empty", tenant)
			}
			for _, intent := range AllIntents() {
				if p := a.ForIntent(intent); p != nil {
					if err := p.Validate(); err != nil {
						return fmt.Errorf("tenants.%s.agents.%s.%s: %w", tenant, agent, intent, err)
					}
				}
			}
		}
	}
	return nil
}
