package types_test

import (
	"strings"
	"testing"

	"github.com/a2arium/memflow/pkg/types"
)

func slot(strategy string) *types.SlotConfig {
	return &types.SlotConfig{Strategy: strategy}
}

// TestResolvePrecedence verifies agent overrides win over tenant defaults,
// which win over global defaults.
func TestResolvePrecedence(t *testing.T) {
	cfg := &types.LifecycleConfig{
		Defaults: types.IntentConfigs{
			SemanticLTM: &types.PipelineConfig{Filter: slot("global")},
		},
		Tenants: map[string]types.TenantConfig{
			"acme": {
				Defaults: types.IntentConfigs{
					SemanticLTM: &types.PipelineConfig{Filter: slot("tenant")},
				},
				Agents: map[string]types.IntentConfigs{
					"agent-1": {
						SemanticLTM: &types.PipelineConfig{Filter: slot("agent")},
					},
				},
			},
		},
	}

	tests := []struct {
		name     string
		tenant   string
		agent    string
		intent   types.Intent
		want     string
		wantNilP bool
	}{
		{name: "agent override", tenant: "acme", agent: "agent-1", intent: types.IntentSemanticLTM, want: "agent"},
		{name: "tenant default for other agent", tenant: "acme", agent: "agent-2", intent: types.IntentSemanticLTM, want: "tenant"},
		{name: "tenant default without agent", tenant: "acme", agent: "", intent: types.IntentSemanticLTM, want: "tenant"},
		{name: "global default for unknown tenant", tenant: "other", agent: "agent-1", intent: types.IntentSemanticLTM, want: "global"},
		{name: "unconfigured intent", tenant: "acme", agent: "agent-1", intent: types.IntentRetrieval, wantNilP: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := cfg.Resolve(tt.tenant, tt.agent, tt.intent)
			if tt.wantNilP {
				if p != nil {
					t.Fatalf("expected nil pipeline config, got %+v", p)
				}
				return
			}
			if p == nil {
				t.Fatal("expected a pipeline config, got nil")
			}
			if p.Filter.Strategy != tt.want {
				t.Errorf("expected strategy %q, got %q", tt.want, p.Filter.Strategy)
			}
		})
	}
}

// TestResolveFallsPastAgentWithoutIntent verifies that an agent entry that
// lacks the requested intent falls through to tenant defaults.
func TestResolveFallsPastAgentWithoutIntent(t *testing.T) {
	cfg := &types.LifecycleConfig{
		Tenants: map[string]types.TenantConfig{
			"acme": {
				Defaults: types.IntentConfigs{
					Retrieval: &types.PipelineConfig{Matching: slot("similarity")},
				},
				Agents: map[string]types.IntentConfigs{
					"agent-1": {
						SemanticLTM: &types.PipelineConfig{Filter: slot("tenant")},
					},
				},
			},
		},
	}

	p := cfg.Resolve("acme", "agent-1", types.IntentRetrieval)
	if p == nil || p.Matching == nil || p.Matching.Strategy != "similarity" {
		t.Fatalf("expected tenant retrieval config, got %+v", p)
	}
}

// TestLifecycleConfigValidate verifies that empty strategies and empty ids
// are rejected with a path in the error.
func TestLifecycleConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *types.LifecycleConfig
		wantErr string
	}{
		{
			name: "valid",
			cfg: &types.LifecycleConfig{
				Defaults: types.IntentConfigs{
					SemanticLTM: &types.PipelineConfig{Filter: slot("tenant"), Summarization: slot("extractive")},
				},
			},
		},
		{
			name: "empty strategy in defaults",
			cfg: &types.LifecycleConfig{
				Defaults: types.IntentConfigs{
					EpisodicLTM: &types.PipelineConfig{Forgetting: &types.SlotConfig{}},
				},
			},
			wantErr: "defaults.episodicLTM",
		},
		{
			name: "empty strategy under agent",
			cfg: &types.LifecycleConfig{
				Tenants: map[string]types.TenantConfig{
					"acme": {
						Agents: map[string]types.IntentConfigs{
							"a1": {Retrieval: &types.PipelineConfig{Matching: &types.SlotConfig{}}},
						},
					},
				},
			},
			wantErr: "tenants.acme.agents.a1.retrieval",
		},
		{
			name: "empty tenant id",
			cfg: &types.LifecycleConfig{
				Tenants: map[string]types.TenantConfig{"": {}},
			},
			wantErr: "tenant id must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

// TestIntentConfigsRoundTrip verifies ForIntent and SetForIntent agree for
// every intent.
func TestIntentConfigsRoundTrip(t *testing.T) {
	var c types.IntentConfigs
	if !c.Empty() {
		t.Fatal("expected fresh IntentConfigs to be empty")
	}
	for _, intent := range types.AllIntents() {
		p := &types.PipelineConfig{Filter: slot(string(intent))}
		c.SetForIntent(intent, p)
		if got := c.ForIntent(intent); got != p {
			t.Errorf("%s: ForIntent returned %p, want %p", intent, got, p)
		}
	}
	if c.Empty() {
		t.Error("expected populated IntentConfigs to be non-empty")
	}
}
