// Package config loads memflow's configuration: process settings from
// MEMFLOW_-prefixed environment variables with sensible defaults, and the
// lifecycle pipeline tree from strict YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/a2arium/memflow/pkg/types"
)

// Settings holds the process-level runtime configuration.
type Settings struct {
	Logging   LoggingSettings
	Lifecycle LifecycleSettings
	Stores    StoresSettings
	Embedding EmbeddingSettings
}

// LoggingSettings configures the default logger.
type LoggingSettings struct {
	Level string // Log level: debug, info, warn, error (default: info)
}

// LifecycleSettings locates the pipeline configuration file.
type LifecycleSettings struct {
	ConfigPath string // Path to the lifecycle YAML file; empty means builtin defaults only
}

// StoreSettings selects one storage backend.
type StoreSettings struct {
	Engine string // Backend engine: memory, redis, sqlite, postgres, chromem
	DSN    string // Engine-specific address: redis addr, sqlite path, postgres DSN
}

// StoresSettings selects a backend per store kind. Several kinds may share
// an engine; each kind still gets its own adapter instance.
type StoresSettings struct {
	Working    StoreSettings // Default: memory
	Semantic   StoreSettings // Default: memory
	Episodic   StoreSettings // Default: memory
	Retrieval  StoreSettings // Default: memory
	Procedural StoreSettings // Default: memory
}

// ForKind returns the settings for one store kind.
func (s StoresSettings) ForKind(kind types.StoreKind) StoreSettings {
	switch kind {
	case types.StoreWorking:
		return s.Working
	case types.StoreSemantic:
		return s.Semantic
	case types.StoreEpisodic:
		return s.Episodic
	case types.StoreRetrieval:
		return s.Retrieval
	case types.StoreProcedural:
		return s.Procedural
	}
	return StoreSettings{}
}

// EmbeddingSettings configures the embedding provider.
type EmbeddingSettings struct {
	Provider          string  // Embedding provider: none, local, openai (default: local)
	Dimensions        int     // Vector width for the local provider (default: 256)
	OpenAIAPIKey      string  // OpenAI API key
	OpenAIBaseURL     string  // OpenAI-compatible endpoint override
	OpenAIModel       string  // Embedding model (default: text-embedding-3-small)
	RequestsPerSecond float64 // Request rate cap; 0 disables the limiter
}

// LoadSettings reads the runtime settings from environment variables. All
// variables use the MEMFLOW_ prefix; unset variables fall back to defaults.
func LoadSettings() *Settings {
	return &Settings{
		Logging: LoggingSettings{
			Level: getEnv("MEMFLOW_LOG_LEVEL", "info"),
		},
		Lifecycle: LifecycleSettings{
			ConfigPath: getEnv("MEMFLOW_CONFIG", ""),
		},
		Stores: StoresSettings{
			Working: StoreSettings{
				Engine: getEnv("MEMFLOW_WORKING_ENGINE", "memory"),
				DSN:    getEnv("MEMFLOW_WORKING_DSN", ""),
			},
			Semantic: StoreSettings{
				Engine: getEnv("MEMFLOW_SEMANTIC_ENGINE", "memory"),
				DSN:    getEnv("MEMFLOW_SEMANTIC_DSN", ""),
			},
			Episodic: StoreSettings{
				Engine: getEnv("MEMFLOW_EPISODIC_ENGINE", "memory"),
				DSN:    getEnv("MEMFLOW_EPISODIC_DSN", ""),
			},
			Retrieval: StoreSettings{
				Engine: getEnv("MEMFLOW_RETRIEVAL_ENGINE", "memory"),
				DSN:    getEnv("MEMFLOW_RETRIEVAL_DSN", ""),
			},
			Procedural: StoreSettings{
				Engine: getEnv("MEMFLOW_PROCEDURAL_ENGINE", "memory"),
				DSN:    getEnv("MEMFLOW_PROCEDURAL_DSN", ""),
			},
		},
		Embedding: EmbeddingSettings{
			Provider:          getEnv("MEMFLOW_EMBEDDING_PROVIDER", "local"),
			Dimensions:        getEnvInt("MEMFLOW_EMBEDDING_DIMENSIONS", 256),
			OpenAIAPIKey:      getEnv("MEMFLOW_OPENAI_API_KEY", ""),
			OpenAIBaseURL:     getEnv("MEMFLOW_OPENAI_BASE_URL", ""),
			OpenAIModel:       getEnv("MEMFLOW_EMBEDDING_MODEL", ""),
			RequestsPerSecond: getEnvFloat("MEMFLOW_EMBEDDING_RPS", 0),
		},
	}
}

// Validate checks cross-field constraints that env parsing cannot.
func (s *Settings) Validate() error {
	switch s.Embedding.Provider {
	case "none", "local", "openai":
	default:
		return fmt.Errorf("config: unknown embedding provider %q", s.Embedding.Provider)
	}
	if s.Embedding.Provider == "openai" && s.Embedding.OpenAIAPIKey == "" {
		return fmt.Errorf("config: embedding provider openai requires MEMFLOW_OPENAI_API_KEY")
	}
	if s.Embedding.Provider == "local" && s.Embedding.Dimensions <= 0 {
		return fmt.Errorf("config: embedding dimensions must be positive, got %d", s.Embedding.Dimensions)
	}

	for _, kind := range types.AllStoreKinds() {
		st := s.Stores.ForKind(kind)
		switch st.Engine {
		case "memory", "chromem":
			// In-process engines need no connection string.
		case "redis", "sqlite", "postgres":
			if st.DSN == "" {
				return fmt.Errorf("config: %s store engine %q requires a DSN", kind, st.Engine)
			}
		default:
			return fmt.Errorf("config: unknown %s store engine %q", kind, st.Engine)
		}
	}
	return nil
}

// LoadLifecycle reads and parses a lifecycle configuration file.
func LoadLifecycle(path string) (*types.LifecycleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read lifecycle file: %w", err)
	}
	cfg, err := ParseLifecycle(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// ParseLifecycle decodes lifecycle YAML strictly: unknown fields, including
// misspelled slot names, are decode errors rather than silent no-ops.
func ParseLifecycle(data []byte) (*types.LifecycleConfig, error) {
	var cfg types.LifecycleConfig

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &types.LifecycleConfig{}, nil
		}
		return nil, fmt.Errorf("decode lifecycle config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate lifecycle config: %w", err)
	}
	return &cfg, nil
}

// MergeLifecycle overlays partial onto base and returns a new tree; neither
// input is modified. An intent configuration present in the overlay replaces
// the base configuration at that exact level; levels and slots never merge,
// matching the first-hit resolution in types.LifecycleConfig.Resolve.
func MergeLifecycle(base, overlay *types.LifecycleConfig) *types.LifecycleConfig {
	merged := &types.LifecycleConfig{}
	if base != nil {
		merged.Defaults = base.Defaults
		if len(base.Tenants) > 0 {
			merged.Tenants = make(map[string]types.TenantConfig, len(base.Tenants))
			for id, t := range base.Tenants {
				merged.Tenants[id] = copyTenant(t)
			}
		}
	}
	if overlay == nil {
		return merged
	}

	for _, intent := range types.AllIntents() {
		if p := overlay.Defaults.ForIntent(intent); p != nil {
			merged.Defaults.SetForIntent(intent, p)
		}
	}

	for id, ot := range overlay.Tenants {
		if merged.Tenants == nil {
			merged.Tenants = make(map[string]types.TenantConfig)
		}
		mt := merged.Tenants[id]
		for _, intent := range types.AllIntents() {
			if p := ot.Defaults.ForIntent(intent); p != nil {
				mt.Defaults.SetForIntent(intent, p)
			}
		}
		for agent, oa := range ot.Agents {
			if mt.Agents == nil {
				mt.Agents = make(map[string]types.IntentConfigs)
			}
			ma := mt.Agents[agent]
			for _, intent := range types.AllIntents() {
				if p := oa.ForIntent(intent); p != nil {
					ma.SetForIntent(intent, p)
				}
			}
			mt.Agents[agent] = ma
		}
		merged.Tenants[id] = mt
	}
	return merged
}

func copyTenant(t types.TenantConfig) types.TenantConfig {
	cp := types.TenantConfig{Defaults: t.Defaults}
	if len(t.Agents) > 0 {
		cp.Agents = make(map[string]types.IntentConfigs, len(t.Agents))
		for id, a := range t.Agents {
			cp.Agents[id] = a
		}
	}
	return cp
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. A set but unparsable value falls back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. A set but unparsable value falls back to the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
