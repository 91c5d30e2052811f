package orchestrator

import (
	"fmt"

	"github.com/a2arium/memflow/internal/config"
	"github.com/a2arium/memflow/internal/embedding"
	"github.com/a2arium/memflow/internal/storage"
	"github.com/a2arium/memflow/internal/storage/chromem"
	"github.com/a2arium/memflow/internal/storage/memory"
	"github.com/a2arium/memflow/internal/storage/postgres"
	"github.com/a2arium/memflow/internal/storage/redis"
	"github.com/a2arium/memflow/internal/storage/sqlite"
	"github.com/a2arium/memflow/pkg/types"
)

// OpenRouter builds a store router from runtime settings. Kinds that share
// an engine and DSN share one adapter instance, so Router.Close releases
// every backend connection exactly once.
func OpenRouter(s config.StoresSettings) (*storage.Router, error) {
	type backend struct {
		engine string
		dsn    string
	}
	opened := make(map[backend]storage.Store)
	stores := make(map[types.StoreKind]storage.Store, len(types.AllStoreKinds()))

	for _, kind := range types.AllStoreKinds() {
		st := s.ForKind(kind)
		key := backend{engine: st.Engine, dsn: st.DSN}
		if adapter, ok := opened[key]; ok {
			stores[kind] = adapter
			continue
		}
		adapter, err := openStore(st)
		if err != nil {
			for _, a := range opened {
				a.Close()
			}
			return nil, fmt.Errorf("open %s store: %w", kind, err)
		}
		opened[key] = adapter
		stores[kind] = adapter
	}
	return storage.NewRouter(stores)
}

func openStore(st config.StoreSettings) (storage.Store, error) {
	switch st.Engine {
	case "memory":
		return memory.New(), nil
	case "redis":
		return redis.New(redis.Options{Addr: st.DSN}), nil
	case "sqlite":
		return sqlite.New(st.DSN)
	case "postgres":
		return postgres.New(st.DSN)
	case "chromem":
		return chromem.New(), nil
	default:
		return nil, fmt.Errorf("unknown store engine %q", st.Engine)
	}
}

// OpenEmbedder builds the embedding provider from runtime settings. Provider
// "none" returns a nil embedder; retrieval then ranks lexically.
func OpenEmbedder(s config.EmbeddingSettings) (embedding.Embedder, error) {
	switch s.Provider {
	case "none":
		return nil, nil
	case "local":
		return embedding.NewLocalEmbedder(s.Dimensions), nil
	case "openai":
		inner, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:            s.OpenAIAPIKey,
			BaseURL:           s.OpenAIBaseURL,
			Model:             s.OpenAIModel,
			RequestsPerSecond: s.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		return embedding.WithBreaker(inner, embedding.BreakerConfig{}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", s.Provider)
	}
}
