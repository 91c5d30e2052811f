package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/a2arium/memflow/internal/logging"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejects
// requests to prevent cascading failures against the embedding backend.
var ErrCircuitOpen = errors.New("embedding circuit breaker is open")

// BreakerConfig holds the circuit breaker tuning knobs.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures required to trip
	// the circuit. Default: 3.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before allowing probe
	// requests. Default: 30 seconds.
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of consecutive successes in
	// half-open state needed to close the circuit. Default: 2.
	HalfOpenMaxSuccesses uint32
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.MaxFailures == 0 {
		c.MaxFailures = 3
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HalfOpenMaxSuccesses == 0 {
		c.HalfOpenMaxSuccesses = 2
	}
	return c
}

// BreakerEmbedder wraps an Embedder with a gobreaker circuit. When closed,
// calls pass through; after MaxFailures consecutive failures the circuit
// opens and every call fails fast with ErrCircuitOpen until the timeout
// elapses and probe calls succeed again.
type BreakerEmbedder struct {
	inner   Embedder
	breaker *gobreaker.CircuitBreaker
}

var _ Embedder = (*BreakerEmbedder)(nil)

// WithBreaker protects an embedder with a circuit breaker.
func WithBreaker(inner Embedder, cfg BreakerConfig) *BreakerEmbedder {
	cfg = cfg.withDefaults()
	settings := gobreaker.Settings{
		Name:        "EmbeddingBreaker",
		MaxRequests: cfg.HalfOpenMaxSuccesses,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn("[Embedding] circuit %s: %s -> %s", name, from, to)
		},
	}
	return &BreakerEmbedder{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Embed runs the wrapped embedder through the circuit.
func (b *BreakerEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return out.([]float32), nil
}

// GetModel reports the wrapped embedder's model.
func (b *BreakerEmbedder) GetModel() string {
	return b.inner.GetModel()
}

// State exposes the current circuit state for health reporting.
func (b *BreakerEmbedder) State() gobreaker.State {
	return b.breaker.State()
}
