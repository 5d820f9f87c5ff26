package gateway

import (
	"context"
	"strings"
	"sync"

	"github.com/adalundhe/lattice/core/latent"
	"github.com/adalundhe/lattice/core/model"
	"github.com/adalundhe/lattice/core/tensor"
)

// IntentEncoder turns caller intents into L2-normalized query vectors with a
// bounded cache keyed by the verbatim trimmed text. Eviction removes the
// single oldest-inserted entry; repeated hits do not refresh position, which
// keeps eviction order independent of query popularity.
type IntentEncoder struct {
	engine   *latent.Engine
	capacity int

	mu      sync.Mutex
	order   []string
	vectors map[string][]float32
}

// NewIntentEncoder creates an encoder with the given cache capacity.
func NewIntentEncoder(engine *latent.Engine, capacity int) *IntentEncoder {
	if capacity < 1 {
		capacity = 1
	}
	return &IntentEncoder{
		engine:   engine,
		capacity: capacity,
		vectors:  make(map[string][]float32),
	}
}

// Encode returns the normalized query vector for an intent, computing it
// with a single forward pass on a cache miss.
func (e *IntentEncoder) Encode(ctx context.Context, intent string) ([]float32, error) {
	key := strings.TrimSpace(intent)

	e.mu.Lock()
	if vec, ok := e.vectors[key]; ok {
		e.mu.Unlock()
		return vec, nil
	}
	e.mu.Unlock()

	result, err := e.engine.Encode(ctx, model.IntentQueryPrompt(intent))
	if err != nil {
		return nil, err
	}
	vec := tensor.Normalized(result.MeanEmbedding, 1e-8)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.vectors[key]; !ok {
		e.vectors[key] = vec
		e.order = append(e.order, key)
		if len(e.order) > e.capacity {
			oldest := e.order[0]
			e.order = e.order[1:]
			delete(e.vectors, oldest)
		}
	}
	return vec, nil
}

// CacheLen reports the number of cached intents.
func (e *IntentEncoder) CacheLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.vectors)
}
