// Package gateway is the serving side of the compiled store: intent
// encoding, vector retrieval with tensor hydration, latent decoding, and
// per-session accounting.
package gateway

import (
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/adalundhe/lattice/core/errors"
	"github.com/adalundhe/lattice/core/index"
	"github.com/adalundhe/lattice/core/storage"
	"github.com/adalundhe/lattice/core/tensor"
)

// idPrefixes are tried in order when a bare module id misses the index.
var idPrefixes = []string{"skills/", "agents/", "rules/", "commands/"}

// RetrievedModule is an index entry hydrated with its stored tensors.
type RetrievedModule struct {
	ModuleID    string
	Name        string
	ModuleType  string
	Description string
	Score       float64

	// TokenCount is the original content's token length, for savings
	// accounting.
	TokenCount int

	LayerStates      *tensor.Matrix
	LatentTrajectory *tensor.Matrix
}

// Retriever finds modules in the vector index and loads their tensors. The
// index pointer is swapped whole on recompilation; in-flight reads keep the
// snapshot they started with.
type Retriever struct {
	index  atomic.Pointer[index.Index]
	store  *storage.Store
	logger *slog.Logger
}

// NewRetriever creates a retriever over an index snapshot and tensor store.
func NewRetriever(idx *index.Index, store *storage.Store, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Retriever{store: store, logger: logger}
	r.index.Store(idx)
	return r
}

// SwapIndex atomically installs a freshly compiled index.
func (r *Retriever) SwapIndex(idx *index.Index) {
	r.index.Store(idx)
}

// Index returns the current index snapshot.
func (r *Retriever) Index() *index.Index {
	return r.index.Load()
}

// Retrieve queries the index with a pre-normalized vector and hydrates the
// results in rank order. A module whose tensors fail to load is logged and
// skipped; retrieval continues with the rest.
func (r *Retriever) Retrieve(vec []float32, topK int, typeFilter string, minScore float64) []RetrievedModule {
	scored := r.Index().Query(vec, topK, typeFilter, minScore)

	retrieved := make([]RetrievedModule, 0, len(scored))
	for _, s := range scored {
		m, err := r.hydrate(s.Entry, s.Score)
		if err != nil {
			r.logger.Warn("failed to load tensors, skipping module",
				slog.String("module_id", s.Entry.ModuleID),
				slog.Any("error", err))
			continue
		}
		retrieved = append(retrieved, *m)
	}
	return retrieved
}

// RetrieveByID looks up one module by id, trying the bare id first and then
// the standard prefixes. A direct hit scores 1.0.
func (r *Retriever) RetrieveByID(id string) (*RetrievedModule, error) {
	idx := r.Index()

	entry, ok := idx.GetByID(id)
	if !ok {
		for _, prefix := range idPrefixes {
			if strings.HasPrefix(id, prefix) {
				continue
			}
			if entry, ok = idx.GetByID(prefix + id); ok {
				break
			}
		}
	}
	if !ok {
		return nil, errors.NotFound("module not found: %s", id)
	}
	return r.hydrate(entry, 1.0)
}

// ListModules returns light metadata for every indexed module, without
// touching tensor blobs.
func (r *Retriever) ListModules(typeFilter string) []index.Entry {
	return r.Index().Entries(typeFilter)
}

func (r *Retriever) hydrate(entry index.Entry, score float64) (*RetrievedModule, error) {
	layerStates, err := r.store.LoadTensor(entry.ModuleID, storage.TensorLayerStates)
	if err != nil {
		return nil, err
	}
	trajectory, err := r.store.LoadTensor(entry.ModuleID, storage.TensorLatentTrajectory)
	if err != nil {
		return nil, err
	}

	return &RetrievedModule{
		ModuleID:         entry.ModuleID,
		Name:             entry.Name,
		ModuleType:       entry.ModuleType,
		Description:      entry.Description,
		Score:            score,
		TokenCount:       entry.TokenCount,
		LayerStates:      layerStates,
		LatentTrajectory: trajectory,
	}, nil
}
