// Package index provides the serving-time vector index: an ordered, unique
// collection of module entries with a stacked embedding matrix for linear
// cosine scans, plus a bleve keyword index over module text.
package index

import (
	"sort"

	"github.com/adalundhe/lattice/core/errors"
	"github.com/adalundhe/lattice/core/storage"
	"github.com/adalundhe/lattice/core/tensor"
)

// Entry is one module's lightweight serving record.
type Entry struct {
	ModuleID      string
	Name          string
	ModuleType    string
	Description   string
	TokenCount    int
	MeanEmbedding []float32
}

// Scored pairs an entry with its similarity.
type Scored struct {
	Entry Entry
	Score float64
}

// Index is read-only once built. A recompilation builds a fresh Index and
// swaps it in whole; nothing mutates entries in place while queries run.
type Index struct {
	entries []Entry
	byID    map[string]int

	// normalized rows of every entry's mean embedding; cosine against a
	// pre-normalized query reduces to a dot product.
	normalized *tensor.Matrix
}

// New builds an index over entries, preserving their order. Module ids must
// be unique and embeddings equal-length.
func New(entries []Entry) (*Index, error) {
	idx := &Index{
		entries: entries,
		byID:    make(map[string]int, len(entries)),
	}
	if len(entries) == 0 {
		return idx, nil
	}

	dim := len(entries[0].MeanEmbedding)
	rows := make([][]float32, len(entries))
	for i, e := range entries {
		if _, dup := idx.byID[e.ModuleID]; dup {
			return nil, errors.Configuration("duplicate module id %q in index", e.ModuleID)
		}
		idx.byID[e.ModuleID] = i
		if len(e.MeanEmbedding) != dim {
			return nil, errors.Configuration("embedding dim mismatch for %q: %d != %d", e.ModuleID, len(e.MeanEmbedding), dim)
		}
		rows[i] = tensor.Normalized(e.MeanEmbedding, 1e-12)
	}

	m, err := tensor.FromRows(rows)
	if err != nil {
		return nil, errors.Configuration("stack embeddings: %v", err)
	}
	idx.normalized = m
	return idx, nil
}

// Len is the number of entries.
func (idx *Index) Len() int { return len(idx.entries) }

// Query scores every entry (optionally restricted by type) against a
// pre-normalized query vector, drops scores below minScore, and returns the
// topK highest in strictly descending order. Ties break by original entry
// order for determinism. Linear in corpus size, which is fine at the
// intended scale of hundreds to low thousands of modules.
func (idx *Index) Query(vec []float32, topK int, typeFilter string, minScore float64) []Scored {
	if idx.Len() == 0 || topK <= 0 {
		return nil
	}

	candidates := make([]Scored, 0, idx.Len())
	for i, e := range idx.entries {
		if typeFilter != "" && e.ModuleType != typeFilter {
			continue
		}
		score := float64(tensor.Dot(vec, idx.normalized.Row(i)))
		if score < minScore {
			continue
		}
		candidates = append(candidates, Scored{Entry: e, Score: score})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// GetByID returns the entry for an exact module id.
func (idx *Index) GetByID(id string) (Entry, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return Entry{}, false
	}
	return idx.entries[i], true
}

// Entries returns the entries, optionally filtered by module type, in index
// order. The slice is fresh; entries are value copies.
func (idx *Index) Entries(typeFilter string) []Entry {
	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		if typeFilter != "" && e.ModuleType != typeFilter {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FromRecords rebuilds an index from persisted storage records.
func FromRecords(records []storage.IndexRecord) (*Index, error) {
	entries := make([]Entry, len(records))
	for i, r := range records {
		entries[i] = Entry{
			ModuleID:      r.ModuleID,
			Name:          r.Name,
			ModuleType:    r.ModuleType,
			Description:   r.Description,
			TokenCount:    r.TokenCount,
			MeanEmbedding: r.MeanEmbedding,
		}
	}
	return New(entries)
}

// ToRecords converts the index to persistable records in order.
func (idx *Index) ToRecords() []storage.IndexRecord {
	records := make([]storage.IndexRecord, len(idx.entries))
	for i, e := range idx.entries {
		records[i] = storage.IndexRecord{
			Position:      i,
			ModuleID:      e.ModuleID,
			Name:          e.Name,
			ModuleType:    e.ModuleType,
			Description:   e.Description,
			TokenCount:    e.TokenCount,
			MeanEmbedding: e.MeanEmbedding,
		}
	}
	return records
}
