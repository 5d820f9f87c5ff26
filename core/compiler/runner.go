package compiler

import (
	"context"
	"log/slog"
	"time"

	"github.com/adalundhe/lattice/core/index"
	"github.com/adalundhe/lattice/core/storage"
)

// Stats summarizes one compilation run.
type Stats struct {
	Total    int
	Compiled int
	Reused   int
	Deleted  int
	Duration time.Duration
}

// Runner orchestrates a full compilation: source scan, delta detection,
// latent encoding of changed modules, tensor and index persistence, keyword
// index rebuild, and hash commit. Any failure aborts the run before the
// hash baseline advances, so the next run redoes the incomplete work.
type Runner struct {
	source  Source
	encoder *Encoder
	store   *storage.Store
	keyword *index.KeywordIndex
	logger  *slog.Logger
}

// NewRunner wires a compilation pipeline. keyword may be nil to skip
// full-text indexing.
func NewRunner(source Source, encoder *Encoder, store *storage.Store, keyword *index.KeywordIndex, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		source:  source,
		encoder: encoder,
		store:   store,
		keyword: keyword,
		logger:  logger,
	}
}

// Run executes one compilation pass and returns the rebuilt in-memory index
// alongside run statistics.
func (r *Runner) Run(ctx context.Context) (*index.Index, *Stats, error) {
	start := time.Now()

	modules, err := r.source.Modules(ctx)
	if err != nil {
		return nil, nil, err
	}

	delta, err := NewDelta(r.store, r.logger)
	if err != nil {
		return nil, nil, err
	}

	priorRecords, err := r.store.LoadIndex()
	if err != nil {
		return nil, nil, err
	}
	prior := make(map[string]storage.IndexRecord, len(priorRecords))
	for _, rec := range priorRecords {
		prior[rec.ModuleID] = rec
	}

	stats := &Stats{Total: len(modules)}
	records := make([]storage.IndexRecord, 0, len(modules))

	for _, m := range modules {
		rec, compiled, err := r.compileOne(ctx, delta, prior, m)
		if err != nil {
			return nil, nil, err
		}
		rec.Position = len(records)
		records = append(records, rec)
		if compiled {
			stats.Compiled++
		} else {
			stats.Reused++
		}
	}

	for _, id := range delta.DeletedModules(modules) {
		if err := r.store.DeleteModuleTensors(id); err != nil {
			return nil, nil, err
		}
		r.logger.Info("evicted deleted module", slog.String("module_id", id))
		stats.Deleted++
	}

	if err := r.store.ReplaceIndex(records); err != nil {
		return nil, nil, err
	}

	idx, err := index.FromRecords(records)
	if err != nil {
		return nil, nil, err
	}

	if r.keyword != nil {
		docs := make([]index.KeywordDoc, len(modules))
		for i, m := range modules {
			docs[i] = index.KeywordDoc{
				ModuleID:    m.ModuleID,
				Name:        m.Name,
				ModuleType:  string(m.ModuleType),
				Description: m.Description,
				Content:     m.Content,
			}
		}
		if err := r.keyword.Rebuild(docs); err != nil {
			return nil, nil, err
		}
	}

	// The baseline advances only once every artifact above is in place.
	if err := delta.Commit(); err != nil {
		return nil, nil, err
	}

	stats.Duration = time.Since(start)
	r.logger.Info("compilation complete",
		slog.Int("total", stats.Total),
		slog.Int("compiled", stats.Compiled),
		slog.Int("reused", stats.Reused),
		slog.Int("deleted", stats.Deleted),
		slog.Duration("duration", stats.Duration))
	return idx, stats, nil
}

// compileOne encodes a changed module or carries the prior record forward
// for an unchanged one. An unchanged module with no prior record (a wiped
// index alongside a surviving hash baseline) is re-encoded.
func (r *Runner) compileOne(ctx context.Context, delta *Delta, prior map[string]storage.IndexRecord, m ParsedModule) (storage.IndexRecord, bool, error) {
	if !delta.NeedsRecompile(m) {
		if rec, ok := prior[m.ModuleID]; ok {
			return rec, false, nil
		}
		r.logger.Warn("unchanged module missing from prior index, re-encoding",
			slog.String("module_id", m.ModuleID))
	}

	encoded, err := r.encoder.EncodeModule(ctx, m)
	if err != nil {
		return storage.IndexRecord{}, false, err
	}

	if err := r.store.PutTensor(m.ModuleID, storage.TensorLayerStates, encoded.LayerStates); err != nil {
		return storage.IndexRecord{}, false, err
	}
	if err := r.store.PutTensor(m.ModuleID, storage.TensorLatentTrajectory, encoded.LatentTrajectory); err != nil {
		return storage.IndexRecord{}, false, err
	}

	return storage.IndexRecord{
		ModuleID:      encoded.ModuleID,
		Name:          encoded.Name,
		ModuleType:    string(encoded.ModuleType),
		Description:   encoded.Description,
		TokenCount:    encoded.TokenCount,
		MeanEmbedding: encoded.MeanEmbedding,
	}, true, nil
}
