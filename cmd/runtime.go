package cmd

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/adalundhe/lattice/core/config"
	"github.com/adalundhe/lattice/core/gateway"
	"github.com/adalundhe/lattice/core/index"
	"github.com/adalundhe/lattice/core/latent"
	"github.com/adalundhe/lattice/core/model"
	"github.com/adalundhe/lattice/core/storage"
)

// runtime bundles the components every command boots from.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *storage.Store
	handle  *model.Handle
	engine  *latent.Engine
	keyword *index.KeywordIndex
}

// openRuntime resolves paths, opens the store and keyword index, and wires
// the latent engine over the configured model backend. The model itself
// loads lazily on first use.
func openRuntime(cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	dataDir := cfg.Storage.DataDir
	if dataDir == "" {
		dataDir = storage.ResolveDirs().DataDir()
	}
	if err := storage.EnsureDir(dataDir, 0o755); err != nil {
		return nil, err
	}

	store, err := storage.Open(filepath.Join(dataDir, "store.db"), cfg.Storage.BlobCacheBytes, logger)
	if err != nil {
		return nil, err
	}

	keyword, err := index.OpenKeywordIndex(filepath.Join(dataDir, "keyword.bleve"))
	if err != nil {
		store.Close()
		return nil, err
	}

	// Backend resolution is deferred to first model use, so commands that
	// only read the compiled store work without one registered.
	loader := func(ctx context.Context) (model.Capability, error) {
		backend, err := model.OpenBackend(cfg.Model.Name)
		if err != nil {
			return nil, err
		}
		return backend(ctx)
	}

	handle := model.NewHandle(loader, logger)
	engine := latent.NewEngine(handle, cfg.Model.RealignLambda, logger)

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		handle:  handle,
		engine:  engine,
		keyword: keyword,
	}, nil
}

func (r *runtime) close() {
	if r.keyword != nil {
		r.keyword.Close()
	}
	if r.store != nil {
		r.store.Close()
	}
}

// loadIndex reads the persisted index into memory.
func (r *runtime) loadIndex() (*index.Index, error) {
	records, err := r.store.LoadIndex()
	if err != nil {
		return nil, err
	}
	return index.FromRecords(records)
}

// newService wires the serving stack over an index snapshot.
func (r *runtime) newService(idx *index.Index) (*gateway.Service, error) {
	retriever := gateway.NewRetriever(idx, r.store, r.logger)
	decoder, err := gateway.NewDecoder(r.engine, latent.DecodeOptions{
		MaxTokens:   r.cfg.Model.MaxDecodeTokens,
		Temperature: r.cfg.Model.Temperature,
		TopP:        r.cfg.Model.TopP,
	}, r.cfg.Cache.DecodeCapacity, r.logger)
	if err != nil {
		return nil, err
	}

	return gateway.NewService(gateway.ServiceConfig{
		Engine:          r.engine,
		Intents:         gateway.NewIntentEncoder(r.engine, r.cfg.Cache.IntentCapacity),
		Retriever:       retriever,
		Decoder:         decoder,
		Sessions:        gateway.NewSessionManager(r.cfg.Session.MaxSessions, r.cfg.Session.TTL),
		Keyword:         r.keyword,
		ModelLoaded:     r.handle.Loaded,
		DefaultTopK:     r.cfg.Gateway.TopK,
		DefaultMinScore: r.cfg.Gateway.MinScore,
		Logger:          r.logger,
	}), nil
}
