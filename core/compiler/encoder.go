package compiler

import (
	"context"
	"log/slog"

	"github.com/adalundhe/lattice/core/latent"
	"github.com/adalundhe/lattice/core/model"
)

// Encoder runs parsed modules through the latent reasoning loop.
type Encoder struct {
	engine *latent.Engine
	steps  int
	logger *slog.Logger
}

// NewEncoder creates an encoder running steps latent reasoning steps per
// module.
func NewEncoder(engine *latent.Engine, steps int, logger *slog.Logger) *Encoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Encoder{engine: engine, steps: steps, logger: logger}
}

// EncodeModule compiles one module into its latent tensors. The token count
// of the raw content is captured for serve-time savings accounting.
func (e *Encoder) EncodeModule(ctx context.Context, m ParsedModule) (*EncodedModule, error) {
	tokenCount, err := e.engine.CountTokens(ctx, m.Content)
	if err != nil {
		return nil, err
	}

	messages := model.EncodingPrompt(string(m.ModuleType), m.Name, m.Content)
	result, err := e.engine.Reason(ctx, messages, e.steps)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("encoded module",
		slog.String("module_id", m.ModuleID),
		slog.String("module_type", string(m.ModuleType)),
		slog.Int("token_count", tokenCount),
		slog.Int("trajectory_steps", result.Trajectory.Rows))

	return &EncodedModule{
		ModuleID:         m.ModuleID,
		ModuleType:       m.ModuleType,
		Name:             m.Name,
		Description:      m.Description,
		MeanEmbedding:    result.MeanEmbedding,
		LayerStates:      result.LayerStates,
		LatentTrajectory: result.Trajectory,
		ContentHash:      m.ContentHash(),
		TokenCount:       tokenCount,
		Metadata:         m.Metadata,
	}, nil
}
