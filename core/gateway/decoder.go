package gateway

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/adalundhe/lattice/core/errors"
	"github.com/adalundhe/lattice/core/latent"
	"github.com/adalundhe/lattice/core/model"
	"github.com/adalundhe/lattice/core/tensor"
)

// EmptyDecodeText is returned when no modules were retrieved for a decode.
const EmptyDecodeText = "No relevant rules or patterns found for this query."

// ToolComplianceVerify selects the compliance decode framing; every other
// tool gets the standard module expansion prompt.
const ToolComplianceVerify = "compliance_verify"

// Decoder expands retrieved latent trajectories into dense text, with an
// LRU cache keyed by tool name plus the retrieved module set.
type Decoder struct {
	engine *latent.Engine
	opts   latent.DecodeOptions
	cache  *lru.Cache[string, string]
	logger *slog.Logger
}

// NewDecoder creates a decoder with the given generation options and decode
// cache size.
func NewDecoder(engine *latent.Engine, opts latent.DecodeOptions, cacheSize int, logger *slog.Logger) (*Decoder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, errors.Wrap(errors.KindConfiguration, err, "create decode cache")
	}
	return &Decoder{engine: engine, opts: opts, cache: cache, logger: logger}, nil
}

// Decode concatenates the retrieved trajectories and generates one dense
// instruction block. An empty module set returns a fixed message without
// touching the model.
func (d *Decoder) Decode(ctx context.Context, modules []RetrievedModule, toolName string) (string, error) {
	if len(modules) == 0 {
		return EmptyDecodeText, nil
	}

	key := decodeCacheKey(modules, toolName)
	if text, ok := d.cache.Get(key); ok {
		d.logger.Debug("decode cache hit", slog.String("key", key))
		return text, nil
	}

	combined, err := combineTrajectories(modules)
	if err != nil {
		return "", err
	}

	var messages []model.Message
	if toolName == ToolComplianceVerify {
		messages = model.ComplianceDecodePrompt()
	} else {
		names := make([]string, len(modules))
		for i, m := range modules {
			names[i] = m.Name
		}
		messages = model.DecodePrompt(modules[0].ModuleType, strings.Join(names, ", "))
	}

	text, err := d.engine.Reconstruct(ctx, combined, messages, d.opts)
	if err != nil {
		return "", err
	}

	d.cache.Add(key, text)
	d.logger.Debug("decoded modules",
		slog.Int("modules", len(modules)),
		slog.Int("chars", len(text)))
	return text, nil
}

func decodeCacheKey(modules []RetrievedModule, toolName string) string {
	ids := make([]string, len(modules))
	for i, m := range modules {
		ids[i] = m.ModuleID
	}
	sort.Strings(ids)
	return toolName + "::" + strings.Join(ids, ",")
}

// combineTrajectories stacks every module's trajectory rows in retrieval
// order into one matrix.
func combineTrajectories(modules []RetrievedModule) (*tensor.Matrix, error) {
	var rows [][]float32
	for _, m := range modules {
		for i := 0; i < m.LatentTrajectory.Rows; i++ {
			rows = append(rows, m.LatentTrajectory.Row(i))
		}
	}
	combined, err := tensor.FromRows(rows)
	if err != nil {
		return nil, errors.Wrap(errors.KindNumerical, err, "combine trajectories")
	}
	return combined, nil
}
