// Package latent drives the sequence model through the three operations the
// pipeline is built on: single-pass encoding, the multi-step latent
// reasoning loop, and latent-to-text reconstruction. All operations hold the
// model handle for their full duration: each one issues multiple forward
// evaluations against the model's incremental cache and must never
// interleave with another.
package latent

import (
	"context"
	"log/slog"

	"github.com/adalundhe/lattice/core/errors"
	"github.com/adalundhe/lattice/core/model"
	"github.com/adalundhe/lattice/core/realign"
	"github.com/adalundhe/lattice/core/tensor"
)

// Engine owns the reasoning and reconstruction loops. The realignment state
// is calibrated once, under the handle's serialization, on the first
// operation that reaches the model.
type Engine struct {
	handle *model.Handle
	lambda float64
	logger *slog.Logger

	state *realign.State
}

// NewEngine creates an engine over a serialized model handle. lambda is the
// ridge regularization weight for calibration.
func NewEngine(handle *model.Handle, lambda float64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{handle: handle, lambda: lambda, logger: logger}
}

// ensureCalibrated computes the realignment state on first use. Callers hold
// the model gate, so no extra locking is needed; calibration is effectively
// the first queued operation.
func (e *Engine) ensureCalibrated(capability model.Capability) error {
	if e.state != nil {
		return nil
	}
	wIn, err := capability.InputEmbeddings()
	if err != nil {
		return errors.Wrap(errors.KindConfiguration, err, "read input embeddings")
	}
	wOut, err := capability.OutputProjection()
	if err != nil {
		return errors.Wrap(errors.KindConfiguration, err, "read output projection")
	}
	state, err := realign.Calibrate(wIn, wOut, e.lambda, e.logger)
	if err != nil {
		return err
	}
	e.state = state
	return nil
}

// EncodeResult is the output of a single-pass encode.
type EncodeResult struct {
	// MeanEmbedding is the padding-mask-weighted mean over all positions
	// of the final layer.
	MeanEmbedding []float32

	// LayerStates holds, per transformer layer, the hidden vector at the
	// last non-padding position.
	LayerStates *tensor.Matrix
}

// Encode runs one forward evaluation with no generation. Deterministic for
// identical weights and input.
func (e *Engine) Encode(ctx context.Context, messages []model.Message) (*EncodeResult, error) {
	capability, release, err := e.handle.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := e.ensureCalibrated(capability); err != nil {
		return nil, err
	}

	enc, err := capability.TokenizeChat(messages, false)
	if err != nil {
		return nil, errors.ModelEvaluation(err, "tokenize encode prompt")
	}

	out, err := capability.Forward(ctx, model.Input{
		TokenIDs:   enc.TokenIDs,
		Mask:       enc.Mask,
		WantHidden: true,
	})
	if err != nil {
		return nil, errors.ModelEvaluation(err, "encode forward pass")
	}
	return extractEncodeResult(out, enc.Mask, capability.Profile())
}

func extractEncodeResult(out model.Output, mask []int, profile model.Profile) (*EncodeResult, error) {
	lastIdx := -1
	for i, m := range mask {
		if m != 0 {
			lastIdx = i
		}
	}
	if lastIdx < 0 {
		return nil, errors.ModelEvaluation(nil, "no non-padding positions in input")
	}
	if len(out.Hidden) != profile.Layers+1 {
		return nil, errors.ModelEvaluation(nil, "expected %d hidden layers, got %d", profile.Layers+1, len(out.Hidden))
	}

	// Per-layer last-token states, skipping the embedding layer.
	layers := tensor.NewMatrix(profile.Layers, profile.HiddenDim)
	for l := 1; l <= profile.Layers; l++ {
		copy(layers.Row(l-1), out.Hidden[l].Row(lastIdx))
	}

	// Mask-weighted mean over the final layer.
	final := out.Hidden[profile.Layers]
	mean := make([]float32, profile.HiddenDim)
	var count float32
	for p := 0; p < final.Rows; p++ {
		if mask[p] == 0 {
			continue
		}
		row := final.Row(p)
		for j := range mean {
			mean[j] += row[j]
		}
		count++
	}
	for j := range mean {
		mean[j] /= count
	}

	return &EncodeResult{MeanEmbedding: mean, LayerStates: layers}, nil
}

// CountTokens reports how many tokens text occupies under the model's
// tokenizer. Queues on the handle like any other model operation.
func (e *Engine) CountTokens(ctx context.Context, text string) (int, error) {
	capability, release, err := e.handle.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	n, err := capability.CountTokens(text)
	if err != nil {
		return 0, errors.ModelEvaluation(err, "count tokens")
	}
	return n, nil
}

// ReasonResult is the output of the latent reasoning loop.
type ReasonResult struct {
	// MeanEmbedding is the elementwise mean of the trajectory.
	MeanEmbedding []float32

	// LayerStates are the per-layer last-position states from the initial
	// pass.
	LayerStates *tensor.Matrix

	// Trajectory holds the final-layer hidden vector from every step,
	// first step included, in order.
	Trajectory *tensor.Matrix

	// Cache is the incremental cache accumulated across the loop.
	Cache model.Cache
}

// Reason runs the feedback loop: one forward pass over the input, then
// steps-1 single-position evaluations whose input is not a token but the
// previous step's final hidden vector projected back into embedding space.
// The model thinks in its own representation space without re-tokenizing;
// the realignment projection keeps the fed-back vectors inside the
// distribution the model expects.
func (e *Engine) Reason(ctx context.Context, messages []model.Message, steps int) (*ReasonResult, error) {
	if steps < 1 {
		return nil, errors.Configuration("latent steps must be >= 1, got %d", steps)
	}

	capability, release, err := e.handle.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := e.ensureCalibrated(capability); err != nil {
		return nil, err
	}
	profile := capability.Profile()

	enc, err := capability.TokenizeChat(messages, true)
	if err != nil {
		return nil, errors.ModelEvaluation(err, "tokenize reasoning prompt")
	}
	mask := append([]int(nil), enc.Mask...)

	out, err := capability.Forward(ctx, model.Input{
		TokenIDs:   enc.TokenIDs,
		Mask:       mask,
		WantHidden: true,
		UseCache:   true,
	})
	if err != nil {
		return nil, errors.ModelEvaluation(err, "initial reasoning pass")
	}

	finalLayer := out.Hidden[profile.Layers]
	lastHidden := append([]float32(nil), finalLayer.Row(finalLayer.Rows-1)...)

	layers := tensor.NewMatrix(profile.Layers, profile.HiddenDim)
	for l := 1; l <= profile.Layers; l++ {
		layer := out.Hidden[l]
		copy(layers.Row(l-1), layer.Row(layer.Rows-1))
	}

	trajectory := make([][]float32, 0, steps)
	trajectory = append(trajectory, lastHidden)
	cache := out.Cache

	for step := 1; step < steps; step++ {
		realigned, err := e.state.Apply(lastHidden)
		if err != nil {
			return nil, errors.ModelEvaluation(err, "realign step %d", step)
		}
		embeds, err := tensor.FromRows([][]float32{realigned})
		if err != nil {
			return nil, errors.ModelEvaluation(err, "build step embedding")
		}
		mask = append(mask, 1)

		out, err = capability.Forward(ctx, model.Input{
			Embeds:     embeds,
			Mask:       mask,
			Cache:      cache,
			WantHidden: true,
			UseCache:   true,
		})
		if err != nil {
			return nil, errors.ModelEvaluation(err, "latent step %d", step)
		}
		cache = out.Cache
		stepFinal := out.Hidden[profile.Layers]
		lastHidden = append([]float32(nil), stepFinal.Row(stepFinal.Rows-1)...)
		trajectory = append(trajectory, lastHidden)
	}

	traj, err := tensor.FromRows(trajectory)
	if err != nil {
		return nil, errors.ModelEvaluation(err, "stack trajectory")
	}

	e.logger.Debug("latent reasoning complete",
		slog.Int("steps", steps),
		slog.Int("prompt_tokens", len(enc.TokenIDs)))

	return &ReasonResult{
		MeanEmbedding: traj.MeanRows(),
		LayerStates:   layers,
		Trajectory:    traj,
		Cache:         cache,
	}, nil
}
