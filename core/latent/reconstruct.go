package latent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/adalundhe/lattice/core/errors"
	"github.com/adalundhe/lattice/core/model"
	"github.com/adalundhe/lattice/core/tensor"
)

// DecodeOptions bounds the reconstruction loop.
type DecodeOptions struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Reconstruct turns a stored latent trajectory back into dense text. The
// trajectory is realigned into embedding space and spliced into the decode
// prompt's embedding sequence at the template's insertion point, then text
// is generated with a manual autoregressive loop: mixed token/embedding
// inputs rule out the model's built-in generation entry point.
func (e *Engine) Reconstruct(ctx context.Context, trajectory *tensor.Matrix, decodeMessages []model.Message, opts DecodeOptions) (string, error) {
	capability, release, err := e.handle.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()
	if err := e.ensureCalibrated(capability); err != nil {
		return "", err
	}
	profile := capability.Profile()

	enc, err := capability.TokenizeChat(decodeMessages, true)
	if err != nil {
		return "", errors.ModelEvaluation(err, "tokenize decode prompt")
	}
	promptEmbeds, err := capability.EmbedTokens(enc.TokenIDs)
	if err != nil {
		return "", errors.ModelEvaluation(err, "embed decode prompt")
	}

	realigned, err := e.state.ApplyRows(trajectory)
	if err != nil {
		return "", errors.ModelEvaluation(err, "realign trajectory")
	}

	insertIdx := insertionPoint(enc.TokenIDs, profile)
	combined := spliceRows(promptEmbeds, realigned, insertIdx)

	// Extend the attention mask in lockstep with the inserted span.
	mask := make([]int, 0, len(enc.Mask)+realigned.Rows)
	mask = append(mask, enc.Mask[:insertIdx]...)
	for i := 0; i < realigned.Rows; i++ {
		mask = append(mask, 1)
	}
	mask = append(mask, enc.Mask[insertIdx:]...)

	generated, err := e.generate(ctx, capability, combined, mask, opts)
	if err != nil {
		return "", err
	}

	text, err := capability.DecodeTokens(generated, true)
	if err != nil {
		return "", errors.ModelEvaluation(err, "decode generated tokens")
	}

	e.logger.Debug("reconstruction complete",
		slog.Int("latent_rows", trajectory.Rows),
		slog.Int("generated_tokens", len(generated)))

	return strings.TrimSpace(text), nil
}

func (e *Engine) generate(ctx context.Context, capability model.Capability, embeds *tensor.Matrix, mask []int, opts DecodeOptions) ([]int, error) {
	profile := capability.Profile()
	var generated []int
	var cache model.Cache
	current := embeds

	for len(generated) < opts.MaxTokens {
		out, err := capability.Forward(ctx, model.Input{
			Embeds:   current,
			Mask:     mask,
			Cache:    cache,
			UseCache: true,
		})
		if err != nil {
			return nil, errors.ModelEvaluation(err, "generation step %d", len(generated))
		}
		cache = out.Cache

		next := SampleToken(out.Logits, opts.Temperature, opts.TopP, nil)
		if next == profile.EOSTokenID || (profile.EndTurnTokenID >= 0 && next == profile.EndTurnTokenID) {
			break
		}
		generated = append(generated, next)

		current, err = capability.EmbedTokens([]int{next})
		if err != nil {
			return nil, errors.ModelEvaluation(err, "embed generated token")
		}
		mask = append(mask, 1)
	}
	return generated, nil
}

// insertionPoint locates where the latent span is spliced: immediately
// after the role marker that opens the user turn. The second role-start
// occurrence plus the template's fixed offset; falls back to the first
// occurrence, then to the sequence midpoint, when fewer markers exist.
func insertionPoint(ids []int, profile model.Profile) int {
	var positions []int
	for i, id := range ids {
		if id == profile.RoleStartTokenID {
			positions = append(positions, i)
		}
	}
	switch {
	case len(positions) >= 2:
		return min(positions[1]+profile.InsertOffset, len(ids))
	case len(positions) == 1:
		return min(positions[0]+profile.InsertOffset, len(ids))
	default:
		return len(ids) / 2
	}
}

// spliceRows returns [prompt[:idx]; inserted; prompt[idx:]] as a new matrix.
func spliceRows(prompt, inserted *tensor.Matrix, idx int) *tensor.Matrix {
	out := tensor.NewMatrix(prompt.Rows+inserted.Rows, prompt.Cols)
	row := 0
	for i := 0; i < idx; i++ {
		copy(out.Row(row), prompt.Row(i))
		row++
	}
	for i := 0; i < inserted.Rows; i++ {
		copy(out.Row(row), inserted.Row(i))
		row++
	}
	for i := idx; i < prompt.Rows; i++ {
		copy(out.Row(row), prompt.Row(i))
		row++
	}
	return out
}
