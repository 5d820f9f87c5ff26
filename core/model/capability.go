// Package model defines the sequence-model capability consumed by the
// calibrator and the latent engine, and the serialized handle that guards
// access to it. The model itself is an external collaborator: lattice only
// depends on this interface.
package model

import (
	"context"

	"github.com/adalundhe/lattice/core/tensor"
)

// Message is one chat-templated turn.
type Message struct {
	Role    string
	Content string
}

// Encoding is a tokenized chat sequence. Mask entries are 1 for real tokens
// and 0 for padding.
type Encoding struct {
	TokenIDs []int
	Mask     []int
}

// Cache is the model's opaque incremental key/value memory. Len reports the
// number of positions it covers.
type Cache interface {
	Len() int
}

// Input is one forward evaluation. Exactly one of TokenIDs or Embeds must be
// set. Mask covers every position including those already in Cache.
type Input struct {
	TokenIDs   []int
	Embeds     *tensor.Matrix
	Mask       []int
	Cache      Cache
	WantHidden bool
	UseCache   bool
}

// Output is the result of one forward evaluation. Hidden, when requested,
// holds one matrix per hidden-state layer (index 0 is the embedding layer
// output, indices 1..Layers the transformer layers), each covering only the
// positions evaluated in this call. Logits is the final position's logit
// vector.
type Output struct {
	Hidden []*tensor.Matrix
	Logits []float32
	Cache  Cache
}

// Profile describes the model-template-specific policies the engine needs:
// dimensions, stop tokens, and the latent insertion rule.
type Profile struct {
	Name      string
	HiddenDim int
	Layers    int
	VocabSize int

	// EOSTokenID ends generation. EndTurnTokenID is the template's
	// end-of-turn marker; set to -1 when the template has none.
	EOSTokenID     int
	EndTurnTokenID int

	// RoleStartTokenID opens a templated turn. InsertOffset is how many
	// positions past the second role-start marker the latent span is
	// spliced; it is template-specific and belongs here rather than in
	// the engine.
	RoleStartTokenID int
	InsertOffset     int

	// Compile and decode defaults.
	LatentSteps     int
	MaxDecodeTokens int
	Temperature     float64
	TopP            float64
}

// Capability is the full surface the engine and calibrator consume.
type Capability interface {
	Profile() Profile

	// TokenizeChat applies the model's chat template.
	TokenizeChat(messages []Message, addGenerationPrompt bool) (Encoding, error)

	// Forward runs one evaluation over token ids or raw embeddings.
	Forward(ctx context.Context, in Input) (Output, error)

	// EmbedTokens maps token ids through the input-embedding table,
	// returning one row per token.
	EmbedTokens(ids []int) (*tensor.Matrix, error)

	// DecodeTokens converts token ids back to text, optionally suppressing
	// special markers.
	DecodeTokens(ids []int, skipSpecial bool) (string, error)

	// CountTokens returns the token length of raw text.
	CountTokens(text string) (int, error)

	// InputEmbeddings and OutputProjection expose the weight matrices
	// (vocab x hidden) consumed by realignment calibration.
	InputEmbeddings() (*tensor.Matrix, error)
	OutputProjection() (*tensor.Matrix, error)
}
