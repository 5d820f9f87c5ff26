// Package modeltest provides a small deterministic model capability for
// exercising the calibrator, the latent engine, and the gateway without a
// real inference runtime.
package modeltest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/adalundhe/lattice/core/model"
	"github.com/adalundhe/lattice/core/tensor"
)

const (
	hiddenDim = 8
	layers    = 2
	vocabSize = 256

	tokenEOS       = 0
	tokenEndTurn   = 1
	tokenRoleStart = 2
	firstWordToken = 8
)

// Fake is a deterministic toy capability. Its embeddings are tied (output
// projection == input embeddings), its forward pass is a fixed elementwise
// recurrence, and its tokenizer is word-level with chat-template markers.
type Fake struct {
	mu      sync.Mutex
	vocab   map[string]int
	reverse map[int]string
	nextID  int

	embeddings *tensor.Matrix

	// ForwardCalls counts forward evaluations, letting tests assert that
	// cached paths skip the model entirely.
	ForwardCalls atomic.Int64

	// FailForward forces every forward evaluation to fail.
	FailForward bool
}

// New constructs a fake with a deterministic embedding table.
func New() *Fake {
	emb := tensor.NewMatrix(vocabSize, hiddenDim)
	for i := 0; i < vocabSize; i++ {
		rng := rand.New(rand.NewSource(int64(i) + 17))
		row := emb.Row(i)
		for j := range row {
			row[j] = float32(rng.NormFloat64())
		}
	}
	return &Fake{
		vocab: map[string]int{},
		reverse: map[int]string{
			tokenEOS:       "<eos>",
			tokenEndTurn:   "<end>",
			tokenRoleStart: "<start>",
		},
		nextID:     firstWordToken,
		embeddings: emb,
	}
}

func (f *Fake) Profile() model.Profile {
	return model.Profile{
		Name:             "fake-tied",
		HiddenDim:        hiddenDim,
		Layers:           layers,
		VocabSize:        vocabSize,
		EOSTokenID:       tokenEOS,
		EndTurnTokenID:   tokenEndTurn,
		RoleStartTokenID: tokenRoleStart,
		InsertOffset:     2,
		LatentSteps:      4,
		MaxDecodeTokens:  32,
		Temperature:      0,
		TopP:             0.9,
	}
}

func (f *Fake) wordID(word string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.vocab[word]; ok {
		return id
	}
	id := firstWordToken + (f.nextID-firstWordToken)%(vocabSize-firstWordToken)
	f.nextID++
	f.vocab[word] = id
	if _, taken := f.reverse[id]; !taken {
		f.reverse[id] = word
	}
	return id
}

// TokenizeChat renders each message as
// <start> role ...content <end>, matching the role-marker counting the
// engine's insertion policy expects (system turn first, user turn second).
func (f *Fake) TokenizeChat(messages []model.Message, addGenerationPrompt bool) (model.Encoding, error) {
	var ids []int
	for _, msg := range messages {
		ids = append(ids, tokenRoleStart, f.wordID(msg.Role))
		for _, w := range strings.Fields(msg.Content) {
			ids = append(ids, f.wordID(w))
		}
		ids = append(ids, tokenEndTurn)
	}
	if addGenerationPrompt {
		ids = append(ids, tokenRoleStart, f.wordID("assistant"))
	}
	mask := make([]int, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return model.Encoding{TokenIDs: ids, Mask: mask}, nil
}

func (f *Fake) CountTokens(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

func (f *Fake) EmbedTokens(ids []int) (*tensor.Matrix, error) {
	out := tensor.NewMatrix(len(ids), hiddenDim)
	for i, id := range ids {
		if id < 0 || id >= vocabSize {
			return nil, fmt.Errorf("token id %d out of range", id)
		}
		copy(out.Row(i), f.embeddings.Row(id))
	}
	return out, nil
}

func (f *Fake) DecodeTokens(ids []int, skipSpecial bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var words []string
	for _, id := range ids {
		if skipSpecial && id < firstWordToken {
			continue
		}
		if w, ok := f.reverse[id]; ok {
			words = append(words, w)
		} else {
			words = append(words, fmt.Sprintf("tok%d", id))
		}
	}
	return strings.Join(words, " "), nil
}

func (f *Fake) InputEmbeddings() (*tensor.Matrix, error) {
	return f.embeddings.Clone(), nil
}

// OutputProjection returns the tied embedding table.
func (f *Fake) OutputProjection() (*tensor.Matrix, error) {
	return f.embeddings.Clone(), nil
}

type fakeCache struct {
	positions int
	carry     []*tensor.Matrix // one 1xH row per transformer layer
}

func (c *fakeCache) Len() int { return c.positions }

func layerBias(layer int) []float32 {
	rng := rand.New(rand.NewSource(int64(layer)*31 + 7))
	bias := make([]float32, hiddenDim)
	for j := range bias {
		bias[j] = float32(rng.NormFloat64()) * 0.1
	}
	return bias
}

// Forward runs the fixed recurrence
// h_l[p] = tanh(h_{l-1}[p] + 0.5*h_l[p-1] + bias_l), carrying the previous
// position's state through the incremental cache.
func (f *Fake) Forward(ctx context.Context, in model.Input) (model.Output, error) {
	f.ForwardCalls.Add(1)
	if f.FailForward {
		return model.Output{}, fmt.Errorf("fake forward failure")
	}
	if err := ctx.Err(); err != nil {
		return model.Output{}, err
	}

	embeds := in.Embeds
	if embeds == nil {
		var err error
		embeds, err = f.EmbedTokens(in.TokenIDs)
		if err != nil {
			return model.Output{}, err
		}
	}
	positions := embeds.Rows

	carry := make([]*tensor.Matrix, layers)
	cachedPositions := 0
	if prior, ok := in.Cache.(*fakeCache); ok && prior != nil {
		cachedPositions = prior.positions
		for l := range carry {
			carry[l] = prior.carry[l].Clone()
		}
	} else {
		for l := range carry {
			carry[l] = tensor.NewMatrix(1, hiddenDim)
		}
	}
	if want := cachedPositions + positions; len(in.Mask) != want {
		return model.Output{}, fmt.Errorf("mask length %d, want %d", len(in.Mask), want)
	}

	hidden := make([]*tensor.Matrix, layers+1)
	hidden[0] = embeds.Clone()
	for l := 1; l <= layers; l++ {
		hidden[l] = tensor.NewMatrix(positions, hiddenDim)
	}

	for p := 0; p < positions; p++ {
		lower := hidden[0].Row(p)
		for l := 1; l <= layers; l++ {
			bias := layerBias(l)
			prev := carry[l-1].Row(0)
			row := hidden[l].Row(p)
			for j := 0; j < hiddenDim; j++ {
				row[j] = float32(math.Tanh(float64(lower[j] + 0.5*prev[j] + bias[j])))
			}
			copy(carry[l-1].Row(0), row)
			lower = row
		}
	}

	last := hidden[layers].Row(positions - 1)
	logits := make([]float32, vocabSize)
	for v := 0; v < vocabSize; v++ {
		logits[v] = tensor.Dot(last, f.embeddings.Row(v))
	}

	out := model.Output{Logits: logits}
	if in.WantHidden {
		out.Hidden = hidden
	}
	if in.UseCache {
		out.Cache = &fakeCache{positions: cachedPositions + positions, carry: carry}
	}
	return out, nil
}

var _ model.Capability = (*Fake)(nil)
