package latent

import (
	"math"
	"math/rand"
	"sort"
)

// SampleToken selects the next token from a logit vector.
//
// Temperature 0 is deterministic arg-max. Otherwise logits are divided by
// the temperature and nucleus-filtered: entries are sorted by probability
// descending and any entry whose cumulative mass *before* it already
// reaches topP is masked out. This boundary convention (the token that
// crosses the threshold stays in) is deliberate and pinned by tests; the
// alternative convention excludes it.
//
// rnd supplies the uniform draw; nil uses the global source.
func SampleToken(logits []float32, temperature, topP float64, rnd func() float64) int {
	if temperature == 0 {
		best := 0
		for i, v := range logits {
			if v > logits[best] {
				best = i
			}
		}
		return best
	}
	if rnd == nil {
		rnd = rand.Float64
	}

	scaled := make([]float64, len(logits))
	maxLogit := math.Inf(-1)
	for i, v := range logits {
		scaled[i] = float64(v) / temperature
		if scaled[i] > maxLogit {
			maxLogit = scaled[i]
		}
	}

	order := make([]int, len(scaled))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scaled[order[a]] > scaled[order[b]]
	})

	// Softmax over the sorted logits.
	probs := make([]float64, len(order))
	var total float64
	for rank, idx := range order {
		probs[rank] = math.Exp(scaled[idx] - maxLogit)
		total += probs[rank]
	}
	for rank := range probs {
		probs[rank] /= total
	}

	// Nucleus filter: mask entries whose preceding cumulative mass has
	// already reached topP, then renormalize the survivors.
	var kept float64
	cutoff := len(probs)
	var cumulative float64
	for rank, p := range probs {
		if cumulative >= topP {
			cutoff = rank
			break
		}
		cumulative += p
		kept += p
	}

	draw := rnd() * kept
	var acc float64
	for rank := 0; rank < cutoff; rank++ {
		acc += probs[rank]
		if draw < acc {
			return order[rank]
		}
	}
	return order[cutoff-1]
}
