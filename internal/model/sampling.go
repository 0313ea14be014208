package model

import (
	"math"
	"math/rand"
	"sort"
)

const minTemperature = 1e-6

// Sample draws one index from probs using temperature-scaled top-k sampling:
// probabilities are moved to log space, divided by temperature, truncated to
// the topK highest candidates, renormalized, and drawn by cumulative weight.
func Sample(probs []float64, temperature float64, topK int, rng *rand.Rand) int {
	if temperature < minTemperature {
		temperature = minTemperature
	}

	type candidate struct {
		id     int
		logit  float64
		weight float64
	}
	cands := make([]candidate, len(probs))
	for i, p := range probs {
		cands[i] = candidate{id: i, logit: math.Log(math.Max(lossEpsilon, p)) / temperature}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].logit != cands[j].logit {
			return cands[i].logit > cands[j].logit
		}
		return cands[i].id < cands[j].id
	})
	if topK < len(cands) {
		cands = cands[:topK]
	}

	// Softmax over the kept candidates.
	maxLogit := cands[0].logit
	var sum float64
	for i := range cands {
		cands[i].weight = math.Exp(cands[i].logit - maxLogit)
		sum += cands[i].weight
	}

	r := rng.Float64() * sum
	for _, c := range cands {
		r -= c.weight
		if r <= 0 {
			return c.id
		}
	}
	return cands[0].id
}
