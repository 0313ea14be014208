package model

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
)

const lossEpsilon = 1e-12

// Model is a fixed-context feed-forward next-token predictor: the embeddings
// of CtxLen previous token ids are concatenated into one input vector, passed
// through a single ReLU hidden layer, and projected to per-token logits.
type Model struct {
	VocabSize int `json:"vocab_size"`
	CtxLen    int `json:"ctx_len"`
	EmbDim    int `json:"emb_dim"`
	HiddenDim int `json:"hidden_dim"`

	E  [][]float64 `json:"e"`
	W1 [][]float64 `json:"w1"`
	B1 []float64   `json:"b1"`
	W2 [][]float64 `json:"w2"`
	B2 []float64   `json:"b2"`
}

// NewModel creates a model with weights initialized uniformly in
// (-0.02, 0.02) from rng, and zero biases.
func NewModel(vocabSize, ctxLen, embDim, hiddenDim int, rng *rand.Rand) *Model {
	m := &Model{
		VocabSize: vocabSize,
		CtxLen:    ctxLen,
		EmbDim:    embDim,
		HiddenDim: hiddenDim,
		E:         randMatrix(vocabSize, embDim, rng),
		W1:        randMatrix(ctxLen*embDim, hiddenDim, rng),
		B1:        make([]float64, hiddenDim),
		W2:        randMatrix(hiddenDim, vocabSize, rng),
		B2:        make([]float64, vocabSize),
	}
	return m
}

func randMatrix(rows, cols int, rng *rand.Rand) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		row := make([]float64, cols)
		for j := range row {
			row[j] = (rng.Float64()*2 - 1) * 0.02
		}
		m[i] = row
	}
	return m
}

// Forward runs the deterministic forward pass for ctxIDs and returns the
// concatenated input vector, hidden activations, and output logits.
// Out-of-range ids fall back to embedding row 0.
func (m *Model) Forward(ctxIDs []int) (x, h, logits []float64) {
	x = make([]float64, 0, m.CtxLen*m.EmbDim)
	for i := 0; i < m.CtxLen; i++ {
		row := m.E[0]
		if i < len(ctxIDs) && ctxIDs[i] >= 0 && ctxIDs[i] < m.VocabSize {
			row = m.E[ctxIDs[i]]
		}
		x = append(x, row...)
	}

	h = make([]float64, m.HiddenDim)
	for j := 0; j < m.HiddenDim; j++ {
		s := m.B1[j]
		for i := range x {
			s += x[i] * m.W1[i][j]
		}
		if s > 0 {
			h[j] = s
		}
	}

	logits = make([]float64, m.VocabSize)
	for k := 0; k < m.VocabSize; k++ {
		s := m.B2[k]
		for j := 0; j < m.HiddenDim; j++ {
			s += h[j] * m.W2[j][k]
		}
		logits[k] = s
	}
	return x, h, logits
}

// Probs returns the softmax next-token distribution for ctxIDs.
func (m *Model) Probs(ctxIDs []int) []float64 {
	_, _, logits := m.Forward(ctxIDs)
	return softmax(logits)
}

// TrainStep runs one plain-SGD update against targetID and returns the
// cross-entropy loss. No momentum, no regularization.
func (m *Model) TrainStep(ctxIDs []int, targetID int, lr float64) float64 {
	x, h, logits := m.Forward(ctxIDs)
	probs := softmax(logits)
	loss := -math.Log(math.Max(lossEpsilon, probs[targetID]))

	dlogits := make([]float64, len(probs))
	copy(dlogits, probs)
	dlogits[targetID] -= 1

	// Output layer update, then backpropagation through the ReLU.
	for j := 0; j < m.HiddenDim; j++ {
		hj := h[j]
		if hj == 0 {
			continue
		}
		for k := 0; k < m.VocabSize; k++ {
			m.W2[j][k] -= lr * hj * dlogits[k]
		}
	}
	for k := 0; k < m.VocabSize; k++ {
		m.B2[k] -= lr * dlogits[k]
	}

	dh := make([]float64, m.HiddenDim)
	for j := 0; j < m.HiddenDim; j++ {
		var s float64
		for k := 0; k < m.VocabSize; k++ {
			s += m.W2[j][k] * dlogits[k]
		}
		if h[j] > 0 {
			dh[j] = s
		}
	}

	// Hidden layer update, then the input gradient.
	for j := 0; j < m.HiddenDim; j++ {
		g := dh[j]
		if g == 0 {
			continue
		}
		m.B1[j] -= lr * g
		for i := range x {
			m.W1[i][j] -= lr * x[i] * g
		}
	}

	dx := make([]float64, len(x))
	for i := range x {
		var s float64
		for j := 0; j < m.HiddenDim; j++ {
			s += m.W1[i][j] * dh[j]
		}
		dx[i] = s
	}

	// Scatter dx into the embedding rows of the context window.
	for pos := 0; pos < m.CtxLen; pos++ {
		id := 0
		if pos < len(ctxIDs) && ctxIDs[pos] >= 0 && ctxIDs[pos] < m.VocabSize {
			id = ctxIDs[pos]
		}
		base := pos * m.EmbDim
		for d := 0; d < m.EmbDim; d++ {
			m.E[id][d] -= lr * dx[base+d]
		}
	}

	return loss
}

func softmax(logits []float64) []float64 {
	maxLogit := math.Inf(-1)
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(v - maxLogit)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Save writes the weights artifact as JSON, atomically.
func (m *Model) Save(path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}
	return writeAtomic(path, data)
}

// LoadModel reads a weights artifact and validates its shape.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse weights: %w", err)
	}
	if len(m.E) != m.VocabSize || len(m.W1) != m.CtxLen*m.EmbDim ||
		len(m.B1) != m.HiddenDim || len(m.W2) != m.HiddenDim || len(m.B2) != m.VocabSize {
		return nil, fmt.Errorf("weights artifact shape mismatch")
	}
	return &m, nil
}
