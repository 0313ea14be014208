// Package train builds the vocabulary and trains the language model over the
// stored user messages, producing the two artifacts the inference service
// consumes.
package train

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/aide/internal/config"
	"github.com/hyperjump/aide/internal/model"
	"github.com/hyperjump/aide/internal/storage"
	"github.com/hyperjump/aide/internal/token"
)

// progressInterval controls how often training progress is logged.
const progressInterval = 5000

// Trainer runs the SGD training loop and persists model artifacts.
type Trainer struct {
	store  storage.Storage
	cfg    *config.ModelConfig
	logger *zap.Logger
	rng    *rand.Rand
}

// NewTrainer creates a trainer. A nil rng seeds from the current time.
func NewTrainer(store storage.Storage, cfg *config.ModelConfig, logger *zap.Logger, rng *rand.Rand) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Trainer{store: store, cfg: cfg, logger: logger, rng: rng}
}

// Run trains a fresh model over the stored user messages and writes the
// vocabulary and weights artifacts. Returns the final epoch's mean loss.
func (t *Trainer) Run(ctx context.Context) (float64, error) {
	messages, err := t.store.UserMessageContents(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load training corpus: %w", err)
	}
	if len(messages) == 0 {
		return 0, fmt.Errorf("no user messages to train on")
	}

	corpus := append([]string{model.BosToken},
		token.Tokenize(strings.Join(messages, "\n"))...)
	corpus = append(corpus, model.EosToken)
	if len(corpus) < 2 {
		return 0, fmt.Errorf("training corpus too small")
	}

	vocab := model.BuildVocab(corpus, t.cfg.MaxVocab)
	ids := vocab.IDs(corpus)

	m := model.NewModel(vocab.Size(), t.cfg.ContextLength, t.cfg.EmbeddingDim, t.cfg.HiddenDim, t.rng)

	t.logger.Info("training started",
		zap.Int("corpus_tokens", len(corpus)),
		zap.Int("vocab_size", vocab.Size()),
		zap.Int("epochs", t.cfg.Epochs),
		zap.Float64("learning_rate", t.cfg.LearningRate),
	)

	window := make([]int, t.cfg.ContextLength)
	steps := 0
	var epochLoss float64
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		var totalLoss float64
		count := 0
		for i := 1; i < len(ids); i++ {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			for j := range window {
				pos := i - t.cfg.ContextLength + j
				if pos < 0 {
					window[j] = model.BosID
				} else {
					window[j] = ids[pos]
				}
			}
			totalLoss += m.TrainStep(window, ids[i], t.cfg.LearningRate)
			count++
			steps++
			if steps%progressInterval == 0 {
				t.logger.Info("training progress",
					zap.Int("epoch", epoch+1),
					zap.Int("step", steps),
					zap.Float64("avg_loss", totalLoss/float64(count)),
				)
			}
		}
		epochLoss = totalLoss / float64(count)
		t.logger.Info("epoch finished", zap.Int("epoch", epoch+1), zap.Float64("avg_loss", epochLoss))
	}

	if err := vocab.Save(t.cfg.VocabPath()); err != nil {
		return 0, fmt.Errorf("failed to save vocabulary: %w", err)
	}
	if err := m.Save(t.cfg.WeightsPath()); err != nil {
		return 0, fmt.Errorf("failed to save weights: %w", err)
	}
	t.logger.Info("artifacts saved",
		zap.String("vocab", t.cfg.VocabPath()),
		zap.String("weights", t.cfg.WeightsPath()),
	)
	return epochLoss, nil
}
