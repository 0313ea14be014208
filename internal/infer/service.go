// Package infer serves text generation over HTTP from the trained model
// artifacts, hot-reloading them when they change on disk.
package infer

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/aide/internal/config"
	"github.com/hyperjump/aide/internal/model"
	"github.com/hyperjump/aide/internal/models"
)

const reloadDebounce = 400 * time.Millisecond

// ErrModelNotTrained reports that no model artifacts are loaded.
var ErrModelNotTrained = errors.New("model not trained")

// Snapshot is an immutable pairing of weights and vocabulary. A reload builds
// a new snapshot and swaps the pointer; in-flight generations keep the old one.
type Snapshot struct {
	Model *model.Model
	Vocab *model.Vocab
}

// Service generates text from the current model snapshot.
type Service struct {
	cfg      *config.ModelConfig
	logger   *zap.Logger
	snapshot atomic.Pointer[Snapshot]
	rng      *rand.Rand
}

// NewService creates a service and attempts an initial artifact load. A
// missing model is not an error; generation reports it until a reload
// succeeds.
func NewService(cfg *config.ModelConfig, logger *zap.Logger, rng *rand.Rand) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Service{cfg: cfg, logger: logger, rng: rng}
	if err := s.Reload(); err != nil {
		s.logger.Warn("no model loaded at startup", zap.Error(err))
	}
	return s
}

// Reload reads the artifacts from disk and atomically swaps them in.
func (s *Service) Reload() error {
	v, err := model.LoadVocab(s.cfg.VocabPath())
	if err != nil {
		return err
	}
	m, err := model.LoadModel(s.cfg.WeightsPath())
	if err != nil {
		return err
	}
	if m.VocabSize != v.Size() {
		return errors.New("model and vocabulary artifacts disagree on vocabulary size")
	}
	s.snapshot.Store(&Snapshot{Model: m, Vocab: v})
	s.logger.Info("model loaded",
		zap.Int("vocab_size", v.Size()),
		zap.Int("ctx_len", m.CtxLen),
	)
	return nil
}

// Loaded reports whether a model snapshot is available.
func (s *Service) Loaded() bool {
	return s.snapshot.Load() != nil
}

// Generate produces a completion for the given request. The request must be
// validated by the caller.
func (s *Service) Generate(req *models.GenerateRequest) (string, error) {
	snap := s.snapshot.Load()
	if snap == nil {
		return "", ErrModelNotTrained
	}
	return model.Generate(snap.Model, snap.Vocab, req.Context, req.MaxTokens, req.Temperature, req.TopK, s.rng), nil
}

// Watch reloads the snapshot when either artifact changes in the model
// directory. It runs until ctx is cancelled.
func (s *Service) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.cfg.Dir); err != nil {
		watcher.Close()
		return err
	}
	s.logger.Info("watching model directory", zap.String("dir", s.cfg.Dir))

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				name := filepath.Base(ev.Name)
				if name != filepath.Base(s.cfg.VocabPath()) && name != filepath.Base(s.cfg.WeightsPath()) {
					continue
				}
				// Debounce: training writes both artifacts back to back.
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDebounce, func() {
					if err := s.Reload(); err != nil {
						s.logger.Warn("model reload failed", zap.Error(err))
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
