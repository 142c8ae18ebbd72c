package churn

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// ErrNoPredictor is returned by Service.Predict before any model was loaded.
var ErrNoPredictor = errors.New("no predictor loaded")

// DefaultDebounce is how long Watch waits for artifact writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc is called after every reload attempt.
type ReloadFunc func(info ModelInfo, err error)

type generation struct {
	id        uint64
	predictor *Predictor
}

type cachedPrediction struct {
	generation uint64
	prediction Prediction
}

// Service serves predictions from the current Predictor generation and
// replaces it wholesale when the artifacts change on disk.
type Service struct {
	paths    Paths
	logger   *zap.Logger
	Debounce time.Duration

	current atomic.Pointer[generation]
	nextID  atomic.Uint64
	cache   *lru.Cache[string, cachedPrediction]

	reloadMu sync.Mutex
	hooksMu  sync.RWMutex
	hooks    []ReloadFunc
}

// NewService creates a Service for the artifacts at paths. cacheSize <= 0
// disables the prediction cache. No model is loaded until Reload or Swap.
func NewService(paths Paths, cacheSize int, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		paths:    paths,
		logger:   logger,
		Debounce: DefaultDebounce,
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, cachedPrediction](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("prediction cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// OnReload registers fn to run after each reload attempt.
func (s *Service) OnReload(fn ReloadFunc) {
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, fn)
	s.hooksMu.Unlock()
}

// Paths returns the artifact locations the service loads from.
func (s *Service) Paths() Paths { return s.paths }

// Predictor returns the current generation, or nil.
func (s *Service) Predictor() *Predictor {
	if g := s.current.Load(); g != nil {
		return g.predictor
	}
	return nil
}

// Swap installs p as the current generation and empties the cache.
func (s *Service) Swap(p *Predictor) {
	s.current.Store(&generation{id: s.nextID.Add(1), predictor: p})
	if s.cache != nil {
		s.cache.Purge()
	}
}

// Reload loads the artifacts from disk. On failure the current generation
// keeps serving.
func (s *Service) Reload() (ModelInfo, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	p, err := Load(s.paths)
	var info ModelInfo
	if err != nil {
		s.logger.Error("model reload failed",
			zap.String("model", s.paths.Model),
			zap.String("columns", s.paths.Columns),
			zap.Error(err))
	} else {
		s.Swap(p)
		info = p.Info()
		s.logger.Info("model loaded",
			zap.String("model_type", info.ModelType),
			zap.Int("columns", info.Columns),
			zap.Time("trained_at", info.TrainedAt))
	}

	s.hooksMu.RLock()
	hooks := append([]ReloadFunc(nil), s.hooks...)
	s.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(info, err)
	}
	return info, err
}

// Predict scores r with the current generation. The bool reports a cache hit.
func (s *Service) Predict(r Record) (Prediction, bool, error) {
	g := s.current.Load()
	if g == nil {
		return Prediction{}, false, ErrNoPredictor
	}
	key := r.Key()
	if s.cache != nil {
		if hit, ok := s.cache.Get(key); ok && hit.generation == g.id {
			return hit.prediction, true, nil
		}
	}
	prediction, err := g.predictor.PredictChurn(r)
	if err != nil {
		return Prediction{}, false, err
	}
	if s.cache != nil {
		s.cache.Add(key, cachedPrediction{generation: g.id, prediction: prediction})
	}
	return prediction, false, nil
}

// Watch reloads the predictor whenever either artifact is written or renamed
// into the model directory. It blocks until ctx is done.
func (s *Service) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("artifact watcher: %w", err)
	}
	defer watcher.Close()

	dirs := map[string]struct{}{
		filepath.Dir(s.paths.Model):   {},
		filepath.Dir(s.paths.Columns): {},
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	watched := map[string]struct{}{
		filepath.Clean(s.paths.Model):   {},
		filepath.Clean(s.paths.Columns): {},
	}
	s.logger.Info("watching model artifacts", zap.String("model", s.paths.Model))

	debounce := s.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, hit := watched[filepath.Clean(event.Name)]; !hit {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			s.logger.Debug("artifact changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("artifact watcher error", zap.Error(err))
		case <-timer.C:
			// Reload logs the failure and reports it to the hooks
			_, _ = s.Reload()
		}
	}
}
