package config

import (
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	apperrors "brain2-canvas/internal/errors"
)

// DefaultDebounce collapses bursts of file events into one reload.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads configuration when files in the loader's directory change
// and notifies registered callbacks. File watching only runs in development;
// elsewhere the watcher just serves the initial configuration.
type Watcher struct {
	loader   *Loader
	debounce time.Duration
	logger   *zap.Logger

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)

	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher starts watching loader's directory when initial is a
// development configuration. A debounce of zero uses DefaultDebounce.
func NewWatcher(loader *Loader, initial *Config, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		loader:   loader,
		debounce: debounce,
		logger:   logger,
		config:   initial,
		stopCh:   make(chan struct{}),
	}
	if initial.Environment != Development {
		logger.Info("Configuration hot reloading disabled", zap.String("environment", string(initial.Environment)))
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperrors.Internal(apperrors.CodeConfigInvalid, "create file watcher").WithCause(err).Build()
	}
	if err := fsw.Add(loader.Dir()); err != nil {
		fsw.Close()
		return nil, apperrors.Internal(apperrors.CodeConfigInvalid, "watch config directory").
			WithResource(loader.Dir()).WithCause(err).Build()
	}
	w.watcher = fsw
	w.wg.Add(1)
	go w.watchLoop()

	logger.Info("Configuration hot reloading enabled", zap.String("dir", loader.Dir()))
	return w, nil
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !isConfigFile(event.Name) {
				continue
			}
			w.logger.Debug("Configuration file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))

		case <-w.stopCh:
			return
		}
	}
}

// reload loads the files again and publishes the result if it is valid and
// differs from the current configuration.
func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Error("Invalid configuration after reload", zap.Error(err))
		return
	}

	w.mu.Lock()
	if sameSettings(w.config, cfg) {
		w.mu.Unlock()
		w.logger.Debug("Configuration unchanged after reload")
		return
	}
	w.config = cfg
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for i, cb := range callbacks {
		w.notify(i, cb, cfg)
	}
	w.logger.Info("Configuration reloaded", zap.Int("callbacks_notified", len(callbacks)))
}

func (w *Watcher) notify(idx int, cb func(*Config), cfg *Config) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Callback panicked", zap.Int("callback_index", idx), zap.Any("panic", r))
		}
	}()
	cb(cfg)
}

// OnChange registers a callback run after every successful reload.
func (w *Watcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, callback)
	w.mu.Unlock()
}

// Config returns the current configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Stop ends file watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.watcher != nil {
			w.watcher.Close()
		}
		w.wg.Wait()
	})
}

func sameSettings(a, b *Config) bool {
	x, y := *a, *b
	x.LoadedFrom, y.LoadedFrom = nil, nil
	return reflect.DeepEqual(x, y)
}

func isConfigFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	}
	return false
}
