package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a configuration file when it changes and hands the fresh
// value to registered handlers. The parent directory is watched rather than
// the file itself, so editors that save by writing a temp file and renaming
// it over the original are still picked up.
type Watcher[T any] struct {
	path     string
	debounce time.Duration
	loader   func(path string) (T, error)
	onError  func(error)
	logger   *slog.Logger

	mu       sync.RWMutex
	handlers map[int]func(T)
	nextID   int

	watcher *fsnotify.Watcher
	done    chan struct{}
	stopped sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption[T any] func(*Watcher[T])

// WithDebounce sets how long to wait after the last change before reloading.
// Default is 1500ms.
func WithDebounce[T any](d time.Duration) WatcherOption[T] {
	return func(w *Watcher[T]) {
		w.debounce = d
	}
}

// WithErrorHandler sets a callback for load errors. Errors are always logged.
func WithErrorHandler[T any](handler func(error)) WatcherOption[T] {
	return func(w *Watcher[T]) {
		w.onError = handler
	}
}

// NewConfigWatcher creates a watcher for path. loader runs on every change.
func NewConfigWatcher[T any](
	path string,
	loader func(path string) (T, error),
	logger *slog.Logger,
	opts ...WatcherOption[T],
) *Watcher[T] {
	w := &Watcher[T]{
		path:     filepath.Clean(path),
		debounce: 1500 * time.Millisecond,
		loader:   loader,
		logger:   logger,
		handlers: make(map[int]func(T)),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnReload registers a handler and returns a function that removes it.
func (w *Watcher[T]) OnReload(handler func(T)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.handlers[id] = handler
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.handlers, id)
		w.mu.Unlock()
	}
}

// Start begins watching. It returns an error if the directory cannot be watched.
func (w *Watcher[T]) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	w.logger.Info("Config watcher started", "path", w.path, "debounce", w.debounce)
	go w.watch()
	return nil
}

// Stop stops watching and releases the underlying inotify handle.
func (w *Watcher[T]) Stop() error {
	var err error
	w.stopped.Do(func() {
		close(w.done)
		if w.watcher != nil {
			err = w.watcher.Close()
		}
	})
	return err
}

func (w *Watcher[T]) watch() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			w.logger.Debug("Config watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("Config file change detected", "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", "error", err)
		}
	}
}

// reload loads the file once and gives every handler the same value.
func (w *Watcher[T]) reload() {
	cfg, err := w.loader(w.path)
	if err != nil {
		w.logger.Warn("Failed to reload config", "path", w.path, "error", err)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.RLock()
	handlers := make([]func(T), 0, len(w.handlers))
	for _, h := range w.handlers {
		handlers = append(handlers, h)
	}
	w.mu.RUnlock()

	w.logger.Info("Config file changed, applying", "path", w.path, "handlers", len(handlers))
	for _, h := range handlers {
		h(cfg)
	}
}
