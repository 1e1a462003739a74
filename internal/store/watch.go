package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce absorbs the bursts editors and atomic renames produce
const reloadDebounce = 300 * time.Millisecond

// Watcher surfaces external edits of the config file as reload events. The
// parent directory is watched rather than the file itself so atomic
// replace-by-rename keeps working.
type Watcher struct {
	store    *Store
	logger   *slog.Logger
	fsWatch  *fsnotify.Watcher
	events   chan struct{}
	done     chan struct{}
	closeOne sync.Once

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for the store's config file
func NewWatcher(store *Store, logger *slog.Logger) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		store:   store,
		logger:  logger,
		fsWatch: fsWatch,
		events:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	return w, nil
}

// Events delivers one signal per external change burst
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Start begins watching the config file's directory
func (w *Watcher) Start() error {
	if err := w.fsWatch.Add(filepath.Dir(w.store.Path())); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Close stops the watcher
func (w *Watcher) Close() {
	w.closeOne.Do(func() {
		close(w.done)
		w.fsWatch.Close()
	})
}

func (w *Watcher) loop() {
	target := filepath.Base(w.store.Path())
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatch.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(reloadDebounce, w.emit)
			w.mu.Unlock()
		case err, ok := <-w.fsWatch.Errors:
			if !ok {
				return
			}
			w.logger.Debug("Config watcher error", "error", err)
		}
	}
}

// emit fires a reload event unless the settled file content is our own
// last write echoing back through the filesystem
func (w *Watcher) emit() {
	data, err := os.ReadFile(w.store.Path())
	if err == nil && w.store.matchesLastWrite(data) {
		return
	}
	select {
	case w.events <- struct{}{}:
	default:
	}
}
