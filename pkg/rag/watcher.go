package rag

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchEventType classifies what happened to a watched document.
type WatchEventType int

const (
	WatchEventUpdate WatchEventType = iota
	WatchEventRemove
)

// WatchEvent is a debounced filesystem change for a single document.
type WatchEvent struct {
	Path string
	Type WatchEventType
}

const watchDebounce = 500 * time.Millisecond

// Watcher wraps fsnotify for a directory tree, filtering events through
// the source's include/exclude rules and debouncing rapid writes.
type Watcher struct {
	basePath string
	filter   FileFilter
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

func NewWatcher(basePath string, filter FileFilter) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		basePath: basePath,
		filter:   filter,
		watcher:  fsWatcher,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Start begins watching the tree and returns the event channel. The
// channel closes when the context is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) (<-chan WatchEvent, error) {
	if err := w.addRecursive(w.basePath); err != nil {
		return nil, err
	}

	events := make(chan WatchEvent, 16)

	go func() {
		// The channel must not close while a debounce timer can still
		// emit. Taking mu orders the close after any in-flight timer
		// callback; stopped keeps the rest from firing.
		defer func() {
			w.mu.Lock()
			w.stopped = true
			for path, timer := range w.pending {
				timer.Stop()
				delete(w.pending, path)
			}
			w.mu.Unlock()
			close(events)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handleEvent(ctx, event, events)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("File watcher error", "error", err)
			}
		}
	}()

	return events, nil
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event, events chan<- WatchEvent) {
	// New directories need to be added to the watch set so files
	// created inside them are seen.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.filter == nil || !w.filter.ShouldExclude(event.Name) {
				if err := w.addRecursive(event.Name); err != nil {
					slog.Warn("Failed to watch new directory", "path", event.Name, "error", err)
				}
			}
			return
		}
	}

	if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		w.emit(ctx, events, WatchEvent{Path: event.Name, Type: WatchEventRemove})
		return
	}

	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	if w.filter != nil {
		if w.filter.ShouldExclude(event.Name) || !w.filter.ShouldInclude(event.Name) {
			return
		}
	}

	// Editors often issue several writes in quick succession. Reset a
	// per-path timer and only emit once the file has settled.
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if timer, ok := w.pending[event.Name]; ok {
		timer.Stop()
	}
	path := event.Name
	w.pending[path] = time.AfterFunc(watchDebounce, func() {
		// Emitting under mu keeps the send ordered before the channel
		// close above.
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.stopped {
			return
		}
		delete(w.pending, path)
		w.emit(ctx, events, WatchEvent{Path: path, Type: WatchEventUpdate})
	})
}

func (w *Watcher) emit(ctx context.Context, events chan<- WatchEvent, event WatchEvent) {
	select {
	case events <- event:
	case <-ctx.Done():
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if w.filter != nil && w.filter.ShouldExclude(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// Stop closes the underlying watcher and cancels pending debounces.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	w.stopped = true
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	return w.watcher.Close()
}
