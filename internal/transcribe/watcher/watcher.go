// Package watcher provides recursive file watching for the transcription service.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Kind is the type of change observed for a path.
type Kind int

const (
	Created Kind = iota
	Modified
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// Event is a path-level create or modify notification. It is produced once
// and consumed once; nothing about the file is guaranteed beyond its path.
type Event struct {
	Path       string
	Kind       Kind
	ObservedAt time.Time
}

// FileWatcher produces events for files created or modified under a root.
type FileWatcher interface {
	Watch(ctx context.Context, root string) (<-chan Event, error)
	Stop() error
}

// ErrAlreadyWatching is returned when Watch is called twice on one watcher.
var ErrAlreadyWatching = errors.New("watcher already started")

// ErrorHandler receives errors reported by the notification backend.
type ErrorHandler func(err error)

// FSNotifyWatcher implements FileWatcher using fsnotify. fsnotify watches
// single directories, so the tree is walked on start and every directory
// created later is added as it appears.
type FSNotifyWatcher struct {
	fsw     *fsnotify.Watcher
	onError ErrorHandler
	now     func() time.Time

	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}
}

// Option configures an FSNotifyWatcher.
type Option func(*FSNotifyWatcher)

// WithErrorHandler sets a callback for backend errors (default: ignored).
func WithErrorHandler(h ErrorHandler) Option {
	return func(w *FSNotifyWatcher) {
		w.onError = h
	}
}

// NewFSNotifyWatcher creates a new recursive watcher.
func NewFSNotifyWatcher(opts ...Option) (*FSNotifyWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &FSNotifyWatcher{
		fsw:     fsw,
		onError: func(error) {},
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch subscribes to every directory under root and returns a channel of
// file events. The channel is closed when ctx is done or Stop is called.
func (w *FSNotifyWatcher) Watch(ctx context.Context, root string) (<-chan Event, error) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil, ErrAlreadyWatching
	}
	w.started = true
	w.mu.Unlock()

	if err := w.addTree(root); err != nil {
		return nil, err
	}

	events := make(chan Event, 100)
	go w.readEvents(ctx, events)
	return events, nil
}

// Stop stops the watcher and releases resources.
func (w *FSNotifyWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.done)
	w.mu.Unlock()

	return w.fsw.Close()
}

// addTree adds root and all of its subdirectories.
func (w *FSNotifyWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A subdirectory vanishing mid-walk is not fatal; the root is.
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsw.Add(path)
	})
}

func (w *FSNotifyWatcher) readEvents(ctx context.Context, events chan<- Event) {
	defer close(events)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			for _, out := range w.translate(ev) {
				select {
				case events <- out:
				case <-ctx.Done():
					return
				case <-w.done:
					return
				}
			}
		}
	}
}

// translate maps one fsnotify event to zero or more file events. A new
// directory is subscribed and any files already inside it are reported as
// created, since they may have landed before the subscription existed.
func (w *FSNotifyWatcher) translate(ev fsnotify.Event) []Event {
	var kind Kind
	switch {
	case ev.Has(fsnotify.Create):
		kind = Created
	case ev.Has(fsnotify.Write):
		kind = Modified
	default:
		return nil
	}

	info, err := os.Stat(ev.Name)
	if err == nil && info.IsDir() {
		if kind != Created {
			return nil
		}
		return w.subscribeNewDir(ev.Name)
	}

	return []Event{{Path: ev.Name, Kind: kind, ObservedAt: w.now()}}
}

func (w *FSNotifyWatcher) subscribeNewDir(dir string) []Event {
	var found []Event
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if addErr := w.fsw.Add(path); addErr != nil {
				w.onError(addErr)
			}
			return nil
		}
		found = append(found, Event{Path: path, Kind: Created, ObservedAt: w.now()})
		return nil
	})
	return found
}
