// Package watch notices edits to the runtime's config file and publishes
// them on the dashboard event bus so open dashboards can refresh.
package watch

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/harborlabs/skiff/internal/event"
)

// debounceInterval is how long the file must stay quiet before an event
// fires. Editors and the runtime both write in bursts.
const debounceInterval = 500 * time.Millisecond

// Watcher follows a single file. The parent directory is watched rather
// than the file itself, so rename-style atomic rewrites (write temp,
// rename over) are still seen.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	bus      *event.Bus
	log      *slog.Logger
	debounce time.Duration

	stop    chan struct{}
	stopped chan struct{}

	timerMu sync.Mutex
	timer   *time.Timer
}

// New creates a watcher for the file at path. Nothing is watched until
// Start.
func New(path string, bus *event.Bus, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		path:     abs,
		fsw:      fsw,
		bus:      bus,
		log:      logger.With("component", "watch"),
		debounce: debounceInterval,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Start begins watching the file's directory.
func (w *Watcher) Start() error {
	if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.log.Info("watching runtime config", "path", w.path)
	go w.loop()
	return nil
}

// Stop shuts the watcher down and waits for the loop to exit.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
	}
	close(w.stop)
	w.fsw.Close()
	<-w.stopped
}

func (w *Watcher) loop() {
	defer close(w.stopped)

	for {
		select {
		case <-w.stop:
			w.timerMu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timerMu.Unlock()
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return
	}

	// One timer for the one file: reset on every burst member, fire once
	// after quiet.
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stop:
			return
		default:
		}
		w.log.Info("runtime config changed", "path", w.path)
		w.bus.Publish(event.Event{Type: event.TypeRuntimeConfig, Path: w.path})
	})
}
