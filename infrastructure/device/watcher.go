// Package device watches for the input device node and reports when it
// disappears or returns.
package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
)

// ErrNoDevice is returned when the watcher has no path or name.
var ErrNoDevice = errors.New("device path and name are required")

// Watcher reports presence changes of a single entry in a directory.
// Filesystem events trigger an immediate check and a poll covers the
// directory itself going away.
type Watcher struct {
	dir          string
	name         string
	pollInterval time.Duration

	mu      sync.Mutex
	present bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPollInterval sets the fallback poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// NewWatcher creates a watcher for dir/name.
func NewWatcher(dir, name string, opts ...Option) (*Watcher, error) {
	if dir == "" || name == "" {
		return nil, ErrNoDevice
	}
	w := &Watcher{
		dir:          dir,
		name:         name,
		pollInterval: 2 * time.Second,
		present:      true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Present reports whether the device was present at the last check.
func (w *Watcher) Present() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.present
}

// Run watches until ctx is done. The device is assumed present at start;
// a missing device emits DeviceDisconnected on the first check.
func (w *Watcher) Run(ctx context.Context, emit func(assistant.Event)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	watching := w.addWatch(fsw)

	logging.Info().
		Add(logging.Component("device")).
		Add(logging.Str("path", filepath.Join(w.dir, w.name))).
		Add(logging.Bool("fsnotify", watching)).
		Msg("device watcher started")

	w.Check(emit)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) == w.name {
				w.Check(emit)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn().
				Add(logging.Component("device")).
				Add(logging.ErrorField(err)).
				Msg("device watch error")
		case <-ticker.C:
			if !watching {
				watching = w.addWatch(fsw)
			}
			w.Check(emit)
		}
	}
}

func (w *Watcher) addWatch(fsw *fsnotify.Watcher) bool {
	if err := fsw.Add(w.dir); err != nil {
		logging.Debug().
			Add(logging.Component("device")).
			Add(logging.ErrorField(err)).
			Msg("device directory not watchable, polling")
		return false
	}
	return true
}

// Check stats the device and emits an event if presence changed.
func (w *Watcher) Check(emit func(assistant.Event)) {
	_, err := os.Stat(filepath.Join(w.dir, w.name))
	present := err == nil

	w.mu.Lock()
	changed := present != w.present
	w.present = present
	w.mu.Unlock()

	if !changed {
		return
	}
	if present {
		logging.Info().Add(logging.Component("device")).Msg("device reconnected")
		emit(assistant.DeviceReconnected{})
		return
	}
	logging.Warn().Add(logging.Component("device")).Msg("device disconnected")
	emit(assistant.DeviceDisconnected{})
}
