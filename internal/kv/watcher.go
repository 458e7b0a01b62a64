package kv

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change kinds reported by Watch.
const (
	ChangeWritten = "written"
	ChangeRemoved = "removed"
)

// EventCallback is called once per key after a burst of file events settles.
type EventCallback func(kind string, key string)

// Watch starts an fsnotify watcher on a file-backend mirror directory and
// reports external changes to mirror files until ctx is cancelled.
//
// Events for the same key are debounced: atomic writes show up as a
// create/rename pair, so each key is reported once, debounce after its last
// event, with the file's final state deciding between written and removed.
func Watch(ctx context.Context, dir string, debounce time.Duration, logger *slog.Logger, cb EventCallback) error {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("dir", dir))

	pending := make(map[string]string) // key -> absolute path
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	flush := func() {
		for key, abs := range pending {
			kind := ChangeWritten
			if _, statErr := os.Stat(abs); errors.Is(statErr, os.ErrNotExist) {
				kind = ChangeRemoved
			}
			logger.Debug("watcher: change", slog.String("key", key), slog.String("kind", kind))
			if cb != nil {
				cb(kind, key)
			}
		}
		clear(pending)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			flush()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			key := KeyFromPath(ev.Name)
			if key == "" {
				continue
			}
			pending[key] = ev.Name
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
