// SPDX-License-Identifier: MIT

package changelist

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/threadwarden/internal/log"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reports edits to the change list so operators get feedback before
// the scheduled run. It watches the parent directory because editors and
// sync tools usually replace the file rather than writing it in place.
type Watcher struct {
	path     string
	onChange func(ctx context.Context)
	debounce time.Duration
	logger   zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for path that calls onChange after edits settle.
func NewWatcher(path string, onChange func(ctx context.Context)) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		debounce: defaultDebounce,
		logger:   xglog.WithComponent("changelist.watcher"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w.logger.Info().
		Str(xglog.FieldEvent, "changelist.watcher_started").
		Str(xglog.FieldPath, w.path).
		Msg("watching change list for edits")

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			w.logger.Info().Str(xglog.FieldEvent, "changelist.watcher_stopped").Msg("change list watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug().
				Str(xglog.FieldEvent, "changelist.file_changed").
				Str("op", event.Op.String()).
				Msg("change list changed")
			w.schedule(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Str(xglog.FieldEvent, "changelist.watcher_error").Msg("change list watcher error")
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.onChange(ctx)
	})
}
