// Package watch reloads the card file into the session when it changes on disk.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 200 * time.Millisecond

// Loader reloads a card file and reports the resulting revision.
type Loader interface {
	LoadFile(path string) (string, error)
}

// EventCallback is called after a watcher-driven reload that changed the card.
type EventCallback func(kind string)

// Watch starts an fsnotify watcher on the directory containing cardPath and
// reloads the card after writes or creates of that file until ctx is
// cancelled. The directory is watched, not the file, so atomic-rename saves
// are picked up. A removed file is logged and the loaded card stays as is.
func Watch(ctx context.Context, loader Loader, cardPath string, debounce time.Duration, logger *slog.Logger, cb EventCallback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(cardPath)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("card", abs))

	var lastRevision string
	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(debounce)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reloadCh:
			rev, loadErr := loader.LoadFile(abs)
			if loadErr != nil {
				logger.Warn("watcher: reload failed", slog.String("path", abs), slog.String("error", loadErr.Error()))
				continue
			}
			if rev == lastRevision {
				continue
			}
			lastRevision = rev
			logger.Debug("watcher: card reloaded", slog.String("revision", rev))
			if cb != nil {
				cb("updated")
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				scheduleReload()
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Atomic saves rename a temp file over the card; the follow-up
				// Create triggers the reload.
				if _, statErr := os.Stat(abs); statErr != nil {
					logger.Warn("watcher: card file removed, keeping last card", slog.String("path", abs))
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
