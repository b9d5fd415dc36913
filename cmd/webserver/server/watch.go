package server

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

// rootWatcher reports files changed under a directory tree, once per burst
// of writes. fsnotify is not recursive, so subdirectories are added as they
// are found or created.
type rootWatcher struct {
	watcher  *fsnotify.Watcher
	root     string
	debounce time.Duration
	logger   *slog.Logger
	onChange func(string)

	done chan struct{}
	wg   sync.WaitGroup
}

func newRootWatcher(root string, debounce time.Duration, logger *slog.Logger, onChange func(string)) (*rootWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &rootWatcher{
		watcher:  watcher,
		root:     root,
		debounce: debounce,
		logger:   logger,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	if err := w.addTree(root, nil); err != nil {
		watcher.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and every directory below it. Files already present
// are passed to found when it is non-nil.
func (w *rootWatcher) addTree(dir string, found func(string)) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if found != nil {
				found(p)
			}
			return nil
		}
		w.logger.Debug("Watching directory", "dir", p)
		return w.watcher.Add(p)
	})
}

func (w *rootWatcher) start() {
	w.wg.Add(1)
	go w.loop()
}

func (w *rootWatcher) stop() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *rootWatcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()
	pending := make(map[string]time.Time)

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					// Files written before the directory was registered
					// produced no events of their own.
					now := time.Now()
					err := w.addTree(event.Name, func(p string) { pending[p] = now })
					if err != nil {
						w.logger.Warn("Failed to watch new directory", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = time.Now()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)
		case now := <-ticker.C:
			for name, at := range pending {
				if now.Sub(at) < w.debounce {
					continue
				}
				delete(pending, name)
				rel, err := filepath.Rel(w.root, name)
				if err != nil {
					rel = name
				}
				w.onChange(filepath.ToSlash(rel))
			}
		}
	}
}
