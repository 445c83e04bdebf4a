package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch observes the config file and invokes onChange after every write or
// create event touching it. Editors replace files via rename, so the watch
// is placed on the parent directory and filtered by name. The returned stop
// function releases the watcher.
//
// The registry hooks its wholesale invalidation here: any configuration
// write clears every cached adapter, never a partial subset.
func Watch(path string, logger *slog.Logger, onChange func()) (stop func(), err error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if filepath.Clean(event.Name) != target {
					continue
				}

				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				logger.Info("config file changed",
					slog.String("path", target),
					slog.String("op", event.Op.String()),
				)

				onChange()
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}

				logger.Warn("config watcher error", slog.String("error", watchErr.Error()))
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
