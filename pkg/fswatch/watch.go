package fswatch

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/marupanda/sync/pkg/errors"
)

var fs = afero.NewOsFs()

// Watcher notifies when anything under a directory changes.
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan struct{}
}

// Watch watches for changes to `root` and everything beneath it. Because
// fsnotify doesn't watch directories recursively, every subdirectory is
// watched individually, and directories created later are added as they
// appear.
func Watch(root string) (*Watcher, error) {
	pathsToWatch, err := getPathsToWatch(root)
	if err != nil {
		return nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, path := range pathsToWatch {
		if err := watcher.Add(path); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, errors.WithContext(err, fmt.Sprintf("watch %q", path))
		}
	}

	w := &Watcher{watcher: watcher}
	w.events = combineUpdates(w.watchNewDirectories(watcher.Events))
	go logErrors(watcher.Errors)
	return w, nil
}

// Events returns a channel that receives a value after changes. Changes that
// happen before the previous value is received are combined into one.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// watchNewDirectories adds any directory created under the root to the
// watcher, and passes through every event.
func (w *Watcher) watchNewDirectories(events <-chan fsnotify.Event) <-chan fsnotify.Event {
	passthrough := make(chan fsnotify.Event)
	go func() {
		defer close(passthrough)
		for event := range events {
			if event.Op&fsnotify.Create != 0 {
				if isDir, err := afero.IsDir(fs, event.Name); err == nil && isDir {
					if err := w.watcher.Add(event.Name); err != nil {
						log.WithError(err).WithField("path", event.Name).Warn(
							"Failed to watch new directory. Changes within it " +
								"will be picked up by the next scheduled pass.")
					}
				}
			}
			passthrough <- event
		}
	}()
	return passthrough
}

func logErrors(errs <-chan error) {
	for err := range errs {
		log.WithError(err).Warn("File watcher error")
	}
}

func combineUpdates(updates <-chan fsnotify.Event) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		for range updates {
			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

func getPathsToWatch(root string) (paths []string, err error) {
	fi, err := fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: root}
		}
		return nil, errors.WithContext(err, "stat")
	}

	if !fi.IsDir() {
		return nil, errors.WithContext(errors.ErrNotDirectory, root)
	}

	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		if fi.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}
