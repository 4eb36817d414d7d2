// Package watch implements the directory watcher: it subscribes to
// kernel file-appearance notifications on a single directory and emits
// the basename of every entry that was created or moved into it, in
// kernel-delivery order, never reordering or coalescing.
package watch

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Watcher watches a single directory for new entries.
type Watcher struct {
	dir string
	fsw *fsnotify.Watcher
	log *zap.SugaredLogger

	names chan string
}

// New subscribes to directory dir. An error here is an initialization
// failure per the error-handling design: it is fatal and must prevent
// startup.
func New(dir string, log *zap.SugaredLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "watch directory %q", dir)
	}
	return &Watcher{
		dir:   dir,
		fsw:   fsw,
		log:   log,
		names: make(chan string, 256),
	}, nil
}

// Names returns the channel of basenames dispatched as entries appear.
func (w *Watcher) Names() <-chan string { return w.names }

// Close releases the underlying fsnotify subscription without running
// the dispatch loop, for teardown paths that construct a Watcher but
// abort before calling Run.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run blocks reading watch events until ctx is cancelled, the
// underlying event/error channel closes, or a read error is reported
// (either failure terminates the worker per the error-handling design).
// It closes the Names channel on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.names)
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("fsnotify event channel closed")
			}
			if ev.Op&fsnotify.Create == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			select {
			case w.names <- name:
			case <-ctx.Done():
				return nil
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed")
			}
			w.log.Errorw("watch directory", "op", "watch", "path", w.dir, "err", err)
			return errors.Wrap(err, "directory watch read failure")
		}
	}
}
