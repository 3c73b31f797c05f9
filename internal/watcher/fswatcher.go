package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/notedb/notedb/internal/errors"
	"github.com/notedb/notedb/internal/scanner"
)

// FSWatcher watches a notes root recursively via fsnotify, filters
// events down to note files, and debounces them into batches.
type FSWatcher struct {
	root      string
	opts      Options
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	mu        sync.Mutex
	stopped   bool
}

// NewFSWatcher creates a watcher for the given notes root.
func NewFSWatcher(root string, opts Options) (*FSWatcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInvalidPath, "cannot resolve watch root", err)
	}

	opts = opts.WithDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.IOError("cannot initialize filesystem watcher", err)
	}

	return &FSWatcher{
		root:      absRoot,
		opts:      opts,
		fsw:       fsw,
		debouncer: NewDebouncer(opts.Debounce, opts.BufferSize),
	}, nil
}

// Start runs the event loop until the context is cancelled or Stop is
// called. It blocks; run it in its own goroutine.
func (w *FSWatcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return errors.IOError("cannot watch notes directory", err).
			WithDetail("root", w.root)
	}

	slog.Info("watch_started", slog.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// Batches returns the channel of debounced event batches. Each batch
// is a trigger to re-sync; change detection reconciles the details.
func (w *FSWatcher) Batches() <-chan []FileEvent {
	return w.debouncer.Batches()
}

// Stop closes the underlying watcher and the batch channel. Safe to
// call multiple times.
func (w *FSWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.stopped = true
	_ = w.fsw.Close()
	w.debouncer.Stop()
}

func (w *FSWatcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." {
		return
	}
	rel = filepath.ToSlash(rel)

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		// Chmod and friends never change note content
		return
	}

	// New directories must be added to the watch before their contents
	// start changing.
	if op == OpCreate {
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			if !scanner.AlwaysExcludedDir(info.Name()) {
				_ = w.addRecursive(event.Name)
			}
			return
		}
	}

	ok, _ := scanner.MatchExtension(filepath.Base(event.Name), w.opts.Extensions, w.opts.EncryptedSuffixes)
	if !ok {
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      rel,
		Operation: op,
		Timestamp: time.Now(),
	})
}

// addRecursive registers root and every non-excluded directory below it.
func (w *FSWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && scanner.AlwaysExcludedDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}
