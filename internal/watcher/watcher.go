// Package watcher reports changes to files under a directory tree.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/logger"
)

var log = logger.For("watcher")

// ErrAlreadyWatching is returned when Watch is called twice.
var ErrAlreadyWatching = errors.New("watcher: already watching")

// Watcher watches a directory tree for changes to files with selected extensions.
// Hidden files and directories are ignored.
type Watcher struct {
	root       string
	extensions map[string]bool

	mu  sync.Mutex
	fsw *fsnotify.Watcher
}

// New creates a watcher for root. With no extensions every file is reported.
func New(root string, extensions ...string) *Watcher {
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = true
	}
	return &Watcher{root: root, extensions: exts}
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Files returns every matching file currently under root.
func (w *Watcher) Files() ([]string, error) {
	var files []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != w.root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && w.matches(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Watch starts watching and returns a channel of changes. The channel is
// closed when ctx is cancelled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan domain.FileChange, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw != nil {
		return nil, ErrAlreadyWatching
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addTree(fsw, w.root); err != nil {
		fsw.Close()
		return nil, err
	}
	w.fsw = fsw

	changes := make(chan domain.FileChange, 64)
	go w.loop(ctx, fsw, changes)
	return changes, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw == nil {
		return nil
	}
	err := w.fsw.Close()
	w.fsw = nil
	return err
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, changes chan<- domain.FileChange) {
	defer close(changes)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isHidden(info.Name()) {
					if err := addTree(fsw, event.Name); err != nil {
						log.Warn("watching new directory %s: %v", event.Name, err)
					}
					continue
				}
			}
			change := w.handleFsEvent(event)
			if change == nil {
				continue
			}
			select {
			case changes <- *change:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Warn("watch error: %v", err)
		}
	}
}

// handleFsEvent converts an fsnotify event into a change, or nil when
// the event is not relevant.
func (w *Watcher) handleFsEvent(event fsnotify.Event) *domain.FileChange {
	if isHidden(filepath.Base(event.Name)) || !w.matches(event.Name) {
		return nil
	}

	var changeType domain.ChangeType
	switch {
	case event.Has(fsnotify.Create):
		changeType = domain.ChangeCreated
	case event.Has(fsnotify.Write):
		changeType = domain.ChangeUpdated
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		changeType = domain.ChangeDeleted
	default:
		return nil
	}

	if changeType != domain.ChangeDeleted {
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return nil
		}
	}

	return &domain.FileChange{Type: changeType, Path: event.Name}
}

func (w *Watcher) matches(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

// addTree adds dir and every non-hidden subdirectory to the watcher.
func addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
