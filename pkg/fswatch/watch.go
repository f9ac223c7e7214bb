package fswatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/syncbox/pkg/errors"
	"github.com/sidkik/syncbox/pkg/metrics"
	dirsync "github.com/sidkik/syncbox/pkg/sync"
)

var fs = afero.NewOsFs()

// DefaultBatchWindow is how long the watcher waits for the filesystem to go
// quiet before processing the events it has collected.
const DefaultBatchWindow = 200 * time.Millisecond

// Handler reacts to the changes found in a batch. Paths are relative to the
// watched directory and use forward slashes.
type Handler interface {
	FileChanged(relPath string)
	FileRemoved(relPath string)

	// DirectoryChanged is called once per batch in which at least one
	// change was delivered.
	DirectoryChanged()
}

// Watcher watches a directory tree and reports changes to a Handler in
// batches. Events for paths in the IgnoreSet are dropped.
type Watcher struct {
	root        string
	ignore      *IgnoreSet
	handler     Handler
	clock       clockwork.Clock
	batchWindow time.Duration

	watcher *fsnotify.Watcher

	// The directories currently watched, relative to root. Removed paths
	// are checked against it since they can't be stat'd anymore.
	dirsLock sync.Mutex
	dirs     map[string]struct{}

	stop chan struct{}
	done chan struct{}
}

// New returns a Watcher for `root`. It doesn't watch anything until Start is
// called.
func New(root string, ignore *IgnoreSet, handler Handler) *Watcher {
	return &Watcher{
		root:        root,
		ignore:      ignore,
		handler:     handler,
		clock:       clockwork.NewRealClock(),
		batchWindow: DefaultBatchWindow,
		dirs:        map[string]struct{}{},
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// WithBatchWindow overrides the quiet period that closes a batch.
func (w *Watcher) WithBatchWindow(window time.Duration) *Watcher {
	w.batchWindow = window
	return w
}

// Start adds watches for `root` and all its subdirectories, and starts
// processing events in the background.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WithContext(err, "create watcher")
	}
	w.watcher = watcher

	if _, err := w.watchTree("."); err != nil {
		// Close the watcher so that we release the file handles for the
		// previously added paths.
		if err := watcher.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file watcher")
		}
		return err
	}

	go w.run()
	return nil
}

// Stop stops watching and waits for the current batch to finish processing.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
	if err := w.watcher.Close(); err != nil {
		log.WithError(err).Warn("Failed to close file watcher")
	}
}

func (w *Watcher) run() {
	defer close(w.done)

	var batch []string
	var timer clockwork.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			paths := w.handleEvent(event)
			if len(paths) == 0 {
				continue
			}
			batch = append(batch, paths...)

			if timer == nil {
				timer = w.clock.NewTimer(w.batchWindow)
				timerC = timer.Chan()
			} else {
				timer.Reset(w.batchWindow)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("File watcher error")

		case <-timerC:
			w.processBatch(batch)
			batch = nil
			timer = nil
			timerC = nil

		case <-w.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// handleEvent converts a raw fsnotify event into the relative paths that
// should be considered in the next batch.
func (w *Watcher) handleEvent(event fsnotify.Event) []string {
	// Attribute changes include our own Chtimes calls, and never change
	// the file contents.
	if event.Op == fsnotify.Chmod {
		return nil
	}

	relPath, ok := w.relPath(event.Name)
	if !ok || dirsync.IsHidden(relPath) {
		return nil
	}

	log.WithField("path", relPath).WithField("op", event.Op.String()).Debug("Filesystem event")

	// Newly created directories must be watched as well. Files written into
	// them before the watch was added are picked up by the walk.
	if event.Op&fsnotify.Create != 0 {
		if fi, err := fs.Stat(event.Name); err == nil && fi.IsDir() {
			files, err := w.watchTree(relPath)
			if err != nil {
				log.WithError(err).WithField("path", relPath).Warn("Failed to watch new directory")
			}
			return files
		}
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.forgetDir(relPath) {
		return nil
	}
	return []string{relPath}
}

// processBatch delivers the net effect of a batch of events to the handler,
// and then resets the inactive ignore entries.
func (w *Watcher) processBatch(batch []string) {
	defer w.ignore.ResetInactive()

	seen := map[string]struct{}{}
	var changed bool
	for _, relPath := range batch {
		if _, ok := seen[relPath]; ok {
			continue
		}
		seen[relPath] = struct{}{}

		if w.ignore.Suppressed(relPath) {
			log.WithField("path", relPath).Debug("Ignoring event for file written by syncbox")
			metrics.RecordSuppressedEvent()
			continue
		}

		fi, err := fs.Stat(filepath.Join(w.root, filepath.FromSlash(relPath)))
		switch {
		case err == nil && fi.IsDir():
			continue
		case err == nil && fi.Mode().IsRegular():
			w.handler.FileChanged(relPath)
		case err == nil:
			continue
		case os.IsNotExist(err):
			w.handler.FileRemoved(relPath)
		default:
			log.WithError(err).WithField("path", relPath).Warn("Failed to stat changed file")
			continue
		}
		changed = true
	}

	if changed {
		w.handler.DirectoryChanged()
	}
}

// watchTree adds watches for `relDir` and its non-hidden subdirectories. It
// returns the regular files found along the way.
func (w *Watcher) watchTree(relDir string) (files []string, err error) {
	dir := filepath.Join(w.root, filepath.FromSlash(relDir))
	err = afero.Walk(fs, dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		relPath, ok := w.relPath(path)
		if !ok {
			return errors.Errorf("%q is outside of the watched directory", path)
		}

		if dirsync.IsHidden(relPath) {
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !fi.IsDir() {
			if fi.Mode().IsRegular() && relPath != "." {
				files = append(files, relPath)
			}
			return nil
		}

		if w.watcher != nil {
			if err := w.watcher.Add(path); err != nil {
				return errors.WithContext(err, fmt.Sprintf("watch %q", path))
			}
		}
		w.dirsLock.Lock()
		w.dirs[relPath] = struct{}{}
		w.dirsLock.Unlock()
		return nil
	})
	return files, err
}

// forgetDir removes `relPath` and its children from the watched directories.
// It returns whether `relPath` was a watched directory.
func (w *Watcher) forgetDir(relPath string) bool {
	w.dirsLock.Lock()
	defer w.dirsLock.Unlock()

	if _, ok := w.dirs[relPath]; !ok {
		return false
	}
	for dir := range w.dirs {
		if dir == relPath || strings.HasPrefix(dir, relPath+"/") {
			delete(w.dirs, dir)
		}
	}
	return true
}

func (w *Watcher) relPath(path string) (string, bool) {
	relPath, err := filepath.Rel(w.root, path)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(relPath), true
}
