// Package watch re-runs an action when extension directories or the risk
// policy change on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits after the last event before
// firing. Browsers unpack an update as a burst of writes.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches files and directories for changes. Directories are watched
// one level deep, so a new version folder under an extension ID is noticed.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	watched map[string]bool
}

// New creates a Watcher for paths. Paths that do not exist are skipped;
// an error is returned only when the watcher itself cannot be created or an
// existing path cannot be watched.
func New(paths []string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{fs: fw, debounce: debounce, logger: logger, watched: make(map[string]bool)}
	for _, p := range paths {
		if p == "" {
			continue
		}
		fi, err := os.Stat(p)
		if err != nil {
			logger.Debug("watch: skipping missing path", zap.String("path", p))
			continue
		}
		if err := w.add(p); err != nil {
			fw.Close()
			return nil, err
		}
		if fi.IsDir() {
			w.addChildren(p)
		}
	}
	return w, nil
}

func (w *Watcher) add(p string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[p] {
		return nil
	}
	if err := w.fs.Add(p); err != nil {
		return fmt.Errorf("failed to watch %q: %w", p, err)
	}
	w.watched[p] = true
	return nil
}

func (w *Watcher) addChildren(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.add(filepath.Join(dir, e.Name())); err != nil {
				w.logger.Warn("watch: add directory", zap.Error(err))
			}
		}
	}
}

// Watched returns the number of paths being watched.
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

// Run calls onChange once per burst of filesystem events until ctx is done.
// onChange never runs concurrently with itself.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	defer w.fs.Close()

	var (
		debounce *time.Timer
		fireMu   sync.Mutex
	)
	fire := func() {
		fireMu.Lock()
		defer fireMu.Unlock()
		if ctx.Err() == nil {
			onChange()
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := w.add(event.Name); err != nil {
						w.logger.Warn("watch: add directory", zap.Error(err))
					}
				}
			}
			w.logger.Debug("watch: event", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.debounce, fire)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch: file watcher error", zap.Error(err))
		}
	}
}
