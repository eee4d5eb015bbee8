package plan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/moabualruz/ricecoder-sub010/internal/logging"
)

// DefaultDebounce coalesces the bursts of events editors emit for one save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports when a plan file or the project it targets changes.
type Watcher struct {
	watcher     *fsnotify.Watcher
	planPath    string
	ignorePaths []string
	debounce    time.Duration
	logger      *logging.Logger

	mu      sync.Mutex
	stopped bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger used for watch errors.
func WithWatcherLogger(l *logging.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher watches the directory holding planPath and, when projectRoot is
// non-empty, every directory under projectRoot.
func NewWatcher(planPath, projectRoot string, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	absPlan, err := filepath.Abs(planPath)
	if err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:     fw,
		planPath:    absPlan,
		ignorePaths: []string{".git", "node_modules", "vendor", ".DS_Store"},
		debounce:    DefaultDebounce,
		logger:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}

	// Watch the directory rather than the file; editors often replace files
	// on save, which drops a watch on the file itself.
	if err := fw.Add(filepath.Dir(absPlan)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	if projectRoot != "" {
		w.watchDirRecursive(projectRoot)
	}
	return w, nil
}

// watchDirRecursive adds root and its subdirectories, skipping ignored names.
func (w *Watcher) watchDirRecursive(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if w.ignored(path) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			if addErr := w.watcher.Add(path); addErr != nil {
				w.logger.Warn("cannot watch directory", "path", path, "error", addErr.Error())
			}
		}
		return nil
	})
}

func (w *Watcher) ignored(path string) bool {
	sep := string(filepath.Separator)
	for _, ignore := range w.ignorePaths {
		if filepath.Base(path) == ignore || strings.Contains(path, sep+ignore+sep) {
			return true
		}
	}
	return false
}

// Run delivers the set of changed paths on changes after each quiet period,
// until ctx is done. It closes changes on return.
func (w *Watcher) Run(ctx context.Context, changes chan<- []string) {
	defer close(changes)
	defer w.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if w.ignored(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.watchDirRecursive(ev.Name)
				}
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			pending = make(map[string]struct{})
			select {
			case changes <- batch:
			case <-ctx.Done():
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err.Error())
		}
	}
}

// PlanChanged reports whether batch touches the plan file.
func (w *Watcher) PlanChanged(batch []string) bool {
	for _, p := range batch {
		if filepath.Clean(p) == w.planPath {
			return true
		}
	}
	return false
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	return w.watcher.Close()
}
