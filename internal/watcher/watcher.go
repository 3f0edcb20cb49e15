package watcher

import (
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDelay coalesces bursts of filesystem events into one refresh.
const DefaultDelay = 150 * time.Millisecond

// ChangeFunc receives the watched directories whose contents changed.
type ChangeFunc func(dirs ...string)

// DirectoryWatcher watches the directories shown by the panels (non-recursive)
// and reports changed directories after a short quiet period.
type DirectoryWatcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	watched  map[string]struct{}
	pending  map[string]struct{}
	timer    *time.Timer
	delay    time.Duration
	onChange ChangeFunc
	logger   *zap.Logger
	stopCh   chan struct{}
	stopped  bool
}

// NewDirectoryWatcher creates a watcher. Call Start before SetPaths.
func NewDirectoryWatcher(onChange ChangeFunc, delay time.Duration, logger *zap.Logger) *DirectoryWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &DirectoryWatcher{
		watched:  make(map[string]struct{}),
		pending:  make(map[string]struct{}),
		delay:    delay,
		onChange: onChange,
		logger:   logger,
	}
}

// Start begins processing filesystem events
func (dw *DirectoryWatcher) Start() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.fsw != nil && !dw.stopped {
		return nil // Already running
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dw.fsw = fsw
	dw.stopped = false
	dw.stopCh = make(chan struct{})
	dw.watched = make(map[string]struct{})
	go dw.loop(fsw, dw.stopCh)
	return nil
}

// SetPaths replaces the watched set with paths. Directories that cannot be
// watched are logged and skipped.
func (dw *DirectoryWatcher) SetPaths(paths ...string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.fsw == nil || dw.stopped {
		return
	}

	wanted := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p != "" {
			wanted[filepath.Clean(p)] = struct{}{}
		}
	}
	for p := range dw.watched {
		if _, ok := wanted[p]; !ok {
			_ = dw.fsw.Remove(p)
			delete(dw.watched, p)
		}
	}
	for p := range wanted {
		if _, ok := dw.watched[p]; ok {
			continue
		}
		if err := dw.fsw.Add(p); err != nil {
			dw.logger.Warn("Cannot watch directory", zap.String("path", p), zap.Error(err))
			continue
		}
		dw.watched[p] = struct{}{}
		dw.logger.Debug("Watching directory", zap.String("path", p))
	}
}

// Watched returns the watched directories, sorted
func (dw *DirectoryWatcher) Watched() []string {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	out := make([]string, 0, len(dw.watched))
	for p := range dw.watched {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Stop stops the directory watcher
func (dw *DirectoryWatcher) Stop() {
	dw.mu.Lock()
	if dw.stopped || dw.fsw == nil {
		dw.mu.Unlock()
		return // Already stopped, do nothing
	}
	dw.stopped = true
	close(dw.stopCh)
	if dw.timer != nil {
		dw.timer.Stop()
		dw.timer = nil
	}
	dw.pending = make(map[string]struct{})
	fsw := dw.fsw
	dw.mu.Unlock()

	if err := fsw.Close(); err != nil {
		dw.logger.Debug("Watcher close failed", zap.Error(err))
	}
}

func (dw *DirectoryWatcher) loop(fsw *fsnotify.Watcher, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			// events may have been lost; refresh everything
			dw.logger.Warn("Watcher error", zap.Error(err))
			dw.enqueue(dw.Watched()...)
		case evt, ok := <-fsw.Events:
			if !ok {
				return
			}
			dw.handle(evt)
		}
	}
}

func (dw *DirectoryWatcher) handle(evt fsnotify.Event) {
	if evt.Op == fsnotify.Chmod {
		return
	}
	name := filepath.Clean(evt.Name)
	dirs := make([]string, 0, 2)

	dw.mu.Lock()
	if _, ok := dw.watched[filepath.Dir(name)]; ok {
		dirs = append(dirs, filepath.Dir(name))
	}
	if _, ok := dw.watched[name]; ok {
		// the watched directory itself went away
		dirs = append(dirs, name)
	}
	dw.mu.Unlock()

	if len(dirs) > 0 {
		dw.enqueue(dirs...)
	}
}

// enqueue records dirs and arms the flush timer
func (dw *DirectoryWatcher) enqueue(dirs ...string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.stopped {
		return
	}
	for _, d := range dirs {
		dw.pending[d] = struct{}{}
	}
	if dw.timer == nil {
		dw.timer = time.AfterFunc(dw.delay, dw.flush)
	}
}

func (dw *DirectoryWatcher) flush() {
	dw.mu.Lock()
	pending := dw.pending
	dw.pending = make(map[string]struct{})
	dw.timer = nil
	stopped := dw.stopped
	dw.mu.Unlock()

	if stopped || len(pending) == 0 || dw.onChange == nil {
		return
	}
	dirs := make([]string, 0, len(pending))
	for d := range pending {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	dw.logger.Debug("Directories changed", zap.Strings("dirs", dirs))
	dw.onChange(dirs...)
}
