package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// DefaultDebounce collapses bursts of writes into one trigger.
const DefaultDebounce = 250 * time.Millisecond

// BuildWatcher fires a trigger whenever the build log changes, so the store
// can be reconciled after each compile.
type BuildWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	triggers chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

// NewBuildWatcher watches path. The parent directory is watched so that
// truncate-and-rewrite and rename-over both register.
func NewBuildWatcher(path string, debounce time.Duration) (*BuildWatcher, error) {
	if path == "" {
		return nil, errors.New("console path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve console path: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &BuildWatcher{
		path:     abs,
		debounce: debounce,
		watcher:  w,
		triggers: make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}, nil
}

// Triggers delivers one value per settled burst of changes. Pending triggers
// coalesce.
func (b *BuildWatcher) Triggers() <-chan struct{} {
	return b.triggers
}

// Run processes filesystem events until ctx is done or Stop is called.
func (b *BuildWatcher) Run(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-b.stop:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != b.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(b.debounce)
			} else {
				timer.Reset(b.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			select {
			case b.triggers <- struct{}{}:
			default:
			}
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("build watcher error", "path", b.path, "error", err)
		}
	}
}

// Stop releases the watcher. Safe to call more than once.
func (b *BuildWatcher) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
		_ = b.watcher.Close()
	})
}
