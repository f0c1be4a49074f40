// Package watch implements continuous-preview mode: it monitors a source
// file for changes and triggers a debounced rebuild on each change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

// RebuildFunc performs one rebuild of the watched source.
type RebuildFunc func(ctx context.Context) error

// Watcher monitors a source file and triggers debounced rebuilds.
type Watcher struct {
	sourcePath   string
	rebuild      RebuildFunc
	watcher      *fsnotify.Watcher
	rebuildChan  chan struct{}
	debounceTime time.Duration
}

// New creates a watcher for the given source file.
func New(sourcePath string, rebuild RebuildFunc) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Resolve absolute path for consistent watching
	absPath, err := filepath.Abs(sourcePath)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve source path: %w", err)
	}

	return &Watcher{
		sourcePath:   absPath,
		rebuild:      rebuild,
		watcher:      watcher,
		rebuildChan:  make(chan struct{}, 1),
		debounceTime: 500 * time.Millisecond, // Debounce rapid editor writes
	}, nil
}

// Run performs an initial build, then watches until ctx is canceled. Rebuild
// failures are logged and watching continues; only watcher-level failures end
// the loop early.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	// Watch the directory containing the source (more reliable than
	// watching the file directly: editors often replace via rename).
	sourceDir := filepath.Dir(w.sourcePath)
	if err := w.watcher.Add(sourceDir); err != nil {
		return fmt.Errorf("failed to watch source directory %s: %w", sourceDir, err)
	}

	slog.Info("Watching source for changes", logfields.Path(w.sourcePath))

	if err := w.rebuild(ctx); err != nil {
		slog.Error("Initial build failed", logfields.Error(err))
	}

	go w.rebuildLoop(ctx)

	sourceFile := filepath.Base(w.sourcePath)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != sourceFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				slog.Debug("Source change detected", logfields.Path(event.Name), "op", event.Op.String())
				w.triggerRebuild()
			} else if event.Op&fsnotify.Remove != 0 {
				slog.Warn("Source file removed", logfields.Path(event.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Watcher error", logfields.Error(err))
		}
	}
}

// rebuildLoop handles debounced rebuilds. Rebuilds run on this goroutine,
// one at a time; a change arriving during a build parks in the buffered
// trigger channel and starts a fresh debounce once the build finishes, so
// two builds can never write the same destination concurrently.
func (w *Watcher) rebuildLoop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.rebuildChan:
			if timer == nil {
				timer = time.NewTimer(w.debounceTime)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-fire:
					default:
					}
				}
				timer.Reset(w.debounceTime)
			}
		case <-fire:
			timer = nil
			fire = nil
			if err := w.rebuild(ctx); err != nil {
				slog.Error("Rebuild failed", logfields.Error(err))
			}
		}
	}
}

// triggerRebuild requests a debounced rebuild.
func (w *Watcher) triggerRebuild() {
	select {
	case w.rebuildChan <- struct{}{}:
		// Rebuild triggered
	default:
		// Rebuild already pending
	}
}
