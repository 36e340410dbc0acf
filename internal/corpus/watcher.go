package corpus

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher triggers a callback when watched documentation files change.
// Bursts of events are collapsed into one call.
type Watcher struct {
	watcher      *fsnotify.Watcher
	extensions   []string
	excludedDirs []string
	debounce     time.Duration
	logger       *slog.Logger
}

func NewWatcher(extensions, excludedDirs []string, logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		watcher:      w,
		extensions:   extensions,
		excludedDirs: excludedDirs,
		debounce:     2 * time.Second,
		logger:       logger,
	}, nil
}

// Watch registers root and its non-excluded subdirectories, then calls
// onChange after matching file events settle.
func (w *Watcher) Watch(ctx context.Context, root string, onChange func(context.Context)) error {
	if err := w.addTree(root); err != nil {
		return err
	}

	go func() {
		var (
			mu    sync.Mutex
			timer *time.Timer
		)
		fire := func() {
			mu.Lock()
			defer mu.Unlock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				if ctx.Err() == nil {
					onChange(ctx)
				}
			})
		}

		for {
			select {
			case <-ctx.Done():
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				mu.Unlock()
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create == fsnotify.Create {
					if isDir(event.Name) && !containsFold(w.excludedDirs, filepath.Base(event.Name)) {
						if err := w.addTree(event.Name); err != nil {
							w.logger.Warn("watch new directory failed", "dir", event.Name, "error", err)
						}
						fire()
						continue
					}
				}
				if !matchExtension(event.Name, w.extensions) {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				fire()
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("documentation watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && containsFold(w.excludedDirs, d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
