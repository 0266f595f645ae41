package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid create/write bursts per file
	Logger      *slog.Logger
}

// Watch emits the path of every accepted file created or written under the
// roots, once writes have been quiet for cfg.Debounce. Both channels close
// when ctx is done.
func Watch(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("ingest.watch.create_failed", "error", err)
		return nil, nil, err
	}

	var initial []string
	for _, root := range cfg.Roots {
		if err := addTree(w, root); err != nil {
			logger.Error("ingest.watch.add_root_failed", "root", root, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
		if cfg.InitialScan {
			files, err := ScanDirectory(root)
			if err != nil {
				_ = w.Close()
				return nil, nil, err
			}
			initial = append(initial, files...)
		}
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)
	d := &debouncer{delay: cfg.Debounce, out: evCh, timers: map[string]*time.Timer{}}

	go func() {
		defer close(errCh)
		defer close(evCh)
		defer d.stop()
		defer w.Close()

		for _, p := range initial {
			select {
			case evCh <- p:
			case <-ctx.Done():
				return
			}
		}
		logger.Info("ingest.watch.started", "roots", cfg.Roots, "initial", len(initial))

		for {
			select {
			case <-ctx.Done():
				logger.Info("ingest.watch.stopped")
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() && !IsHidden(e.Name) {
						if err := addTree(w, e.Name); err != nil {
							logger.Warn("ingest.watch.add_dir_failed", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if allowedPath(e.Name) && (e.Has(fsnotify.Create) || e.Has(fsnotify.Write)) {
					d.touch(ctx, e.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && IsHidden(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// debouncer delays each path until it has been quiet for delay.
type debouncer struct {
	delay time.Duration
	out   chan<- string

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func (d *debouncer) touch(ctx context.Context, path string) {
	if d.delay <= 0 {
		select {
		case d.out <- path:
		case <-ctx.Done():
		}
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[path]; ok {
		t.Reset(d.delay)
		return
	}
	d.timers[path] = time.AfterFunc(d.delay, func() { d.fire(path) })
}

func (d *debouncer) fire(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	delete(d.timers, path)
	select {
	case d.out <- path:
	default:
		slog.Warn("ingest.watch.dropped", "path", path)
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for p, t := range d.timers {
		t.Stop()
		delete(d.timers, p)
	}
}
