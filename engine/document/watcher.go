package document

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/fsnotify/fsnotify"
)

// SourceHandler receives the new content of a watched shader file.
type SourceHandler func(path, source string)

// Watcher reloads shader sources when their files are saved.
//
// Directories are watched rather than files so editors that save by renaming a temporary file
// are still seen. Events for one file within the debounce window are merged.
type Watcher struct {
	watcher  *fsnotify.Watcher
	handler  SourceHandler
	debounce time.Duration

	mu    sync.Mutex
	files map[string]bool
	dirs  map[string]bool

	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher calling handler on the goroutine started by Start.
//
// Parameters:
//   - handler: receives the path and content of a changed file
//   - debounce: time to wait for further events before reading a file, 0 for 100ms
//
// Returns:
//   - *Watcher: the watcher
//   - error: error if the platform watcher cannot be created
func NewWatcher(handler SourceHandler, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  fw,
		handler:  handler,
		debounce: debounce,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		done:     make(chan struct{}),
	}, nil
}

// Add watches path.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirs[dir] {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = true
	}
	w.files[abs] = true
	return nil
}

// Start processes events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop closes the platform watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if err := w.watcher.Close(); err != nil {
			common.Logger().Warn("file watcher close failed", "err", err)
		}
	})
}

func (w *Watcher) watched(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[path]
}

func (w *Watcher) run(ctx context.Context) {
	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			path := filepath.Clean(ev.Name)
			if !w.watched(path) {
				continue
			}
			pending[path] = true
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			common.Logger().Warn("file watcher error", "err", err)
		case <-timer.C:
			for path := range pending {
				w.reload(path)
			}
			clear(pending)
		}
	}
}

func (w *Watcher) reload(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		common.Logger().Warn("shader reload failed", "path", path, "err", err)
		return
	}
	common.Logger().Debug("shader source changed", "path", path)
	w.handler(path, string(data))
}
