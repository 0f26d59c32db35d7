package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/ppiankov/surveyfill/internal/pipeline"
	"go.uber.org/zap"
)

// Filler fills an HTML document
type Filler interface {
	FillHTML(ctx context.Context, source string, content string) (*pipeline.FillResult, error)
}

// RunFunc receives the outcome of every watcher run
type RunFunc func(report *model.Report, wrote bool, err error)

// FileWatcher re-fills one HTML file in place whenever it changes.
// The file is rewritten only when a run changed something, so the
// watcher's own write settles after one extra, unchanged run.
type FileWatcher struct {
	mu        sync.Mutex
	path      string
	filler    Filler
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	quiet     time.Duration
	logger    *zap.Logger
	onRun     RunFunc
	ctx       context.Context
	stopCh    chan struct{}
	doneCh    chan struct{}
	running   bool
}

// NewFileWatcher creates a watcher for path. A nil logger disables logging.
func NewFileWatcher(path string, filler Filler, quiet time.Duration, logger *zap.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	return &FileWatcher{
		path:    abs,
		filler:  filler,
		watcher: watcher,
		quiet:   quiet,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// OnRun registers a callback for run results; set it before Start
func (w *FileWatcher) OnRun(fn RunFunc) {
	w.onRun = fn
}

// Start fills the file once and then watches its directory.
// Directories are watched instead of the file so editors that replace
// the file by rename keep being followed.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if _, err := os.Stat(w.path); err != nil {
		return fmt.Errorf("stat %s: %w", w.path, err)
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.ctx = ctx
	w.debouncer = NewDebouncer(w.quiet, w.runAndReport)
	w.running = true

	go w.run(ctx)
	w.debouncer.Trigger()

	w.logger.Info("watching file", zap.String("path", w.path))
	return nil
}

// Stop stops watching and waits for the event loop to exit
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.debouncer.Stop()

	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("close watcher", zap.Error(err))
	}
}

func (w *FileWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("file event", zap.String("op", event.Op.String()))
			w.debouncer.Trigger()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *FileWatcher) runAndReport() {
	report, wrote, err := w.RunOnce(w.ctx)
	if err != nil {
		w.logger.Warn("fill failed", zap.String("path", w.path), zap.Error(err))
	}
	if w.onRun != nil {
		w.onRun(report, wrote, err)
	}
}

// RunOnce fills the file and writes it back when anything changed
func (w *FileWatcher) RunOnce(ctx context.Context) (*model.Report, bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, false, fmt.Errorf("stat %s: %w", w.path, err)
	}
	content, err := os.ReadFile(w.path)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", w.path, err)
	}

	result, err := w.filler.FillHTML(pipeline.WithTrigger(ctx, pipeline.TriggerFile), w.path, string(content))
	if err != nil {
		return nil, false, err
	}

	if result.Report.Summary.Changed == 0 {
		return result.Report, false, nil
	}

	if err := os.WriteFile(w.path, []byte(result.HTML), info.Mode().Perm()); err != nil {
		return result.Report, false, fmt.Errorf("write %s: %w", w.path, err)
	}
	return result.Report, true, nil
}
