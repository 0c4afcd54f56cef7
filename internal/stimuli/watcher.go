package stimuli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Result is the outcome of reloading the stimulus files.
type Result struct {
	Stimuli experiment.Stimuli
	Err     error
	At      time.Time
}

// Watcher reloads and validates the stimulus files whenever one changes.
type Watcher struct {
	files     Files
	numBlocks int
	blockSize int
	debounce  time.Duration
	logger    *zap.Logger
	watcher   *fsnotify.Watcher
	watched   map[string]struct{}
	results   chan Result
}

// NewWatcher creates a watcher over files. Directories are watched rather
// than the files so editors that replace a file on save are seen.
func NewWatcher(files Files, numBlocks, blockSize int, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	w := &Watcher{
		files:     files,
		numBlocks: numBlocks,
		blockSize: blockSize,
		debounce:  200 * time.Millisecond,
		logger:    logger.Named("stimuli"),
		watcher:   fw,
		watched:   make(map[string]struct{}),
		results:   make(chan Result, 1),
	}

	dirs := make(map[string]struct{})
	for _, p := range files.Paths() {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		w.watched[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	return w, nil
}

// Results returns the channel of reload results. The first result is sent
// as soon as Run starts.
func (w *Watcher) Results() <-chan Result {
	return w.results
}

// Check loads and validates the files once.
func (w *Watcher) Check(ctx context.Context) Result {
	s, err := Load(ctx, w.files)
	if err == nil {
		err = Validate(s, w.numBlocks, w.blockSize)
	}
	return Result{Stimuli: s, Err: err, At: time.Now()}
}

// Run watches until ctx is done. Bursts of writes are coalesced.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		_ = w.watcher.Close()
		close(w.results)
	}()

	w.publish(ctx, w.Check(ctx))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("stimulus file changed",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.publish(ctx, w.Check(ctx))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("stimulus watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := w.watched[abs]
	return ok
}

// publish replaces any unread result with r.
func (w *Watcher) publish(ctx context.Context, r Result) {
	if r.Err != nil {
		w.logger.Info("stimulus files invalid", zap.Error(r.Err))
	} else {
		w.logger.Info("stimulus files valid",
			zap.Int("items", len(r.Stimuli.Items)),
			zap.Int("class1", len(r.Stimuli.Class1)),
			zap.Int("class2", len(r.Stimuli.Class2)))
	}
	select {
	case <-w.results:
	default:
	}
	select {
	case w.results <- r:
	case <-ctx.Done():
	}
}
