// Package watch re-assesses a repository whenever its files stop changing.
// A fsnotify watcher covers every non-ignored directory under the root;
// events land in a debounce map and a full scan runs only once the tree has
// been quiet for the debounce window, so editor save bursts and branch
// switches trigger one re-scan, not hundreds.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"assay/internal/logging"
	"assay/internal/orchestrate"
	"assay/internal/snapshot"
	"assay/internal/types"
)

// DefaultDebounce is how long the tree must stay quiet before a re-scan.
const DefaultDebounce = 500 * time.Millisecond

// flushInterval is how often the debounce map is checked for settled events.
const flushInterval = 100 * time.Millisecond

// Config assembles a Watcher.
type Config struct {
	// Root is the repository to watch and re-scan.
	Root string
	// Orchestrator runs the re-scans.
	Orchestrator *orchestrate.Orchestrator
	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration
	// IgnorePatterns mirrors the snapshot ignore set so the watcher skips
	// the same directories the scan would.
	IgnorePatterns []string
	// OnReport receives every report a re-scan produces. Optional.
	OnReport func(*types.AssessmentReport)
}

// Stats tracks watcher activity.
type Stats struct {
	Events    int
	Rescans   int
	Errors    int
	LastEvent time.Time
	LastPath  string
}

// Watcher owns one watched repository root.
type Watcher struct {
	root     string
	orch     *orchestrate.Orchestrator
	debounce time.Duration
	ignore   []string
	onReport func(*types.AssessmentReport)

	fsw *fsnotify.Watcher

	mu      sync.RWMutex
	pending map[string]time.Time
	running bool
	stats   Stats

	lastOverall float64
	hasLast     bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Watcher for the configured root. Nothing is watched until
// Start is called.
func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("watch: root is required")
	}
	if cfg.Orchestrator == nil {
		return nil, errors.New("watch: orchestrator is required")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ignore := cfg.IgnorePatterns
	if ignore == nil {
		ignore = snapshot.DefaultOptions().IgnorePatterns
	}

	return &Watcher{
		root:     cfg.Root,
		orch:     cfg.Orchestrator,
		debounce: debounce,
		ignore:   ignore,
		onReport: cfg.OnReport,
		fsw:      fsw,
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start registers every non-ignored directory with the filesystem watcher
// and spawns the event loop, which scans once for a baseline before waiting
// on events. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	log := logging.L(logging.CategoryWatch)

	dirs, err := w.addTree()
	if err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	log.Info("watching repository",
		zap.String("root", w.root),
		zap.Int("dirs", dirs),
		zap.Duration("debounce", w.debounce))

	go w.run(ctx)
	return nil
}

// Stop halts the event loop and releases the filesystem watcher. Safe to
// call more than once, and safe on a watcher that never started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.fsw.Close(); err != nil {
		logging.L(logging.CategoryWatch).Warn("close failed", zap.Error(err))
	}
	logging.L(logging.CategoryWatch).Info("watch stopped", zap.String("root", w.root))
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// addTree registers the root and every non-ignored subdirectory, returning
// how many directories are watched.
func (w *Watcher) addTree() (int, error) {
	count := 0
	err := filepath.WalkDir(w.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == w.root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root {
			rel, relErr := filepath.Rel(w.root, p)
			if relErr != nil {
				return nil
			}
			if snapshot.SkipDir(filepath.ToSlash(rel), d.Name(), w.ignore) {
				return filepath.SkipDir
			}
		}
		if addErr := w.fsw.Add(p); addErr != nil {
			logging.L(logging.CategoryWatch).Debug("watch add failed",
				zap.String("dir", p), zap.Error(addErr))
			return nil
		}
		count++
		return nil
	})
	return count, err
}

// run scans once for a baseline, then loops on filesystem events.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	log := logging.L(logging.CategoryWatch)

	w.rescan(ctx)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// handleEvent records a relevant filesystem event in the debounce map. New
// directories join the watch set immediately so files created inside them
// are not missed.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
	if event.Op&relevant == 0 {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	name := filepath.Base(event.Name)
	if snapshot.Ignored(rel, name, w.ignore) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			if !snapshot.SkipDir(rel, name, w.ignore) {
				if addErr := w.fsw.Add(event.Name); addErr != nil {
					logging.L(logging.CategoryWatch).Debug("watch add failed",
						zap.String("dir", event.Name), zap.Error(addErr))
				}
			}
		}
	}

	logging.L(logging.CategoryWatch).Debug("file event",
		zap.String("op", event.Op.String()),
		zap.String("path", rel))

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEvent = time.Now()
	w.stats.LastPath = rel
	w.pending[rel] = time.Now()
	w.mu.Unlock()
}

// flush triggers one re-scan once every pending event has settled past the
// debounce window. A tree still being written to keeps pushing the scan out.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	var newest time.Time
	for _, at := range w.pending {
		if at.After(newest) {
			newest = at
		}
	}
	if time.Since(newest) < w.debounce {
		w.mu.Unlock()
		return
	}
	changed := len(w.pending)
	w.pending = make(map[string]time.Time)
	w.mu.Unlock()

	logging.L(logging.CategoryWatch).Info("changes settled, re-scanning",
		zap.Int("changed_paths", changed))
	w.rescan(ctx)
}

// rescan runs one assessment and reports the score movement.
func (w *Watcher) rescan(ctx context.Context) {
	log := logging.L(logging.CategoryWatch)

	rep := w.orch.Scan(ctx, w.root)

	w.mu.Lock()
	w.stats.Rescans++
	if rep.Failed() {
		w.stats.Errors++
	}
	prev, had := w.lastOverall, w.hasLast
	if !rep.Failed() {
		w.lastOverall = rep.OverallScore
		w.hasLast = true
	}
	w.mu.Unlock()

	switch {
	case rep.Failed():
		log.Warn("re-scan failed", zap.String("reason", rep.FailureReason))
	case had:
		log.Info("score update",
			zap.Float64("overall", types.Round1(rep.OverallScore)),
			zap.Float64("delta", types.Round1(rep.OverallScore-prev)),
			zap.String("grade", rep.Grade))
	default:
		log.Info("baseline score",
			zap.Float64("overall", types.Round1(rep.OverallScore)),
			zap.String("grade", rep.Grade))
	}

	if w.onReport != nil {
		w.onReport(rep)
	}
}
