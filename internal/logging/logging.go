// Package logging provides categorized zap loggers for assay subsystems.
// The CLI installs the base logger at startup; until then every category
// logs to a no-op logger, so engine packages never need nil checks.
package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Category names a subsystem logger.
type Category string

const (
	CategorySnapshot    Category = "snapshot"    // Filesystem walking, hashing
	CategoryExtract     Category = "extract"     // Signal extractor runs
	CategoryAggregate   Category = "aggregate"   // Signal -> Finding rules
	CategoryScore       Category = "score"       // Rubric application
	CategoryOrchestrate Category = "orchestrate" // Scan state machine, batches
	CategoryStore       Category = "store"       // Report history database
	CategoryWatch       Category = "watch"       // Watch-mode file events
)

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// SetLogger installs the base logger all categories derive from. Nil resets
// to the no-op logger.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		base = zap.NewNop()
		return
	}
	base = l
}

// L returns the named logger for a category.
func L(category Category) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Named(string(category))
}

// Timer measures an operation and logs its duration on Stop.
type Timer struct {
	log   *zap.Logger
	op    string
	start time.Time
}

// StartTimer begins timing an operation for the given category.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		log:   L(category),
		op:    operation,
		start: time.Now(),
	}
}

// Stop logs the elapsed duration at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.log.Debug("operation complete",
		zap.String("op", t.op),
		zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithThreshold logs at warn level when the operation exceeded the
// threshold, debug otherwise.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		t.log.Warn("slow operation",
			zap.String("op", t.op),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", threshold))
		return elapsed
	}
	t.log.Debug("operation complete",
		zap.String("op", t.op),
		zap.Duration("elapsed", elapsed))
	return elapsed
}
