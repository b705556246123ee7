// Package extractor defines the uniform signal-extractor capability and the
// explicit registry the orchestrator schedules from. Extractors are
// independent, side-effect-free analyzers: each consumes the shared read-only
// Snapshot and emits typed Signals for exactly one assessment axis.
//
// Registration is explicit (no reflection discovery); registration order is
// the fixed priority order used to break aggregation ties deterministically.
package extractor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"assay/internal/logging"
	"assay/internal/types"
)

// Extractor is the capability every assessment axis implements. Extract must
// not mutate the Snapshot, must honor ctx at I/O and loop boundaries, and on
// error must return no partial signals (all-or-nothing per run).
type Extractor interface {
	// Axis names the assessment dimension this extractor feeds.
	Axis() types.Axis
	// Name uniquely identifies the extractor within a registry.
	Name() string
	// Extract analyzes the snapshot and returns the signals it found.
	Extract(ctx context.Context, snap *types.Snapshot) ([]types.Signal, error)
}

// Registry holds the extractors a scan runs. It is safe for concurrent use
// and supports registration at runtime, though the usual pattern is a single
// RegisterAll at startup.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]Extractor
	ordered []Extractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Extractor)}
}

// Register adds an extractor. Registration order is preserved: earlier
// extractors win aggregation ties against later ones.
func (r *Registry) Register(e Extractor) error {
	if e == nil {
		return ErrNilExtractor
	}
	if e.Name() == "" {
		return ErrEmptyName
	}
	if !e.Axis().Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAxis, e.Axis())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[e.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, e.Name())
	}
	r.byName[e.Name()] = e
	r.ordered = append(r.ordered, e)

	logging.L(logging.CategoryExtract).Debug("registered extractor",
		zap.String("name", e.Name()),
		zap.String("axis", string(e.Axis())),
		zap.Int("priority", len(r.ordered)-1))
	return nil
}

// MustRegister registers an extractor and panics on error. Use for static
// registration at startup.
func (r *Registry) MustRegister(e Extractor) {
	if err := r.Register(e); err != nil {
		panic(fmt.Sprintf("failed to register extractor: %v", err))
	}
}

// Get returns the extractor with the given name.
func (r *Registry) Get(name string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e, ok
}

// Has reports whether an extractor with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// ByAxis returns the extractors feeding one axis, in priority order.
func (r *Registry) ByAxis(axis types.Axis) []Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Extractor
	for _, e := range r.ordered {
		if e.Axis() == axis {
			out = append(out, e)
		}
	}
	return out
}

// All returns every registered extractor in priority order. The slice is a
// copy; the registry's own ordering cannot be disturbed through it.
func (r *Registry) All() []Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Extractor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns the registered extractor names in priority order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.ordered))
	for i, e := range r.ordered {
		names[i] = e.Name()
	}
	return names
}

// Priority maps each extractor name to its registration index. The aggregator
// uses this to resolve equal-confidence signal conflicts deterministically.
func (r *Registry) Priority() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prio := make(map[string]int, len(r.ordered))
	for i, e := range r.ordered {
		prio[e.Name()] = i
	}
	return prio
}

// Count returns the number of registered extractors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}
