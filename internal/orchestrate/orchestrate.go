// Package orchestrate drives repository scans through their state machine:
// pending, snapshotting, extracting, aggregating, scoring, then done or
// failed. Extractors fan out concurrently over the shared snapshot; the
// aggregator runs only after every extractor has finished or failed. Only a
// snapshot failure is fatal to a scan, and batches always produce exactly
// one report per requested root.
package orchestrate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"assay/internal/aggregate"
	"assay/internal/extractor"
	"assay/internal/extractor/builtin"
	"assay/internal/logging"
	"assay/internal/report"
	"assay/internal/scoring"
	"assay/internal/snapshot"
	"assay/internal/types"
)

// Defaults applied by New when the config leaves fields zero.
const (
	DefaultExtractorTimeout = 10 * time.Second
	DefaultMaxConcurrency   = 4
)

// Config assembles an Orchestrator. Zero-value fields fall back to the
// built-in registry, the default rubric, and the default limits.
type Config struct {
	Registry         *extractor.Registry
	Engine           *scoring.Engine
	SnapshotOptions  snapshot.Options
	ExtractorTimeout time.Duration
	MaxConcurrency   int

	// Events receives scan lifecycle events when set. Sends never block:
	// a full channel drops events rather than stalling the scan.
	Events chan<- ScanEvent
}

// Orchestrator runs scans. Safe for concurrent use; all per-scan state lives
// on the stack of Scan.
type Orchestrator struct {
	registry   *extractor.Registry
	engine     *scoring.Engine
	aggregator *aggregate.Aggregator
	builder    *snapshot.Builder
	timeout    time.Duration
	batchLimit int
	events     chan<- ScanEvent
}

// New builds an Orchestrator from the config.
func New(cfg Config) (*Orchestrator, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = builtin.NewRegistry()
	}

	engine := cfg.Engine
	if engine == nil {
		var err error
		engine, err = scoring.New(scoring.DefaultRubric())
		if err != nil {
			return nil, err
		}
	}

	timeout := cfg.ExtractorTimeout
	if timeout <= 0 {
		timeout = DefaultExtractorTimeout
	}
	limit := cfg.MaxConcurrency
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}

	return &Orchestrator{
		registry:   registry,
		engine:     engine,
		aggregator: aggregate.New(registry.Priority()),
		builder:    snapshot.NewBuilder(cfg.SnapshotOptions),
		timeout:    timeout,
		batchLimit: limit,
		events:     cfg.Events,
	}, nil
}

// Scan assesses a single repository root. It always returns a report: fatal
// snapshot problems yield a failed placeholder, extractor problems are
// absorbed as failure signals, and everything else flows through
// aggregation and scoring.
func (o *Orchestrator) Scan(ctx context.Context, root string) *types.AssessmentReport {
	scan := &scanState{
		id:     uuid.New().String()[:8],
		root:   root,
		status: types.StatusPending,
	}
	log := logging.L(logging.CategoryOrchestrate).With(
		zap.String("scan_id", scan.id),
		zap.String("root", root))
	timer := logging.StartTimer(logging.CategoryOrchestrate, "scan")
	defer timer.Stop()

	o.transition(scan, types.StatusSnapshotting, log)
	snap, err := o.builder.Build(ctx, root)
	if err != nil {
		o.transition(scan, types.StatusFailed, log)
		log.Warn("snapshot failed", zap.Error(err))
		return report.BuildFailed(types.Repository{ID: scan.id, Root: root}, err.Error())
	}

	repo := types.Repository{
		ID:         scan.id,
		Root:       snap.Root,
		Languages:  snap.LanguagesByLines(),
		TotalFiles: snap.Len(),
		TotalLines: snap.TotalLines(),
	}

	o.transition(scan, types.StatusExtracting, log)
	signals := o.extract(ctx, scan, snap)

	o.transition(scan, types.StatusAggregating, log)
	findings := o.aggregator.Aggregate(signals)

	o.transition(scan, types.StatusScoring, log)
	scores, overall := o.engine.Score(findings)
	grade := scoring.Grade(scores, overall)

	o.transition(scan, types.StatusDone, log)
	rep := report.Build(repo, scores, overall, grade, findings)
	log.Info("scan complete",
		zap.Float64("overall", types.Round1(overall)),
		zap.String("grade", grade),
		zap.Int("findings", len(findings)))
	return rep
}

// ScanBatch assesses every root with bounded concurrency. The result always
// has exactly len(roots) reports, in input order; roots that fail to
// snapshot appear as failed placeholders. Roots never cancel each other.
func (o *Orchestrator) ScanBatch(ctx context.Context, roots []string) []*types.AssessmentReport {
	reports := make([]*types.AssessmentReport, len(roots))

	var eg errgroup.Group
	eg.SetLimit(o.batchLimit)
	for i, root := range roots {
		i, root := i, root // per-iteration copies; required under go <= 1.21 loop semantics
		eg.Go(func() error {
			reports[i] = o.Scan(ctx, root)
			return nil
		})
	}
	_ = eg.Wait() // scans report errors through their reports, never here

	return reports
}

// extract fans the registered extractors out over the snapshot and collects
// their signals. Each extractor runs under its own timeout; an error or
// timeout contributes a single zero-confidence failure signal instead of the
// extractor's output (all-or-nothing, no partial signal sets). eg.Wait is
// the join barrier that guarantees aggregation sees the complete set.
func (o *Orchestrator) extract(ctx context.Context, scan *scanState, snap *types.Snapshot) []types.Signal {
	log := logging.L(logging.CategoryExtract).With(zap.String("scan_id", scan.id))

	var mu sync.Mutex
	var signals []types.Signal
	add := func(batch ...types.Signal) {
		mu.Lock()
		signals = append(signals, batch...)
		mu.Unlock()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, e := range o.registry.All() {
		e := e // per-iteration copy; required under go <= 1.21 loop semantics
		eg.Go(func() error {
			taskCtx, cancel := context.WithTimeout(egCtx, o.timeout)
			defer cancel()

			start := time.Now()
			extracted, err := e.Extract(taskCtx, snap)
			if err != nil {
				xerr := &extractor.ExtractorError{Axis: e.Axis(), Name: e.Name(), Err: err}
				if xerr.Timeout() {
					log.Warn("extractor timed out",
						zap.String("extractor", e.Name()),
						zap.Duration("timeout", o.timeout))
				} else {
					log.Warn("extractor failed",
						zap.String("extractor", e.Name()),
						zap.Error(err))
				}
				add(extractor.FailureSignal(e.Axis(), e.Name(), err))
				o.emit(ScanEvent{
					Type:      EventExtractorDone,
					ScanID:    scan.id,
					Root:      scan.root,
					Extractor: e.Name(),
					Err:       err.Error(),
				})
				return nil
			}

			for i := range extracted {
				extracted[i].Extractor = e.Name()
			}
			add(extracted...)
			log.Debug("extractor done",
				zap.String("extractor", e.Name()),
				zap.Int("signals", len(extracted)),
				zap.Duration("took", time.Since(start)))
			o.emit(ScanEvent{
				Type:      EventExtractorDone,
				ScanID:    scan.id,
				Root:      scan.root,
				Extractor: e.Name(),
				Signals:   len(extracted),
			})
			return nil
		})
	}
	_ = eg.Wait() // closures never return errors; failures became signals

	return signals
}

// scanState is the per-scan state machine instance.
type scanState struct {
	id     string
	root   string
	status types.ScanStatus
}

// validNext encodes the legal state machine edges.
var validNext = map[types.ScanStatus][]types.ScanStatus{
	types.StatusPending:      {types.StatusSnapshotting},
	types.StatusSnapshotting: {types.StatusExtracting, types.StatusFailed},
	types.StatusExtracting:   {types.StatusAggregating},
	types.StatusAggregating:  {types.StatusScoring},
	types.StatusScoring:      {types.StatusDone},
}

// ValidTransition reports whether the state machine allows moving from one
// status to another.
func ValidTransition(from, to types.ScanStatus) bool {
	for _, next := range validNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (o *Orchestrator) transition(scan *scanState, to types.ScanStatus, log *zap.Logger) {
	if !ValidTransition(scan.status, to) {
		log.Error("illegal status transition",
			zap.String("from", string(scan.status)),
			zap.String("to", string(to)))
	}
	scan.status = to
	o.emit(ScanEvent{
		Type:   EventPhase,
		ScanID: scan.id,
		Root:   scan.root,
		Status: to,
	})
}

// emit sends an event without ever blocking the scan.
func (o *Orchestrator) emit(ev ScanEvent) {
	if o.events == nil {
		return
	}
	ev.At = time.Now()
	select {
	case o.events <- ev:
	default:
		// Receiver fell behind; drop rather than stall.
	}
}
