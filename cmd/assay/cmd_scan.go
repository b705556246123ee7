package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"assay/internal/orchestrate"
	"assay/internal/scoring"
	"assay/internal/snapshot"
	"assay/internal/store"
	"assay/internal/types"
)

var (
	scanFormat string
	scanOut    string
	scanSave   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <path>...",
	Short: "Assess one or more repositories",
	Long: `Scans each path through the full pipeline: snapshot, parallel signal
extraction, aggregation into findings, rubric scoring. Multiple paths run as
a bounded-concurrency batch that always yields one report per path.

The exit code reflects scan execution, not repository quality: a tree full
of high-severity findings still exits 0. Only a path that cannot be
snapshotted at all (missing, unreadable, not a directory) exits non-zero.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFormat, "format", "report", "Output format: report or json")
	scanCmd.Flags().StringVar(&scanOut, "out", "", "Write output to a file instead of stdout")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Persist reports to the history database")
}

// buildOrchestrator assembles the scan pipeline from the loaded config.
func buildOrchestrator(events chan<- orchestrate.ScanEvent) (*orchestrate.Orchestrator, error) {
	rubric, err := scoring.FromConfig(cfg.Rubric)
	if err != nil {
		return nil, err
	}
	engine, err := scoring.New(rubric)
	if err != nil {
		return nil, err
	}
	return orchestrate.New(orchestrate.Config{
		Engine: engine,
		SnapshotOptions: snapshot.Options{
			IgnorePatterns: cfg.Scan.IgnorePatterns,
			MaxFileBytes:   cfg.Scan.MaxFileBytes,
		},
		ExtractorTimeout: cfg.GetExtractorTimeout(),
		MaxConcurrency:   cfg.Scan.MaxConcurrency,
		Events:           events,
	})
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "report" && scanFormat != "json" {
		return fmt.Errorf("unknown format %q (want report or json)", scanFormat)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// In verbose mode the scan's lifecycle events are streamed to the log.
	var events chan orchestrate.ScanEvent
	var eventsDone chan struct{}
	if verbose {
		events = make(chan orchestrate.ScanEvent, 256)
		eventsDone = make(chan struct{})
		go logEvents(events, eventsDone)
	}

	orch, err := buildOrchestrator(events)
	if err != nil {
		return err
	}

	reports := orch.ScanBatch(ctx, args)

	if events != nil {
		close(events)
		<-eventsDone
	}

	if scanSave {
		if err := saveReports(reports); err != nil {
			return err
		}
	}

	out := io.Writer(os.Stdout)
	if scanOut != "" {
		f, err := os.Create(scanOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := writeReports(out, reports, scanFormat); err != nil {
		return err
	}

	failed := 0
	for _, rep := range reports {
		if rep.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scans failed", failed, len(reports))
	}
	return nil
}

func writeReports(w io.Writer, reports []*types.AssessmentReport, format string) error {
	if format == "json" {
		var payload any = reports
		if len(reports) == 1 {
			payload = reports[0]
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	for i, rep := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		renderReport(w, rep)
	}
	return nil
}

func saveReports(reports []*types.AssessmentReport) error {
	db, err := store.New(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, rep := range reports {
		if err := db.Save(rep); err != nil {
			return err
		}
	}
	return nil
}

// logEvents drains the scan event stream into the debug log until the
// channel closes.
func logEvents(events <-chan orchestrate.ScanEvent, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		switch ev.Type {
		case orchestrate.EventPhase:
			logger.Debug("scan phase",
				zap.String("scan_id", ev.ScanID),
				zap.String("status", string(ev.Status)))
		case orchestrate.EventExtractorDone:
			logger.Debug("extractor finished",
				zap.String("scan_id", ev.ScanID),
				zap.String("extractor", ev.Extractor),
				zap.Int("signals", ev.Signals),
				zap.String("err", ev.Err))
		}
	}
}
