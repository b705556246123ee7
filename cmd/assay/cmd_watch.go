package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"assay/internal/store"
	"assay/internal/types"
	"assay/internal/watch"
)

var watchSave bool

var watchCmd = &cobra.Command{
	Use:   "watch <path>",
	Short: "Re-assess a repository whenever it changes",
	Long: `Scans the repository once, then watches the tree and re-scans after
each burst of file changes settles. Each re-scan prints a score summary;
with --save every report is also recorded in the history database.

Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchSave, "save", false, "Persist reports to the history database")
}

func runWatch(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	orch, err := buildOrchestrator(nil)
	if err != nil {
		return err
	}

	var db *store.Store
	if watchSave {
		db, err = store.New(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	w, err := watch.New(watch.Config{
		Root:           root,
		Orchestrator:   orch,
		Debounce:       cfg.GetWatchDebounce(),
		IgnorePatterns: cfg.Scan.IgnorePatterns,
		OnReport: func(rep *types.AssessmentReport) {
			renderWatchUpdate(os.Stdout, rep)
			if db == nil {
				return
			}
			if err := db.Save(rep); err != nil {
				logger.Warn("failed to save report",
					zap.String("scan_id", rep.ScanID),
					zap.Error(err))
			}
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("watching %s (ctrl-c to stop)\n", root)

	<-ctx.Done()
	w.Stop()

	stats := w.Stats()
	fmt.Printf("\nstopped: %d events, %d re-scans, %d errors\n",
		stats.Events, stats.Rescans, stats.Errors)
	return nil
}
