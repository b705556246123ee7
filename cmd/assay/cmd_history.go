package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"assay/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <path>",
	Short: "List saved reports for a repository",
	Long: `Shows previously saved assessments of a repository, newest first.
Reports are only recorded when a scan or watch runs with --save.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum number of reports to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	// Saved reports key on the snapshot root, which is absolute.
	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	db, err := store.New(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	reports, err := db.ListByRoot(root, historyLimit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Printf("no saved reports for %s\n", root)
		return nil
	}

	renderHistory(os.Stdout, root, reports)
	return nil
}
