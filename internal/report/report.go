// Package report assembles the final assessment artifact. Assembly is pure:
// no I/O, no clock beyond the generation timestamp, and the result holds no
// references into the snapshot, which the orchestrator discards right after
// scoring.
package report

import (
	"time"

	"assay/internal/types"
)

// Build assembles a successful scan's report. The scan ID is the repository
// ID: both are minted fresh per scan, so re-assessing a root yields a new
// report rather than mutating an old one.
func Build(repo types.Repository, scores []types.CategoryScore, overall float64, grade string, findings []types.Finding) *types.AssessmentReport {
	return &types.AssessmentReport{
		ScanID:         repo.ID,
		Repository:     repo,
		CategoryScores: scores,
		OverallScore:   overall,
		Grade:          grade,
		Findings:       findings,
		GeneratedAt:    time.Now().UTC(),
		Status:         types.StatusDone,
	}
}

// BuildFailed assembles the placeholder report for a scan that aborted
// before producing findings. Batch runs use it to keep the one-report-per-
// root guarantee: a root that cannot be snapshotted still appears in the
// output, explicitly failed, never silently dropped.
func BuildFailed(repo types.Repository, reason string) *types.AssessmentReport {
	return &types.AssessmentReport{
		ScanID:        repo.ID,
		Repository:    repo,
		Grade:         types.GradeNone,
		GeneratedAt:   time.Now().UTC(),
		Status:        types.StatusFailed,
		FailureReason: reason,
	}
}
