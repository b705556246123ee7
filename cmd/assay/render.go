package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"assay/internal/types"
)

// Semantic palette shared by all terminal output.
var (
	colorDestructive = lipgloss.Color("#e53935")
	colorSuccess     = lipgloss.Color("#8BC34A")
	colorWarning     = lipgloss.Color("#FFC107")
	colorInfo        = lipgloss.Color("#2196F3")
	colorMuted       = lipgloss.Color("#8a919c")

	styleTitle   = lipgloss.NewStyle().Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleError   = lipgloss.NewStyle().Foreground(colorDestructive).Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleInfo    = lipgloss.NewStyle().Foreground(colorInfo)
)

func severityStyle(sev types.Severity) lipgloss.Style {
	switch sev {
	case types.SeverityHigh:
		return styleError
	case types.SeverityMedium:
		return styleWarning
	case types.SeverityLow:
		return styleInfo
	default:
		return styleMuted
	}
}

func gradeStyle(grade string) lipgloss.Style {
	switch grade {
	case "A", "B":
		return styleSuccess
	case "C":
		return styleWarning
	case "D", "F":
		return styleError
	default:
		return styleMuted
	}
}

// renderReport writes the full human-readable report. Fixed-width columns are
// padded before styling so the ANSI escapes never skew alignment.
func renderReport(w io.Writer, rep *types.AssessmentReport) {
	fmt.Fprintln(w, styleTitle.Render("assessment "+rep.ScanID))
	fmt.Fprintln(w, styleMuted.Render(rep.Repository.Root))
	fmt.Fprintln(w, styleMuted.Render(strings.Repeat("─", 60)))

	if rep.Failed() {
		fmt.Fprintf(w, "%s %s\n", styleError.Render("scan failed:"), rep.FailureReason)
		return
	}

	repo := rep.Repository
	lang := repo.PrimaryLanguage()
	if lang == "" {
		lang = "none detected"
	}
	fmt.Fprintf(w, "%d files, %d lines, primary language %s\n",
		repo.TotalFiles, repo.TotalLines, lang)

	grade := gradeStyle(rep.Grade).Render(rep.Grade)
	if rep.Grade == types.GradeNone {
		fmt.Fprintf(w, "grade %s (no category had enough evidence to score)\n", grade)
	} else {
		fmt.Fprintf(w, "grade %s  overall %.1f/10\n", grade, types.Round1(rep.OverallScore))
	}

	if len(rep.CategoryScores) > 0 {
		fmt.Fprintf(w, "\n%s\n", styleTitle.Render("categories"))
		for _, cs := range rep.CategoryScores {
			name := fmt.Sprintf("%-14s", cs.Category)
			if cs.InsufficientEvidence {
				fmt.Fprintf(w, "  %s %s\n", name, styleMuted.Render("insufficient evidence"))
				continue
			}
			fmt.Fprintf(w, "  %s %4.1f  weight %.2f\n", name, types.Round1(cs.RawScore), cs.Weight)
		}
	}

	if len(rep.Findings) > 0 {
		fmt.Fprintf(w, "\n%s\n", styleTitle.Render(fmt.Sprintf("findings (%d)", len(rep.Findings))))
		for _, f := range sortedFindings(rep.Findings) {
			sev := severityStyle(f.Severity).Render(fmt.Sprintf("%-6s", f.Severity))
			fmt.Fprintf(w, "  %s %s: %s\n", sev, f.Category, f.Message)
			if path := firstEvidencePath(f); path != "" {
				fmt.Fprintf(w, "         %s\n", styleMuted.Render(path))
			}
		}
	}
}

// renderHistory writes one summary line per saved report, newest first.
func renderHistory(w io.Writer, root string, reports []*types.AssessmentReport) {
	fmt.Fprintln(w, styleTitle.Render("history for "+root))
	for _, rep := range reports {
		when := rep.GeneratedAt.Local().Format("2006-01-02 15:04:05")
		fmt.Fprintf(w, "  %s  %s  %s\n", styleMuted.Render(when), rep.ScanID, summaryLine(rep))
	}
}

// renderWatchUpdate writes the one-line summary printed after each re-scan.
func renderWatchUpdate(w io.Writer, rep *types.AssessmentReport) {
	when := rep.GeneratedAt.Local().Format("15:04:05")
	fmt.Fprintf(w, "%s  %s  %s\n", styleMuted.Render(when), rep.ScanID, summaryLine(rep))
}

func summaryLine(rep *types.AssessmentReport) string {
	if rep.Failed() {
		return fmt.Sprintf("%s  %s", styleError.Render("failed"), rep.FailureReason)
	}
	grade := gradeStyle(rep.Grade).Render(rep.Grade)
	if rep.Grade == types.GradeNone {
		return fmt.Sprintf("grade %s  %d findings", grade, len(rep.Findings))
	}
	return fmt.Sprintf("grade %s  %.1f/10  %d findings",
		grade, types.Round1(rep.OverallScore), len(rep.Findings))
}

// sortedFindings orders findings by severity, most severe first, keeping the
// aggregator's category order within each severity.
func sortedFindings(findings []types.Finding) []types.Finding {
	out := make([]types.Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() > out[j].Severity.Rank()
	})
	return out
}

func firstEvidencePath(f types.Finding) string {
	for _, sig := range f.Evidence {
		for _, ev := range sig.Evidence {
			if ev.Path != "" {
				return ev.Path
			}
		}
	}
	return ""
}
