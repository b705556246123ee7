package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"assay/internal/types"
)

// Signal keys emitted on the complexity axis.
const (
	KeyTotalFiles      = "total_source_files"
	KeyTotalLines      = "total_source_lines"
	KeyPrimaryLanguage = "primary_language"
	KeyLanguageLines   = "language_lines"
	KeyAvgFileLines    = "avg_file_lines"
	KeyMaxFileLines    = "max_file_lines"
	KeyOversizedFile   = "oversized_file"
	KeyOversizedCount  = "oversized_file_count"
	KeyTopDirShare     = "top_dir_share"
	KeyLargestDir      = "largest_dir"
)

// oversizedLines is the line count past which a single source file counts as
// oversized.
const oversizedLines = 800

// maxOversizedSignals caps per-file oversized signals; the count signal keeps
// the true total.
const maxOversizedSignals = 20

// Complexity extracts size and concentration measurements: how much code
// there is, in which languages, and whether it piles up in single files or a
// single directory.
type Complexity struct{}

// NewComplexity returns the complexity extractor.
func NewComplexity() *Complexity { return &Complexity{} }

func (c *Complexity) Axis() types.Axis { return types.AxisComplexity }
func (c *Complexity) Name() string     { return "complexity" }

func (c *Complexity) Extract(ctx context.Context, snap *types.Snapshot) ([]types.Signal, error) {
	if snap.Len() == 0 {
		return nil, nil
	}

	axis := c.Axis()
	totalFiles, totalLines := 0, 0
	langLines := map[string]int{}
	dirLines := map[string]int{}
	maxLines := 0
	maxPath := ""
	oversized := 0
	var signals []types.Signal

	for i, f := range snap.Files() {
		if err := cancelled(ctx, i); err != nil {
			return nil, err
		}
		if !isSource(f) || underVendoredDir(f.Path) {
			continue
		}
		totalFiles++
		totalLines += f.Lines
		langLines[f.Language] += f.Lines
		dirLines[topDir(f.Path)] += f.Lines

		if f.Lines > maxLines {
			maxLines, maxPath = f.Lines, f.Path
		}
		if f.Lines > oversizedLines {
			oversized++
			if oversized <= maxOversizedSignals {
				signals = append(signals, types.StringSignal(axis, KeyOversizedFile, f.Path,
					1.0, types.Evidence{Path: f.Path, Excerpt: fmt.Sprintf("%d lines", f.Lines)}))
			}
		}
	}
	if totalFiles == 0 {
		return nil, nil
	}

	signals = append(signals,
		types.IntSignal(axis, KeyTotalFiles, totalFiles, 1.0),
		types.IntSignal(axis, KeyTotalLines, totalLines, 1.0),
		types.IntSignal(axis, KeyOversizedCount, oversized, 1.0),
		types.FloatSignal(axis, KeyAvgFileLines, float64(totalLines)/float64(totalFiles), 1.0),
		types.IntSignal(axis, KeyMaxFileLines, maxLines, 1.0, types.Evidence{Path: maxPath}))

	primary, languages := rankLanguages(langLines)
	if primary != "" {
		signals = append(signals, types.StringSignal(axis, KeyPrimaryLanguage, primary, 1.0))
	}
	for _, lang := range languages {
		signals = append(signals, types.StringSignal(axis, KeyLanguageLines,
			fmt.Sprintf("%s:%d", lang, langLines[lang]), 1.0))
	}

	if totalLines > 0 {
		dir, lines := largestDir(dirLines)
		signals = append(signals,
			types.StringSignal(axis, KeyLargestDir, dir, 1.0),
			types.FloatSignal(axis, KeyTopDirShare, float64(lines)/float64(totalLines), 1.0))
	}
	return signals, nil
}

// topDir returns the first path segment, "." for root-level files.
func topDir(path string) string {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return "."
}

// rankLanguages orders languages by line count descending, name ascending on
// ties. Returns the primary language and the full order.
func rankLanguages(langLines map[string]int) (string, []string) {
	languages := make([]string, 0, len(langLines))
	for lang := range langLines {
		languages = append(languages, lang)
	}
	sort.Slice(languages, func(i, j int) bool {
		if langLines[languages[i]] != langLines[languages[j]] {
			return langLines[languages[i]] > langLines[languages[j]]
		}
		return languages[i] < languages[j]
	})
	if len(languages) == 0 {
		return "", nil
	}
	return languages[0], languages
}

// largestDir returns the top-level directory holding the most source lines.
// Ties break lexicographically so re-runs produce identical signals.
func largestDir(dirLines map[string]int) (string, int) {
	best, bestLines := "", -1
	for dir, lines := range dirLines {
		if lines > bestLines || (lines == bestLines && dir < best) {
			best, bestLines = dir, lines
		}
	}
	return best, bestLines
}
