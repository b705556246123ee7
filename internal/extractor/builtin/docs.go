package builtin

import (
	"context"
	"strings"

	"assay/internal/types"
)

// Signal keys emitted on the documentation axis.
const (
	KeyHasReadme       = "has_readme"
	KeyReadmeLines     = "readme_lines"
	KeyReadmeHeadings  = "readme_headings"
	KeyHasLicense      = "has_license"
	KeyHasContributing = "has_contributing"
	KeyHasChangelog    = "has_changelog"
	KeyHasDocsDir      = "has_docs_dir"
	KeyDocsFileCount   = "docs_file_count"
	KeyCommentDensity  = "comment_density"
)

// commentSampleFiles bounds how many source files feed the comment density
// estimate.
const commentSampleFiles = 200

// Documentation extracts signals about project documentation: the README and
// its substance, licensing, contributor docs, a docs tree, and how commented
// the source itself is.
type Documentation struct{}

// NewDocumentation returns the documentation extractor.
func NewDocumentation() *Documentation { return &Documentation{} }

func (d *Documentation) Axis() types.Axis { return types.AxisDocumentation }
func (d *Documentation) Name() string     { return "docs" }

func (d *Documentation) Extract(ctx context.Context, snap *types.Snapshot) ([]types.Signal, error) {
	if snap.Len() == 0 {
		return nil, nil
	}

	var signals []types.Signal
	axis := d.Axis()

	readme, hasReadme := findRootDoc(snap, "readme")
	if hasReadme {
		signals = append(signals,
			types.BoolSignal(axis, KeyHasReadme, true, 1.0, types.Evidence{Path: readme.Path}),
			types.IntSignal(axis, KeyReadmeLines, readme.Lines, 1.0, types.Evidence{Path: readme.Path}),
			types.IntSignal(axis, KeyReadmeHeadings, countHeadings(readme.Content), 0.9,
				types.Evidence{Path: readme.Path}))
	} else {
		signals = append(signals, types.BoolSignal(axis, KeyHasReadme, false, 1.0))
	}

	signals = append(signals, presenceSignal(snap, axis, KeyHasLicense,
		"license", "licence", "copying"))
	signals = append(signals, presenceSignal(snap, axis, KeyHasContributing,
		"contributing"))
	signals = append(signals, presenceSignal(snap, axis, KeyHasChangelog,
		"changelog", "changes", "history"))

	docsFiles := 0
	docsSample := ""
	for i, f := range snap.Files() {
		if err := cancelled(ctx, i); err != nil {
			return nil, err
		}
		if strings.HasPrefix(f.Path, "docs/") || strings.HasPrefix(f.Path, "doc/") {
			docsFiles++
			if docsSample == "" {
				docsSample = f.Path
			}
		}
	}
	if docsFiles > 0 {
		signals = append(signals,
			types.BoolSignal(axis, KeyHasDocsDir, true, 1.0, types.Evidence{Path: docsSample}),
			types.IntSignal(axis, KeyDocsFileCount, docsFiles, 1.0, types.Evidence{Path: docsSample}))
	} else {
		signals = append(signals, types.BoolSignal(axis, KeyHasDocsDir, false, 1.0))
	}

	if density, sampled := commentDensity(ctx, snap); sampled {
		signals = append(signals, types.FloatSignal(axis, KeyCommentDensity, density, 0.7))
	}
	return signals, nil
}

// findRootDoc locates a root-level file whose name starts with the given stem,
// any casing, any extension. Root files win; nothing nested counts.
func findRootDoc(snap *types.Snapshot, stem string) (types.FileRecord, bool) {
	for _, f := range snap.Files() {
		if strings.Contains(f.Path, "/") {
			continue
		}
		name := strings.ToLower(f.Path)
		if name == stem || strings.HasPrefix(name, stem+".") {
			return f, true
		}
	}
	return types.FileRecord{}, false
}

// presenceSignal emits a boolean for whether any of the stems exists at the
// repository root.
func presenceSignal(snap *types.Snapshot, axis types.Axis, key string, stems ...string) types.Signal {
	for _, stem := range stems {
		if f, ok := findRootDoc(snap, stem); ok {
			return types.BoolSignal(axis, key, true, 1.0, types.Evidence{Path: f.Path})
		}
	}
	return types.BoolSignal(axis, key, false, 1.0)
}

// countHeadings counts markdown headings. Setext/rst underline headings are
// approximated by counting underline-only lines.
func countHeadings(content string) int {
	count := 0
	prevNonEmpty := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#"):
			count++
		case prevNonEmpty && len(trimmed) >= 3 && isUnderline(trimmed):
			count++
		}
		prevNonEmpty = trimmed != "" && !isUnderline(trimmed)
	}
	return count
}

func isUnderline(s string) bool {
	c := s[0]
	if c != '=' && c != '-' && c != '~' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] != c {
			return false
		}
	}
	return true
}

// commentDensity estimates the share of comment lines across a sample of
// source files. Block comments in slash-star languages are approximated by
// their marker lines only, which undercounts long blocks; the confidence on
// the emitted signal reflects that.
func commentDensity(ctx context.Context, snap *types.Snapshot) (float64, bool) {
	sampled, codeLines, commentLines := 0, 0, 0
	for i, f := range snap.Files() {
		if cancelled(ctx, i) != nil {
			return 0, false
		}
		if !isSource(f) || f.IsTest || underVendoredDir(f.Path) {
			continue
		}
		marker, ok := lineCommentMarkers[f.Language]
		if !ok {
			continue
		}
		sampled++
		for _, line := range strings.Split(f.Content, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			codeLines++
			if strings.HasPrefix(trimmed, marker) || strings.HasPrefix(trimmed, "/*") ||
				(strings.HasPrefix(trimmed, "*") && marker == "//") {
				commentLines++
			}
		}
		if sampled >= commentSampleFiles {
			break
		}
	}
	if sampled == 0 || codeLines == 0 {
		return 0, false
	}
	return float64(commentLines) / float64(codeLines), true
}
