package builtin

import (
	"context"
	"sort"
	"strings"

	"assay/internal/types"
)

// Signal keys emitted on the structure axis.
const (
	KeyEntryPoint      = "entry_point"
	KeyEntryPointCount = "entry_point_count"
	KeyLayerConvention = "layer_convention"
	KeyLayerCount      = "layer_count"
	KeyPackageCount    = "source_package_count"
	KeyTestRatio       = "test_file_ratio"
	KeyHasTests        = "has_tests"
	KeyGoModule        = "go_module"
	KeyGoCmdLayout     = "go_cmd_layout"
	KeyGoInternal      = "go_internal_layout"
)

// layerVocabulary is the set of directory names that indicate deliberate
// layering. Matching any path segment counts; one signal is emitted per
// distinct layer name found.
var layerVocabulary = map[string]bool{
	"handlers":     true,
	"handler":      true,
	"controllers":  true,
	"controller":   true,
	"services":     true,
	"service":      true,
	"store":        true,
	"stores":       true,
	"repository":   true,
	"repositories": true,
	"dao":          true,
	"models":       true,
	"model":        true,
	"domain":       true,
	"usecase":      true,
	"usecases":     true,
	"middleware":   true,
	"routes":       true,
	"router":       true,
	"adapters":     true,
	"ports":        true,
	"infra":        true,
	"api":          true,
}

// rootEntryNames are file names that mark an application entry point when
// found at the repository root or under a shallow source directory.
var rootEntryNames = map[string]bool{
	"main.go":     true,
	"main.py":     true,
	"app.py":      true,
	"manage.py":   true,
	"__main__.py": true,
	"index.js":    true,
	"index.ts":    true,
	"main.js":     true,
	"main.ts":     true,
	"main.rs":     true,
	"Main.java":   true,
	"Program.cs":  true,
}

// Structure extracts signals about repository layout: entry points, layering
// conventions, package spread, and the test-to-source ratio.
type Structure struct{}

// NewStructure returns the structure extractor.
func NewStructure() *Structure { return &Structure{} }

func (s *Structure) Axis() types.Axis { return types.AxisStructure }
func (s *Structure) Name() string     { return "structure" }

func (s *Structure) Extract(ctx context.Context, snap *types.Snapshot) ([]types.Signal, error) {
	if snap.Len() == 0 {
		return nil, nil
	}

	var signals []types.Signal
	axis := s.Axis()

	entries := findEntryPoints(ctx, snap)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, e := range entries {
		signals = append(signals, types.StringSignal(axis, KeyEntryPoint, e.Path,
			0.9, types.Evidence{Path: e.Path, Excerpt: e.Reason}))
	}
	signals = append(signals, types.IntSignal(axis, KeyEntryPointCount, len(entries), 1.0))

	layers := map[string]string{} // layer name -> sample dir
	packages := map[string]bool{} // dirs containing source files
	sourceFiles, testFiles := 0, 0
	for i, f := range snap.Files() {
		if err := cancelled(ctx, i); err != nil {
			return nil, err
		}
		if !isSource(f) {
			continue
		}
		packages[f.Dir()] = true
		if f.IsTest {
			testFiles++
		} else {
			sourceFiles++
		}
		for _, seg := range strings.Split(f.Dir(), "/") {
			low := strings.ToLower(seg)
			if layerVocabulary[low] {
				if _, seen := layers[low]; !seen {
					layers[low] = f.Dir()
				}
			}
		}
	}

	layerNames := make([]string, 0, len(layers))
	for name := range layers {
		layerNames = append(layerNames, name)
	}
	sort.Strings(layerNames)
	for _, name := range layerNames {
		signals = append(signals, types.StringSignal(axis, KeyLayerConvention, name,
			0.8, types.Evidence{Path: layers[name]}))
	}
	signals = append(signals, types.IntSignal(axis, KeyLayerCount, len(layerNames), 1.0))
	signals = append(signals, types.IntSignal(axis, KeyPackageCount, len(packages), 1.0))

	if total := sourceFiles + testFiles; total > 0 {
		ratio := float64(testFiles) / float64(total)
		signals = append(signals,
			types.FloatSignal(axis, KeyTestRatio, ratio, 1.0),
			types.BoolSignal(axis, KeyHasTests, testFiles > 0, 1.0))
	}

	signals = append(signals, goLayoutSignals(snap)...)
	return signals, nil
}

// entryPoint is one detected entry point with the reason it matched.
type entryPoint struct {
	Path   string
	Reason string
}

// findEntryPoints locates application entry points. Detection is by
// convention first (well-known names and Go cmd/ layout), then by content for
// Go files declaring package main.
func findEntryPoints(ctx context.Context, snap *types.Snapshot) []entryPoint {
	var entries []entryPoint
	seen := map[string]bool{}
	add := func(path, reason string) {
		if !seen[path] {
			seen[path] = true
			entries = append(entries, entryPoint{Path: path, Reason: reason})
		}
	}

	for i, f := range snap.Files() {
		if cancelled(ctx, i) != nil {
			return entries
		}
		if f.IsTest {
			continue
		}
		name := f.Name()
		depth := strings.Count(f.Path, "/")

		switch {
		case rootEntryNames[name] && depth <= 1:
			add(f.Path, "conventional entry file")
		case name == "main.go" && strings.HasPrefix(f.Path, "cmd/"):
			add(f.Path, "cmd layout")
		case f.Language == "go" && f.IsText && isGoMain(f.Content):
			add(f.Path, "package main")
		case f.Language == "rust" && f.Path == "src/main.rs":
			add(f.Path, "cargo binary")
		case f.Language == "java" && strings.Contains(f.Content, "public static void main"):
			add(f.Path, "static main method")
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

// isGoMain reports whether Go source declares an executable package. A plain
// prefix scan beats parsing here; false positives need both markers in
// non-code positions, which does not happen in practice.
func isGoMain(content string) bool {
	if !strings.Contains(content, "func main(") {
		return false
	}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			return trimmed == "package main"
		}
	}
	return false
}

// goLayoutSignals emits Go-specific layout facts when the repository is a Go
// module.
func goLayoutSignals(snap *types.Snapshot) []types.Signal {
	mod, ok := snap.File("go.mod")
	if !ok || !mod.IsText {
		return nil
	}

	var signals []types.Signal
	for _, line := range strings.Split(mod.Content, "\n") {
		trimmed := strings.TrimSpace(line)
		if name, found := strings.CutPrefix(trimmed, "module "); found {
			signals = append(signals, types.StringSignal(types.AxisStructure, KeyGoModule,
				strings.TrimSpace(name), 1.0,
				types.Evidence{Path: "go.mod", Excerpt: types.Excerpt(trimmed)}))
			break
		}
	}

	hasCmd, hasInternal := false, false
	var cmdSample, internalSample string
	for _, f := range snap.Files() {
		if !hasCmd && strings.HasPrefix(f.Path, "cmd/") {
			hasCmd, cmdSample = true, f.Path
		}
		if !hasInternal && strings.HasPrefix(f.Path, "internal/") {
			hasInternal, internalSample = true, f.Path
		}
		if hasCmd && hasInternal {
			break
		}
	}
	if hasCmd {
		signals = append(signals, types.BoolSignal(types.AxisStructure, KeyGoCmdLayout, true,
			0.9, types.Evidence{Path: cmdSample}))
	}
	if hasInternal {
		signals = append(signals, types.BoolSignal(types.AxisStructure, KeyGoInternal, true,
			0.9, types.Evidence{Path: internalSample}))
	}
	return signals
}
