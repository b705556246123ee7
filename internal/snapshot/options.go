package snapshot

import (
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Options controls snapshot construction performance and scope.
type Options struct {
	// MaxConcurrency limits concurrent file-reading workers.
	MaxConcurrency int
	// IgnorePatterns skips matching paths/dirs (relative to the root).
	// Supports simple dir names (e.g., "node_modules") and glob patterns
	// (e.g., "vendor/*").
	IgnorePatterns []string
	// MaxFileBytes caps how much content is retained per file. Larger files
	// keep size and hash metadata only.
	MaxFileBytes int64
}

// DefaultOptions returns sane defaults for large repositories.
func DefaultOptions() Options {
	workers := runtime.NumCPU()
	if workers > 20 {
		workers = 20
	}
	if workers < 4 {
		workers = 4
	}
	if env := os.Getenv("ASSAY_SCAN_WORKERS"); env != "" {
		if v, err := strconv.Atoi(env); err == nil && v > 0 {
			workers = v
		}
	}

	return Options{
		MaxConcurrency: workers,
		IgnorePatterns: []string{
			".git",
			"node_modules",
			"vendor",
			"dist",
			"build",
			".next",
			"target",
			"bin",
			"obj",
			".terraform",
			".venv",
			".cache",
			"__pycache__",
		},
		MaxFileBytes: 1 << 20,
	}
}

func normalizePattern(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimSuffix(p, "/")
	p = strings.TrimSuffix(p, "\\")
	return filepath.ToSlash(p)
}

// isIgnoredRel reports whether a relative path should be ignored.
func isIgnoredRel(rel, name string, patterns []string) bool {
	rel = filepath.ToSlash(rel)
	for _, raw := range patterns {
		p := normalizePattern(raw)
		if p == "" {
			continue
		}
		// Glob pattern
		if strings.ContainsAny(p, "*?[]") {
			if ok, _ := path.Match(p, rel); ok {
				return true
			}
			// Handle directory globs like "vendor/*"
			if strings.HasSuffix(p, "/*") {
				prefix := strings.TrimSuffix(p, "/*")
				if strings.HasPrefix(rel, prefix+"/") {
					return true
				}
			}
			continue
		}
		// Simple dir/file name
		if name == p {
			return true
		}
		// Prefix match for nested paths
		if strings.HasPrefix(rel, p+"/") {
			return true
		}
	}
	return false
}

// hiddenDirAllowed reports whether a dot-directory may be descended into.
// CI and editor configuration lives in a handful of hidden directories that
// the assessment must see; everything else hidden is skipped.
var hiddenDirAllowed = map[string]bool{
	".github":   true,
	".gitlab":   true,
	".circleci": true,
	".config":   true,
	".vscode":   true,
}

// SkipDir reports whether a directory is outside scan scope: matched by an
// ignore pattern, or hidden without being one of the allowed configuration
// directories. rel is the root-relative path, name the base name. The watch
// package applies the same rule when choosing directories to monitor.
func SkipDir(rel, name string, patterns []string) bool {
	if isIgnoredRel(rel, name, patterns) {
		return true
	}
	return strings.HasPrefix(name, ".") && !hiddenDirAllowed[name]
}

// Ignored reports whether a file path is excluded by the ignore patterns.
func Ignored(rel, name string, patterns []string) bool {
	return isIgnoredRel(rel, name, patterns)
}
