package types

import (
	"path"
	"sort"
	"strings"
	"time"
)

// FileRecord is one file inside a Snapshot. Path is always relative to the
// snapshot root, slash-separated, and unique within the snapshot. Content is
// retained only for text files under the configured size cap; binary and
// oversized files keep metadata and hash only. A file that could not be read
// carries ReadErr instead of aborting the scan.
type FileRecord struct {
	Path           string  `json:"path"`
	Language       string  `json:"language,omitempty"`
	LangConfidence float64 `json:"lang_confidence,omitempty"`
	Size           int64   `json:"size"`
	Lines          int     `json:"lines,omitempty"`
	Content        string  `json:"-"`
	SHA256         string  `json:"sha256,omitempty"`
	IsText         bool    `json:"is_text,omitempty"`
	IsTest         bool    `json:"is_test,omitempty"`
	ReadErr        string  `json:"read_err,omitempty"`
}

// Name returns the base name of the file.
func (f FileRecord) Name() string {
	if i := strings.LastIndexByte(f.Path, '/'); i >= 0 {
		return f.Path[i+1:]
	}
	return f.Path
}

// Dir returns the slash-separated directory of the file, "" for root files.
func (f FileRecord) Dir() string {
	if i := strings.LastIndexByte(f.Path, '/'); i >= 0 {
		return f.Path[:i]
	}
	return ""
}

// Snapshot is the read-only, normalized view of a repository tree that all
// extractors consume. It is built once, sorted by path, and never mutated;
// concurrent extractors share it without locking. Snapshots are discarded
// after the scan completes.
type Snapshot struct {
	Root      string
	TakenAt   time.Time
	files     []FileRecord
	byPath    map[string]int
	textLines int
}

// NewSnapshot assembles a Snapshot from collected records. Records are sorted
// by path; the last record wins on duplicate paths (builders never produce
// duplicates, but ordered determinism matters more than detecting them here).
func NewSnapshot(root string, files []FileRecord) *Snapshot {
	sorted := make([]FileRecord, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	byPath := make(map[string]int, len(sorted))
	lines := 0
	for i, f := range sorted {
		byPath[f.Path] = i
		lines += f.Lines
	}
	return &Snapshot{
		Root:      root,
		TakenAt:   time.Now().UTC(),
		files:     sorted,
		byPath:    byPath,
		textLines: lines,
	}
}

// Len returns the number of file records.
func (s *Snapshot) Len() int { return len(s.files) }

// TotalLines returns the line count summed over all text files.
func (s *Snapshot) TotalLines() int { return s.textLines }

// Files returns the records in path order. The slice is shared; callers must
// treat it as read-only.
func (s *Snapshot) Files() []FileRecord { return s.files }

// File looks a record up by its relative path.
func (s *Snapshot) File(path string) (FileRecord, bool) {
	if i, ok := s.byPath[path]; ok {
		return s.files[i], true
	}
	return FileRecord{}, false
}

// Glob returns all records whose path matches the pattern per path.Match
// semantics, with "**/" treated as any directory prefix.
func (s *Snapshot) Glob(pattern string) []FileRecord {
	var out []FileRecord
	for _, f := range s.files {
		if MatchPath(pattern, f.Path) {
			out = append(out, f)
		}
	}
	return out
}

// MatchPath reports whether a slash-separated relative path matches the
// pattern. Semantics are path.Match, with a leading "**/" additionally
// matching the pattern at any directory depth, including the root.
func MatchPath(pattern, rel string) bool {
	if ok, _ := path.Match(pattern, rel); ok {
		return true
	}
	if !strings.HasPrefix(pattern, "**/") {
		return false
	}
	sub := strings.TrimPrefix(pattern, "**/")
	if ok, _ := path.Match(sub, rel); ok {
		return true
	}
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if ok, _ := path.Match(sub, strings.Join(parts[i:], "/")); ok {
			return true
		}
	}
	return false
}

// LanguageTotals returns per-language text line counts.
func (s *Snapshot) LanguageTotals() map[string]int {
	totals := make(map[string]int)
	for _, f := range s.files {
		if f.Language != "" && f.Lines > 0 {
			totals[f.Language] += f.Lines
		}
	}
	return totals
}

// LanguagesByLines returns detected languages ordered by descending line
// count, ties broken alphabetically.
func (s *Snapshot) LanguagesByLines() []string {
	totals := s.LanguageTotals()
	langs := make([]string, 0, len(totals))
	for l := range totals {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool {
		if totals[langs[i]] != totals[langs[j]] {
			return totals[langs[i]] > totals[langs[j]]
		}
		return langs[i] < langs[j]
	})
	return langs
}
