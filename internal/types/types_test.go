package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSignalValueAccessors(t *testing.T) {
	tests := []struct {
		name   string
		sig    Signal
		check  func(Signal) (interface{}, bool)
		want   interface{}
		wantOK bool
	}{
		{"bool true", BoolSignal(AxisCICD, "has_ci", true, 1.0), func(s Signal) (interface{}, bool) { v, ok := s.BoolValue(); return v, ok }, true, true},
		{"bool false", BoolSignal(AxisCICD, "has_ci", false, 1.0), func(s Signal) (interface{}, bool) { v, ok := s.BoolValue(); return v, ok }, false, true},
		{"bool from junk", StringSignal(AxisCICD, "k", "not-a-bool", 1.0), func(s Signal) (interface{}, bool) { v, ok := s.BoolValue(); return v, ok }, false, false},
		{"int", IntSignal(AxisComplexity, "total_files", 42, 1.0), func(s Signal) (interface{}, bool) { v, ok := s.IntValue(); return v, ok }, 42, true},
		{"float", FloatSignal(AxisDocumentation, "comment_ratio", 0.25, 0.8), func(s Signal) (interface{}, bool) { v, ok := s.FloatValue(); return v, ok }, 0.25, true},
		{"float from int", IntSignal(AxisComplexity, "n", 7, 1.0), func(s Signal) (interface{}, bool) { v, ok := s.FloatValue(); return v, ok }, 7.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.check(tt.sig)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("got (%v, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSeverityRank(t *testing.T) {
	if SeverityHigh.Rank() <= SeverityMedium.Rank() {
		t.Error("high must outrank medium")
	}
	if SeverityMedium.Rank() <= SeverityLow.Rank() {
		t.Error("medium must outrank low")
	}
	if SeverityLow.Rank() <= SeverityInfo.Rank() {
		t.Error("low must outrank info")
	}
	if Severity("bogus").Rank() >= SeverityInfo.Rank() {
		t.Error("unknown severity must rank below info")
	}
	if Severity("bogus").Valid() {
		t.Error("bogus severity must not validate")
	}
}

func TestFindingHasEvidence(t *testing.T) {
	failed := Signal{Axis: AxisSecurity, Key: KeyExtractorFailed, Confidence: 0}
	backed := BoolSignal(AxisSecurity, "secret_candidate", true, 0.8)

	tests := []struct {
		name string
		f    Finding
		want bool
	}{
		{"no signals", Finding{Category: AxisSecurity}, false},
		{"only failure marker", Finding{Category: AxisSecurity, Evidence: []Signal{failed}}, false},
		{"real evidence", Finding{Category: AxisSecurity, Evidence: []Signal{backed}}, true},
		{"mixed", Finding{Category: AxisSecurity, Evidence: []Signal{failed, backed}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.HasEvidence(); got != tt.want {
				t.Errorf("HasEvidence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGradeFor(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{10.0, "A"},
		{8.5, "A"},
		{8.4, "B"},
		{7.0, "B"},
		{6.9, "C"},
		{5.5, "C"},
		{5.4, "D"},
		{4.0, "D"},
		{3.9, "F"},
		{0.0, "F"},
	}
	for _, tt := range tests {
		if got := GradeFor(tt.score); got != tt.want {
			t.Errorf("GradeFor(%.1f) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{8.44, 8.4},
		{8.45, 8.5},
		{8.46, 8.5},
		{10.0, 10.0},
		{0.0, 0.0},
	}
	for _, tt := range tests {
		if got := Round1(tt.in); got != tt.want {
			t.Errorf("Round1(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMatchPath(t *testing.T) {
	tests := []struct {
		pattern string
		rel     string
		want    bool
	}{
		{".github/workflows/*.yml", ".github/workflows/ci.yml", true},
		{".github/workflows/*.yml", ".github/workflows/deep/ci.yml", false},
		{"**/*.yml", "a/b/c.yml", true},
		{"**/*.yml", "c.yml", true},
		{"**/Jenkinsfile", "ci/Jenkinsfile", true},
		{"Jenkinsfile", "Jenkinsfile", true},
		{"Jenkinsfile", "ci/Jenkinsfile", false},
		{"*.go", "main.go", true},
		{"*.go", "cmd/main.go", false},
	}
	for _, tt := range tests {
		if got := MatchPath(tt.pattern, tt.rel); got != tt.want {
			t.Errorf("MatchPath(%q, %q) = %v, want %v", tt.pattern, tt.rel, got, tt.want)
		}
	}
}

func TestSnapshotOrderingAndLookup(t *testing.T) {
	snap := NewSnapshot("/repo", []FileRecord{
		{Path: "z.go", Language: "go", Lines: 30},
		{Path: "a/b.py", Language: "python", Lines: 100},
		{Path: "a/a.go", Language: "go", Lines: 50},
	})

	if snap.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", snap.Len())
	}
	files := snap.Files()
	if files[0].Path != "a/a.go" || files[1].Path != "a/b.py" || files[2].Path != "z.go" {
		t.Errorf("files not sorted by path: %v, %v, %v", files[0].Path, files[1].Path, files[2].Path)
	}
	if _, ok := snap.File("a/b.py"); !ok {
		t.Error("File lookup failed for a/b.py")
	}
	if _, ok := snap.File("missing.go"); ok {
		t.Error("File lookup must miss for absent path")
	}
	if snap.TotalLines() != 180 {
		t.Errorf("TotalLines() = %d, want 180", snap.TotalLines())
	}

	langs := snap.LanguagesByLines()
	if len(langs) != 2 || langs[0] != "python" || langs[1] != "go" {
		t.Errorf("LanguagesByLines() = %v, want [python go]", langs)
	}
}

func TestFileRecordNameDir(t *testing.T) {
	f := FileRecord{Path: "internal/config/config.go"}
	if f.Name() != "config.go" {
		t.Errorf("Name() = %q", f.Name())
	}
	if f.Dir() != "internal/config" {
		t.Errorf("Dir() = %q", f.Dir())
	}
	root := FileRecord{Path: "main.go"}
	if root.Name() != "main.go" || root.Dir() != "" {
		t.Errorf("root file: Name() = %q, Dir() = %q", root.Name(), root.Dir())
	}
}

// Serializing a report to JSON and back yields an equal value; scores keep
// full float64 precision on the wire, rounding happens only at display time.
func TestReportJSONRoundTrip(t *testing.T) {
	sig := BoolSignal(AxisCICD, "has_ci", true, 1.0, Evidence{Path: ".github/workflows/ci.yml", Excerpt: "jobs:"})
	sig.Extractor = "cicd"
	finding := Finding{
		Category: AxisCICD,
		Severity: SeverityInfo,
		Message:  "CI configuration detected",
		Evidence: []Signal{sig},
	}
	orig := AssessmentReport{
		ScanID: "ab12cd34",
		Repository: Repository{
			ID:         "ab12cd34",
			Root:       "/repo",
			Languages:  []string{"go"},
			TotalFiles: 12,
			TotalLines: 3456,
		},
		CategoryScores: []CategoryScore{
			{Category: AxisCICD, RawScore: 8.333333333333334, Weight: 0.2, Rationale: []Finding{finding}},
			{Category: AxisDependencies, InsufficientEvidence: true},
		},
		OverallScore: 7.123456789012345,
		Grade:        "B",
		Findings:     []Finding{finding},
		GeneratedAt:  time.Now().UTC(),
		Status:       StatusDone,
	}

	raw, err := json.Marshal(&orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back AssessmentReport
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(orig, back); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}
