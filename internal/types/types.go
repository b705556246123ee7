// Package types provides the shared data model used across assay packages.
// This package exists to break import cycles between snapshot, extractor,
// aggregate, scoring, and orchestrate. Types in this package are foundational
// data structures with no dependencies beyond the standard library.
package types

import (
	"math"
	"strconv"
	"time"
)

// =============================================================================
// ASSESSMENT AXES
// =============================================================================

// Axis identifies one assessment dimension. Every Signal and Finding belongs
// to exactly one axis, and each axis maps 1:1 to a scored category.
type Axis string

const (
	AxisStructure     Axis = "structure"
	AxisDependencies  Axis = "dependencies"
	AxisCICD          Axis = "ci_cd"
	AxisSecurity      Axis = "security"
	AxisComplexity    Axis = "complexity"
	AxisDocumentation Axis = "documentation"
)

// allAxes is the canonical axis order. It doubles as the fixed extractor
// priority order used to break aggregation ties deterministically.
var allAxes = []Axis{
	AxisStructure,
	AxisDependencies,
	AxisCICD,
	AxisSecurity,
	AxisComplexity,
	AxisDocumentation,
}

// AllAxes returns the canonical axis order. Callers receive a copy and may
// not affect the canonical ordering.
func AllAxes() []Axis {
	out := make([]Axis, len(allAxes))
	copy(out, allAxes)
	return out
}

// Valid reports whether the axis is one of the known assessment dimensions.
func (a Axis) Valid() bool {
	for _, ax := range allAxes {
		if a == ax {
			return true
		}
	}
	return false
}

// =============================================================================
// SEVERITY
// =============================================================================

// Severity grades a Finding. Info findings are observations that carry no
// score penalty; they exist so a category with healthy evidence is still
// distinguishable from a category with no evidence at all.
type Severity string

const (
	SeverityInfo   Severity = "info"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var severityRank = map[Severity]int{
	SeverityInfo:   0,
	SeverityLow:    1,
	SeverityMedium: 2,
	SeverityHigh:   3,
}

// Rank returns the ordering weight of the severity (info lowest). Unknown
// severities rank below info.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether the severity is one of the defined levels.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// =============================================================================
// SCAN LIFECYCLE
// =============================================================================

// ScanStatus tracks a single repository scan through its state machine.
type ScanStatus string

const (
	StatusPending      ScanStatus = "pending"
	StatusSnapshotting ScanStatus = "snapshotting"
	StatusExtracting   ScanStatus = "extracting"
	StatusAggregating  ScanStatus = "aggregating"
	StatusScoring      ScanStatus = "scoring"
	StatusDone         ScanStatus = "done"
	StatusFailed       ScanStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s ScanStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// =============================================================================
// SIGNALS
// =============================================================================

// Evidence points at the concrete location that backs a Signal. Excerpt is a
// short copied string, never a reference into the Snapshot, so evidence stays
// valid after the Snapshot is discarded.
type Evidence struct {
	Path    string `json:"path"`
	Excerpt string `json:"excerpt,omitempty"`
}

// maxExcerptLen caps evidence excerpts so reports stay compact.
const maxExcerptLen = 160

// Excerpt trims a source line to evidence length.
func Excerpt(line string) string {
	runes := []rune(line)
	if len(runes) <= maxExcerptLen {
		return line
	}
	return string(runes[:maxExcerptLen]) + "…"
}

// KeyExtractorFailed is the signal key recorded when an extractor errors or
// times out. Such signals always carry confidence 0 and therefore never count
// as evidence toward a category score.
const KeyExtractorFailed = "extractor_failed"

// Signal is the atomic unit of extracted information: one fact about the
// repository, with the confidence the extractor assigns it and the evidence
// that backs it. Signals are produced by exactly one extractor and never
// mutated afterwards. Value is a string-rendered scalar; use the typed
// accessors to read it back.
type Signal struct {
	Axis       Axis       `json:"axis"`
	Key        string     `json:"key"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Extractor  string     `json:"extractor,omitempty"`
	Evidence   []Evidence `json:"evidence,omitempty"`
}

// BoolSignal builds a Signal carrying a boolean value.
func BoolSignal(axis Axis, key string, v bool, confidence float64, ev ...Evidence) Signal {
	return Signal{Axis: axis, Key: key, Value: strconv.FormatBool(v), Confidence: confidence, Evidence: ev}
}

// IntSignal builds a Signal carrying an integer value.
func IntSignal(axis Axis, key string, v int, confidence float64, ev ...Evidence) Signal {
	return Signal{Axis: axis, Key: key, Value: strconv.Itoa(v), Confidence: confidence, Evidence: ev}
}

// FloatSignal builds a Signal carrying a float value.
func FloatSignal(axis Axis, key string, v float64, confidence float64, ev ...Evidence) Signal {
	return Signal{Axis: axis, Key: key, Value: strconv.FormatFloat(v, 'g', -1, 64), Confidence: confidence, Evidence: ev}
}

// StringSignal builds a Signal carrying a plain string value.
func StringSignal(axis Axis, key, v string, confidence float64, ev ...Evidence) Signal {
	return Signal{Axis: axis, Key: key, Value: v, Confidence: confidence, Evidence: ev}
}

// BoolValue reads the value as a bool. Returns (value, true) on success and
// (false, false) when the value does not parse.
func (s Signal) BoolValue() (bool, bool) {
	v, err := strconv.ParseBool(s.Value)
	if err != nil {
		return false, false
	}
	return v, true
}

// IntValue reads the value as an int.
func (s Signal) IntValue() (int, bool) {
	v, err := strconv.Atoi(s.Value)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FloatValue reads the value as a float64.
func (s Signal) FloatValue() (float64, bool) {
	v, err := strconv.ParseFloat(s.Value, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Failed reports whether this is an extractor-failure marker signal.
func (s Signal) Failed() bool {
	return s.Key == KeyExtractorFailed
}

// =============================================================================
// FINDINGS AND SCORES
// =============================================================================

// Finding is a human-meaningful conclusion derived from one or more Signals.
// Findings are produced only by the aggregator and always trace back to at
// least one Signal.
type Finding struct {
	Category Axis     `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Evidence []Signal `json:"evidence"`
}

// HasEvidence reports whether the finding is backed by at least one signal
// with non-zero confidence. Findings derived solely from extractor-failure
// markers have no real evidence and keep their category insufficient.
func (f Finding) HasEvidence() bool {
	for _, sig := range f.Evidence {
		if sig.Confidence > 0 {
			return true
		}
	}
	return false
}

// CategoryScore is the scored outcome of one axis. Weight is the effective
// weight after insufficient-evidence renormalization, so report weights
// always sum to 1.0 across scored categories. A category with no
// evidence-bearing findings is marked InsufficientEvidence and carries
// weight 0; it is never assigned a fabricated score.
type CategoryScore struct {
	Category             Axis      `json:"category"`
	RawScore             float64   `json:"raw_score"`
	Weight               float64   `json:"weight"`
	InsufficientEvidence bool      `json:"insufficient_evidence,omitempty"`
	Rationale            []Finding `json:"rationale,omitempty"`
}

// =============================================================================
// REPOSITORY AND REPORT
// =============================================================================

// Repository identifies one scanned source tree. Created once per scan and
// immutable after the snapshot is built. Languages is ordered by line count,
// primary language first.
type Repository struct {
	ID         string   `json:"id"`
	Root       string   `json:"root"`
	Languages  []string `json:"languages,omitempty"`
	TotalFiles int      `json:"total_files"`
	TotalLines int      `json:"total_lines"`
}

// PrimaryLanguage returns the dominant detected language, or "" when nothing
// was detected.
func (r Repository) PrimaryLanguage() string {
	if len(r.Languages) == 0 {
		return ""
	}
	return r.Languages[0]
}

// Grade bands for the overall score. GradeNone marks a report where no
// category had enough evidence to score.
const GradeNone = "N/A"

// GradeFor bands an overall score into a letter grade.
func GradeFor(overall float64) string {
	switch {
	case overall >= 8.5:
		return "A"
	case overall >= 7.0:
		return "B"
	case overall >= 5.5:
		return "C"
	case overall >= 4.0:
		return "D"
	default:
		return "F"
	}
}

// Round1 rounds a score to one decimal for display. Internal arithmetic keeps
// full float64 precision; only renderers and summaries round.
func Round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// AssessmentReport is the final immutable output artifact of one scan. A
// failed scan still yields a report, with Status "failed", a FailureReason,
// and no scores. Re-scanning produces a new report, never an in-place update.
type AssessmentReport struct {
	ScanID         string          `json:"scan_id"`
	Repository     Repository      `json:"repository"`
	CategoryScores []CategoryScore `json:"category_scores,omitempty"`
	OverallScore   float64         `json:"overall_score"`
	Grade          string          `json:"grade"`
	Findings       []Finding       `json:"findings,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at"`
	Status         ScanStatus      `json:"status"`
	FailureReason  string          `json:"failure_reason,omitempty"`
}

// Failed reports whether the scan behind this report aborted fatally.
func (r *AssessmentReport) Failed() bool {
	return r.Status == StatusFailed
}

// Score returns the category score for the given axis, if present.
func (r *AssessmentReport) Score(axis Axis) (CategoryScore, bool) {
	for _, cs := range r.CategoryScores {
		if cs.Category == axis {
			return cs, true
		}
	}
	return CategoryScore{}, false
}
