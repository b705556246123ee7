// Package scoring applies a declarative rubric to aggregated findings. The
// engine is a constructed value with no package state; several engines with
// different rubrics can score concurrently. All arithmetic stays in full
// float64 precision; rounding is a display concern.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"assay/internal/config"
	"assay/internal/logging"
	"assay/internal/types"
)

// weightTolerance is the allowed deviation of the weight sum from 1.0.
const weightTolerance = 1e-6

// Rubric declares how findings translate to scores: per-axis weights and
// per-severity penalties. Weights must be positive and sum to 1.0 within
// tolerance.
type Rubric struct {
	Weights   map[types.Axis]float64
	Penalties map[types.Severity]float64
}

// DefaultRubric mirrors the shipped configuration defaults.
func DefaultRubric() Rubric {
	return Rubric{
		Weights: map[types.Axis]float64{
			types.AxisStructure:     0.20,
			types.AxisDependencies:  0.15,
			types.AxisCICD:          0.20,
			types.AxisSecurity:      0.20,
			types.AxisComplexity:    0.10,
			types.AxisDocumentation: 0.15,
		},
		Penalties: map[types.Severity]float64{
			types.SeverityInfo:   0.0,
			types.SeverityLow:    0.5,
			types.SeverityMedium: 1.5,
			types.SeverityHigh:   3.0,
		},
	}
}

// ScoringError reports an invalid rubric. It is surfaced once at startup,
// before any scan runs; a scan never fails on rubric problems.
type ScoringError struct {
	Field  string
	Reason string
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("invalid rubric %s: %s", e.Field, e.Reason)
}

// FromConfig converts the YAML rubric into a typed one. Config rubrics may
// only reference the built-in axes and severities; programmatic callers with
// custom axes construct a Rubric directly.
func FromConfig(rc config.RubricConfig) (Rubric, error) {
	r := Rubric{
		Weights:   make(map[types.Axis]float64, len(rc.Weights)),
		Penalties: make(map[types.Severity]float64, len(rc.Penalties)),
	}
	for name, w := range rc.Weights {
		axis := types.Axis(name)
		if !axis.Valid() {
			return Rubric{}, &ScoringError{Field: "weights", Reason: fmt.Sprintf("unknown category %q", name)}
		}
		r.Weights[axis] = w
	}
	for name, p := range rc.Penalties {
		severity := types.Severity(name)
		if !severity.Valid() {
			return Rubric{}, &ScoringError{Field: "penalties", Reason: fmt.Sprintf("unknown severity %q", name)}
		}
		r.Penalties[severity] = p
	}
	if err := validate(r); err != nil {
		return Rubric{}, err
	}
	return r, nil
}

func validate(r Rubric) error {
	if len(r.Weights) == 0 {
		return &ScoringError{Field: "weights", Reason: "no categories"}
	}
	sum := 0.0
	for axis, w := range r.Weights {
		if w <= 0 {
			return &ScoringError{Field: "weights", Reason: fmt.Sprintf("category %q has non-positive weight %v", axis, w)}
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return &ScoringError{Field: "weights", Reason: fmt.Sprintf("sum is %v, want 1.0", sum)}
	}
	for severity, p := range r.Penalties {
		if p < 0 {
			return &ScoringError{Field: "penalties", Reason: fmt.Sprintf("severity %q has negative penalty %v", severity, p)}
		}
	}
	return nil
}

// Engine scores findings against one validated rubric.
type Engine struct {
	rubric Rubric
	axes   []types.Axis
}

// New validates the rubric and builds an engine. The axis iteration order is
// fixed at construction: built-in axes in canonical order, any custom axes
// after them by name.
func New(rubric Rubric) (*Engine, error) {
	if err := validate(rubric); err != nil {
		return nil, err
	}

	var axes []types.Axis
	for _, axis := range types.AllAxes() {
		if _, ok := rubric.Weights[axis]; ok {
			axes = append(axes, axis)
		}
	}
	var custom []types.Axis
	for axis := range rubric.Weights {
		if !axis.Valid() {
			custom = append(custom, axis)
		}
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i] < custom[j] })
	axes = append(axes, custom...)

	return &Engine{rubric: rubric, axes: axes}, nil
}

// Score computes one CategoryScore per rubric axis and the weighted overall
// score in [0, 10]. Categories whose findings carry no confident evidence are
// marked insufficient and excluded; the remaining weights are renormalized so
// the reported weights always sum to 1.0. When nothing is scoreable the
// overall is 0 and the caller grades it N/A via Grade.
func (e *Engine) Score(findings []types.Finding) ([]types.CategoryScore, float64) {
	log := logging.L(logging.CategoryScore)

	byAxis := map[types.Axis][]types.Finding{}
	unknown := 0
	for _, f := range findings {
		if _, ok := e.rubric.Weights[f.Category]; !ok {
			unknown++
			continue
		}
		byAxis[f.Category] = append(byAxis[f.Category], f)
	}
	if unknown > 0 {
		log.Debug("findings outside rubric ignored", zap.Int("count", unknown))
	}

	scores := make([]types.CategoryScore, 0, len(e.axes))
	weightTotal := 0.0
	for _, axis := range e.axes {
		axisFindings := byAxis[axis]
		if !anyEvidence(axisFindings) {
			scores = append(scores, types.CategoryScore{
				Category:             axis,
				InsufficientEvidence: true,
				Rationale:            axisFindings,
			})
			continue
		}

		raw := 10.0
		for _, f := range axisFindings {
			raw -= e.rubric.Penalties[f.Severity]
		}
		if raw < 0 {
			raw = 0
		}
		scores = append(scores, types.CategoryScore{
			Category:  axis,
			RawScore:  raw,
			Weight:    e.rubric.Weights[axis],
			Rationale: axisFindings,
		})
		weightTotal += e.rubric.Weights[axis]
	}

	overall := 0.0
	if weightTotal > 0 {
		for i := range scores {
			if scores[i].InsufficientEvidence {
				continue
			}
			scores[i].Weight /= weightTotal
			overall += scores[i].Weight * scores[i].RawScore
		}
	}

	log.Debug("scored findings",
		zap.Int("findings", len(findings)),
		zap.Float64("overall", overall))
	return scores, overall
}

// anyEvidence reports whether at least one finding carries confident
// evidence.
func anyEvidence(findings []types.Finding) bool {
	for _, f := range findings {
		if f.HasEvidence() {
			return true
		}
	}
	return false
}

// Grade bands the overall score into a letter grade, or N/A when every
// category was insufficient.
func Grade(scores []types.CategoryScore, overall float64) string {
	for _, s := range scores {
		if !s.InsufficientEvidence {
			return types.GradeFor(overall)
		}
	}
	return types.GradeNone
}
