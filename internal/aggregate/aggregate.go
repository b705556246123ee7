// Package aggregate turns the raw signal set of a scan into findings.
// Signals from different extractors may overlap; deduplication keeps one
// copy per fact, then per-axis rules derive the human-meaningful findings
// a rubric can score. The whole pass is pure and deterministic: the same
// signal multiset always produces byte-identical findings, and re-feeding
// the union of finding evidence reproduces the same findings again.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"assay/internal/logging"
	"assay/internal/types"
)

// Aggregator applies deduplication and the rule table. Construct one per
// rubric run; it is stateless across calls and safe for concurrent use.
type Aggregator struct {
	priority map[string]int
	rules    []Rule
}

// New builds an Aggregator with the default rule table. priority maps an
// extractor name to its registration rank; lower ranks win confidence ties
// during deduplication. A nil map is allowed and makes ties resolve by
// extractor name.
func New(priority map[string]int) *Aggregator {
	return &Aggregator{priority: priority, rules: defaultRules()}
}

// WithRules replaces the rule table. Used by tests and callers that score
// custom axes.
func (a *Aggregator) WithRules(rules []Rule) *Aggregator {
	a.rules = rules
	return a
}

// Aggregate produces the findings for one scan's complete signal set.
// Findings come back ordered by canonical axis, severity (high first), then
// message. Every axis that contributed at least one signal yields at least
// one finding; axes with no signals yield none and stay unscored.
func (a *Aggregator) Aggregate(signals []types.Signal) []types.Finding {
	log := logging.L(logging.CategoryAggregate)
	deduped := a.dedupe(signals)

	byAxis := map[types.Axis][]types.Signal{}
	for _, s := range deduped {
		byAxis[s.Axis] = append(byAxis[s.Axis], s)
	}

	var findings []types.Finding
	for _, axis := range types.AllAxes() {
		axisSignals := byAxis[axis]
		if len(axisSignals) == 0 {
			continue
		}
		findings = append(findings, a.axisFindings(axis, axisSignals)...)
		delete(byAxis, axis)
	}
	// Custom axes registered outside the built-in set, in name order.
	rest := make([]types.Axis, 0, len(byAxis))
	for axis := range byAxis {
		rest = append(rest, axis)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	for _, axis := range rest {
		findings = append(findings, a.axisFindings(axis, byAxis[axis])...)
	}

	log.Debug("aggregation complete",
		zap.Int("signals", len(signals)),
		zap.Int("deduped", len(deduped)),
		zap.Int("findings", len(findings)))
	return findings
}

// axisFindings runs the rule table for one axis and appends the failure and
// summary findings. The summary carries the axis's full deduped signal set,
// which is what makes aggregation idempotent: the union of finding evidence
// equals the deduped input.
func (a *Aggregator) axisFindings(axis types.Axis, signals []types.Signal) []types.Finding {
	view := AxisSignals{Axis: axis, Signals: signals}
	var findings []types.Finding

	for _, rule := range a.rules {
		if rule.Axis != axis {
			continue
		}
		for _, f := range rule.Apply(view) {
			f.Category = axis
			sortFindingOrder(f.Evidence)
			findings = append(findings, f)
		}
	}

	for _, s := range signals {
		if s.Failed() {
			findings = append(findings, types.Finding{
				Category: axis,
				Severity: types.SeverityInfo,
				Message:  fmt.Sprintf("extractor %s failed: %s", s.Extractor, s.Value),
				Evidence: []types.Signal{s},
			})
		}
	}

	findings = append(findings, types.Finding{
		Category: axis,
		Severity: types.SeverityInfo,
		Message:  fmt.Sprintf("%s: %d signals extracted", axis, len(signals)),
		Evidence: signals,
	})

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity.Rank() != findings[j].Severity.Rank() {
			return findings[i].Severity.Rank() > findings[j].Severity.Rank()
		}
		return findings[i].Message < findings[j].Message
	})
	return findings
}

// dedupe collapses signals describing the same fact. Two signals are the
// same fact when axis, key, value, and evidence paths all match; the
// higher-confidence copy survives, and confidence ties resolve by extractor
// priority so the outcome never depends on arrival order.
func (a *Aggregator) dedupe(signals []types.Signal) []types.Signal {
	index := map[string]int{}
	out := make([]types.Signal, 0, len(signals))
	for _, s := range signals {
		k := dedupeKey(s)
		i, seen := index[k]
		if !seen {
			index[k] = len(out)
			out = append(out, s)
			continue
		}
		if a.wins(s, out[i]) {
			out[i] = s
		}
	}
	sortFindingOrder(out)
	return out
}

// wins reports whether challenger replaces incumbent for the same fact.
func (a *Aggregator) wins(challenger, incumbent types.Signal) bool {
	if challenger.Confidence != incumbent.Confidence {
		return challenger.Confidence > incumbent.Confidence
	}
	cr, ir := a.rank(challenger.Extractor), a.rank(incumbent.Extractor)
	if cr != ir {
		return cr < ir
	}
	return challenger.Extractor < incumbent.Extractor
}

func (a *Aggregator) rank(extractor string) int {
	if r, ok := a.priority[extractor]; ok {
		return r
	}
	return math.MaxInt
}

func dedupeKey(s types.Signal) string {
	var b strings.Builder
	b.WriteString(string(s.Axis))
	b.WriteByte(0x1f)
	b.WriteString(s.Key)
	b.WriteByte(0x1f)
	b.WriteString(s.Value)
	for _, ev := range s.Evidence {
		b.WriteByte(0x1f)
		b.WriteString(ev.Path)
	}
	return b.String()
}

// sortFindingOrder orders signals the way they appear inside findings:
// canonical axis first, then key, value, and first evidence path.
func sortFindingOrder(signals []types.Signal) {
	axisRank := map[types.Axis]int{}
	for i, axis := range types.AllAxes() {
		axisRank[axis] = i
	}
	sort.SliceStable(signals, func(i, j int) bool {
		a, b := signals[i], signals[j]
		ra, okA := axisRank[a.Axis]
		rb, okB := axisRank[b.Axis]
		switch {
		case okA != okB:
			return okA
		case !okA && a.Axis != b.Axis:
			return a.Axis < b.Axis
		case ra != rb:
			return ra < rb
		case a.Key != b.Key:
			return a.Key < b.Key
		case a.Value != b.Value:
			return a.Value < b.Value
		}
		return firstPath(a) < firstPath(b)
	})
}

func firstPath(s types.Signal) string {
	if len(s.Evidence) == 0 {
		return ""
	}
	return s.Evidence[0].Path
}
