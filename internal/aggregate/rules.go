package aggregate

import (
	"fmt"

	"assay/internal/extractor/builtin"
	"assay/internal/types"
)

// AxisSignals is the deduplicated signal set of one axis, handed to rules.
type AxisSignals struct {
	Axis    types.Axis
	Signals []types.Signal
}

// All returns every signal with the given key.
func (v AxisSignals) All(key string) []types.Signal {
	var out []types.Signal
	for _, s := range v.Signals {
		if s.Key == key {
			out = append(out, s)
		}
	}
	return out
}

// First returns the first signal with the key, if any.
func (v AxisSignals) First(key string) (types.Signal, bool) {
	for _, s := range v.Signals {
		if s.Key == key {
			return s, true
		}
	}
	return types.Signal{}, false
}

// Bool reads the first signal with the key as a bool.
func (v AxisSignals) Bool(key string) (bool, bool) {
	if s, ok := v.First(key); ok {
		return s.BoolValue()
	}
	return false, false
}

// Int reads the first signal with the key as an int.
func (v AxisSignals) Int(key string) (int, bool) {
	if s, ok := v.First(key); ok {
		return s.IntValue()
	}
	return 0, false
}

// Float reads the first signal with the key as a float64.
func (v AxisSignals) Float(key string) (float64, bool) {
	if s, ok := v.First(key); ok {
		return s.FloatValue()
	}
	return 0, false
}

// CountAbove counts signals with the key whose confidence exceeds the
// threshold.
func (v AxisSignals) CountAbove(key string, confidence float64) int {
	n := 0
	for _, s := range v.Signals {
		if s.Key == key && s.Confidence > confidence {
			n++
		}
	}
	return n
}

// Rule derives findings from one axis's signals. Category on returned
// findings is filled in by the aggregator; rules only decide severity,
// message, and evidence.
type Rule struct {
	Name  string
	Axis  types.Axis
	Apply func(v AxisSignals) []types.Finding
}

func finding(severity types.Severity, msg string, evidence ...types.Signal) types.Finding {
	return types.Finding{Severity: severity, Message: msg, Evidence: evidence}
}

// strongSecretThreshold separates secret candidates worth a high finding
// from weak pattern matches.
const strongSecretThreshold = 0.7

// defaultRules is the built-in rule table. Thresholds are calibrated against
// the built-in extractors' signal vocabulary; callers adding axes supply
// their own rules via WithRules.
func defaultRules() []Rule {
	return []Rule{
		{Name: "missing_entry_point", Axis: types.AxisStructure, Apply: ruleMissingEntryPoint},
		{Name: "test_presence", Axis: types.AxisStructure, Apply: ruleTestPresence},
		{Name: "unlocked_dependencies", Axis: types.AxisDependencies, Apply: ruleUnlockedDependencies},
		{Name: "dependency_footprint", Axis: types.AxisDependencies, Apply: ruleDependencyFootprint},
		{Name: "ci_presence", Axis: types.AxisCICD, Apply: ruleCIPresence},
		{Name: "secret_candidates", Axis: types.AxisSecurity, Apply: ruleSecretCandidates},
		{Name: "dangerous_flags", Axis: types.AxisSecurity, Apply: ruleDangerousFlags},
		{Name: "weak_hashes", Axis: types.AxisSecurity, Apply: ruleWeakHashes},
		{Name: "oversized_files", Axis: types.AxisComplexity, Apply: ruleOversizedFiles},
		{Name: "code_concentration", Axis: types.AxisComplexity, Apply: ruleCodeConcentration},
		{Name: "readme", Axis: types.AxisDocumentation, Apply: ruleReadme},
		{Name: "license", Axis: types.AxisDocumentation, Apply: ruleLicense},
		{Name: "comment_density", Axis: types.AxisDocumentation, Apply: ruleCommentDensity},
	}
}

func ruleMissingEntryPoint(v AxisSignals) []types.Finding {
	count, ok := v.Int(builtin.KeyEntryPointCount)
	if !ok || count > 0 {
		return nil
	}
	packages, _ := v.Int(builtin.KeyPackageCount)
	if packages == 0 {
		return nil
	}
	sig, _ := v.First(builtin.KeyEntryPointCount)
	return []types.Finding{finding(types.SeverityMedium,
		"no recognizable entry point across source packages", sig)}
}

func ruleTestPresence(v AxisSignals) []types.Finding {
	ratio, ok := v.Float(builtin.KeyTestRatio)
	if !ok {
		return nil
	}
	sig, _ := v.First(builtin.KeyTestRatio)
	switch {
	case ratio == 0:
		return []types.Finding{finding(types.SeverityHigh,
			"no test files anywhere in the source tree", sig)}
	case ratio < 0.1:
		return []types.Finding{finding(types.SeverityMedium,
			fmt.Sprintf("test files are sparse: %.0f%% of source files", ratio*100), sig)}
	}
	return nil
}

func ruleUnlockedDependencies(v AxisSignals) []types.Finding {
	var findings []types.Finding
	for _, s := range v.All(builtin.KeyLockfile) {
		if locked, ok := s.BoolValue(); ok && !locked {
			findings = append(findings, finding(types.SeverityMedium,
				"declared dependencies are not version-locked", s))
		}
	}
	return findings
}

// heavyDependencyCount is where a dependency list starts counting against
// the score on its own.
const heavyDependencyCount = 150

func ruleDependencyFootprint(v AxisSignals) []types.Finding {
	total := 0
	counts := v.All(builtin.KeyDependencyCount)
	for _, s := range counts {
		if n, ok := s.IntValue(); ok {
			total += n
		}
	}
	if total < heavyDependencyCount {
		return nil
	}
	return []types.Finding{finding(types.SeverityLow,
		fmt.Sprintf("heavy dependency footprint: %d declared dependencies", total), counts...)}
}

func ruleCIPresence(v AxisSignals) []types.Finding {
	hasCI, ok := v.Bool(builtin.KeyHasCI)
	if !ok {
		return nil
	}
	ciSig, _ := v.First(builtin.KeyHasCI)
	if !hasCI {
		return []types.Finding{finding(types.SeverityHigh,
			"no continuous integration configuration found", ciSig)}
	}

	var findings []types.Finding
	if tests, ok := v.Bool(builtin.KeyHasTestsStage); ok && !tests {
		sig, _ := v.First(builtin.KeyHasTestsStage)
		findings = append(findings, finding(types.SeverityMedium,
			"CI pipeline never runs tests", sig))
	}
	if scan, ok := v.Bool(builtin.KeyHasSecurityScan); ok && !scan {
		sig, _ := v.First(builtin.KeyHasSecurityScan)
		findings = append(findings, finding(types.SeverityLow,
			"CI pipeline runs no security scanning", sig))
	}
	return findings
}

func ruleSecretCandidates(v AxisSignals) []types.Finding {
	candidates := v.All(builtin.KeySecretCandidate)
	if len(candidates) == 0 {
		return nil
	}
	strong := v.CountAbove(builtin.KeySecretCandidate, strongSecretThreshold)
	switch {
	case strong >= 3:
		return []types.Finding{finding(types.SeverityHigh,
			fmt.Sprintf("repository appears to leak credentials: %d strong secret candidates", strong),
			candidates...)}
	case strong >= 1:
		return []types.Finding{finding(types.SeverityMedium,
			fmt.Sprintf("hardcoded secret candidates: %d strong matches", strong), candidates...)}
	}
	return []types.Finding{finding(types.SeverityLow,
		fmt.Sprintf("%d weak secret-pattern matches, review recommended", len(candidates)),
		candidates...)}
}

func ruleDangerousFlags(v AxisSignals) []types.Finding {
	flags := v.All(builtin.KeyDangerousFlag)
	if len(flags) == 0 {
		return nil
	}
	return []types.Finding{finding(types.SeverityMedium,
		fmt.Sprintf("%d dangerous configuration flags (TLS verification, insecure transports)", len(flags)),
		flags...)}
}

func ruleWeakHashes(v AxisSignals) []types.Finding {
	hashes := v.All(builtin.KeyWeakHash)
	if len(hashes) == 0 {
		return nil
	}
	return []types.Finding{finding(types.SeverityLow,
		fmt.Sprintf("weak hash algorithms referenced %d times", len(hashes)), hashes...)}
}

func ruleOversizedFiles(v AxisSignals) []types.Finding {
	count, ok := v.Int(builtin.KeyOversizedCount)
	if !ok || count == 0 {
		return nil
	}
	severity := types.SeverityLow
	if count >= 5 {
		severity = types.SeverityMedium
	}
	evidence := v.All(builtin.KeyOversizedFile)
	if sig, ok := v.First(builtin.KeyOversizedCount); ok {
		evidence = append(evidence, sig)
	}
	return []types.Finding{finding(severity,
		fmt.Sprintf("%d oversized source files", count), evidence...)}
}

// concentrationShare flags a tree where nearly all code sits in one
// top-level directory. Only meaningful once the tree has some spread.
const (
	concentrationShare    = 0.8
	concentrationMinFiles = 20
)

func ruleCodeConcentration(v AxisSignals) []types.Finding {
	share, ok := v.Float(builtin.KeyTopDirShare)
	if !ok || share <= concentrationShare {
		return nil
	}
	files, _ := v.Int(builtin.KeyTotalFiles)
	if files < concentrationMinFiles {
		return nil
	}
	dir, _ := v.First(builtin.KeyLargestDir)
	shareSig, _ := v.First(builtin.KeyTopDirShare)
	return []types.Finding{finding(types.SeverityLow,
		fmt.Sprintf("%.0f%% of source lines sit in %q", share*100, dir.Value),
		dir, shareSig)}
}

// stubReadmeLines is the length under which a README counts as a stub.
const stubReadmeLines = 10

func ruleReadme(v AxisSignals) []types.Finding {
	has, ok := v.Bool(builtin.KeyHasReadme)
	if !ok {
		return nil
	}
	if !has {
		sig, _ := v.First(builtin.KeyHasReadme)
		return []types.Finding{finding(types.SeverityHigh, "no README", sig)}
	}
	if lines, ok := v.Int(builtin.KeyReadmeLines); ok && lines < stubReadmeLines {
		sig, _ := v.First(builtin.KeyReadmeLines)
		return []types.Finding{finding(types.SeverityMedium,
			fmt.Sprintf("README is a stub: %d lines", lines), sig)}
	}
	return nil
}

func ruleLicense(v AxisSignals) []types.Finding {
	has, ok := v.Bool(builtin.KeyHasLicense)
	if !ok || has {
		return nil
	}
	sig, _ := v.First(builtin.KeyHasLicense)
	return []types.Finding{finding(types.SeverityMedium, "no license file", sig)}
}

// minCommentDensity is the comment share under which source counts as
// effectively uncommented.
const minCommentDensity = 0.02

func ruleCommentDensity(v AxisSignals) []types.Finding {
	density, ok := v.Float(builtin.KeyCommentDensity)
	if !ok || density >= minCommentDensity {
		return nil
	}
	sig, _ := v.First(builtin.KeyCommentDensity)
	return []types.Finding{finding(types.SeverityLow,
		fmt.Sprintf("source is nearly uncommented: density %.3f", density), sig)}
}
