package builtin

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"assay/internal/types"
)

// Signal keys emitted on the ci_cd axis.
const (
	KeyHasCI           = "has_ci"
	KeyCISystem        = "ci_system"
	KeyPipelineStages  = "pipeline_stages"
	KeyHasTestsStage   = "has_tests_stage"
	KeyHasSecurityScan = "has_security_scan"
	KeyHasLintStage    = "has_lint_stage"
	KeyCIConfigCount   = "ci_config_count"
)

var (
	testCommand = regexp.MustCompile(`(?i)\b(go test|npm test|yarn test|pnpm test|pytest|cargo test|mvn test|gradle(w)? test|ctest|rspec|phpunit|jest|vitest|tox|unittest)\b`)
	secTool     = regexp.MustCompile(`(?i)\b(trivy|snyk|codeql|gosec|bandit|semgrep|grype|osv-scanner|dependency-check|gitleaks|trufflehog|zap-baseline)\b`)
	lintTool    = regexp.MustCompile(`(?i)\b(golangci-lint|eslint|flake8|ruff|pylint|rubocop|clippy|staticcheck|ktlint|checkstyle|prettier --check|gofmt)\b`)
)

// ciConfig matches one CI system's configuration location.
type ciConfig struct {
	System string
	Match  func(path string) bool
}

var ciConfigs = []ciConfig{
	{"github_actions", func(p string) bool {
		return strings.HasPrefix(p, ".github/workflows/") &&
			(strings.HasSuffix(p, ".yml") || strings.HasSuffix(p, ".yaml"))
	}},
	{"gitlab", func(p string) bool { return p == ".gitlab-ci.yml" }},
	{"circleci", func(p string) bool { return p == ".circleci/config.yml" }},
	{"jenkins", func(p string) bool { return p == "Jenkinsfile" || strings.HasSuffix(p, "/Jenkinsfile") }},
	{"travis", func(p string) bool { return p == ".travis.yml" }},
	{"azure", func(p string) bool { return p == "azure-pipelines.yml" }},
	{"bitbucket", func(p string) bool { return p == "bitbucket-pipelines.yml" }},
	{"drone", func(p string) bool { return p == ".drone.yml" }},
}

// CICD extracts continuous-integration signals: which systems are configured,
// what stages the pipelines declare, and whether tests, linting, and security
// scanning run in them.
type CICD struct{}

// NewCICD returns the CI/CD extractor.
func NewCICD() *CICD { return &CICD{} }

func (c *CICD) Axis() types.Axis { return types.AxisCICD }
func (c *CICD) Name() string     { return "cicd" }

func (c *CICD) Extract(ctx context.Context, snap *types.Snapshot) ([]types.Signal, error) {
	if snap.Len() == 0 {
		return nil, nil
	}

	var signals []types.Signal
	axis := c.Axis()

	type marker struct {
		found bool
		path  string
	}
	var tests, security, lint marker
	systems := map[string]string{} // system -> first config path
	configCount := 0

	for i, f := range snap.Files() {
		if err := cancelled(ctx, i); err != nil {
			return nil, err
		}
		system := ""
		for _, cc := range ciConfigs {
			if cc.Match(f.Path) {
				system = cc.System
				break
			}
		}
		if system == "" {
			continue
		}
		configCount++
		if _, seen := systems[system]; !seen {
			systems[system] = f.Path
			signals = append(signals, types.StringSignal(axis, KeyCISystem, system,
				1.0, types.Evidence{Path: f.Path}))
		}
		if !f.IsText || f.ReadErr != "" {
			continue
		}

		stages := pipelineStages(system, f.Content)
		if len(stages) > 0 {
			signals = append(signals, types.StringSignal(axis, KeyPipelineStages,
				strings.Join(stages, ","), 0.9, types.Evidence{Path: f.Path}))
		}

		if !tests.found && (testCommand.MatchString(f.Content) || anyStageNamed(stages, "test")) {
			tests = marker{true, f.Path}
		}
		if !security.found && secTool.MatchString(f.Content) {
			security = marker{true, f.Path}
		}
		if !lint.found && (lintTool.MatchString(f.Content) || anyStageNamed(stages, "lint")) {
			lint = marker{true, f.Path}
		}
	}

	if len(systems) == 0 {
		// Absence of every known config is strong but not conclusive;
		// external CI leaves no trace in the tree.
		signals = append(signals, types.BoolSignal(axis, KeyHasCI, false, 0.9))
		return signals, nil
	}

	first := firstConfigPath(systems)
	signals = append(signals,
		types.BoolSignal(axis, KeyHasCI, true, 1.0, types.Evidence{Path: first}),
		types.IntSignal(axis, KeyCIConfigCount, configCount, 1.0, types.Evidence{Path: first}))

	signals = append(signals, boolMarker(axis, KeyHasTestsStage, tests.found, tests.path, first))
	signals = append(signals, boolMarker(axis, KeyHasSecurityScan, security.found, security.path, first))
	signals = append(signals, boolMarker(axis, KeyHasLintStage, lint.found, lint.path, first))
	return signals, nil
}

// boolMarker renders a presence marker. A positive match is certain and cites
// the config that matched; a miss may just be an invocation the patterns do
// not know, so it carries lower confidence.
func boolMarker(axis types.Axis, key string, found bool, path, fallback string) types.Signal {
	if found {
		return types.BoolSignal(axis, key, true, 1.0, types.Evidence{Path: path})
	}
	return types.BoolSignal(axis, key, false, 0.7, types.Evidence{Path: fallback})
}

func firstConfigPath(systems map[string]string) string {
	paths := make([]string, 0, len(systems))
	for _, p := range systems {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths[0]
}

func anyStageNamed(stages []string, word string) bool {
	for _, s := range stages {
		if strings.Contains(strings.ToLower(s), word) {
			return true
		}
	}
	return false
}

// pipelineStages pulls the declared job or stage names out of a CI config.
// Only the YAML-shaped systems are parsed; script-style configs contribute
// command matches but no stage list. Names come back sorted so the signal
// value is deterministic.
func pipelineStages(system, content string) []string {
	var names []string
	switch system {
	case "github_actions", "circleci":
		var doc struct {
			Jobs map[string]yaml.Node `yaml:"jobs"`
		}
		if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
			return nil
		}
		for name := range doc.Jobs {
			names = append(names, name)
		}
	case "gitlab":
		var doc map[string]yaml.Node
		if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
			return nil
		}
		if stages, ok := doc["stages"]; ok {
			var list []string
			if stages.Decode(&list) == nil {
				names = append(names, list...)
			}
		}
		for name := range doc {
			if gitlabReserved[name] || strings.HasPrefix(name, ".") {
				continue
			}
			names = append(names, name)
		}
	default:
		return nil
	}
	sort.Strings(names)
	return dedupeStrings(names)
}

// gitlabReserved lists top-level .gitlab-ci.yml keys that are configuration,
// not jobs.
var gitlabReserved = map[string]bool{
	"stages":        true,
	"variables":     true,
	"include":       true,
	"default":       true,
	"image":         true,
	"services":      true,
	"workflow":      true,
	"before_script": true,
	"after_script":  true,
	"cache":         true,
	"pages":         false, // pages is a real job
}

func dedupeStrings(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || sorted[i-1] != s {
			out = append(out, s)
		}
	}
	return out
}
