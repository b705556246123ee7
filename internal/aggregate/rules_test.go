package aggregate

import (
	"strings"
	"testing"

	"assay/internal/extractor/builtin"
	"assay/internal/types"
)

// highestFor aggregates and returns the most severe finding for the axis.
func highestFor(t *testing.T, a *Aggregator, axis types.Axis, signals []types.Signal) types.Finding {
	t.Helper()
	findings := a.Aggregate(signals)
	for _, f := range findings {
		if f.Category == axis {
			return f // findings are sorted high-first within an axis
		}
	}
	t.Fatalf("no findings for axis %s", axis)
	return types.Finding{}
}

func TestRuleSecretSeverityLadder(t *testing.T) {
	tests := []struct {
		name   string
		strong int
		weak   int
		want   types.Severity
	}{
		{"three strong is high", 3, 0, types.SeverityHigh},
		{"one strong is medium", 1, 0, types.SeverityMedium},
		{"weak only is low", 0, 2, types.SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var signals []types.Signal
			for i := 0; i < tt.strong; i++ {
				signals = append(signals, sig(types.AxisSecurity, builtin.KeySecretCandidate,
					"aws_access_key", 0.9, "security", strings.Repeat("a", i+1)+".env"))
			}
			for i := 0; i < tt.weak; i++ {
				signals = append(signals, sig(types.AxisSecurity, builtin.KeySecretCandidate,
					"credential_assignment", 0.5, "security", strings.Repeat("b", i+1)+".py"))
			}
			got := highestFor(t, New(nil), types.AxisSecurity, signals)
			if got.Severity != tt.want {
				t.Errorf("severity = %s, want %s (finding %q)", got.Severity, tt.want, got.Message)
			}
		})
	}
}

func TestRuleCIPresence(t *testing.T) {
	t.Run("absent is high", func(t *testing.T) {
		got := highestFor(t, New(nil), types.AxisCICD, []types.Signal{
			sig(types.AxisCICD, builtin.KeyHasCI, "false", 0.9, "cicd"),
		})
		if got.Severity != types.SeverityHigh {
			t.Errorf("severity = %s, want high", got.Severity)
		}
	})

	t.Run("present without tests is medium", func(t *testing.T) {
		got := highestFor(t, New(nil), types.AxisCICD, []types.Signal{
			sig(types.AxisCICD, builtin.KeyHasCI, "true", 1.0, "cicd", ".github/workflows/ci.yml"),
			sig(types.AxisCICD, builtin.KeyHasTestsStage, "false", 0.7, "cicd", ".github/workflows/ci.yml"),
		})
		if got.Severity != types.SeverityMedium {
			t.Errorf("severity = %s, want medium (finding %q)", got.Severity, got.Message)
		}
	})

	t.Run("healthy pipeline only summarizes", func(t *testing.T) {
		got := highestFor(t, New(nil), types.AxisCICD, []types.Signal{
			sig(types.AxisCICD, builtin.KeyHasCI, "true", 1.0, "cicd", ".github/workflows/ci.yml"),
			sig(types.AxisCICD, builtin.KeyHasTestsStage, "true", 1.0, "cicd", ".github/workflows/ci.yml"),
			sig(types.AxisCICD, builtin.KeyHasSecurityScan, "true", 1.0, "cicd", ".github/workflows/ci.yml"),
		})
		if got.Severity != types.SeverityInfo {
			t.Errorf("severity = %s, want info summary only (finding %q)", got.Severity, got.Message)
		}
	})
}

func TestRuleTestPresence(t *testing.T) {
	tests := []struct {
		name  string
		ratio string
		want  types.Severity
	}{
		{"zero ratio is high", "0", types.SeverityHigh},
		{"sparse ratio is medium", "0.05", types.SeverityMedium},
		{"healthy ratio only summarizes", "0.3", types.SeverityInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := highestFor(t, New(nil), types.AxisStructure, []types.Signal{
				sig(types.AxisStructure, builtin.KeyTestRatio, tt.ratio, 1.0, "structure"),
			})
			if got.Severity != tt.want {
				t.Errorf("severity = %s, want %s", got.Severity, tt.want)
			}
		})
	}
}

func TestRuleReadme(t *testing.T) {
	t.Run("missing is high", func(t *testing.T) {
		got := highestFor(t, New(nil), types.AxisDocumentation, []types.Signal{
			sig(types.AxisDocumentation, builtin.KeyHasReadme, "false", 1.0, "docs"),
		})
		if got.Severity != types.SeverityHigh {
			t.Errorf("severity = %s, want high", got.Severity)
		}
	})

	t.Run("stub is medium", func(t *testing.T) {
		got := highestFor(t, New(nil), types.AxisDocumentation, []types.Signal{
			sig(types.AxisDocumentation, builtin.KeyHasReadme, "true", 1.0, "docs", "README.md"),
			sig(types.AxisDocumentation, builtin.KeyReadmeLines, "3", 1.0, "docs", "README.md"),
		})
		if got.Severity != types.SeverityMedium {
			t.Errorf("severity = %s, want medium (finding %q)", got.Severity, got.Message)
		}
	})
}

func TestRuleUnlockedDependencies(t *testing.T) {
	got := highestFor(t, New(nil), types.AxisDependencies, []types.Signal{
		sig(types.AxisDependencies, builtin.KeyManifest, "npm", 1.0, "dependencies", "package.json"),
		sig(types.AxisDependencies, builtin.KeyLockfile, "false", 0.9, "dependencies", "package.json"),
	})
	if got.Severity != types.SeverityMedium {
		t.Errorf("severity = %s, want medium (finding %q)", got.Severity, got.Message)
	}
	if !got.HasEvidence() {
		t.Error("lockfile finding carries no evidence")
	}
}

func TestRuleOversizedFiles(t *testing.T) {
	tests := []struct {
		name  string
		count string
		want  types.Severity
	}{
		{"few is low", "2", types.SeverityLow},
		{"many is medium", "6", types.SeverityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := highestFor(t, New(nil), types.AxisComplexity, []types.Signal{
				sig(types.AxisComplexity, builtin.KeyOversizedCount, tt.count, 1.0, "complexity"),
			})
			if got.Severity != tt.want {
				t.Errorf("severity = %s, want %s", got.Severity, tt.want)
			}
		})
	}
}

func TestRuleCodeConcentrationNeedsSpread(t *testing.T) {
	base := []types.Signal{
		sig(types.AxisComplexity, builtin.KeyTopDirShare, "0.95", 1.0, "complexity"),
		sig(types.AxisComplexity, builtin.KeyLargestDir, "core", 1.0, "complexity"),
	}

	t.Run("small tree exempt", func(t *testing.T) {
		signals := append([]types.Signal{
			sig(types.AxisComplexity, builtin.KeyTotalFiles, "5", 1.0, "complexity"),
		}, base...)
		got := highestFor(t, New(nil), types.AxisComplexity, signals)
		if got.Severity != types.SeverityInfo {
			t.Errorf("severity = %s, want info for a small tree", got.Severity)
		}
	})

	t.Run("large tree flagged", func(t *testing.T) {
		signals := append([]types.Signal{
			sig(types.AxisComplexity, builtin.KeyTotalFiles, "80", 1.0, "complexity"),
		}, base...)
		got := highestFor(t, New(nil), types.AxisComplexity, signals)
		if got.Severity != types.SeverityLow {
			t.Errorf("severity = %s, want low (finding %q)", got.Severity, got.Message)
		}
	})
}
