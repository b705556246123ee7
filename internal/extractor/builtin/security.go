package builtin

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strings"

	"assay/internal/types"
)

// Signal keys emitted on the security axis. Everything here is a candidate
// for human review, never a verdict, so no security signal reaches
// confidence 1.0.
const (
	KeySecretCandidate = "secret_candidate"
	KeyDangerousFlag   = "dangerous_flag"
	KeyWeakHash        = "weak_hash"
	KeySecretCount     = "secret_candidate_count"
	KeyDangerCount     = "dangerous_flag_count"
	KeyWeakHashCount   = "weak_hash_count"
)

// maxPatternSignals caps per-kind signal emission so a generated credentials
// fixture cannot flood the report. Counting continues past the cap.
const maxPatternSignals = 100

// patternRule is one line-oriented detection rule.
type patternRule struct {
	ID   string
	Re   *regexp.Regexp
	Conf float64
}

var secretRules = []patternRule{
	{"aws_access_key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), 0.9},
	{"github_token", regexp.MustCompile(`\bghp_[0-9A-Za-z]{36}\b`), 0.9},
	{"slack_token", regexp.MustCompile(`\bxox[baprs]-[0-9A-Za-z-]{10,}\b`), 0.85},
	{"private_key", regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`), 0.95},
	{"credential_assignment", regexp.MustCompile(`(?i)\b(?:password|passwd|secret|api[_-]?key|auth[_-]?token|access[_-]?token)\b\s*[:=]\s*["'][^"'\s]{8,}["']`), 0.6},
}

var dangerRules = []patternRule{
	{"tls_verify_disabled", regexp.MustCompile(`verify\s*=\s*False|rejectUnauthorized\s*:\s*false`), 0.8},
	{"curl_insecure", regexp.MustCompile(`\bcurl\b[^\n]*\s(?:-k|--insecure)\b`), 0.6},
	{"bind_all_interfaces", regexp.MustCompile(`['"]0\.0\.0\.0:\d+['"]`), 0.4},
}

var weakHashRules = []patternRule{
	{"md5", regexp.MustCompile(`\bmd5\.(?:New|Sum)\b|hashlib\.md5\(|getInstance\(\s*"MD5"`), 0.5},
	{"sha1", regexp.MustCompile(`\bsha1\.(?:New|Sum)\b|hashlib\.sha1\(|getInstance\(\s*"SHA-?1"`), 0.5},
}

// Security extracts security smells: hardcoded secret candidates, dangerous
// configuration flags, and weak hash usage. Test files and documentation are
// scanned at reduced confidence; they legitimately carry fake credentials.
type Security struct{}

// NewSecurity returns the security extractor.
func NewSecurity() *Security { return &Security{} }

func (s *Security) Axis() types.Axis { return types.AxisSecurity }
func (s *Security) Name() string     { return "security" }

func (s *Security) Extract(ctx context.Context, snap *types.Snapshot) ([]types.Signal, error) {
	if snap.Len() == 0 {
		return nil, nil
	}

	var signals []types.Signal
	axis := s.Axis()
	counts := map[string]int{}
	scanned := 0

	emit := func(key, rule string, conf float64, ev types.Evidence) {
		counts[key]++
		if counts[key] <= maxPatternSignals {
			signals = append(signals, types.StringSignal(axis, key, rule, conf, ev))
		}
	}

	for i, f := range snap.Files() {
		if err := cancelled(ctx, i); err != nil {
			return nil, err
		}
		if !f.IsText || f.ReadErr != "" || underVendoredDir(f.Path) {
			continue
		}
		scanned++
		factor := confidenceFactor(f)

		for lineNo, line := range strings.Split(f.Content, "\n") {
			for _, rule := range secretRules {
				if loc := rule.Re.FindStringIndex(line); loc != nil {
					emit(KeySecretCandidate, rule.ID, rule.Conf*factor,
						types.Evidence{Path: f.Path, Excerpt: redact(line, lineNo+1, loc[0], loc[1])})
				}
			}
			for _, rule := range dangerRules {
				if rule.Re.MatchString(line) {
					emit(KeyDangerousFlag, rule.ID, rule.Conf*factor,
						types.Evidence{Path: f.Path, Excerpt: excerptAt(line, lineNo+1)})
				}
			}
			for _, rule := range weakHashRules {
				if rule.Re.MatchString(line) {
					emit(KeyWeakHash, rule.ID, rule.Conf*factor,
						types.Evidence{Path: f.Path, Excerpt: excerptAt(line, lineNo+1)})
				}
			}
		}

		if f.Language == "go" && !f.IsTest {
			for _, ev := range goInsecureTLS(f) {
				emit(KeyDangerousFlag, "insecure_skip_verify", 0.9, ev)
			}
		}
	}

	if scanned == 0 {
		return nil, nil
	}
	signals = append(signals,
		types.IntSignal(axis, KeySecretCount, counts[KeySecretCandidate], 0.95),
		types.IntSignal(axis, KeyDangerCount, counts[KeyDangerousFlag], 0.95),
		types.IntSignal(axis, KeyWeakHashCount, counts[KeyWeakHash], 0.95))
	return signals, nil
}

// confidenceFactor discounts matches in files where fake credentials are
// expected.
func confidenceFactor(f types.FileRecord) float64 {
	switch {
	case f.IsTest:
		return 0.5
	case f.Language == "markdown" || f.Language == "rst" || f.Language == "text":
		return 0.7
	default:
		return 1.0
	}
}

// redact masks the matched region beyond a short identifying prefix so the
// report never republishes the secret it flagged.
func redact(line string, lineNo, start, end int) string {
	const keep = 6
	if end-start > keep {
		line = line[:start+keep] + "****" + line[end:]
	}
	return excerptAt(line, lineNo)
}

func excerptAt(line string, lineNo int) string {
	return types.Excerpt(fmt.Sprintf("L%d: %s", lineNo, strings.TrimSpace(line)))
}

// goInsecureTLS parses a Go file and reports every composite literal that
// sets InsecureSkipVerify to true. The AST walk avoids flagging comments and
// string literals, which a plain pattern would.
func goInsecureTLS(f types.FileRecord) []types.Evidence {
	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, f.Path, f.Content, parser.SkipObjectResolution)
	if err != nil {
		return nil
	}

	var evidence []types.Evidence
	ast.Inspect(parsed, func(n ast.Node) bool {
		kv, ok := n.(*ast.KeyValueExpr)
		if !ok {
			return true
		}
		key, ok := kv.Key.(*ast.Ident)
		if !ok || key.Name != "InsecureSkipVerify" {
			return true
		}
		if val, ok := kv.Value.(*ast.Ident); ok && val.Name == "true" {
			evidence = append(evidence, types.Evidence{
				Path:    f.Path,
				Excerpt: fmt.Sprintf("L%d: InsecureSkipVerify: true", fset.Position(kv.Pos()).Line),
			})
		}
		return true
	})
	return evidence
}
