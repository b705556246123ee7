package builtin

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"regexp"
	"sort"
	"strings"

	"assay/internal/types"
)

// Signal keys emitted on the dependencies axis.
const (
	KeyManifest        = "manifest_found"
	KeyDependency      = "dependency"
	KeyDependencyCount = "dependency_count"
	KeyLockfile        = "lockfile_present"
)

// dependency is one declared dependency normalized across ecosystems.
type dependency struct {
	Name      string
	Version   string
	Ecosystem string
}

func (d dependency) String() string {
	if d.Version == "" {
		return d.Ecosystem + ":" + d.Name
	}
	return d.Ecosystem + ":" + d.Name + "@" + d.Version
}

// manifestParser recognizes one manifest file and extracts its declared
// dependencies. Confidence reflects how structured the parse is.
type manifestParser struct {
	Ecosystem  string
	Match      func(f types.FileRecord) bool
	Parse      func(f types.FileRecord) []dependency
	Confidence float64
}

// lockfileNames lists the lockfiles that pin an ecosystem's dependency
// versions. Maven is absent: it has no lockfile convention.
var lockfileNames = map[string][]string{
	"go":       {"go.sum"},
	"npm":      {"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "bun.lockb"},
	"pypi":     {"poetry.lock", "Pipfile.lock", "uv.lock", "requirements.txt"},
	"cargo":    {"Cargo.lock"},
	"rubygems": {"Gemfile.lock"},
}

// Dependencies extracts declared third-party dependencies from the manifest
// formats the engine understands. A repository with no recognized manifest
// yields zero signals so the category stays unscored rather than scoring an
// absence of facts.
type Dependencies struct {
	parsers []manifestParser
}

// NewDependencies returns the dependencies extractor.
func NewDependencies() *Dependencies {
	return &Dependencies{parsers: []manifestParser{
		{
			Ecosystem:  "go",
			Match:      func(f types.FileRecord) bool { return f.Name() == "go.mod" },
			Parse:      parseGoMod,
			Confidence: 1.0,
		},
		{
			Ecosystem:  "npm",
			Match:      func(f types.FileRecord) bool { return f.Name() == "package.json" },
			Parse:      parsePackageJSON,
			Confidence: 1.0,
		},
		{
			Ecosystem:  "pypi",
			Match:      func(f types.FileRecord) bool { return f.Name() == "requirements.txt" },
			Parse:      parseRequirements,
			Confidence: 0.9,
		},
		{
			Ecosystem:  "pypi",
			Match:      func(f types.FileRecord) bool { return f.Name() == "pyproject.toml" },
			Parse:      parsePyProject,
			Confidence: 0.8,
		},
		{
			Ecosystem:  "cargo",
			Match:      func(f types.FileRecord) bool { return f.Name() == "Cargo.toml" },
			Parse:      parseCargoToml,
			Confidence: 0.9,
		},
		{
			Ecosystem:  "maven",
			Match:      func(f types.FileRecord) bool { return f.Name() == "pom.xml" },
			Parse:      parsePomXML,
			Confidence: 1.0,
		},
		{
			Ecosystem: "gradle",
			Match: func(f types.FileRecord) bool {
				return f.Name() == "build.gradle" || f.Name() == "build.gradle.kts"
			},
			Parse:      parseBuildGradle,
			Confidence: 0.8,
		},
		{
			Ecosystem:  "rubygems",
			Match:      func(f types.FileRecord) bool { return f.Name() == "Gemfile" },
			Parse:      parseGemfile,
			Confidence: 0.9,
		},
	}}
}

func (d *Dependencies) Axis() types.Axis { return types.AxisDependencies }
func (d *Dependencies) Name() string     { return "dependencies" }

func (d *Dependencies) Extract(ctx context.Context, snap *types.Snapshot) ([]types.Signal, error) {
	if snap.Len() == 0 {
		return nil, nil
	}

	var signals []types.Signal
	axis := d.Axis()
	ecosystems := map[string]string{} // ecosystem -> first manifest path

	for i, f := range snap.Files() {
		if err := cancelled(ctx, i); err != nil {
			return nil, err
		}
		if !f.IsText || f.ReadErr != "" {
			continue
		}
		// Manifests inside vendored trees describe someone else's project.
		if underVendoredDir(f.Path) {
			continue
		}
		for _, p := range d.parsers {
			if !p.Match(f) {
				continue
			}
			signals = append(signals, types.StringSignal(axis, KeyManifest, p.Ecosystem,
				1.0, types.Evidence{Path: f.Path}))
			if _, seen := ecosystems[p.Ecosystem]; !seen {
				ecosystems[p.Ecosystem] = f.Path
			}

			deps := p.Parse(f)
			for _, dep := range deps {
				signals = append(signals, types.StringSignal(axis, KeyDependency, dep.String(),
					p.Confidence, types.Evidence{Path: f.Path}))
			}
			signals = append(signals, types.IntSignal(axis, KeyDependencyCount, len(deps),
				p.Confidence, types.Evidence{Path: f.Path}))
		}
	}

	if len(ecosystems) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(ecosystems))
	for eco := range ecosystems {
		names = append(names, eco)
	}
	sort.Strings(names)
	for _, eco := range names {
		locks, tracked := lockfileNames[eco]
		if !tracked {
			continue
		}
		found := ""
		for _, name := range locks {
			dir := ""
			if i := strings.LastIndexByte(ecosystems[eco], '/'); i >= 0 {
				dir = ecosystems[eco][:i+1]
			}
			if _, ok := snap.File(dir + name); ok {
				found = dir + name
				break
			}
		}
		if found != "" {
			signals = append(signals, types.BoolSignal(axis, KeyLockfile, true,
				1.0, types.Evidence{Path: found}))
		} else {
			signals = append(signals, types.BoolSignal(axis, KeyLockfile, false,
				0.9, types.Evidence{Path: ecosystems[eco], Excerpt: "no lockfile for " + eco}))
		}
	}
	return signals, nil
}

// underVendoredDir reports whether a path sits inside a dependency tree
// checked into the repository.
func underVendoredDir(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "vendor", "node_modules", "third_party", "site-packages":
			return true
		}
	}
	return false
}

// parseGoMod extracts direct requirements from a go.mod file. Indirect
// requirements are skipped; they are pins, not declared intent.
func parseGoMod(f types.FileRecord) []dependency {
	var deps []dependency
	inBlock := false
	for _, line := range strings.Split(f.Content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "require (":
			inBlock = true
			continue
		case inBlock && trimmed == ")":
			inBlock = false
			continue
		}

		spec := ""
		if inBlock {
			spec = trimmed
		} else if rest, ok := strings.CutPrefix(trimmed, "require "); ok && !strings.HasPrefix(rest, "(") {
			spec = rest
		}
		if spec == "" || strings.Contains(spec, "// indirect") {
			continue
		}
		fields := strings.Fields(spec)
		if len(fields) >= 2 && strings.HasPrefix(fields[1], "v") {
			deps = append(deps, dependency{Name: fields[0], Version: fields[1], Ecosystem: "go"})
		}
	}
	return deps
}

// parsePackageJSON extracts dependencies and devDependencies.
func parsePackageJSON(f types.FileRecord) []dependency {
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(f.Content), &manifest); err != nil {
		return nil
	}
	var deps []dependency
	for _, m := range []map[string]string{manifest.Dependencies, manifest.DevDependencies} {
		for name, version := range m {
			deps = append(deps, dependency{Name: name, Version: version, Ecosystem: "npm"})
		}
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })
	return deps
}

var requirementSplit = regexp.MustCompile(`==|>=|<=|~=|!=|>|<`)

// parseRequirements extracts pinned and ranged requirements from a pip
// requirements file.
func parseRequirements(f types.FileRecord) []dependency {
	var deps []dependency
	for _, line := range strings.Split(f.Content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "-") {
			continue
		}
		if i := strings.IndexByte(trimmed, '#'); i >= 0 {
			trimmed = strings.TrimSpace(trimmed[:i])
		}
		// Environment markers and extras stay out of the name.
		if i := strings.IndexByte(trimmed, ';'); i >= 0 {
			trimmed = strings.TrimSpace(trimmed[:i])
		}
		parts := requirementSplit.Split(trimmed, 2)
		name := strings.TrimSpace(parts[0])
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		if name == "" {
			continue
		}
		version := ""
		if len(parts) == 2 {
			version = strings.TrimSpace(parts[1])
		}
		deps = append(deps, dependency{Name: name, Version: version, Ecosystem: "pypi"})
	}
	return deps
}

var (
	pyprojectDepList = regexp.MustCompile(`(?s)\bdependencies\s*=\s*\[(.*?)\]`)
	quotedString     = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
)

// parsePyProject extracts PEP 621 project dependencies. Poetry-style tables
// are not parsed; requirements.txt or the lockfile covers those projects.
func parsePyProject(f types.FileRecord) []dependency {
	m := pyprojectDepList.FindStringSubmatch(f.Content)
	if m == nil {
		return nil
	}
	var deps []dependency
	for _, q := range quotedString.FindAllStringSubmatch(m[1], -1) {
		spec := q[1]
		if spec == "" {
			spec = q[2]
		}
		parts := requirementSplit.Split(spec, 2)
		name := strings.TrimSpace(parts[0])
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		if name == "" {
			continue
		}
		version := ""
		if len(parts) == 2 {
			version = strings.TrimSpace(parts[1])
		}
		deps = append(deps, dependency{Name: name, Version: version, Ecosystem: "pypi"})
	}
	return deps
}

var cargoVersionField = regexp.MustCompile(`version\s*=\s*"([^"]+)"`)

// parseCargoToml extracts crates from [dependencies] and [dev-dependencies]
// sections.
func parseCargoToml(f types.FileRecord) []dependency {
	var deps []dependency
	inDeps := false
	for _, line := range strings.Split(f.Content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			section := strings.Trim(trimmed, "[]")
			inDeps = section == "dependencies" || section == "dev-dependencies" ||
				strings.HasSuffix(section, ".dependencies")
			continue
		}
		if !inDeps || trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		name, rest, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		rest = strings.TrimSpace(rest)
		version := strings.Trim(rest, `"`)
		if strings.HasPrefix(rest, "{") {
			version = ""
			if m := cargoVersionField.FindStringSubmatch(rest); m != nil {
				version = m[1]
			}
		}
		deps = append(deps, dependency{Name: name, Version: version, Ecosystem: "cargo"})
	}
	return deps
}

// parsePomXML extracts Maven dependencies from the project POM.
func parsePomXML(f types.FileRecord) []dependency {
	var pom struct {
		Dependencies struct {
			Dependency []struct {
				GroupID    string `xml:"groupId"`
				ArtifactID string `xml:"artifactId"`
				Version    string `xml:"version"`
			} `xml:"dependency"`
		} `xml:"dependencies"`
	}
	if err := xml.Unmarshal([]byte(f.Content), &pom); err != nil {
		return nil
	}
	var deps []dependency
	for _, d := range pom.Dependencies.Dependency {
		if d.GroupID == "" || d.ArtifactID == "" {
			continue
		}
		deps = append(deps, dependency{
			Name:      d.GroupID + ":" + d.ArtifactID,
			Version:   d.Version,
			Ecosystem: "maven",
		})
	}
	return deps
}

var gradleDep = regexp.MustCompile(`(?m)^\s*(?:implementation|api|compileOnly|runtimeOnly|testImplementation|compile)\s*[\(]?\s*['"]([^'"]+)['"]`)

// parseBuildGradle extracts coordinate-style dependencies from Groovy or
// Kotlin build scripts.
func parseBuildGradle(f types.FileRecord) []dependency {
	var deps []dependency
	for _, m := range gradleDep.FindAllStringSubmatch(f.Content, -1) {
		coord := m[1]
		name, version := coord, ""
		if parts := strings.Split(coord, ":"); len(parts) == 3 {
			name = parts[0] + ":" + parts[1]
			version = parts[2]
		}
		deps = append(deps, dependency{Name: name, Version: version, Ecosystem: "gradle"})
	}
	return deps
}

var gemfileDep = regexp.MustCompile(`(?m)^\s*gem\s+['"]([^'"]+)['"](?:\s*,\s*['"]([^'"]+)['"])?`)

// parseGemfile extracts gem declarations.
func parseGemfile(f types.FileRecord) []dependency {
	var deps []dependency
	for _, m := range gemfileDep.FindAllStringSubmatch(f.Content, -1) {
		deps = append(deps, dependency{Name: m[1], Version: m[2], Ecosystem: "rubygems"})
	}
	return deps
}
