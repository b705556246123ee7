package builtin

import (
	"context"
	"testing"
)

const sampleGoMod = `module example.com/svc

go 1.24

require (
	github.com/spf13/cobra v1.8.1
	go.uber.org/zap v1.27.0
	golang.org/x/sys v0.20.0 // indirect
)

require gopkg.in/yaml.v3 v3.0.1
`

func TestParseGoMod(t *testing.T) {
	deps := parseGoMod(rec("go.mod", "go_mod", sampleGoMod))
	want := []string{
		"go:github.com/spf13/cobra@v1.8.1",
		"go:go.uber.org/zap@v1.27.0",
		"go:gopkg.in/yaml.v3@v3.0.1",
	}
	if len(deps) != len(want) {
		t.Fatalf("got %d deps, want %d: %+v", len(deps), len(want), deps)
	}
	for i, w := range want {
		if deps[i].String() != w {
			t.Errorf("dep %d = %s, want %s", i, deps[i], w)
		}
	}
}

func TestParsePackageJSON(t *testing.T) {
	content := `{
  "name": "web",
  "dependencies": {"react": "^18.2.0", "axios": "1.6.0"},
  "devDependencies": {"vitest": "^1.0.0"}
}`
	deps := parsePackageJSON(rec("package.json", "npm", content))
	if len(deps) != 3 {
		t.Fatalf("got %d deps, want 3: %+v", len(deps), deps)
	}
	// Sorted by name for determinism.
	if deps[0].Name != "axios" || deps[1].Name != "react" || deps[2].Name != "vitest" {
		t.Errorf("wrong order: %+v", deps)
	}
	if deps[1].Version != "^18.2.0" || deps[1].Ecosystem != "npm" {
		t.Errorf("react parsed wrong: %+v", deps[1])
	}
}

func TestParsePackageJSONMalformed(t *testing.T) {
	if deps := parsePackageJSON(rec("package.json", "npm", "{not json")); deps != nil {
		t.Errorf("got %+v from malformed JSON, want nil", deps)
	}
}

func TestParseRequirements(t *testing.T) {
	content := `# pinned
flask==2.3.0
requests>=2.28  # comment
uvicorn[standard]~=0.23
-r other.txt

pydantic==2.5.1; python_version >= "3.8"
`
	deps := parseRequirements(rec("requirements.txt", "python_config", content))
	want := map[string]string{
		"flask":    "2.3.0",
		"requests": "2.28",
		"uvicorn":  "0.23",
		"pydantic": "2.5.1",
	}
	if len(deps) != len(want) {
		t.Fatalf("got %d deps, want %d: %+v", len(deps), len(want), deps)
	}
	for _, d := range deps {
		if want[d.Name] != d.Version {
			t.Errorf("%s = %q, want %q", d.Name, d.Version, want[d.Name])
		}
	}
}

func TestParsePyProject(t *testing.T) {
	content := `[project]
name = "tool"
dependencies = [
    "httpx>=0.25",
    'click==8.1.7',
]
`
	deps := parsePyProject(rec("pyproject.toml", "python_config", content))
	if len(deps) != 2 {
		t.Fatalf("got %d deps, want 2: %+v", len(deps), deps)
	}
	if deps[0].Name != "httpx" || deps[0].Version != "0.25" {
		t.Errorf("httpx parsed wrong: %+v", deps[0])
	}
	if deps[1].Name != "click" || deps[1].Version != "8.1.7" {
		t.Errorf("click parsed wrong: %+v", deps[1])
	}
}

func TestParseCargoToml(t *testing.T) {
	content := `[package]
name = "svc"

[dependencies]
serde = "1.0"
tokio = { version = "1.35", features = ["full"] }

[dev-dependencies]
criterion = "0.5"

[profile.release]
lto = true
`
	deps := parseCargoToml(rec("Cargo.toml", "cargo", content))
	want := map[string]string{"serde": "1.0", "tokio": "1.35", "criterion": "0.5"}
	if len(deps) != len(want) {
		t.Fatalf("got %d deps, want %d: %+v", len(deps), len(want), deps)
	}
	for _, d := range deps {
		if want[d.Name] != d.Version {
			t.Errorf("%s = %q, want %q", d.Name, d.Version, want[d.Name])
		}
	}
}

func TestParsePomXML(t *testing.T) {
	content := `<?xml version="1.0"?>
<project>
  <dependencies>
    <dependency>
      <groupId>org.slf4j</groupId>
      <artifactId>slf4j-api</artifactId>
      <version>2.0.9</version>
    </dependency>
  </dependencies>
</project>`
	deps := parsePomXML(rec("pom.xml", "xml", content))
	if len(deps) != 1 {
		t.Fatalf("got %d deps, want 1: %+v", len(deps), deps)
	}
	if deps[0].Name != "org.slf4j:slf4j-api" || deps[0].Version != "2.0.9" {
		t.Errorf("parsed wrong: %+v", deps[0])
	}
}

func TestParseBuildGradle(t *testing.T) {
	content := `dependencies {
    implementation 'com.google.guava:guava:32.1.3-jre'
    testImplementation("org.junit.jupiter:junit-jupiter:5.10.0")
}
`
	deps := parseBuildGradle(rec("build.gradle", "unknown", content))
	if len(deps) != 2 {
		t.Fatalf("got %d deps, want 2: %+v", len(deps), deps)
	}
	if deps[0].Name != "com.google.guava:guava" || deps[0].Version != "32.1.3-jre" {
		t.Errorf("guava parsed wrong: %+v", deps[0])
	}
}

func TestParseGemfile(t *testing.T) {
	content := `source "https://rubygems.org"

gem "rails", "7.1.2"
gem 'puma'
`
	deps := parseGemfile(rec("Gemfile", "ruby", content))
	if len(deps) != 2 {
		t.Fatalf("got %d deps, want 2: %+v", len(deps), deps)
	}
	if deps[0].Name != "rails" || deps[0].Version != "7.1.2" {
		t.Errorf("rails parsed wrong: %+v", deps[0])
	}
	if deps[1].Name != "puma" || deps[1].Version != "" {
		t.Errorf("puma parsed wrong: %+v", deps[1])
	}
}

func TestDependenciesExtract(t *testing.T) {
	snap := snapOf(
		rec("go.mod", "go_mod", sampleGoMod),
		rec("go.sum", "go_mod", "github.com/spf13/cobra v1.8.1 h1:...\n"),
	)
	signals, err := NewDependencies().Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := oneValue(t, signals, KeyManifest); got != "go" {
		t.Errorf("manifest = %s, want go", got)
	}
	if deps := byKey(signals, KeyDependency); len(deps) != 3 {
		t.Errorf("got %d dependency signals, want 3", len(deps))
	}
	if got := oneValue(t, signals, KeyDependencyCount); got != "3" {
		t.Errorf("dependency count = %s, want 3", got)
	}
	lock := byKey(signals, KeyLockfile)
	if len(lock) != 1 || lock[0].Value != "true" {
		t.Fatalf("lockfile signal wrong: %+v", lock)
	}
	if len(lock[0].Evidence) == 0 || lock[0].Evidence[0].Path != "go.sum" {
		t.Errorf("lockfile evidence wrong: %+v", lock[0].Evidence)
	}
}

func TestDependenciesMissingLockfile(t *testing.T) {
	snap := snapOf(rec("package.json", "npm", `{"dependencies":{"react":"18.0.0"}}`))
	signals, err := NewDependencies().Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lock := byKey(signals, KeyLockfile)
	if len(lock) != 1 || lock[0].Value != "false" {
		t.Fatalf("lockfile signal wrong: %+v", lock)
	}
	if lock[0].Confidence >= 1.0 {
		t.Errorf("absence confidence = %v, want < 1.0", lock[0].Confidence)
	}
}

func TestDependenciesNoManifests(t *testing.T) {
	snap := snapOf(rec("src/app.py", "python", "print('hi')\n"))
	signals, err := NewDependencies().Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("got %d signals with no manifests, want 0: %+v", len(signals), signals)
	}
}

func TestDependenciesSkipsVendored(t *testing.T) {
	snap := snapOf(
		rec("node_modules/react/package.json", "npm", `{"dependencies":{"x":"1"}}`),
		rec("vendor/modules.txt", "text", ""),
	)
	signals, err := NewDependencies().Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("vendored manifest produced signals: %+v", signals)
	}
}
