package builtin

import (
	"context"
	"strconv"
	"testing"
)

func TestDocumentationFullSet(t *testing.T) {
	readme := `# Project

Overview text.

## Install

## Usage
`
	snap := snapOf(
		rec("README.md", "markdown", readme),
		rec("LICENSE", "unknown", "MIT License\n"),
		rec("CONTRIBUTING.md", "markdown", "PRs welcome\n"),
		rec("docs/guide.md", "markdown", "guide\n"),
		rec("docs/api.md", "markdown", "api\n"),
	)

	signals, err := NewDocumentation().Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := oneValue(t, signals, KeyHasReadme); got != "true" {
		t.Errorf("has_readme = %s, want true", got)
	}
	if got := oneValue(t, signals, KeyReadmeHeadings); got != "3" {
		t.Errorf("readme headings = %s, want 3", got)
	}
	if got := oneValue(t, signals, KeyHasLicense); got != "true" {
		t.Errorf("has_license = %s, want true", got)
	}
	if got := oneValue(t, signals, KeyHasContributing); got != "true" {
		t.Errorf("has_contributing = %s, want true", got)
	}
	if got := oneValue(t, signals, KeyHasDocsDir); got != "true" {
		t.Errorf("has_docs_dir = %s, want true", got)
	}
	if got := oneValue(t, signals, KeyDocsFileCount); got != "2" {
		t.Errorf("docs file count = %s, want 2", got)
	}
}

func TestDocumentationAbsent(t *testing.T) {
	snap := snapOf(rec("main.go", "go", goMain))
	signals, err := NewDocumentation().Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{KeyHasReadme, KeyHasLicense, KeyHasContributing, KeyHasChangelog, KeyHasDocsDir} {
		if got := oneValue(t, signals, key); got != "false" {
			t.Errorf("%s = %s, want false", key, got)
		}
	}
	if got := byKey(signals, KeyReadmeLines); len(got) != 0 {
		t.Errorf("readme metrics emitted without a readme: %+v", got)
	}
}

func TestDocumentationNestedReadmeDoesNotCount(t *testing.T) {
	snap := snapOf(rec("pkg/sub/README.md", "markdown", "# Sub\n"))
	signals, err := NewDocumentation().Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := oneValue(t, signals, KeyHasReadme); got != "false" {
		t.Errorf("has_readme = %s, want false for nested readme", got)
	}
}

func TestDocumentationLicenseSpellings(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"plain", "LICENSE"},
		{"markdown", "LICENSE.md"},
		{"british", "LICENCE"},
		{"gnu style", "COPYING"},
		{"lowercase", "license.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapOf(rec(tt.file, "unknown", "terms\n"))
			signals, err := NewDocumentation().Extract(context.Background(), snap)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := oneValue(t, signals, KeyHasLicense); got != "true" {
				t.Errorf("has_license = %s, want true for %s", got, tt.file)
			}
		})
	}
}

func TestCommentDensity(t *testing.T) {
	src := `package svc

// Leading comment.
// Another comment.
var A = 1
var B = 2
`
	snap := snapOf(rec("svc/svc.go", "go", src))
	signals, err := NewDocumentation().Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	density, err := strconv.ParseFloat(oneValue(t, signals, KeyCommentDensity), 64)
	if err != nil {
		t.Fatalf("density not a float: %v", err)
	}
	// 2 comment lines out of 5 non-blank lines.
	if density < 0.39 || density > 0.41 {
		t.Errorf("density = %v, want 0.4", density)
	}
}

func TestCountHeadings(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"empty", "", 0},
		{"atx", "# One\ntext\n## Two\n", 2},
		{"setext", "Title\n=====\n\nSection\n-------\n", 2},
		{"horizontal rule alone", "text\n\n---\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countHeadings(tt.content); got != tt.want {
				t.Errorf("countHeadings() = %d, want %d", got, tt.want)
			}
		})
	}
}
