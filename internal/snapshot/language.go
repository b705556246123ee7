package snapshot

import (
	"path/filepath"
	"strings"
)

var extLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".jsx":   "javascript",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".rb":    "ruby",
	".php":   "php",
	".c":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".h":     "c",
	".hpp":   "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".scala": "scala",
	".clj":   "clojure",
	".ex":    "elixir",
	".exs":   "elixir",
	".erl":   "erlang",
	".hs":    "haskell",
	".ml":    "ocaml",
	".lua":   "lua",
	".r":     "r",
	".sql":   "sql",
	".sh":    "shell",
	".bash":  "shell",
	".zsh":   "shell",
	".ps1":   "powershell",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".xml":   "xml",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".sass":  "sass",
	".less":  "less",
	".md":    "markdown",
	".rst":   "rst",
	".txt":   "text",
	".toml":  "toml",
	".ini":   "ini",
	".cfg":   "config",
	".conf":  "config",
}

// detectLanguage determines the language of a file from extension and name.
// The returned confidence reflects how the detection happened: special
// filenames and extensions are near-certain, everything else is unknown until
// shebang sniffing gets a chance.
func detectLanguage(relPath string) (string, float64) {
	ext := strings.ToLower(filepath.Ext(relPath))
	if lang, ok := extLanguages[ext]; ok {
		return lang, 0.9
	}

	// Check for special files
	base := filepath.Base(relPath)
	switch base {
	case "Dockerfile", "dockerfile":
		return "dockerfile", 0.95
	case "Makefile", "makefile", "GNUmakefile":
		return "makefile", 0.95
	case "CMakeLists.txt":
		return "cmake", 0.95
	case "go.mod", "go.sum":
		return "go_mod", 0.95
	case "package.json":
		return "npm", 0.95
	case "Cargo.toml":
		return "cargo", 0.95
	case "requirements.txt", "setup.py", "pyproject.toml":
		return "python_config", 0.95
	case "Jenkinsfile":
		return "groovy", 0.95
	case "Gemfile", "Rakefile":
		return "ruby", 0.95
	}

	return "unknown", 0
}

// sniffShebang inspects the first line of content for an interpreter
// directive. Returns ("", 0) when nothing is recognized.
func sniffShebang(content string) (string, float64) {
	if !strings.HasPrefix(content, "#!") {
		return "", 0
	}
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	switch {
	case strings.Contains(line, "python"):
		return "python", 0.7
	case strings.Contains(line, "bash"), strings.Contains(line, "/sh"),
		strings.Contains(line, "env sh"):
		return "shell", 0.7
	case strings.Contains(line, "node"):
		return "javascript", 0.7
	case strings.Contains(line, "ruby"):
		return "ruby", 0.7
	case strings.Contains(line, "perl"):
		return "perl", 0.7
	}
	return "", 0
}

// IsTestFile determines if a relative path is a test file.
func IsTestFile(relPath string) bool {
	base := filepath.Base(relPath)
	dir := filepath.Dir(relPath)

	// Go tests
	if strings.HasSuffix(relPath, "_test.go") {
		return true
	}

	// Python tests
	if strings.HasSuffix(relPath, "_test.py") || strings.HasPrefix(base, "test_") {
		return true
	}

	dirParts := strings.Split(filepath.ToSlash(dir), "/")
	inTestDir := false
	for _, part := range dirParts {
		if part == "tests" || part == "test" || part == "__tests__" {
			inTestDir = true
			break
		}
	}

	if inTestDir {
		ext := filepath.Ext(relPath)
		if ext == ".py" || ext == ".js" || ext == ".ts" || ext == ".tsx" || ext == ".rs" || ext == ".go" {
			return true
		}
	}

	// JavaScript/TypeScript tests
	if strings.HasSuffix(relPath, ".test.js") || strings.HasSuffix(relPath, ".test.ts") ||
		strings.HasSuffix(relPath, ".spec.js") || strings.HasSuffix(relPath, ".spec.ts") ||
		strings.HasSuffix(relPath, ".test.tsx") || strings.HasSuffix(relPath, ".spec.tsx") {
		return true
	}

	// Java tests
	if strings.HasSuffix(relPath, "Test.java") || strings.HasSuffix(relPath, "Tests.java") {
		return true
	}

	// Rust tests
	if strings.Contains(dir, "tests") && strings.HasSuffix(relPath, ".rs") {
		return true
	}

	return false
}
