package builtin

import (
	"context"

	"assay/internal/types"
)

// sourceLanguages marks the languages whose files count as program source for
// structure and complexity purposes. Markup, data, and config languages are
// deliberately absent.
var sourceLanguages = map[string]bool{
	"go":         true,
	"python":     true,
	"javascript": true,
	"typescript": true,
	"rust":       true,
	"java":       true,
	"kotlin":     true,
	"ruby":       true,
	"php":        true,
	"c":          true,
	"cpp":        true,
	"csharp":     true,
	"swift":      true,
	"scala":      true,
	"clojure":    true,
	"elixir":     true,
	"erlang":     true,
	"haskell":    true,
	"ocaml":      true,
	"lua":        true,
	"r":          true,
	"shell":      true,
	"powershell": true,
	"perl":       true,
	"groovy":     true,
}

// lineCommentMarkers maps a language to its line comment prefix. Used for the
// comment density estimate; block comments are approximated, not parsed.
var lineCommentMarkers = map[string]string{
	"go":         "//",
	"javascript": "//",
	"typescript": "//",
	"rust":       "//",
	"java":       "//",
	"kotlin":     "//",
	"c":          "//",
	"cpp":        "//",
	"csharp":     "//",
	"swift":      "//",
	"scala":      "//",
	"php":        "//",
	"groovy":     "//",
	"python":     "#",
	"ruby":       "#",
	"shell":      "#",
	"perl":       "#",
	"r":          "#",
	"elixir":     "#",
	"powershell": "#",
	"lua":        "--",
	"haskell":    "--",
}

// isSource reports whether a record is a readable source file.
func isSource(f types.FileRecord) bool {
	return f.IsText && f.ReadErr == "" && sourceLanguages[f.Language]
}

// checkEvery is how many files an extractor processes between context checks.
const checkEvery = 64

// cancelled polls ctx.Err on a stride so tight file loops stay interruptible
// without a branch per file.
func cancelled(ctx context.Context, i int) error {
	if i%checkEvery == 0 {
		return ctx.Err()
	}
	return nil
}
