// Package builtin provides the built-in signal extractors, one per
// assessment axis. Each extractor is independent and consumes only the
// shared read-only Snapshot; none shells out or touches the network.
package builtin

import (
	"assay/internal/extractor"
)

// RegisterAll registers the built-in extractors with the given registry in
// the canonical axis order. Registration order doubles as the deterministic
// tie-break priority during aggregation, so the order here is part of the
// observable behavior.
func RegisterAll(registry *extractor.Registry) error {
	all := []extractor.Extractor{
		NewStructure(),
		NewDependencies(),
		NewCICD(),
		NewSecurity(),
		NewComplexity(),
		NewDocumentation(),
	}

	for _, e := range all {
		if err := registry.Register(e); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry preloaded with every built-in extractor.
func NewRegistry() *extractor.Registry {
	reg := extractor.NewRegistry()
	if err := RegisterAll(reg); err != nil {
		// The built-in set has unique names and valid axes; this cannot
		// fail on a fresh registry.
		panic(err)
	}
	return reg
}
