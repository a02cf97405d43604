package config

import (
	"fmt"

	"github.com/Epi-Sim/episim/internal/engine"
)

// SchemaError reports a top-level section required by the resolved engine
// variant that is absent from the configuration document.
type SchemaError struct {
	Section string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("config is missing required section %q", e.Section)
}

// Validate checks that every section required by the variant is present.
// It is a pure structural check: numeric ranges and vector lengths are
// the builders' concern. Validate must run before any input file is
// touched so malformed configs fail without filesystem side effects.
func (c *Config) Validate(v engine.Variant) error {
	for _, section := range v.RequiredSections() {
		if !c.HasSection(section) {
			return &SchemaError{Section: section}
		}
	}
	return nil
}

// ResolveEngine resolves the configured engine identifier and validates
// the document against the resulting variant in one call.
func (c *Config) ResolveEngine() (engine.Variant, error) {
	variant, err := engine.Resolve(c.Simulation.Engine)
	if err != nil {
		return 0, err
	}
	if err := c.Validate(variant); err != nil {
		return 0, err
	}
	return variant, nil
}
