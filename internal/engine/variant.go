// Package engine defines the closed set of spreading-engine variants and
// the structural contract each one imposes on the rest of the pipeline:
// which compartments are integrated, whether a vaccination-status axis is
// present, and which configuration sections are mandatory.
package engine

import "fmt"

// Variant identifies one of the supported spreading-engine variants.
type Variant int

const (
	// Basic is the unstratified MMCA engine: ten integrated compartments,
	// no vaccination axis.
	Basic Variant = iota

	// Vaccination adds the confined compartment and a three-way
	// vaccination-status axis.
	Vaccination
)

// Engine identifiers accepted in the simulation.engine config field.
const (
	IDBasic       = "MMCACovid19"
	IDVaccination = "MMCACovid19Vac"
)

// OutputCompartments is the fixed label set every serialized artifact
// carries, regardless of which compartments a variant integrates.
var OutputCompartments = []string{"S", "E", "A", "I", "PH", "PD", "HR", "HD", "R", "D", "CH"}

// VaccinationLabels are the coordinate labels of the vaccination-status
// axis: non-vaccinated, vaccinated, post-vaccination.
var VaccinationLabels = []string{"NV", "V", "PV"}

// UnknownEngineError reports an engine identifier outside the closed set.
type UnknownEngineError struct {
	ID string
}

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("invalid backend engine %q (valid: %s, %s)", e.ID, IDBasic, IDVaccination)
}

// Resolve maps an engine identifier string to its Variant.
func Resolve(id string) (Variant, error) {
	switch id {
	case IDBasic:
		return Basic, nil
	case IDVaccination:
		return Vaccination, nil
	default:
		return 0, &UnknownEngineError{ID: id}
	}
}

// ID returns the config-facing identifier of the variant.
func (v Variant) ID() string {
	if v == Vaccination {
		return IDVaccination
	}
	return IDBasic
}

func (v Variant) String() string { return v.ID() }

// HasVaccination reports whether the variant carries a vaccination-status
// axis in its compartment arrays.
func (v Variant) HasVaccination() bool { return v == Vaccination }

// VaccinationStates returns the size of the vaccination axis: 1 for the
// Basic variant (a single implicit stratum), 3 for Vaccination.
func (v Variant) VaccinationStates() int {
	if v == Vaccination {
		return len(VaccinationLabels)
	}
	return 1
}

// Compartments returns the compartments the variant actually integrates.
// The Basic variant omits CH; its serialized CH plane is derived as zero.
func (v Variant) Compartments() []string {
	if v == Vaccination {
		return OutputCompartments
	}
	return OutputCompartments[:10]
}

// RequiredSections lists the top-level config sections that must be
// present for this variant. Validation checks presence only.
func (v Variant) RequiredSections() []string {
	sections := []string{"simulation", "data", "epidemic_params", "population_params", "NPI"}
	if v == Vaccination {
		sections = append(sections, "vaccination")
	}
	return sections
}
