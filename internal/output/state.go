// Package output serializes simulation results: full compartment time
// series, single-timestep snapshots and derived epidemiological
// observables, in either array-file format. All three artifacts operate
// on the same CompartmentState view, which re-expresses the engine's
// density grids as absolute counts.
package output

import (
	"fmt"

	"github.com/Epi-Sim/episim/internal/arrayfile"
	"github.com/Epi-Sim/episim/internal/engine"
	"github.com/Epi-Sim/episim/internal/params"
)

// CompartmentState is a read-only view over a finished run: population
// structure, compartment densities and the calendar dates of each time
// step. Every serialized artifact carries the full 11-label compartment
// set; labels the variant does not integrate (CH under Basic) read as
// zero counts.
type CompartmentState struct {
	Pop   *params.Population
	Epi   *params.Epidemic
	Dates []string
}

// NewCompartmentState validates that the date axis matches the horizon.
func NewCompartmentState(pop *params.Population, epi *params.Epidemic, dates []string) (*CompartmentState, error) {
	if len(dates) != epi.T {
		return nil, fmt.Errorf("date axis has %d entries, horizon is %d", len(dates), epi.T)
	}
	return &CompartmentState{Pop: pop, Epi: epi, Dates: dates}, nil
}

// Variant returns the engine variant that produced the state.
func (s *CompartmentState) Variant() engine.Variant { return s.Epi.Variant }

// Count returns the absolute count for a compartment at
// (age, patch, stratum, time): density times local population.
// Compartments the variant does not integrate count as zero.
func (s *CompartmentState) Count(name string, g, m, v, t int) float64 {
	gr := s.Epi.Grid(name)
	if gr == nil {
		return 0
	}
	return gr.At(g, m, v, t) * s.Pop.Total(g, m)
}

// DensitySummed returns the compartment density at (age, patch, time)
// summed across vaccination strata.
func (s *CompartmentState) DensitySummed(name string, g, m, t int) float64 {
	gr := s.Epi.Grid(name)
	if gr == nil {
		return 0
	}
	var sum float64
	for v := 0; v < gr.V; v++ {
		sum += gr.At(g, m, v, t)
	}
	return sum
}

// CountSummed returns the absolute count at (age, patch, time) summed
// across vaccination strata.
func (s *CompartmentState) CountSummed(name string, g, m, t int) float64 {
	return s.DensitySummed(name, g, m, t) * s.Pop.Total(g, m)
}

// fullVariable flattens one compartment's counts across the whole run,
// dims (G, M, T) or (G, M, T, V).
func (s *CompartmentState) fullVariable(name string) arrayfile.Variable {
	pop, epi := s.Pop, s.Epi
	nv := epi.Variant.VaccinationStates()

	dims := []string{"G", "M", "T"}
	shape := []int{pop.G, pop.M, epi.T}
	if epi.Variant.HasVaccination() {
		dims = append(dims, "V")
		shape = append(shape, nv)
	}

	values := make([]float64, pop.G*pop.M*epi.T*nv)
	i := 0
	for g := 0; g < pop.G; g++ {
		for m := 0; m < pop.M; m++ {
			for t := 0; t < epi.T; t++ {
				for v := 0; v < nv; v++ {
					values[i] = s.Count(name, g, m, v, t)
					i++
				}
			}
		}
	}
	return arrayfile.Variable{Name: name, Dims: dims, Shape: shape, Values: values}
}

// snapshotVariable flattens every compartment's counts at a single time
// index into one array named "data", dims (G, M, [V], epi_states) with
// all 11 compartment labels. This is the same contract the
// initial-condition resolver reads, so a snapshot can seed a later run.
func (s *CompartmentState) snapshotVariable(t int) arrayfile.Variable {
	pop, epi := s.Pop, s.Epi
	nv := epi.Variant.VaccinationStates()
	nc := len(engine.OutputCompartments)

	dims := []string{"G", "M", "epi_states"}
	shape := []int{pop.G, pop.M, nc}
	if epi.Variant.HasVaccination() {
		dims = []string{"G", "M", "V", "epi_states"}
		shape = []int{pop.G, pop.M, nv, nc}
	}

	values := make([]float64, pop.G*pop.M*nv*nc)
	i := 0
	for g := 0; g < pop.G; g++ {
		for m := 0; m < pop.M; m++ {
			for v := 0; v < nv; v++ {
				for _, name := range engine.OutputCompartments {
					values[i] = s.Count(name, g, m, v, t)
					i++
				}
			}
		}
	}
	return arrayfile.Variable{Name: "data", Dims: dims, Shape: shape, Values: values}
}

// coords returns the coordinate labels shared by the artifacts.
func (s *CompartmentState) coords(withTime bool) map[string][]string {
	coords := map[string][]string{
		"G": s.Pop.AgeLabels,
		"M": s.Pop.PatchIDs,
	}
	if withTime {
		coords["T"] = s.Dates
	}
	if s.Epi.Variant.HasVaccination() {
		coords["V"] = engine.VaccinationLabels
	}
	return coords
}
