// Package initial synthesizes the compartment state at t=0, either from
// a pre-built array file (counts, converted to densities) or from a seed
// table with a fixed age apportionment.
package initial

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/Epi-Sim/episim/internal/arrayfile"
	"github.com/Epi-Sim/episim/internal/config"
	"github.com/Epi-Sim/episim/internal/engine"
	"github.com/Epi-Sim/episim/internal/params"
	"github.com/Epi-Sim/episim/internal/tabular"
)

// ShapeError reports an initial-condition array whose dimensions do not
// match the (G, M, [V], Compartments) contract of the variant.
type ShapeError struct {
	Got  []int
	Want string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("initial condition has shape %v, want %s", e.Got, e.Want)
}

// Density converts a count into a fraction of the local population.
/// Zero-population cells produce density 0, never NaN: division by zero
// here is a data condition, not an error.
func Density(count, population float64) float64 {
	if population == 0 {
		return 0
	}
	d := count / population
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d
}

// SeedFractions returns the per-age apportionment of seed counts. The
// config may override the default split; overrides must have length G
// and sum to 1.
func SeedFractions(cfg *config.Config, g int) ([]float64, error) {
	fractions := cfg.Data.SeedAgeFractions
	if fractions == nil {
		if g != len(config.DefaultSeedAgeFractions) {
			return nil, fmt.Errorf("default seed age fractions assume %d age groups, config has %d; set data.seed_age_fractions",
				len(config.DefaultSeedAgeFractions), g)
		}
		return config.DefaultSeedAgeFractions, nil
	}
	if len(fractions) != g {
		return nil, fmt.Errorf("data.seed_age_fractions has length %d, want %d", len(fractions), g)
	}
	var sum float64
	for _, f := range fractions {
		sum += f
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return nil, fmt.Errorf("data.seed_age_fractions sum to %v, want 1", sum)
	}
	return fractions, nil
}

// Resolve fills the t=0 plane of the epidemic compartment grids. When an
// initial-condition file is available (the explicit override path wins
// over the config's data section) it is read and converted to densities;
// otherwise the state is synthesized from the seed table.
func Resolve(log *slog.Logger, cfg *config.Config, variant engine.Variant, dataDir, overridePath string, pop *params.Population, epi *params.Epidemic) error {
	path := overridePath
	if path == "" && cfg.Data.InitialConditionFile != "" {
		path = filepath.Join(dataDir, cfg.Data.InitialConditionFile)
	}

	if path != "" {
		format := arrayfile.Resolve(cfg.Simulation.InitFormat, log)
		log.Info("loading initial conditions", "path", path, "format", string(format))
		ds, err := format.Read(path)
		if err != nil {
			return fmt.Errorf("loading initial conditions: %w", err)
		}
		return FromDataset(ds, variant, pop, epi)
	}

	if cfg.Data.SeedsFile == "" {
		return &params.MissingParameterError{Key: "data.seeds_filename (or an initial condition file)"}
	}
	seeds, err := tabular.LoadSeeds(filepath.Join(dataDir, cfg.Data.SeedsFile))
	if err != nil {
		return err
	}
	fractions, err := SeedFractions(cfg, pop.G)
	if err != nil {
		return err
	}
	log.Info("seeding initial conditions", "patches", len(seeds))
	return FromSeeds(variant, seeds, fractions, pop, epi)
}

// FromDataset applies an initial-condition array (counts, variable
// "data", dims (G, M, [V], Compartments)) to the t=0 plane. The Basic
// variant accepts either 10 compartments or all 11 with a trailing CH
// plane, which it ignores.
func FromDataset(ds *arrayfile.Dataset, variant engine.Variant, pop *params.Population, epi *params.Epidemic) error {
	v := ds.Var("data")
	if v == nil {
		if len(ds.Vars) != 1 {
			return fmt.Errorf("initial condition file must hold a single variable named %q", "data")
		}
		v = &ds.Vars[0]
	}

	nv := variant.VaccinationStates()
	wantDims := 3
	if variant.HasVaccination() {
		wantDims = 4
	}
	want := fmt.Sprintf("(G=%d, M=%d", pop.G, pop.M)
	if variant.HasVaccination() {
		want += fmt.Sprintf(", V=%d", nv)
	}
	want += ", C)"

	shape := v.Shape
	if len(shape) != wantDims {
		return &ShapeError{Got: shape, Want: want}
	}
	nc := shape[len(shape)-1]
	okC := nc == len(engine.OutputCompartments) ||
		(!variant.HasVaccination() && nc == len(variant.Compartments()))
	if shape[0] != pop.G || shape[1] != pop.M || !okC {
		return &ShapeError{Got: shape, Want: want}
	}
	if variant.HasVaccination() && shape[2] != nv {
		return &ShapeError{Got: shape, Want: want}
	}

	names := variant.Compartments()
	for g := 0; g < pop.G; g++ {
		for m := 0; m < pop.M; m++ {
			n := pop.Total(g, m)
			for vi := 0; vi < nv; vi++ {
				for c, name := range names {
					if c >= nc {
						continue
					}
					var idx int
					if variant.HasVaccination() {
						idx = ((g*pop.M+m)*nv+vi)*nc + c
					} else {
						idx = (g*pop.M+m)*nc + c
					}
					epi.Grid(name).Set(g, m, vi, 0, Density(v.Values[idx], n))
				}
			}
		}
	}
	return nil
}

// FromSeeds synthesizes t=0 from the seed table: fraction[g]·seed
// individuals enter the Asymptomatic compartment at each seeded patch,
// the remainder of every (age, patch) population is Susceptible. A seed
// count exceeding the local population is capped at it, so densities
// stay within [0, 1]. The Vaccination variant places everything in the
// non-vaccinated stratum.
func FromSeeds(variant engine.Variant, seeds []tabular.Seed, fractions []float64, pop *params.Population, epi *params.Epidemic) error {
	seedAt := make(map[int]float64, len(seeds))
	for _, s := range seeds {
		if s.Patch >= pop.M {
			return fmt.Errorf("seed references patch %d beyond patch count %d", s.Patch, pop.M)
		}
		seedAt[s.Patch] += s.Count
	}

	s := epi.Grid("S")
	a := epi.Grid("A")
	for g := 0; g < pop.G; g++ {
		for m := 0; m < pop.M; m++ {
			n := pop.Total(g, m)
			seeded := math.Min(fractions[g]*seedAt[m], n)
			a.Set(g, m, 0, 0, Density(seeded, n))
			s.Set(g, m, 0, 0, Density(n-seeded, n))
		}
	}
	return nil
}

// BuildDataset renders a freshly seeded state as a counts array suitable
// for writing with the array-file adapters, dims (G, M, [V],
// Compartments) with all 11 compartment labels.
func BuildDataset(variant engine.Variant, seeds []tabular.Seed, fractions []float64, pop *params.Population) (*arrayfile.Dataset, error) {
	seedAt := make(map[int]float64, len(seeds))
	for _, s := range seeds {
		if s.Patch >= pop.M {
			return nil, fmt.Errorf("seed references patch %d beyond patch count %d", s.Patch, pop.M)
		}
		seedAt[s.Patch] += s.Count
	}

	nc := len(engine.OutputCompartments)
	nv := variant.VaccinationStates()
	dims := []string{"G", "M", "epi_states"}
	shape := []int{pop.G, pop.M, nc}
	if variant.HasVaccination() {
		dims = []string{"G", "M", "V", "epi_states"}
		shape = []int{pop.G, pop.M, nv, nc}
	}

	values := make([]float64, pop.G*pop.M*nv*nc)
	for g := 0; g < pop.G; g++ {
		for m := 0; m < pop.M; m++ {
			n := pop.Total(g, m)
			seeded := math.Min(fractions[g]*seedAt[m], n)
			base := ((g*pop.M + m) * nv) * nc // stratum 0 (NV)
			values[base+0] = n - seeded       // S
			values[base+2] = seeded           // A
		}
	}

	coords := map[string][]string{
		"G":          pop.AgeLabels,
		"M":          pop.PatchIDs,
		"epi_states": engine.OutputCompartments,
	}
	if variant.HasVaccination() {
		coords["V"] = engine.VaccinationLabels
	}

	return &arrayfile.Dataset{
		Attrs:  map[string]string{"engine": variant.ID()},
		Coords: coords,
		Vars: []arrayfile.Variable{{
			Name:   "data",
			Dims:   dims,
			Shape:  shape,
			Values: values,
		}},
	}, nil
}
