// Package params builds the immutable parameter structures a spreading
// engine consumes: population structure, epidemic rates with their live
// compartment grids, the intervention schedule and vaccination settings.
// Builders are variant-aware and fail fast on incomplete inputs.
package params

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/Epi-Sim/episim/internal/config"
	"github.com/Epi-Sim/episim/internal/tabular"
)

// MissingParameterError reports a rate or vector that is neither given
// explicitly nor derivable from other config fields.
type MissingParameterError struct {
	Key string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Key)
}

// Edge is one directed cross-patch mobility edge. Self-loops never
// appear here; BuildPopulation eliminates them.
type Edge struct {
	Origin      int
	Destination int
	Weight      float64
}

// Population is the full demographic and geographic structure of a run.
// Built once per run and immutable thereafter.
type Population struct {
	G int
	M int

	AgeLabels []string
	PatchIDs  []string

	// Counts is the rounded non-negative population matrix, indexed
	// Counts[g][m].
	Counts [][]float64

	Area []float64

	Contacts [][]float64
	KAvg     []float64
	KHome    []float64
	KWork    []float64
	Mobility []float64

	Xi    float64
	Sigma float64

	Edges []Edge
}

// Total returns the population count at (age g, patch m).
func (p *Population) Total(g, m int) float64 { return p.Counts[g][m] }

// PatchTotal returns the summed population of patch m across ages.
func (p *Population) PatchTotal(m int) float64 {
	var sum float64
	for g := 0; g < p.G; g++ {
		sum += p.Counts[g][m]
	}
	return sum
}

func checkAgeVector(name string, v []float64, g int) error {
	if v == nil {
		return &MissingParameterError{Key: name}
	}
	if len(v) != g {
		return fmt.Errorf("parameter %q has length %d, want %d", name, len(v), g)
	}
	return nil
}

// BuildPopulation converts the validated config plus loaded tables into
// a Population. The mobility edge list is cleaned of self-loops: an edge
// from a patch to itself carries no cross-patch flow, and its weight is
// dropped outright rather than folded into a retention term. The
// stay-at-home share is already carried by pᵍ.
func BuildPopulation(log *slog.Logger, cfg *config.Config, metapop *tabular.Metapopulation, mobility *tabular.Mobility) (*Population, error) {
	labels := cfg.Population.GLabels
	if len(labels) == 0 {
		return nil, &MissingParameterError{Key: "population_params.G_labels"}
	}
	g := len(labels)
	m := metapop.Patches()

	if len(cfg.Population.Contacts) != g {
		return nil, fmt.Errorf("contact matrix C has %d rows, want %d", len(cfg.Population.Contacts), g)
	}
	for i, row := range cfg.Population.Contacts {
		if len(row) != g {
			return nil, fmt.Errorf("contact matrix C row %d has %d entries, want %d", i, len(row), g)
		}
	}
	for _, check := range []struct {
		name string
		v    []float64
	}{
		{"population_params.kᵍ", cfg.Population.KAvg},
		{"population_params.kᵍ_h", cfg.Population.KHome},
		{"population_params.kᵍ_w", cfg.Population.KWork},
		{"population_params.pᵍ", cfg.Population.Mobility},
	} {
		if err := checkAgeVector(check.name, check.v, g); err != nil {
			return nil, err
		}
	}

	// Round raw per-age populations to non-negative integer counts.
	counts := make([][]float64, g)
	for gi := range counts {
		counts[gi] = make([]float64, m)
		for mi := 0; mi < m; mi++ {
			c := math.Round(metapop.Population[mi][gi])
			if c < 0 {
				c = 0
			}
			counts[gi][mi] = c
		}
	}

	// Per-patch sums should reproduce the table's declared totals within
	// rounding; a mismatch is suspicious input, not a fatal error.
	for mi := 0; mi < m; mi++ {
		var sum float64
		for gi := 0; gi < g; gi++ {
			sum += counts[gi][mi]
		}
		if math.Abs(sum-metapop.Total[mi]) > 0.5*float64(g) {
			log.Warn("patch population does not match declared total",
				"patch", metapop.IDs[mi], "sum", sum, "total", metapop.Total[mi])
		}
	}

	var edges []Edge
	dropped := 0
	for _, e := range mobility.Edges {
		if e.Origin >= m || e.Destination >= m {
			return nil, fmt.Errorf("mobility edge %d->%d references patch beyond table size %d", e.Origin, e.Destination, m)
		}
		if e.Origin == e.Destination {
			dropped++
			continue
		}
		edges = append(edges, Edge{Origin: e.Origin, Destination: e.Destination, Weight: e.Weight})
	}
	if dropped > 0 {
		log.Debug("dropped mobility self-loops", "count", dropped)
	}

	return &Population{
		G:         g,
		M:         m,
		AgeLabels: labels,
		PatchIDs:  metapop.IDs,
		Counts:    counts,
		Area:      metapop.Area,
		Contacts:  cfg.Population.Contacts,
		KAvg:      cfg.Population.KAvg,
		KHome:     cfg.Population.KHome,
		KWork:     cfg.Population.KWork,
		Mobility:  cfg.Population.Mobility,
		Xi:        cfg.Population.Xi,
		Sigma:     cfg.Population.Sigma,
		Edges:     edges,
	}, nil
}
