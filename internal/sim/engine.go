// Package sim drives a spreading engine across the simulation horizon
// and orchestrates the full pipeline around it: validate, load, build,
// resolve initial conditions, run, serialize. The engine itself is an
// opaque collaborator behind the Engine interface; the driver's only
// obligations are correctly shaped inputs and treating any engine
// failure as fatal for the run.
package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Epi-Sim/episim/internal/engine"
	"github.com/Epi-Sim/episim/internal/params"
)

// Engine advances the compartment density grids in place across all T
// time steps. Implementations must leave t=0 untouched and fill
// t=1..T-1. vac is nil for variants without vaccination.
type Engine interface {
	Run(ctx context.Context, pop *params.Population, epi *params.Epidemic, npi *params.NPISchedule, vac *params.VaccinationParams) error
}

// EngineError wraps any failure propagated from a spreading engine.
// There is no retry and no partial-result recovery.
type EngineError struct {
	Err error
}

func (e *EngineError) Error() string { return fmt.Sprintf("spreading engine: %v", e.Err) }
func (e *EngineError) Unwrap() error { return e.Err }

// For returns the built-in engine for a variant. External engines can
// bypass this through Options.Engine. The logger receives per-timestep
// progress at trace level.
func For(v engine.Variant, log *slog.Logger) Engine {
	return &referenceEngine{variant: v, log: log}
}

// Hold is a diagnostic engine that copies the initial state across the
// whole horizon without any transitions. It exists so serialization and
// pipeline behavior can be exercised under exact mass conservation.
type Hold struct{}

// Run copies the t=0 plane of every compartment grid to all later steps.
func (Hold) Run(ctx context.Context, pop *params.Population, epi *params.Epidemic, npi *params.NPISchedule, vac *params.VaccinationParams) error {
	for _, name := range epi.Names {
		gr := epi.Grid(name)
		for g := 0; g < gr.G; g++ {
			for m := 0; m < gr.M; m++ {
				for v := 0; v < gr.V; v++ {
					initial := gr.At(g, m, v, 0)
					for t := 1; t < gr.T; t++ {
						gr.Set(g, m, v, t, initial)
					}
				}
			}
		}
	}
	return ctx.Err()
}
