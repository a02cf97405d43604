package sim

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Epi-Sim/episim/internal/arrayfile"
	"github.com/Epi-Sim/episim/internal/config"
	"github.com/Epi-Sim/episim/internal/engine"
	"github.com/Epi-Sim/episim/internal/initial"
	"github.com/Epi-Sim/episim/internal/output"
	"github.com/Epi-Sim/episim/internal/params"
	"github.com/Epi-Sim/episim/internal/tabular"
)

// Options adjusts a pipeline run beyond what the config file carries.
// Zero values mean "use the config".
type Options struct {
	// DataDir holds the tabular and initial-condition input files.
	DataDir string
	// InstanceDir receives the output/ directory with all artifacts.
	InstanceDir string

	// InitialConditions overrides data.initial_condition_filename.
	InitialConditions string
	// StartDate and EndDate override the config's date range when set.
	StartDate string
	EndDate   string

	// ExportDay requests a single-day compartment snapshot, 1-based.
	// Zero disables the export.
	ExportDay int

	// Engine replaces the built-in engine for the resolved variant.
	Engine Engine
}

// Result summarizes a finished run.
type Result struct {
	RunID    string
	Horizon  int
	Written  []string
	OutDir   string
	EngineID string
}

// Pipeline runs one simulation end to end: validate the config, load
// the tables, build parameters, resolve initial conditions, advance the
// engine and serialize the requested artifacts.
type Pipeline struct {
	log *slog.Logger
	cfg *config.Config
	opt Options
}

// NewPipeline binds a validated-config-to-be and run options.
func NewPipeline(log *slog.Logger, cfg *config.Config, opt Options) *Pipeline {
	return &Pipeline{log: log, cfg: cfg, opt: opt}
}

// Run executes the pipeline. It fails fast on configuration, data or
// parameter problems; engine failures come back wrapped in EngineError.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.cfg
	variant, err := cfg.ResolveEngine()
	if err != nil {
		return nil, err
	}

	if p.opt.StartDate != "" {
		cfg.Simulation.StartDate = p.opt.StartDate
	}
	if p.opt.EndDate != "" {
		cfg.Simulation.EndDate = p.opt.EndDate
	}
	horizon, err := cfg.Simulation.Horizon()
	if err != nil {
		return nil, err
	}
	dates, err := cfg.Simulation.Dates()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := p.log.With("run_id", runID, "engine", variant.ID())
	log.Info("starting simulation", "start", cfg.Simulation.StartDate, "end", cfg.Simulation.EndDate, "days", horizon)

	pop, epi, npi, vac, err := p.build(log, variant, horizon)
	if err != nil {
		return nil, err
	}

	if err := initial.Resolve(log, cfg, variant, p.opt.DataDir, p.opt.InitialConditions, pop, epi); err != nil {
		return nil, err
	}

	eng := p.opt.Engine
	if eng == nil {
		eng = For(variant, log)
	}
	if err := eng.Run(ctx, pop, epi, npi, vac); err != nil {
		return nil, &EngineError{Err: err}
	}
	log.Info("simulation finished", "days", horizon)

	state, err := output.NewCompartmentState(pop, epi, dates)
	if err != nil {
		return nil, err
	}

	outDir := filepath.Join(p.opt.InstanceDir, "output")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	format := arrayfile.Resolve(cfg.Simulation.OutputFormat, log)
	ser := output.NewSerializer(log, format, state, map[string]string{
		"run_id":     runID,
		"start_date": cfg.Simulation.StartDate,
		"end_date":   cfg.Simulation.EndDate,
	})

	res := &Result{RunID: runID, Horizon: horizon, OutDir: outDir, EngineID: variant.ID()}
	if cfg.Simulation.SaveFullOutput {
		path, err := ser.WriteFull(outDir)
		if err != nil {
			return nil, err
		}
		res.Written = append(res.Written, path)
	}
	if cfg.Simulation.SaveObservables {
		path, err := ser.WriteObservables(outDir)
		if err != nil {
			return nil, err
		}
		res.Written = append(res.Written, path)
	}

	// The snapshot goes last so an out-of-range export day does not cost
	// the artifacts above.
	exportDay := p.opt.ExportDay
	if exportDay == 0 && cfg.Simulation.SaveTimeStep != nil {
		exportDay = *cfg.Simulation.SaveTimeStep
	}
	if exportDay != 0 {
		path, err := ser.WriteSnapshot(outDir, exportDay)
		if err != nil {
			return res, err
		}
		res.Written = append(res.Written, path)
	}

	return res, nil
}

// build loads the input tables and assembles the parameter structures.
func (p *Pipeline) build(log *slog.Logger, variant engine.Variant, horizon int) (*params.Population, *params.Epidemic, *params.NPISchedule, *params.VaccinationParams, error) {
	cfg := p.cfg

	metapop, err := tabular.LoadMetapopulation(filepath.Join(p.opt.DataDir, cfg.Data.MetapopulationFile), cfg.Population.GLabels)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	mobility, err := tabular.LoadMobility(filepath.Join(p.opt.DataDir, cfg.Data.MobilityFile))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	var reduction []tabular.ReductionPoint
	if cfg.Data.Kappa0File != "" {
		reduction, err = tabular.LoadMobilityReduction(filepath.Join(p.opt.DataDir, cfg.Data.Kappa0File))
		if err != nil {
			return nil, nil, nil, nil, err
		}
	}

	pop, err := params.BuildPopulation(log, cfg, metapop, mobility)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	epi, err := params.BuildEpidemic(cfg, variant, pop, horizon)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	npi, err := params.BuildNPI(cfg, reduction)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	var vac *params.VaccinationParams
	if variant.HasVaccination() {
		vac, err = params.BuildVaccination(cfg, pop)
		if err != nil {
			return nil, nil, nil, nil, err
		}
	}

	log.Debug("parameters built", "ages", pop.G, "patches", pop.M, "edges", len(pop.Edges))
	return pop, epi, npi, vac, nil
}
