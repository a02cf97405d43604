package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Epi-Sim/episim/internal/arrayfile"
	"github.com/Epi-Sim/episim/internal/config"
	"github.com/Epi-Sim/episim/internal/initial"
	"github.com/Epi-Sim/episim/internal/params"
	"github.com/Epi-Sim/episim/internal/tabular"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Build an initial-condition file from the seed table",
		Long: `Init loads the config and its tables, apportions the seed counts
across age strata and writes the resulting compartment-count array in
the configured init_format, without running a simulation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-folder")
			outPath, _ := cmd.Flags().GetString("output")

			log := loggerFromFlags(cmd)
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			variant, err := cfg.ResolveEngine()
			if err != nil {
				return err
			}
			if cfg.Data.SeedsFile == "" {
				return &params.MissingParameterError{Key: "data.seeds_filename"}
			}

			metapop, err := tabular.LoadMetapopulation(
				filepath.Join(dataDir, cfg.Data.MetapopulationFile), cfg.Population.GLabels)
			if err != nil {
				return err
			}
			mobility, err := tabular.LoadMobility(filepath.Join(dataDir, cfg.Data.MobilityFile))
			if err != nil {
				return err
			}
			pop, err := params.BuildPopulation(log, cfg, metapop, mobility)
			if err != nil {
				return err
			}

			seeds, err := tabular.LoadSeeds(filepath.Join(dataDir, cfg.Data.SeedsFile))
			if err != nil {
				return err
			}
			fractions, err := initial.SeedFractions(cfg, pop.G)
			if err != nil {
				return err
			}
			ds, err := initial.BuildDataset(variant, seeds, fractions, pop)
			if err != nil {
				return err
			}

			format := arrayfile.Resolve(cfg.Simulation.InitFormat, log)
			if outPath == "" {
				outPath = filepath.Join(dataDir, "initial_conditions"+format.Ext())
			}
			if err := format.Write(outPath, ds); err != nil {
				return fmt.Errorf("writing initial conditions: %w", err)
			}
			log.Info("wrote initial conditions", "path", outPath, "format", string(format))
			fmt.Printf("wrote %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringP("config", "c", "config.json", "Config file (JSON or YAML)")
	cmd.Flags().StringP("data-folder", "d", "data", "Folder holding the input tables")
	cmd.Flags().StringP("output", "o", "", "Output path (defaults to <data-folder>/initial_conditions)")

	return cmd
}
