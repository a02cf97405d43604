package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Epi-Sim/episim/internal/config"
	"github.com/Epi-Sim/episim/internal/sim"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation from a config file",
		Long: `Run loads the config, the metapopulation and mobility tables and the
initial conditions, advances the selected engine across the configured
date range and writes the result artifacts under
<instance-folder>/output/.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-folder")
			instanceDir, _ := cmd.Flags().GetString("instance-folder")
			initialConditions, _ := cmd.Flags().GetString("initial-conditions")
			startDate, _ := cmd.Flags().GetString("start-date")
			endDate, _ := cmd.Flags().GetString("end-date")
			exportDay, _ := cmd.Flags().GetInt("export-compartments-time-t")
			jsonOut, _ := cmd.Flags().GetBool("json")

			log := loggerFromFlags(cmd)
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			p := sim.NewPipeline(log, cfg, sim.Options{
				DataDir:           dataDir,
				InstanceDir:       instanceDir,
				InitialConditions: initialConditions,
				StartDate:         startDate,
				EndDate:           endDate,
				ExportDay:         exportDay,
			})
			res, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(res)
			}
			fmt.Printf("run %s finished: %d days, %d artifacts in %s\n",
				res.RunID, res.Horizon, len(res.Written), res.OutDir)
			return nil
		},
	}

	cmd.Flags().StringP("config", "c", "config.json", "Config file (JSON or YAML)")
	cmd.Flags().StringP("data-folder", "d", "data", "Folder holding the input tables")
	cmd.Flags().StringP("instance-folder", "i", ".", "Folder receiving the output/ directory")
	cmd.Flags().String("initial-conditions", "", "Initial-condition array file, overrides the config")
	cmd.Flags().String("start-date", "", "Override the config's start date (YYYY-MM-DD)")
	cmd.Flags().String("end-date", "", "Override the config's end date (YYYY-MM-DD)")
	cmd.Flags().IntP("export-compartments-time-t", "t", 0, "Export a compartment snapshot at this 1-based day")

	return cmd
}
