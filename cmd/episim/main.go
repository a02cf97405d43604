// Command episim runs stratified metapopulation epidemic simulations
// driven by a JSON or YAML configuration file.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Epi-Sim/episim/internal/logging"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "episim",
		Short: "Stratified metapopulation epidemic simulator",
		Long: `episim integrates age-stratified compartmental epidemic models over a
patch network with commuter mobility, non-pharmaceutical interventions
and optional vaccination rollout.

A single config file selects the engine variant, the date range, the
input tables and the output artifacts.`,
	}

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("json", false, "Output command results as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSetupCmd(),
		newInitCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"version": version})
			} else {
				fmt.Printf("episim version %s\n", version)
			}
		},
	}
}

// loggerFromFlags builds the command logger from the global flag.
func loggerFromFlags(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logging.NewLogger(level, os.Stderr)
}
