package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Epi-Sim/episim/internal/config"
	"github.com/Epi-Sim/episim/internal/engine"
)

func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Scaffold a simulation instance",
		Long: `Setup writes a config template for the chosen engine variant plus
placeholder metapopulation, mobility and seed tables sized to the
requested patch count. Edit the generated files before running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			engineID, _ := cmd.Flags().GetString("engine")
			outDir, _ := cmd.Flags().GetString("output")
			patches, _ := cmd.Flags().GetInt("patches")
			groups, _ := cmd.Flags().GetInt("groups")

			log := loggerFromFlags(cmd)
			variant, err := engine.Resolve(engineID)
			if err != nil {
				return err
			}
			if patches < 1 {
				return fmt.Errorf("--patches must be at least 1, got %d", patches)
			}
			if groups < 1 {
				return fmt.Errorf("--groups must be at least 1, got %d", groups)
			}

			dataDir := filepath.Join(outDir, "data")
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return fmt.Errorf("creating instance directories: %w", err)
			}

			cfg := templateConfig(variant, groups)
			configPath := filepath.Join(outDir, "config.json")
			if err := cfg.Save(configPath); err != nil {
				return err
			}

			if err := writePlaceholderTables(dataDir, cfg.Population.GLabels, patches); err != nil {
				return err
			}

			log.Info("instance scaffolded", "dir", outDir, "engine", variant.ID(), "patches", patches)
			fmt.Printf("wrote %s and placeholder tables under %s\n", configPath, dataDir)
			return nil
		},
	}

	cmd.Flags().String("engine", engine.IDBasic, "Engine variant")
	cmd.Flags().StringP("output", "o", ".", "Instance directory to scaffold")
	cmd.Flags().Int("patches", 2, "Number of placeholder patches")
	cmd.Flags().Int("groups", 3, "Number of age groups")

	return cmd
}

// templateConfig builds a complete runnable config. The three-group
// template carries reference rates; other group counts get uniform
// placeholders the user is expected to edit.
func templateConfig(variant engine.Variant, groups int) *config.Config {
	uniform := func(v float64) []float64 {
		vec := make([]float64, groups)
		for i := range vec {
			vec[i] = v
		}
		return vec
	}
	scale := 0.51
	cfg := &config.Config{
		Simulation: config.Simulation{
			Engine:          variant.ID(),
			StartDate:       "2020-03-01",
			EndDate:         "2020-04-01",
			SaveFullOutput:  true,
			SaveObservables: true,
			OutputFormat:    "arrow",
		},
		Data: config.Data{
			MetapopulationFile: "metapop.csv",
			MobilityFile:       "mobility.csv",
			SeedsFile:          "seeds.csv",
		},
		Epidemic: config.Epidemic{
			BetaI:     0.09,
			ScaleBeta: &scale,
			EtaG:      uniform(0.3),
			AlphaG:    uniform(0.5),
			MuG:       uniform(0.3),
			ThetaG:    uniform(0.0),
			GammaG:    uniform(0.01),
			ZetaG:     uniform(0.13),
			LambdaG:   uniform(1.0),
			OmegaG:    uniform(0.04),
			PsiG:      uniform(0.14),
			ChiG:      uniform(0.05),
		},
		Population: config.Population{
			GLabels:  templateLabels(groups),
			Contacts: uniformMatrix(groups),
			KAvg:     uniform(10.0),
			KHome:    uniform(3.0),
			KWork:    uniform(2.0),
			Mobility: uniform(0.5),
			Xi:       0.01,
			Sigma:    2.5,
		},
		NPI: config.NPI{
			Kappa0s:     []float64{0.8},
			Phis:        []float64{0.2},
			Deltas:      []float64{0.8},
			TCs:         []int{15},
			AreThereNPI: false,
		},
	}
	if groups == 3 {
		// Reference rates and structure for the canonical three-group split.
		cfg.Epidemic.AlphaG = []float64{0.25, 0.6, 0.6}
		cfg.Epidemic.MuG = []float64{1.0, 0.3, 0.3}
		cfg.Epidemic.GammaG = []float64{0.003, 0.01, 0.08}
		cfg.Epidemic.OmegaG = []float64{0.0, 0.04, 0.3}
		cfg.Population.GLabels = []string{"Y", "M", "O"}
		cfg.Population.Contacts = [][]float64{{0.6, 0.4, 0.02}, {0.25, 0.7, 0.04}, {0.2, 0.55, 0.25}}
		cfg.Population.KAvg = []float64{12.0, 13.0, 7.0}
		cfg.Population.KWork = []float64{2.0, 5.0, 0.0}
		cfg.Population.Mobility = []float64{0.0, 1.0, 0.0}
	} else {
		// The default seed apportionment is three-way; other counts need
		// an explicit even split.
		fractions := make([]float64, groups)
		for i := range fractions {
			fractions[i] = 1.0 / float64(groups)
		}
		cfg.Data.SeedAgeFractions = fractions
	}
	if variant.HasVaccination() {
		cfg.Vaccination = &config.Vaccination{
			Enabled:   true,
			StartVacc: 10,
			DurVacc:   30,
			EpsilonG:  uniform(0.6),
			DailyRate: 0.005,
		}
	}
	return cfg
}

func templateLabels(groups int) []string {
	labels := make([]string, groups)
	for i := range labels {
		labels[i] = fmt.Sprintf("G%d", i)
	}
	return labels
}

// uniformMatrix is a row-stochastic placeholder contact matrix.
func uniformMatrix(groups int) [][]float64 {
	m := make([][]float64, groups)
	for i := range m {
		m[i] = make([]float64, groups)
		for j := range m[i] {
			m[i][j] = 1.0 / float64(groups)
		}
	}
	return m
}

// writePlaceholderTables emits minimal valid CSV tables: uniform
// populations and a fully connected mobility ring.
func writePlaceholderTables(dir string, labels []string, patches int) error {
	var metapop strings.Builder
	metapop.WriteString("id,area," + strings.Join(labels, ",") + ",total\n")
	perGroup := 100.0
	for m := 0; m < patches; m++ {
		metapop.WriteString(fmt.Sprintf("p%d,10.0", m))
		for range labels {
			metapop.WriteString(fmt.Sprintf(",%g", perGroup))
		}
		metapop.WriteString(fmt.Sprintf(",%g\n", perGroup*float64(len(labels))))
	}

	var mobility strings.Builder
	mobility.WriteString("origin,destination,weight\n")
	for m := 0; m < patches; m++ {
		next := (m + 1) % patches
		if next != m {
			mobility.WriteString(fmt.Sprintf("%d,%d,0.3\n", m, next))
		}
	}

	seeds := "idx,seed\n0,10\n"

	for name, content := range map[string]string{
		"metapop.csv":  metapop.String(),
		"mobility.csv": mobility.String(),
		"seeds.csv":    seeds,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}
