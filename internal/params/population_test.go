package params

import (
	"errors"
	"io"
	"testing"

	"github.com/Epi-Sim/episim/internal/config"
	"github.com/Epi-Sim/episim/internal/logging"
	"github.com/Epi-Sim/episim/internal/tabular"
)

func testConfig() *config.Config {
	betaA := 0.045
	return &config.Config{
		Simulation: config.Simulation{
			Engine:    "MMCACovid19",
			StartDate: "2020-03-01",
			EndDate:   "2020-03-05",
		},
		Epidemic: config.Epidemic{
			BetaI:   0.09,
			BetaA:   &betaA,
			EtaG:    []float64{0.3, 0.3, 0.3},
			AlphaG:  []float64{0.25, 0.6, 0.6},
			MuG:     []float64{1.0, 0.3, 0.3},
			ThetaG:  []float64{0.0, 0.0, 0.0},
			GammaG:  []float64{0.003, 0.01, 0.08},
			ZetaG:   []float64{0.13, 0.13, 0.13},
			LambdaG: []float64{1.0, 1.0, 1.0},
			OmegaG:  []float64{0.0, 0.04, 0.3},
			PsiG:    []float64{0.14, 0.14, 0.14},
			ChiG:    []float64{0.05, 0.05, 0.05},
		},
		Population: config.Population{
			GLabels:  []string{"Y", "M", "O"},
			Contacts: [][]float64{{0.6, 0.4, 0.02}, {0.25, 0.7, 0.04}, {0.2, 0.55, 0.25}},
			KAvg:     []float64{12, 13, 7},
			KHome:    []float64{3, 3, 3},
			KWork:    []float64{2, 5, 0},
			Mobility: []float64{0, 1, 0},
			Xi:       0.01,
			Sigma:    2.5,
		},
		NPI: config.NPI{
			Kappa0s:     []float64{0.8},
			Phis:        []float64{0.2},
			Deltas:      []float64{0.8},
			TCs:         []int{3},
			AreThereNPI: true,
		},
	}
}

func testMetapop() *tabular.Metapopulation {
	return &tabular.Metapopulation{
		AgeLabels: []string{"Y", "M", "O"},
		IDs:       []string{"p0", "p1"},
		Area:      []float64{100, 85},
		Population: [][]float64{
			{100.4, 80, 20}, // patch 0, per age
			{50, 39.6, 10},  // patch 1
		},
		Total: []float64{200, 100},
	}
}

func TestBuildPopulation(t *testing.T) {
	log := logging.NewLogger("info", io.Discard)
	mobility := &tabular.Mobility{Edges: []tabular.MobilityEdge{
		{Origin: 0, Destination: 1, Weight: 0.4},
		{Origin: 1, Destination: 0, Weight: 0.25},
	}}

	pop, err := BuildPopulation(log, testConfig(), testMetapop(), mobility)
	if err != nil {
		t.Fatalf("BuildPopulation: %v", err)
	}

	if pop.G != 3 || pop.M != 2 {
		t.Fatalf("G=%d M=%d, want 3 and 2", pop.G, pop.M)
	}
	// Counts are rounded and transposed to (age, patch).
	if pop.Counts[0][0] != 100 {
		t.Errorf("Counts[Y][p0] = %v, want 100 (rounded from 100.4)", pop.Counts[0][0])
	}
	if pop.Counts[1][1] != 40 {
		t.Errorf("Counts[M][p1] = %v, want 40 (rounded from 39.6)", pop.Counts[1][1])
	}
	for g := 0; g < pop.G; g++ {
		for m := 0; m < pop.M; m++ {
			if pop.Counts[g][m] < 0 {
				t.Errorf("Counts[%d][%d] = %v is negative", g, m, pop.Counts[g][m])
			}
		}
	}
	if got := pop.PatchTotal(0); got != 200 {
		t.Errorf("PatchTotal(0) = %v, want 200", got)
	}
	if len(pop.Edges) != 2 {
		t.Errorf("edges = %d, want 2", len(pop.Edges))
	}
}

func TestBuildPopulationDropsSelfLoops(t *testing.T) {
	log := logging.NewLogger("info", io.Discard)
	mobility := &tabular.Mobility{Edges: []tabular.MobilityEdge{
		{Origin: 0, Destination: 0, Weight: 0.9}, // self-loop: weight must vanish
		{Origin: 0, Destination: 1, Weight: 0.4},
		{Origin: 1, Destination: 1, Weight: 0.5}, // self-loop
	}}

	pop, err := BuildPopulation(log, testConfig(), testMetapop(), mobility)
	if err != nil {
		t.Fatalf("BuildPopulation: %v", err)
	}

	if len(pop.Edges) != 1 {
		t.Fatalf("edges = %d, want 1 (self-loops eliminated)", len(pop.Edges))
	}
	if pop.Edges[0] != (Edge{Origin: 0, Destination: 1, Weight: 0.4}) {
		t.Errorf("surviving edge = %+v", pop.Edges[0])
	}
	// The dropped weight must not reappear anywhere.
	var totalWeight float64
	for _, e := range pop.Edges {
		totalWeight += e.Weight
	}
	if totalWeight != 0.4 {
		t.Errorf("total edge weight = %v, want 0.4 (self-loop weight discarded, not folded)", totalWeight)
	}
}

func TestBuildPopulationVectorLengthMismatch(t *testing.T) {
	log := logging.NewLogger("info", io.Discard)
	cfg := testConfig()
	cfg.Population.KAvg = []float64{12, 13} // one short

	_, err := BuildPopulation(log, cfg, testMetapop(), &tabular.Mobility{})
	if err == nil {
		t.Fatal("expected error for short kᵍ vector")
	}
}

func TestBuildPopulationMissingVector(t *testing.T) {
	log := logging.NewLogger("info", io.Discard)
	cfg := testConfig()
	cfg.Population.Mobility = nil

	_, err := BuildPopulation(log, cfg, testMetapop(), &tabular.Mobility{})
	var missingErr *MissingParameterError
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected MissingParameterError, got %v", err)
	}
}

func TestBuildPopulationEdgeOutOfRange(t *testing.T) {
	log := logging.NewLogger("info", io.Discard)
	mobility := &tabular.Mobility{Edges: []tabular.MobilityEdge{
		{Origin: 0, Destination: 7, Weight: 0.4},
	}}

	if _, err := BuildPopulation(log, testConfig(), testMetapop(), mobility); err == nil {
		t.Fatal("expected error for edge referencing unknown patch")
	}
}
