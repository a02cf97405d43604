package params

import (
	"fmt"

	"github.com/Epi-Sim/episim/internal/config"
	"github.com/Epi-Sim/episim/internal/engine"
)

// Epidemic carries the per-age transition rates and the live compartment
// density grids. The grids are owned by the spreading engine during a
// run and read-only afterwards.
type Epidemic struct {
	Variant engine.Variant
	T       int

	BetaI float64
	BetaA float64

	EtaG    []float64
	AlphaG  []float64
	MuG     []float64
	ThetaG  []float64
	GammaG  []float64
	ZetaG   []float64
	LambdaG []float64
	OmegaG  []float64
	PsiG    []float64
	ChiG    []float64

	// Compartments holds one density grid per integrated compartment,
	// keyed by label; Names preserves the canonical order.
	Names        []string
	Compartments map[string]*Grid
}

// Grid returns the density grid for a compartment label, or nil when the
// variant does not integrate it (e.g. CH under the Basic variant).
func (e *Epidemic) Grid(name string) *Grid {
	return e.Compartments[name]
}

// BuildEpidemic constructs the epidemic parameter structure for the
// variant, allocating zeroed compartment grids shaped (G, M, V, T).
// βᴬ may be derived as scale_β·βᴵ when not given explicitly; having
// neither is fatal.
func BuildEpidemic(cfg *config.Config, variant engine.Variant, pop *Population, horizon int) (*Epidemic, error) {
	ep := cfg.Epidemic
	g := pop.G

	betaA := 0.0
	switch {
	case ep.BetaA != nil:
		betaA = *ep.BetaA
	case ep.ScaleBeta != nil:
		betaA = *ep.ScaleBeta * ep.BetaI
	default:
		return nil, &MissingParameterError{Key: "epidemic_params.βᴬ (or scale_β)"}
	}

	rates := []struct {
		name string
		v    []float64
	}{
		{"epidemic_params.ηᵍ", ep.EtaG},
		{"epidemic_params.αᵍ", ep.AlphaG},
		{"epidemic_params.μᵍ", ep.MuG},
		{"epidemic_params.θᵍ", ep.ThetaG},
		{"epidemic_params.γᵍ", ep.GammaG},
		{"epidemic_params.ζᵍ", ep.ZetaG},
		{"epidemic_params.λᵍ", ep.LambdaG},
		{"epidemic_params.ωᵍ", ep.OmegaG},
		{"epidemic_params.ψᵍ", ep.PsiG},
		{"epidemic_params.χᵍ", ep.ChiG},
	}
	for _, r := range rates {
		if err := checkAgeVector(r.name, r.v, g); err != nil {
			return nil, err
		}
	}

	if horizon < 1 {
		return nil, fmt.Errorf("simulation horizon must be at least 1, got %d", horizon)
	}

	names := variant.Compartments()
	grids := make(map[string]*Grid, len(names))
	v := variant.VaccinationStates()
	for _, name := range names {
		grids[name] = NewGrid(g, pop.M, v, horizon)
	}

	return &Epidemic{
		Variant:      variant,
		T:            horizon,
		BetaI:        ep.BetaI,
		BetaA:        betaA,
		EtaG:         ep.EtaG,
		AlphaG:       ep.AlphaG,
		MuG:          ep.MuG,
		ThetaG:       ep.ThetaG,
		GammaG:       ep.GammaG,
		ZetaG:        ep.ZetaG,
		LambdaG:      ep.LambdaG,
		OmegaG:       ep.OmegaG,
		PsiG:         ep.PsiG,
		ChiG:         ep.ChiG,
		Names:        names,
		Compartments: grids,
	}, nil
}
