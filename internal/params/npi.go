package params

import (
	"fmt"

	"github.com/Epi-Sim/episim/internal/config"
	"github.com/Epi-Sim/episim/internal/tabular"
)

// ScheduleError reports intervention vectors whose lengths do not line
// up with the change-point vector.
type ScheduleError struct {
	Detail string
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("NPI schedule: %s", e.Detail)
}

// ChangePoint is one intervention change: the values apply from TimeStep
// onward, until the next change point.
type ChangePoint struct {
	TimeStep     int
	Confinement  float64 // κ₀
	Permeability float64 // ϕ
	Distancing   float64 // δ
}

// NPISchedule is the ordered list of intervention change points plus the
// optional mobility-reduction time series.
type NPISchedule struct {
	Enabled      bool
	ChangePoints []ChangePoint

	// Reduction is the optional date-indexed mobility reduction series
	// loaded from kappa0_filename; empty when not configured.
	Reduction []tabular.ReductionPoint
}

// ActiveAt returns the change point in effect at time step t, or nil if
// no intervention has started yet (or the schedule is disabled).
func (s *NPISchedule) ActiveAt(t int) *ChangePoint {
	if s == nil || !s.Enabled {
		return nil
	}
	var active *ChangePoint
	for i := range s.ChangePoints {
		if s.ChangePoints[i].TimeStep <= t {
			active = &s.ChangePoints[i]
		}
	}
	return active
}

// BuildNPI converts the NPI config section into an ordered schedule.
// Each of κ₀s, ϕs, δs must align index-for-index with tᶜs.
func BuildNPI(cfg *config.Config, reduction []tabular.ReductionPoint) (*NPISchedule, error) {
	npi := cfg.NPI
	n := len(npi.TCs)

	for _, v := range []struct {
		name   string
		length int
	}{
		{"κ₀s", len(npi.Kappa0s)},
		{"ϕs", len(npi.Phis)},
		{"δs", len(npi.Deltas)},
	} {
		if v.length != n {
			return nil, &ScheduleError{Detail: fmt.Sprintf("%s has length %d, tᶜs has length %d", v.name, v.length, n)}
		}
	}

	points := make([]ChangePoint, n)
	for i := 0; i < n; i++ {
		if i > 0 && npi.TCs[i] < npi.TCs[i-1] {
			return nil, &ScheduleError{Detail: fmt.Sprintf("tᶜs must be non-decreasing, got %v", npi.TCs)}
		}
		points[i] = ChangePoint{
			TimeStep:     npi.TCs[i],
			Confinement:  npi.Kappa0s[i],
			Permeability: npi.Phis[i],
			Distancing:   npi.Deltas[i],
		}
	}

	return &NPISchedule{
		Enabled:      npi.AreThereNPI,
		ChangePoints: points,
		Reduction:    reduction,
	}, nil
}

// VaccinationParams configures the vaccination rollout for the
// stratified variant.
type VaccinationParams struct {
	Enabled   bool
	StartVacc int
	DurVacc   int
	EpsilonG  []float64
	DailyRate float64
}

// BuildVaccination converts the vaccination config section. Returns nil
// for configs without one (Basic variant).
func BuildVaccination(cfg *config.Config, pop *Population) (*VaccinationParams, error) {
	if cfg.Vaccination == nil {
		return nil, nil
	}
	vc := cfg.Vaccination
	if err := checkAgeVector("vaccination.ϵᵍ", vc.EpsilonG, pop.G); err != nil {
		return nil, err
	}
	if vc.DurVacc < 0 {
		return nil, fmt.Errorf("vaccination.dur_vacc must be non-negative, got %d", vc.DurVacc)
	}
	return &VaccinationParams{
		Enabled:   vc.Enabled,
		StartVacc: vc.StartVacc,
		DurVacc:   vc.DurVacc,
		EpsilonG:  vc.EpsilonG,
		DailyRate: vc.DailyRate,
	}, nil
}
