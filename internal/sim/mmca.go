package sim

import (
	"context"
	"log/slog"
	"math"

	"github.com/Epi-Sim/episim/internal/engine"
	"github.com/Epi-Sim/episim/internal/logging"
	"github.com/Epi-Sim/episim/internal/params"
)

// referenceEngine is the built-in discrete-time mean-field engine. It
// advances age-and-patch stratified compartment densities one day at a
// time, mixing infectious pressure across patches through the mobility
// network and applying confinement, distancing and vaccination
// adjustments from the schedules.
type referenceEngine struct {
	variant engine.Variant
	log     *slog.Logger
}

func (e *referenceEngine) Run(ctx context.Context, pop *params.Population, epi *params.Epidemic, npi *params.NPISchedule, vac *params.VaccinationParams) error {
	G, M, V, T := pop.G, pop.M, epi.Grid("S").V, epi.T

	s := epi.Grid("S")
	ex := epi.Grid("E")
	a := epi.Grid("A")
	i := epi.Grid("I")
	ph := epi.Grid("PH")
	pd := epi.Grid("PD")
	hr := epi.Grid("HR")
	hd := epi.Grid("HD")
	r := epi.Grid("R")
	d := epi.Grid("D")
	ch := epi.Grid("CH")

	routes := mobilityRoutes(pop)

	for t := 1; t < T; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		cp := npi.ActiveAt(t)
		contactScale := 1.0
		if cp != nil {
			contactScale = (1 - cp.Confinement) * cp.Distancing
		}

		// Infectious density per age and patch at the previous step,
		// summed over vaccination strata and mixed through mobility.
		expA := exposure(a, pop, routes, t-1)
		expI := exposure(i, pop, routes, t-1)

		for g := 0; g < G; g++ {
			for m := 0; m < M; m++ {
				pressure := 0.0
				for h := 0; h < G; h++ {
					pressure += pop.Contacts[g][h] * (epi.BetaA*expA[h][m] + epi.BetaI*expI[h][m])
				}
				pressure *= pop.KAvg[g] * contactScale

				for v := 0; v < V; v++ {
					lambda := pressure
					if vac != nil && v == 1 {
						lambda *= 1 - vac.EpsilonG[g]
					}
					// Probability of at least one effective contact.
					pInf := 1 - math.Exp(-lambda)

					sv := s.At(g, m, v, t-1)
					ev := ex.At(g, m, v, t-1)
					av := a.At(g, m, v, t-1)
					iv := i.At(g, m, v, t-1)
					phv := ph.At(g, m, v, t-1)
					pdv := pd.At(g, m, v, t-1)
					hrv := hr.At(g, m, v, t-1)
					hdv := hd.At(g, m, v, t-1)
					rv := r.At(g, m, v, t-1)
					dv := d.At(g, m, v, t-1)

					newE := pInf * sv
					eToA := epi.EtaG[g] * ev
					aToI := epi.AlphaG[g] * av
					iOut := epi.MuG[g] * iv
					iToPD := iOut * epi.ThetaG[g]
					iToPH := iOut * (1 - epi.ThetaG[g]) * epi.GammaG[g]
					iToR := iOut * (1 - epi.ThetaG[g]) * (1 - epi.GammaG[g])
					pdToD := epi.ZetaG[g] * pdv
					phOut := epi.LambdaG[g] * phv
					phToHD := phOut * epi.OmegaG[g]
					phToHR := phOut * (1 - epi.OmegaG[g])
					hdToD := epi.PsiG[g] * hdv
					hrToR := epi.ChiG[g] * hrv

					s.Set(g, m, v, t, sv-newE)
					ex.Set(g, m, v, t, ev+newE-eToA)
					a.Set(g, m, v, t, av+eToA-aToI)
					i.Set(g, m, v, t, iv+aToI-iOut)
					pd.Set(g, m, v, t, pdv+iToPD-pdToD)
					ph.Set(g, m, v, t, phv+iToPH-phOut)
					hd.Set(g, m, v, t, hdv+phToHD-hdToD)
					hr.Set(g, m, v, t, hrv+phToHR-hrToR)
					r.Set(g, m, v, t, rv+iToR+hrToR)
					d.Set(g, m, v, t, dv+pdToD+hdToD)
					if ch != nil {
						ch.Set(g, m, v, t, ch.At(g, m, v, t-1))
					}
				}
			}
		}

		if ch != nil {
			e.applyConfinement(cp, s, ch, t)
		}
		if vac != nil {
			e.applyVaccination(vac, epi, t)
		}
		e.log.Log(ctx, logging.LevelTrace, "advanced time step", "engine", e.variant.ID(), "t", t, "of", T-1)
	}
	return nil
}

// applyConfinement moves susceptibles into confined households when a
// change point takes effect and releases them once no restriction is
// active anymore.
func (e *referenceEngine) applyConfinement(cp *params.ChangePoint, s, ch *params.Grid, t int) {
	entering := cp != nil && cp.TimeStep == t
	for g := 0; g < s.G; g++ {
		for m := 0; m < s.M; m++ {
			for v := 0; v < s.V; v++ {
				if entering {
					confined := cp.Confinement * (1 - cp.Permeability) * s.At(g, m, v, t)
					s.Add(g, m, v, t, -confined)
					ch.Add(g, m, v, t, confined)
				} else if cp == nil {
					released := ch.At(g, m, v, t)
					if released > 0 {
						ch.Set(g, m, v, t, 0)
						s.Add(g, m, v, t, released)
					}
				}
			}
		}
	}
}

// applyVaccination shifts densities between vaccination strata. During
// the campaign window a fixed share per day moves from the unvaccinated
// stratum to the vaccinated one; after the window protection wanes into
// the post-vaccination stratum at a rate set by the campaign length.
func (e *referenceEngine) applyVaccination(vac *params.VaccinationParams, epi *params.Epidemic, t int) {
	inWindow := t >= vac.StartVacc && t < vac.StartVacc+vac.DurVacc
	waneRate := 0.0
	if !inWindow && t >= vac.StartVacc+vac.DurVacc && vac.DurVacc > 0 {
		waneRate = 1 / float64(vac.DurVacc)
	}
	if !inWindow && waneRate == 0 {
		return
	}
	for _, name := range []string{"S", "E", "A", "R"} {
		gr := epi.Grid(name)
		if gr == nil || gr.V < 3 {
			continue
		}
		for g := 0; g < gr.G; g++ {
			for m := 0; m < gr.M; m++ {
				if inWindow {
					moved := vac.DailyRate * gr.At(g, m, 0, t)
					gr.Add(g, m, 0, t, -moved)
					gr.Add(g, m, 1, t, moved)
				} else {
					waned := waneRate * gr.At(g, m, 1, t)
					gr.Add(g, m, 1, t, -waned)
					gr.Add(g, m, 2, t, waned)
				}
			}
		}
	}
}

// mobilityRoutes builds per-origin destination lists from the edge set.
type route struct {
	dest   int
	weight float64
}

func mobilityRoutes(pop *params.Population) [][]route {
	routes := make([][]route, pop.M)
	for _, e := range pop.Edges {
		routes[e.Origin] = append(routes[e.Origin], route{dest: e.Destination, weight: e.Weight})
	}
	return routes
}

// exposure returns the infectious density a resident of each patch is
// exposed to, per age group: the stay-at-home share sees the local
// density and the commuting share sees a mobility-weighted mix of the
// destinations.
func exposure(gr *params.Grid, pop *params.Population, routes [][]route, t int) [][]float64 {
	local := make([][]float64, pop.G)
	for g := range local {
		local[g] = make([]float64, pop.M)
		for m := 0; m < pop.M; m++ {
			sum := 0.0
			for v := 0; v < gr.V; v++ {
				sum += gr.At(g, m, v, t)
			}
			local[g][m] = sum
		}
	}
	out := make([][]float64, pop.G)
	for g := range out {
		out[g] = make([]float64, pop.M)
		p := pop.Mobility[g]
		for m := 0; m < pop.M; m++ {
			away := 0.0
			for _, rt := range routes[m] {
				away += rt.weight * local[g][rt.dest]
			}
			out[g][m] = (1-p)*local[g][m] + p*away
		}
	}
	return out
}
