package output

import "github.com/Epi-Sim/episim/internal/arrayfile"

// Derived observables are computed from the finished density grids, not
// stored during the run. All three are (G, M, T) count arrays with
// vaccination strata summed out.

func (s *Serializer) observableDims() ([]string, []int) {
	return []string{"G", "M", "T"}, []int{s.state.Pop.G, s.state.Pop.M, s.state.Epi.T}
}

// newInfected is the flow out of the Asymptomatic compartment:
// ρA[t] · n · αᵍ per age group.
func (s *Serializer) newInfected() arrayfile.Variable {
	st := s.state
	dims, shape := s.observableDims()
	values := make([]float64, st.Pop.G*st.Pop.M*st.Epi.T)
	i := 0
	for g := 0; g < st.Pop.G; g++ {
		rate := st.Epi.AlphaG[g]
		for m := 0; m < st.Pop.M; m++ {
			for t := 0; t < st.Epi.T; t++ {
				values[i] = st.CountSummed("A", g, m, t) * rate
				i++
			}
		}
	}
	return arrayfile.Variable{Name: "new_infected", Dims: dims, Shape: shape, Values: values}
}

// newHospitalized is the flow into hospital:
// ρI[t] · n · μᵍ·(1−θᵍ)·γᵍ per age group.
func (s *Serializer) newHospitalized() arrayfile.Variable {
	st := s.state
	dims, shape := s.observableDims()
	values := make([]float64, st.Pop.G*st.Pop.M*st.Epi.T)
	i := 0
	for g := 0; g < st.Pop.G; g++ {
		rate := st.Epi.MuG[g] * (1 - st.Epi.ThetaG[g]) * st.Epi.GammaG[g]
		for m := 0; m < st.Pop.M; m++ {
			for t := 0; t < st.Epi.T; t++ {
				values[i] = st.CountSummed("I", g, m, t) * rate
				i++
			}
		}
	}
	return arrayfile.Variable{Name: "new_hospitalized", Dims: dims, Shape: shape, Values: values}
}

// newDeaths is the day-over-day difference of the Dead compartment in
// counts; the first time step has no prior day and is defined as 0.
func (s *Serializer) newDeaths() arrayfile.Variable {
	st := s.state
	dims, shape := s.observableDims()
	values := make([]float64, st.Pop.G*st.Pop.M*st.Epi.T)
	i := 0
	for g := 0; g < st.Pop.G; g++ {
		for m := 0; m < st.Pop.M; m++ {
			for t := 0; t < st.Epi.T; t++ {
				if t == 0 {
					values[i] = 0
				} else {
					values[i] = st.CountSummed("D", g, m, t) - st.CountSummed("D", g, m, t-1)
				}
				i++
			}
		}
	}
	return arrayfile.Variable{Name: "new_deaths", Dims: dims, Shape: shape, Values: values}
}
