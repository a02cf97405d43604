package params

import "fmt"

// Grid is a dense array indexed (age, patch, vaccination status, time).
// Variants without a vaccination axis use V=1 with a single implicit
// stratum. Values are compartment densities: fractions of the local
// (age, patch) population, not counts.
type Grid struct {
	G, M, V, T int
	Data       []float64
}

// NewGrid allocates a zeroed grid with the given dimensions.
func NewGrid(g, m, v, t int) *Grid {
	return &Grid{G: g, M: m, V: v, T: t, Data: make([]float64, g*m*v*t)}
}

func (gr *Grid) index(g, m, v, t int) int {
	return ((g*gr.M+m)*gr.V+v)*gr.T + t
}

// At returns the value at (age g, patch m, stratum v, time t).
func (gr *Grid) At(g, m, v, t int) float64 {
	return gr.Data[gr.index(g, m, v, t)]
}

// Set stores a value at (age g, patch m, stratum v, time t).
func (gr *Grid) Set(g, m, v, t int, value float64) {
	gr.Data[gr.index(g, m, v, t)] = value
}

// Add accumulates into (age g, patch m, stratum v, time t).
func (gr *Grid) Add(g, m, v, t int, delta float64) {
	gr.Data[gr.index(g, m, v, t)] += delta
}

// Shape returns the dimensions as a slice, ordered (G, M, V, T).
func (gr *Grid) Shape() []int { return []int{gr.G, gr.M, gr.V, gr.T} }

func (gr *Grid) String() string {
	return fmt.Sprintf("Grid(G=%d, M=%d, V=%d, T=%d)", gr.G, gr.M, gr.V, gr.T)
}
