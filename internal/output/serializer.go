package output

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Epi-Sim/episim/internal/arrayfile"
	"github.com/Epi-Sim/episim/internal/engine"
)

// IndexOutOfRangeError reports a snapshot export day beyond the
// simulation horizon. Days are 1-based, matching the CLI flag.
type IndexOutOfRangeError struct {
	Day     int
	Horizon int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("export day %d is outside the simulation horizon of %d days", e.Day, e.Horizon)
}

// Serializer writes result artifacts for one run in a single format.
type Serializer struct {
	log    *slog.Logger
	format arrayfile.Format
	state  *CompartmentState
	attrs  map[string]string
}

// NewSerializer creates a serializer. attrs are stamped into every
// artifact (run id, engine id, date range).
func NewSerializer(log *slog.Logger, format arrayfile.Format, state *CompartmentState, attrs map[string]string) *Serializer {
	merged := map[string]string{"engine": state.Variant().ID()}
	for k, v := range attrs {
		merged[k] = v
	}
	return &Serializer{log: log, format: format, state: state, attrs: merged}
}

func (s *Serializer) dataset(withTime bool, vars []arrayfile.Variable, extraAttrs map[string]string) *arrayfile.Dataset {
	attrs := make(map[string]string, len(s.attrs)+len(extraAttrs))
	for k, v := range s.attrs {
		attrs[k] = v
	}
	for k, v := range extraAttrs {
		attrs[k] = v
	}
	return &arrayfile.Dataset{
		Attrs:  attrs,
		Coords: s.state.coords(withTime),
		Vars:   vars,
	}
}

// WriteFull writes every compartment as counts across all time steps to
// dir/compartments_full, one variable per compartment label.
func (s *Serializer) WriteFull(dir string) (string, error) {
	vars := make([]arrayfile.Variable, 0, len(engine.OutputCompartments))
	for _, name := range engine.OutputCompartments {
		vars = append(vars, s.state.fullVariable(name))
	}

	path := filepath.Join(dir, "compartments_full"+s.format.Ext())
	if err := s.format.Write(path, s.dataset(true, vars, nil)); err != nil {
		return "", fmt.Errorf("writing full output: %w", err)
	}
	s.log.Info("wrote full compartment time series", "path", path)
	return path, nil
}

// WriteSnapshot writes the compartments at one 1-based day, naming the
// file after the day's calendar date. Day T (the horizon length) is the
// last valid export; anything beyond is an IndexOutOfRangeError. The
// file holds a single "data" array in the initial-condition layout so
// it can be fed back as a later run's starting state.
func (s *Serializer) WriteSnapshot(dir string, day int) (string, error) {
	if day < 1 || day > s.state.Epi.T {
		return "", &IndexOutOfRangeError{Day: day, Horizon: s.state.Epi.T}
	}
	t := day - 1

	date := s.state.Dates[t]
	ds := s.dataset(false, []arrayfile.Variable{s.state.snapshotVariable(t)}, map[string]string{"date": date})
	ds.Coords["epi_states"] = engine.OutputCompartments

	path := filepath.Join(dir, "compartments_t_"+date+s.format.Ext())
	if err := s.format.Write(path, ds); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	s.log.Info("wrote compartment snapshot", "path", path, "date", date)
	return path, nil
}

// WriteObservables writes the derived observables (new infections, new
// hospitalizations, new deaths) to dir/observables.
func (s *Serializer) WriteObservables(dir string) (string, error) {
	vars := []arrayfile.Variable{
		s.newInfected(),
		s.newHospitalized(),
		s.newDeaths(),
	}

	path := filepath.Join(dir, "observables"+s.format.Ext())
	if err := s.format.Write(path, s.dataset(true, vars, nil)); err != nil {
		return "", fmt.Errorf("writing observables: %w", err)
	}
	s.log.Info("wrote derived observables", "path", path)
	return path, nil
}
