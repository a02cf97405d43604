// Package arrayfile reads and writes self-describing multi-dimensional
// array files. Two interchangeable formats sit behind one contract: an
// Arrow IPC layout (the default) and a hierarchical SQLite layout. Both
// carry dimension names, shapes, coordinate labels and free-form
// attributes, so a file can be interpreted without the config that
// produced it.
package arrayfile

import (
	"fmt"
	"log/slog"
	"os"
)

// Format selects one of the supported array-file layouts.
type Format string

const (
	// FormatArrow is the columnar Arrow IPC layout.
	FormatArrow Format = "arrow"
	// FormatSQLite is the hierarchical SQLite layout.
	FormatSQLite Format = "sqlite"
)

// DefaultFormat is used when a config names no format or an unknown one.
const DefaultFormat = FormatArrow

// Resolve maps a config-supplied format name to a Format. Unknown names
// fall back to the default with a warning rather than failing; this
// permissive behavior is deliberate and keeps old configs running.
func Resolve(name string, log *slog.Logger) Format {
	switch name {
	case "", string(FormatArrow):
		return FormatArrow
	case string(FormatSQLite):
		return FormatSQLite
	default:
		log.Warn("unknown output format, using default", "format", name, "default", string(DefaultFormat))
		return DefaultFormat
	}
}

// Ext returns the file extension conventionally used by the format.
func (f Format) Ext() string {
	if f == FormatSQLite {
		return ".db"
	}
	return ".arrow"
}

// Variable is one named array in a dataset. Values are the row-major
// flattening of the array in the order given by Dims/Shape.
type Variable struct {
	Name   string
	Dims   []string
	Shape  []int
	Values []float64
}

// Len returns the expected flattened length of the variable.
func (v *Variable) Len() int {
	n := 1
	for _, s := range v.Shape {
		n *= s
	}
	return n
}

// Dataset is a collection of variables sharing dimension coordinates,
// plus free-form string attributes.
type Dataset struct {
	// Attrs are file-level attributes (run id, engine, dates, ...).
	Attrs map[string]string
	// Coords maps a dimension name to its ordered coordinate labels.
	Coords map[string][]string
	// Vars are the arrays, in serialization order.
	Vars []Variable
}

// Var returns the named variable, or nil.
func (d *Dataset) Var(name string) *Variable {
	for i := range d.Vars {
		if d.Vars[i].Name == name {
			return &d.Vars[i]
		}
	}
	return nil
}

func (d *Dataset) check() error {
	if len(d.Vars) == 0 {
		return fmt.Errorf("dataset has no variables")
	}
	for i := range d.Vars {
		v := &d.Vars[i]
		if len(v.Dims) != len(v.Shape) {
			return fmt.Errorf("variable %q has %d dims but %d shape entries", v.Name, len(v.Dims), len(v.Shape))
		}
		if len(v.Values) != v.Len() {
			return fmt.Errorf("variable %q has %d values, shape %v wants %d", v.Name, len(v.Values), v.Shape, v.Len())
		}
	}
	return nil
}

// Write serializes the dataset to path. A stale file at the target path
// is deleted first: artifacts are overwritten, never appended to.
func (f Format) Write(path string, ds *Dataset) error {
	if err := ds.check(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale output %s: %w", path, err)
	}
	switch f {
	case FormatSQLite:
		return writeSQLite(path, ds)
	default:
		return writeArrow(path, ds)
	}
}

// Read deserializes a dataset from path.
func (f Format) Read(path string) (*Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("array file %s: %w", path, err)
	}
	switch f {
	case FormatSQLite:
		return readSQLite(path)
	default:
		return readArrow(path)
	}
}
