// Package tabular reads the delimited-text inputs of a simulation run
// into typed tables. Column types are coerced explicitly here so
// downstream numeric code never sees mixed types: ids stay text, every
// numeric column becomes float64 (indices int).
package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// MissingFileError reports a declared input file that does not exist.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("input file not found: %s", e.Path)
}

// SchemaError reports a column-count or type mismatch against the
// expected table schema.
type SchemaError struct {
	File   string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

// Metapopulation is the per-patch population table: one row per patch
// with columns id, area, one per age label, total.
type Metapopulation struct {
	AgeLabels []string
	IDs       []string
	Area      []float64
	// Population is patch-major: Population[m][g].
	Population [][]float64
	Total      []float64
}

// Patches returns the patch count M.
func (m *Metapopulation) Patches() int { return len(m.IDs) }

// MobilityEdge is one directed weighted edge between patches. Origin and
// Destination are zero-based patch indices.
type MobilityEdge struct {
	Origin      int
	Destination int
	Weight      float64
}

// Mobility is the directed mobility edge table.
type Mobility struct {
	Edges []MobilityEdge
}

// ReductionPoint is one entry of the mobility-reduction time series.
type ReductionPoint struct {
	Date      string
	Reduction float64
}

// Seed is one seeding entry: initial infections placed at a patch.
type Seed struct {
	Patch int
	Count float64
}

func readAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MissingFileError{Path: path}
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &SchemaError{File: path, Reason: fmt.Sprintf("malformed CSV: %v", err)}
	}
	if len(rows) < 2 {
		return nil, &SchemaError{File: path, Reason: "no data rows"}
	}
	return rows, nil
}

func parseFloat(path, col, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &SchemaError{File: path, Reason: fmt.Sprintf("column %s: %q is not numeric", col, raw)}
	}
	return v, nil
}

func parseIndex(path, col, raw string) (int, error) {
	// Indices may be written as "3" or "3.0" depending on the tool that
	// produced the table.
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v != float64(int(v)) || v < 0 {
		return 0, &SchemaError{File: path, Reason: fmt.Sprintf("column %s: %q is not a non-negative index", col, raw)}
	}
	return int(v), nil
}

// LoadMetapopulation reads the metapopulation table, checking that the
// header is exactly id, area, the configured age labels, total.
func LoadMetapopulation(path string, ageLabels []string) (*Metapopulation, error) {
	rows, err := readAll(path)
	if err != nil {
		return nil, err
	}

	header := rows[0]
	want := append(append([]string{"id", "area"}, ageLabels...), "total")
	if len(header) != len(want) {
		return nil, &SchemaError{File: path, Reason: fmt.Sprintf("expected %d columns %v, got %d", len(want), want, len(header))}
	}
	for i, name := range want {
		if header[i] != name {
			return nil, &SchemaError{File: path, Reason: fmt.Sprintf("column %d is %q, want %q", i, header[i], name)}
		}
	}

	table := &Metapopulation{AgeLabels: ageLabels}
	for _, row := range rows[1:] {
		if len(row) != len(want) {
			return nil, &SchemaError{File: path, Reason: fmt.Sprintf("row for %q has %d fields, want %d", row[0], len(row), len(want))}
		}
		table.IDs = append(table.IDs, row[0])

		area, err := parseFloat(path, "area", row[1])
		if err != nil {
			return nil, err
		}
		table.Area = append(table.Area, area)

		pops := make([]float64, len(ageLabels))
		for g := range ageLabels {
			v, err := parseFloat(path, ageLabels[g], row[2+g])
			if err != nil {
				return nil, err
			}
			pops[g] = v
		}
		table.Population = append(table.Population, pops)

		total, err := parseFloat(path, "total", row[len(row)-1])
		if err != nil {
			return nil, err
		}
		table.Total = append(table.Total, total)
	}
	return table, nil
}

// LoadMobility reads the three-column mobility edge table
// (origin index, destination index, flow weight).
func LoadMobility(path string) (*Mobility, error) {
	rows, err := readAll(path)
	if err != nil {
		return nil, err
	}

	table := &Mobility{}
	for i, row := range rows[1:] {
		if len(row) != 3 {
			return nil, &SchemaError{File: path, Reason: fmt.Sprintf("row %d has %d fields, want 3", i+1, len(row))}
		}
		origin, err := parseIndex(path, "origin", row[0])
		if err != nil {
			return nil, err
		}
		dest, err := parseIndex(path, "destination", row[1])
		if err != nil {
			return nil, err
		}
		weight, err := parseFloat(path, "weight", row[2])
		if err != nil {
			return nil, err
		}
		table.Edges = append(table.Edges, MobilityEdge{Origin: origin, Destination: dest, Weight: weight})
	}
	return table, nil
}

// LoadMobilityReduction reads the optional (date, reduction) time series.
func LoadMobilityReduction(path string) ([]ReductionPoint, error) {
	rows, err := readAll(path)
	if err != nil {
		return nil, err
	}

	var points []ReductionPoint
	for i, row := range rows[1:] {
		if len(row) != 2 {
			return nil, &SchemaError{File: path, Reason: fmt.Sprintf("row %d has %d fields, want 2", i+1, len(row))}
		}
		reduction, err := parseFloat(path, "reduction", row[1])
		if err != nil {
			return nil, err
		}
		points = append(points, ReductionPoint{Date: row[0], Reduction: reduction})
	}
	return points, nil
}

// LoadSeeds reads the seed table. The table must contain "idx" (patch
// index) and "seed" (count) columns; extra columns are ignored.
func LoadSeeds(path string) ([]Seed, error) {
	rows, err := readAll(path)
	if err != nil {
		return nil, err
	}

	idxCol, seedCol := -1, -1
	for i, name := range rows[0] {
		switch name {
		case "idx":
			idxCol = i
		case "seed":
			seedCol = i
		}
	}
	if idxCol < 0 || seedCol < 0 {
		return nil, &SchemaError{File: path, Reason: "seed table must have idx and seed columns"}
	}

	var seeds []Seed
	for i, row := range rows[1:] {
		if len(row) != len(rows[0]) {
			return nil, &SchemaError{File: path, Reason: fmt.Sprintf("row %d has %d fields, want %d", i+1, len(row), len(rows[0]))}
		}
		patch, err := parseIndex(path, "idx", row[idxCol])
		if err != nil {
			return nil, err
		}
		count, err := parseFloat(path, "seed", row[seedCol])
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, Seed{Patch: patch, Count: count})
	}
	return seeds, nil
}
