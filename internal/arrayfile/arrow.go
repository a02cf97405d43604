package arrayfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// Arrow layout: one IPC file holding a single record batch. Each dataset
// variable becomes a Float64 column whose field metadata carries "dims"
// and "shape"; coordinate labels and file attributes live in the schema
// metadata as JSON under "coords" and "attrs". All variables of one
// artifact share a flattened length, which the record-batch layout
// requires.

const (
	metaDims   = "dims"
	metaShape  = "shape"
	metaCoords = "coords"
	metaAttrs  = "attrs"
)

func writeArrow(path string, ds *Dataset) error {
	n := ds.Vars[0].Len()
	for i := range ds.Vars {
		if ds.Vars[i].Len() != n {
			return fmt.Errorf("arrow layout requires equal variable lengths: %q has %d, %q has %d",
				ds.Vars[0].Name, n, ds.Vars[i].Name, ds.Vars[i].Len())
		}
	}

	coordsJSON, err := json.Marshal(ds.Coords)
	if err != nil {
		return fmt.Errorf("encoding coords: %w", err)
	}
	attrsJSON, err := json.Marshal(ds.Attrs)
	if err != nil {
		return fmt.Errorf("encoding attrs: %w", err)
	}
	schemaMeta := arrow.NewMetadata(
		[]string{metaCoords, metaAttrs},
		[]string{string(coordsJSON), string(attrsJSON)},
	)

	fields := make([]arrow.Field, len(ds.Vars))
	for i := range ds.Vars {
		v := &ds.Vars[i]
		shape := make([]string, len(v.Shape))
		for j, s := range v.Shape {
			shape[j] = strconv.Itoa(s)
		}
		fields[i] = arrow.Field{
			Name:     v.Name,
			Type:     arrow.PrimitiveTypes.Float64,
			Nullable: false,
			Metadata: arrow.NewMetadata(
				[]string{metaDims, metaShape},
				[]string{strings.Join(v.Dims, ","), strings.Join(shape, ",")},
			),
		}
	}
	schema := arrow.NewSchema(fields, &schemaMeta)

	mem := memory.NewGoAllocator()
	cols := make([]arrow.Array, len(ds.Vars))
	for i := range ds.Vars {
		b := array.NewFloat64Builder(mem)
		b.AppendValues(ds.Vars[i].Values, nil)
		cols[i] = b.NewArray()
		b.Release()
	}
	rec := array.NewRecord(schema, cols, int64(n))
	defer rec.Release()
	for _, c := range cols {
		defer c.Release()
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("opening arrow writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("writing record batch: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing arrow file: %w", err)
	}
	return nil
}

func readArrow(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	mem := memory.NewGoAllocator()
	r, err := ipc.NewFileReader(f, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("opening arrow reader: %w", err)
	}
	defer r.Close()

	schema := r.Schema()
	ds := &Dataset{
		Attrs:  map[string]string{},
		Coords: map[string][]string{},
	}
	md := schema.Metadata()
	if idx := md.FindKey(metaCoords); idx >= 0 {
		if err := json.Unmarshal([]byte(md.Values()[idx]), &ds.Coords); err != nil {
			return nil, fmt.Errorf("decoding coords metadata: %w", err)
		}
	}
	if idx := md.FindKey(metaAttrs); idx >= 0 {
		if err := json.Unmarshal([]byte(md.Values()[idx]), &ds.Attrs); err != nil {
			return nil, fmt.Errorf("decoding attrs metadata: %w", err)
		}
	}

	// Gather the per-column values across all record batches (writers
	// produced by this package emit exactly one).
	values := make([][]float64, schema.NumFields())
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading record batch: %w", err)
		}
		for i := 0; i < int(rec.NumCols()); i++ {
			col, ok := rec.Column(i).(*array.Float64)
			if !ok {
				return nil, fmt.Errorf("column %q is %s, want float64", schema.Field(i).Name, rec.Column(i).DataType())
			}
			values[i] = append(values[i], col.Float64Values()...)
		}
	}

	for i := 0; i < schema.NumFields(); i++ {
		field := schema.Field(i)
		v := Variable{Name: field.Name, Values: values[i]}

		fm := field.Metadata
		if idx := fm.FindKey(metaDims); idx >= 0 && fm.Values()[idx] != "" {
			v.Dims = strings.Split(fm.Values()[idx], ",")
		}
		if idx := fm.FindKey(metaShape); idx >= 0 && fm.Values()[idx] != "" {
			for _, s := range strings.Split(fm.Values()[idx], ",") {
				n, err := strconv.Atoi(s)
				if err != nil {
					return nil, fmt.Errorf("column %q has malformed shape metadata %q", field.Name, fm.Values()[idx])
				}
				v.Shape = append(v.Shape, n)
			}
		}
		ds.Vars = append(ds.Vars, v)
	}
	return ds, nil
}
