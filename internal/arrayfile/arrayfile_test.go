package arrayfile

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Epi-Sim/episim/internal/logging"
)

func sampleDataset() *Dataset {
	return &Dataset{
		Attrs: map[string]string{
			"engine": "MMCACovid19",
			"run_id": "test-run",
		},
		Coords: map[string][]string{
			"G": {"Y", "M", "O"},
			"M": {"p0", "p1"},
			"T": {"2020-03-01", "2020-03-02"},
		},
		Vars: []Variable{
			{
				Name:   "S",
				Dims:   []string{"G", "M", "T"},
				Shape:  []int{3, 2, 2},
				Values: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
			},
			{
				Name:   "E",
				Dims:   []string{"G", "M", "T"},
				Shape:  []int{3, 2, 2},
				Values: []float64{0, 0.5, 0, 0.5, 0, 0.5, 0, 0.5, 0, 0.5, 0, 0.5},
			},
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatArrow, FormatSQLite} {
		t.Run(string(format), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out"+format.Ext())
			want := sampleDataset()

			if err := format.Write(path, want); err != nil {
				t.Fatalf("Write: %v", err)
			}
			got, err := format.Read(path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}

			if got.Attrs["engine"] != "MMCACovid19" || got.Attrs["run_id"] != "test-run" {
				t.Errorf("attrs = %v", got.Attrs)
			}
			for dim, labels := range want.Coords {
				if strings.Join(got.Coords[dim], ",") != strings.Join(labels, ",") {
					t.Errorf("coords[%s] = %v, want %v", dim, got.Coords[dim], labels)
				}
			}
			if len(got.Vars) != 2 {
				t.Fatalf("vars = %d, want 2", len(got.Vars))
			}
			if got.Vars[0].Name != "S" || got.Vars[1].Name != "E" {
				t.Errorf("variable order = %s, %s; want S, E", got.Vars[0].Name, got.Vars[1].Name)
			}

			s := got.Var("S")
			if s == nil {
				t.Fatal("missing variable S")
			}
			if strings.Join(s.Dims, ",") != "G,M,T" {
				t.Errorf("S dims = %v", s.Dims)
			}
			if len(s.Shape) != 3 || s.Shape[0] != 3 || s.Shape[1] != 2 || s.Shape[2] != 2 {
				t.Errorf("S shape = %v, want [3 2 2]", s.Shape)
			}
			for i, v := range want.Vars[0].Values {
				if s.Values[i] != v {
					t.Fatalf("S values[%d] = %v, want %v", i, s.Values[i], v)
				}
			}
		})
	}
}

func TestWriteOverwritesStaleFile(t *testing.T) {
	for _, format := range []Format{FormatArrow, FormatSQLite} {
		t.Run(string(format), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out"+format.Ext())
			// Stale garbage a previous run might have left behind.
			if err := os.WriteFile(path, []byte("not an array file"), 0644); err != nil {
				t.Fatal(err)
			}

			if err := format.Write(path, sampleDataset()); err != nil {
				t.Fatalf("Write over stale file: %v", err)
			}
			got, err := format.Read(path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if got.Var("S") == nil {
				t.Error("overwritten file is missing data")
			}
		})
	}
}

func TestWriteRejectsShapeMismatch(t *testing.T) {
	ds := sampleDataset()
	ds.Vars[0].Shape = []int{3, 2, 5} // values no longer match

	path := filepath.Join(t.TempDir(), "out.arrow")
	if err := FormatArrow.Write(path, ds); err == nil {
		t.Error("expected error for values/shape mismatch")
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := FormatArrow.Read(filepath.Join(t.TempDir(), "absent.arrow")); err == nil {
		t.Error("expected error reading absent file")
	}
}

func TestResolveFallback(t *testing.T) {
	quiet := logging.NewLogger("info", io.Discard)

	if got := Resolve("sqlite", quiet); got != FormatSQLite {
		t.Errorf("Resolve(sqlite) = %v", got)
	}
	if got := Resolve("arrow", quiet); got != FormatArrow {
		t.Errorf("Resolve(arrow) = %v", got)
	}
	if got := Resolve("", quiet); got != DefaultFormat {
		t.Errorf("Resolve(\"\") = %v", got)
	}

	// Unknown names fall back to the default and warn instead of failing.
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	if got := Resolve("netcdf4", log); got != DefaultFormat {
		t.Errorf("Resolve(netcdf4) = %v, want default", got)
	}
	if !strings.Contains(buf.String(), "unknown output format") {
		t.Error("fallback should log a warning")
	}
}
