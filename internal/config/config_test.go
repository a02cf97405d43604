package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Epi-Sim/episim/internal/engine"
)

const minimalJSON = `{
  "simulation": {
    "engine": "MMCACovid19",
    "start_date": "2020-03-01",
    "end_date": "2020-03-10",
    "save_full_output": true,
    "output_format": "arrow"
  },
  "data": {
    "metapopulation_data_filename": "metapop.csv",
    "mobility_matrix_filename": "mobility.csv",
    "seeds_filename": "seeds.csv"
  },
  "epidemic_params": {
    "βᴵ": 0.09,
    "scale_β": 0.51,
    "ηᵍ": [0.3, 0.3, 0.3],
    "αᵍ": [0.25, 0.6, 0.6],
    "μᵍ": [1.0, 0.3, 0.3],
    "θᵍ": [0.0, 0.0, 0.0],
    "γᵍ": [0.003, 0.01, 0.08],
    "ζᵍ": [0.13, 0.13, 0.13],
    "λᵍ": [1.0, 1.0, 1.0],
    "ωᵍ": [0.0, 0.04, 0.3],
    "ψᵍ": [0.14, 0.14, 0.14],
    "χᵍ": [0.05, 0.05, 0.05]
  },
  "population_params": {
    "G_labels": ["Y", "M", "O"],
    "C": [[0.6, 0.4, 0.02], [0.25, 0.7, 0.04], [0.2, 0.55, 0.25]],
    "kᵍ": [12.0, 13.0, 7.0],
    "kᵍ_h": [3.0, 3.0, 3.0],
    "kᵍ_w": [2.0, 5.0, 0.0],
    "pᵍ": [0.0, 1.0, 0.0],
    "ξ": 0.01,
    "σ": 2.5
  },
  "NPI": {
    "κ₀s": [0.8],
    "ϕs": [0.2],
    "δs": [0.8],
    "tᶜs": [5],
    "are_there_npi": true
  }
}`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", minimalJSON))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Simulation.Engine != "MMCACovid19" {
		t.Errorf("engine = %q, want MMCACovid19", cfg.Simulation.Engine)
	}
	if cfg.Epidemic.BetaI != 0.09 {
		t.Errorf("βᴵ = %v, want 0.09", cfg.Epidemic.BetaI)
	}
	if cfg.Epidemic.BetaA != nil {
		t.Error("βᴬ should be absent in fixture")
	}
	if cfg.Epidemic.ScaleBeta == nil || *cfg.Epidemic.ScaleBeta != 0.51 {
		t.Error("scale_β should load as 0.51")
	}
	if len(cfg.Population.GLabels) != 3 {
		t.Errorf("G_labels length = %d, want 3", len(cfg.Population.GLabels))
	}
	if len(cfg.NPI.TCs) != 1 || cfg.NPI.TCs[0] != 5 {
		t.Errorf("tᶜs = %v, want [5]", cfg.NPI.TCs)
	}
	if !cfg.HasSection("NPI") || cfg.HasSection("vaccination") {
		t.Error("section presence tracking is wrong")
	}
}

func TestLoadYAML(t *testing.T) {
	content := `
simulation:
  engine: MMCACovid19Vac
  start_date: "2020-03-01"
  end_date: "2020-03-03"
data:
  metapopulation_data_filename: metapop.csv
`
	cfg, err := Load(writeConfig(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Simulation.Engine != "MMCACovid19Vac" {
		t.Errorf("engine = %q, want MMCACovid19Vac", cfg.Simulation.Engine)
	}
	if !cfg.HasSection("data") {
		t.Error("expected data section present")
	}
}

func TestValidatePresenceFlip(t *testing.T) {
	// For every required section, the full config validates and the
	// config minus that one section does not.
	for _, variant := range []engine.Variant{engine.Basic, engine.Vaccination} {
		for _, section := range variant.RequiredSections() {
			var raw map[string]json.RawMessage
			if err := json.Unmarshal([]byte(minimalJSON), &raw); err != nil {
				t.Fatalf("unmarshal fixture: %v", err)
			}
			// The fixture lacks a vaccination section; add a stub so the
			// Vaccination variant starts from a fully valid document.
			raw["vaccination"] = json.RawMessage(`{"are_there_vaccines": false}`)

			full, err := json.Marshal(raw)
			if err != nil {
				t.Fatal(err)
			}
			cfg, err := ParseJSON(full)
			if err != nil {
				t.Fatal(err)
			}
			if err := cfg.Validate(variant); err != nil {
				t.Fatalf("%s: full config should validate: %v", variant, err)
			}

			delete(raw, section)
			partial, err := json.Marshal(raw)
			if err != nil {
				t.Fatal(err)
			}
			cfg, err = ParseJSON(partial)
			if err != nil {
				t.Fatal(err)
			}
			err = cfg.Validate(variant)
			if err == nil {
				t.Errorf("%s: removing %q should fail validation", variant, section)
				continue
			}
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Errorf("%s: expected SchemaError, got %T", variant, err)
			} else if schemaErr.Section != section {
				t.Errorf("%s: SchemaError.Section = %q, want %q", variant, schemaErr.Section, section)
			}
		}
	}
}

func TestValidateToleratesExtraKeys(t *testing.T) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(minimalJSON), &raw); err != nil {
		t.Fatal(err)
	}
	raw["custom_section"] = json.RawMessage(`{"anything": 1}`)
	data, _ := json.Marshal(raw)

	cfg, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("extra top-level keys should parse: %v", err)
	}
	if err := cfg.Validate(engine.Basic); err != nil {
		t.Errorf("extra top-level keys should validate: %v", err)
	}
}

func TestResolveEngineUnknown(t *testing.T) {
	cfg, err := ParseJSON([]byte(minimalJSON))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Simulation.Engine = "NotAnEngine"

	_, err = cfg.ResolveEngine()
	var unknownErr *engine.UnknownEngineError
	if !errors.As(err, &unknownErr) {
		t.Errorf("expected UnknownEngineError, got %v", err)
	}
}

func TestHorizonAndDates(t *testing.T) {
	cfg, err := ParseJSON([]byte(minimalJSON))
	if err != nil {
		t.Fatal(err)
	}

	horizon, err := cfg.Simulation.Horizon()
	if err != nil {
		t.Fatalf("Horizon: %v", err)
	}
	if horizon != 10 {
		t.Errorf("horizon = %d, want 10 (inclusive day count)", horizon)
	}

	dates, err := cfg.Simulation.Dates()
	if err != nil {
		t.Fatalf("Dates: %v", err)
	}
	if len(dates) != 10 {
		t.Fatalf("len(dates) = %d, want 10", len(dates))
	}
	if dates[0] != "2020-03-01" || dates[9] != "2020-03-10" {
		t.Errorf("dates span %s..%s, want 2020-03-01..2020-03-10", dates[0], dates[9])
	}
}

func TestHorizonInvertedRange(t *testing.T) {
	cfg, err := ParseJSON([]byte(minimalJSON))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Simulation.StartDate = "2020-03-10"
	cfg.Simulation.EndDate = "2020-03-01"

	if _, err := cfg.Simulation.Horizon(); err == nil {
		t.Error("inverted date range should fail")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := ParseJSON([]byte(minimalJSON))
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out.json")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("reloading saved config: %v", err)
	}
	if loaded.Epidemic.BetaI != cfg.Epidemic.BetaI {
		t.Error("βᴵ did not survive the save/load round trip")
	}
	if len(loaded.Population.Contacts) != 3 {
		t.Error("contact matrix did not survive the save/load round trip")
	}
}
