// Package config provides loading, defaulting and structural validation
// of simulation configurations. The on-disk contract is JSON; YAML files
// are accepted as an alternate encoding of the same structure.
//
// Parameter keys keep the Unicode names of the underlying model
// (βᴵ, ηᵍ, κ₀s, ...) so existing configuration files load unchanged.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DateLayout is the calendar date format used throughout: ISO dates.
const DateLayout = "2006-01-02"

// DefaultSeedAgeFractions is the fixed three-way apportionment of seed
// counts across age strata used when the config does not override it.
// The literal values are domain-specific and not derivable from other
// config fields.
var DefaultSeedAgeFractions = []float64{0.12, 0.16, 0.72}

// Config is a loaded simulation configuration. Unknown extra keys in any
// section are tolerated and ignored.
type Config struct {
	Simulation  Simulation   `json:"simulation" yaml:"simulation"`
	Data        Data         `json:"data" yaml:"data"`
	Epidemic    Epidemic     `json:"epidemic_params" yaml:"epidemic_params"`
	Population  Population   `json:"population_params" yaml:"population_params"`
	NPI         NPI          `json:"NPI" yaml:"NPI"`
	Vaccination *Vaccination `json:"vaccination,omitempty" yaml:"vaccination,omitempty"`

	// sections records which top-level keys were actually present in the
	// source document; structural validation works on this, not on the
	// zero values of the typed fields.
	sections map[string]bool
}

// Simulation holds run control: engine selection, date range and output
// switches.
type Simulation struct {
	Engine          string `json:"engine" yaml:"engine"`
	StartDate       string `json:"start_date" yaml:"start_date"`
	EndDate         string `json:"end_date" yaml:"end_date"`
	SaveFullOutput  bool   `json:"save_full_output" yaml:"save_full_output"`
	SaveObservables bool   `json:"save_observables" yaml:"save_observables"`
	SaveTimeStep    *int   `json:"save_time_step,omitempty" yaml:"save_time_step,omitempty"`
	OutputFormat    string `json:"output_format" yaml:"output_format"`
	InitFormat      string `json:"init_format" yaml:"init_format"`
}

// Data names the input files, resolved relative to the data folder.
type Data struct {
	MetapopulationFile   string    `json:"metapopulation_data_filename" yaml:"metapopulation_data_filename"`
	MobilityFile         string    `json:"mobility_matrix_filename" yaml:"mobility_matrix_filename"`
	Kappa0File           string    `json:"kappa0_filename,omitempty" yaml:"kappa0_filename,omitempty"`
	SeedsFile            string    `json:"seeds_filename,omitempty" yaml:"seeds_filename,omitempty"`
	InitialConditionFile string    `json:"initial_condition_filename,omitempty" yaml:"initial_condition_filename,omitempty"`
	SeedAgeFractions     []float64 `json:"seed_age_fractions,omitempty" yaml:"seed_age_fractions,omitempty"`
}

// Epidemic holds the per-age transition rates. βᴬ may be omitted when
// scale_β is given; the builder derives βᴬ = scale_β·βᴵ.
type Epidemic struct {
	BetaI     float64  `json:"βᴵ" yaml:"βᴵ"`
	BetaA     *float64 `json:"βᴬ,omitempty" yaml:"βᴬ,omitempty"`
	ScaleBeta *float64 `json:"scale_β,omitempty" yaml:"scale_β,omitempty"`

	EtaG    []float64 `json:"ηᵍ" yaml:"ηᵍ"`
	AlphaG  []float64 `json:"αᵍ" yaml:"αᵍ"`
	MuG     []float64 `json:"μᵍ" yaml:"μᵍ"`
	ThetaG  []float64 `json:"θᵍ" yaml:"θᵍ"`
	GammaG  []float64 `json:"γᵍ" yaml:"γᵍ"`
	ZetaG   []float64 `json:"ζᵍ" yaml:"ζᵍ"`
	LambdaG []float64 `json:"λᵍ" yaml:"λᵍ"`
	OmegaG  []float64 `json:"ωᵍ" yaml:"ωᵍ"`
	PsiG    []float64 `json:"ψᵍ" yaml:"ψᵍ"`
	ChiG    []float64 `json:"χᵍ" yaml:"χᵍ"`
}

// Population holds the demographic structure shared by every patch.
type Population struct {
	GLabels  []string    `json:"G_labels" yaml:"G_labels"`
	Contacts [][]float64 `json:"C" yaml:"C"`
	KAvg     []float64   `json:"kᵍ" yaml:"kᵍ"`
	KHome    []float64   `json:"kᵍ_h" yaml:"kᵍ_h"`
	KWork    []float64   `json:"kᵍ_w" yaml:"kᵍ_w"`
	Mobility []float64   `json:"pᵍ" yaml:"pᵍ"`
	Xi       float64     `json:"ξ" yaml:"ξ"`
	Sigma    float64     `json:"σ" yaml:"σ"`
}

// NPI holds the intervention schedule: each vector is aligned
// index-for-index with the change-point steps tᶜs.
type NPI struct {
	Kappa0s     []float64 `json:"κ₀s" yaml:"κ₀s"`
	Phis        []float64 `json:"ϕs" yaml:"ϕs"`
	Deltas      []float64 `json:"δs" yaml:"δs"`
	TCs         []int     `json:"tᶜs" yaml:"tᶜs"`
	AreThereNPI bool      `json:"are_there_npi" yaml:"are_there_npi"`
}

// Vaccination configures the vaccination-stratified variant.
type Vaccination struct {
	StartVacc int       `json:"start_vacc" yaml:"start_vacc"`
	DurVacc   int       `json:"dur_vacc" yaml:"dur_vacc"`
	EpsilonG  []float64 `json:"ϵᵍ" yaml:"ϵᵍ"`
	DailyRate float64   `json:"percentage_of_vacc_per_day" yaml:"percentage_of_vacc_per_day"`
	Enabled   bool      `json:"are_there_vaccines" yaml:"are_there_vaccines"`
}

// Load reads a configuration file. Files ending in .yaml/.yml are parsed
// as YAML; everything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parse(data, yaml.Unmarshal)
	default:
		return parse(data, json.Unmarshal)
	}
}

// ParseJSON parses a configuration from raw JSON bytes.
func ParseJSON(data []byte) (*Config, error) {
	return parse(data, json.Unmarshal)
}

func parse(data []byte, unmarshal func([]byte, interface{}) error) (*Config, error) {
	cfg := &Config{}
	if err := unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Second pass over the raw document to record which top-level
	// sections are actually present.
	var raw map[string]interface{}
	if err := unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.sections = make(map[string]bool, len(raw))
	for k := range raw {
		cfg.sections[k] = true
	}

	return cfg, nil
}

// HasSection reports whether the named top-level section was present in
// the source document.
func (c *Config) HasSection(name string) bool {
	return c.sections[name]
}

// Save writes the configuration as indented JSON, matching the layout
// produced by external callers that rewrite configs between runs.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Start parses the simulation start date.
func (s Simulation) Start() (time.Time, error) {
	t, err := time.Parse(DateLayout, s.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing start_date %q: %w", s.StartDate, err)
	}
	return t, nil
}

// End parses the simulation end date.
func (s Simulation) End() (time.Time, error) {
	t, err := time.Parse(DateLayout, s.EndDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing end_date %q: %w", s.EndDate, err)
	}
	return t, nil
}

// Horizon returns T, the number of simulated days, counting both
// endpoints of the date range.
func (s Simulation) Horizon() (int, error) {
	start, err := s.Start()
	if err != nil {
		return 0, err
	}
	end, err := s.End()
	if err != nil {
		return 0, err
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days < 1 {
		return 0, fmt.Errorf("end_date %s precedes start_date %s", s.EndDate, s.StartDate)
	}
	return days, nil
}

// Dates returns the ISO date string for every time step.
func (s Simulation) Dates() ([]string, error) {
	start, err := s.Start()
	if err != nil {
		return nil, err
	}
	horizon, err := s.Horizon()
	if err != nil {
		return nil, err
	}
	dates := make([]string, horizon)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i).Format(DateLayout)
	}
	return dates, nil
}
