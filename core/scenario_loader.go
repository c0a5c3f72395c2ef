package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/signalsfoundry/carecascade-simulator/kb"
	"github.com/signalsfoundry/carecascade-simulator/model"
	"gopkg.in/yaml.v3"
)

// ScenarioFile is the exported scenario shape: the full configuration plus an
// optional summary of the results it produced.
type ScenarioFile struct {
	Name           string       `json:"name,omitempty" yaml:"name,omitempty"`
	Disease        string       `json:"disease,omitempty" yaml:"disease,omitempty"`
	Diseases       []string     `json:"diseases,omitempty" yaml:"diseases,omitempty"`
	HealthSystem   string       `json:"healthSystem,omitempty" yaml:"healthSystem,omitempty"`
	Country        string       `json:"country,omitempty" yaml:"country,omitempty"`
	Setting        kb.Setting   `json:"setting,omitempty" yaml:"setting,omitempty"`
	Population     float64      `json:"population,omitempty" yaml:"population,omitempty"`
	Weeks          int          `json:"weeks,omitempty" yaml:"weeks,omitempty"`
	Congestion     *float64     `json:"congestion,omitempty" yaml:"congestion,omitempty"`
	MultiCondition bool         `json:"multiCondition,omitempty" yaml:"multiCondition,omitempty"`
	Comorbidity    *Comorbidity `json:"comorbidity,omitempty" yaml:"comorbidity,omitempty"`

	AIInterventions  model.AIInterventionSet `json:"aiInterventions" yaml:"aiInterventions"`
	EffectMagnitudes MagnitudeList           `json:"effectMagnitudes,omitempty" yaml:"effectMagnitudes,omitempty"`

	Initial *model.CompartmentState `json:"initialState,omitempty" yaml:"initialState,omitempty"`
	Results *model.ResultSummary    `json:"results,omitempty" yaml:"results,omitempty"`
}

// MagnitudeEntry is one magnitude override in the typed list form.
type MagnitudeEntry struct {
	Intervention model.AIIntervention `json:"intervention" yaml:"intervention"`
	Parameter    model.Param          `json:"parameter" yaml:"parameter"`
	Magnitude    float64              `json:"magnitude" yaml:"magnitude"`
}

// MagnitudeList decodes either the typed list form or the legacy map keyed
// by "<intervention>_<param>".
type MagnitudeList []MagnitudeEntry

// UnmarshalJSON accepts a list, a legacy map, or null.
func (m *MagnitudeList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*m = nil
		return nil
	case trimmed[0] == '[':
		var entries []MagnitudeEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return err
		}
		*m = entries
		return nil
	case trimmed[0] == '{':
		var legacy map[string]float64
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return err
		}
		entries, err := fromLegacy(legacy)
		if err != nil {
			return err
		}
		*m = entries
		return nil
	default:
		return fmt.Errorf("%w: effectMagnitudes must be a list or an object", ErrInvalidScenario)
	}
}

// UnmarshalYAML accepts a sequence or a legacy mapping.
func (m *MagnitudeList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var entries []MagnitudeEntry
		if err := node.Decode(&entries); err != nil {
			return err
		}
		*m = entries
		return nil
	case yaml.MappingNode:
		var legacy map[string]float64
		if err := node.Decode(&legacy); err != nil {
			return err
		}
		entries, err := fromLegacy(legacy)
		if err != nil {
			return err
		}
		*m = entries
		return nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*m = nil
			return nil
		}
	}
	return fmt.Errorf("%w: effectMagnitudes must be a list or a mapping (line %d)", ErrInvalidScenario, node.Line)
}

func fromLegacy(legacy map[string]float64) (MagnitudeList, error) {
	mags := make(model.Magnitudes, len(legacy))
	for raw, v := range legacy {
		key, err := model.ParseEffectKey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
		}
		mags[key] = v
	}
	return MagnitudeListFrom(mags), nil
}

// MagnitudeListFrom converts typed magnitudes into the list form, sorted by key.
func MagnitudeListFrom(m model.Magnitudes) MagnitudeList {
	if len(m) == 0 {
		return nil
	}
	out := make(MagnitudeList, 0, len(m))
	for _, k := range m.Keys() {
		out = append(out, MagnitudeEntry{Intervention: k.Intervention, Parameter: k.Param, Magnitude: m[k]})
	}
	return out
}

// Magnitudes validates the entries and returns them as typed keys.
func (m MagnitudeList) Magnitudes() (model.Magnitudes, error) {
	out := make(model.Magnitudes, len(m))
	for _, e := range m {
		iv, err := model.ParseIntervention(string(e.Intervention))
		if err != nil {
			return nil, err
		}
		p, err := model.ParseParam(string(e.Parameter))
		if err != nil {
			return nil, err
		}
		out[model.EffectKey{Intervention: iv, Param: p}] = e.Magnitude
	}
	return out, nil
}

// DiseaseList returns the diseases the file selects: the explicit list when
// present, else the single disease.
func (f *ScenarioFile) DiseaseList() []string {
	if len(f.Diseases) > 0 {
		return uniqueIDs(f.Diseases)
	}
	if f.Disease != "" {
		return []string{f.Disease}
	}
	return nil
}

// Config converts the file into a validated ScenarioConfig.
func (f *ScenarioFile) Config() (ScenarioConfig, error) {
	mags, err := f.EffectMagnitudes.Magnitudes()
	if err != nil {
		return ScenarioConfig{}, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	disease := f.Disease
	if disease == "" && len(f.Diseases) > 0 {
		disease = f.Diseases[0]
	}
	cfg := ScenarioConfig{
		Name:           f.Name,
		Disease:        disease,
		HealthSystem:   f.HealthSystem,
		Country:        f.Country,
		Setting:        kb.NormalizeSetting(f.Setting),
		Population:     f.Population,
		Weeks:          f.Weeks,
		Congestion:     f.Congestion,
		MultiCondition: f.MultiCondition,
		Comorbidity:    f.Comorbidity,
		AI:             f.AIInterventions,
		Magnitudes:     mags,
		Initial:        f.Initial,
	}
	if err := cfg.Validate(); err != nil {
		return ScenarioConfig{}, err
	}
	return cfg, nil
}

// ScenarioFileFrom builds the exported shape of cfg. summary may be nil.
func ScenarioFileFrom(cfg ScenarioConfig, diseases []string, summary *model.ResultSummary) *ScenarioFile {
	return &ScenarioFile{
		Name:             cfg.Name,
		Disease:          cfg.Disease,
		Diseases:         diseases,
		HealthSystem:     cfg.HealthSystem,
		Country:          cfg.Country,
		Setting:          cfg.Setting,
		Population:       cfg.Population,
		Weeks:            cfg.Weeks,
		Congestion:       cfg.Congestion,
		MultiCondition:   cfg.MultiCondition,
		Comorbidity:      cfg.Comorbidity,
		AIInterventions:  cfg.AI,
		EffectMagnitudes: MagnitudeListFrom(cfg.Magnitudes),
		Initial:          cfg.Initial,
		Results:          summary,
	}
}

// LoadScenario decodes a scenario in the given format ("json" or "yaml").
func LoadScenario(r io.Reader, format string) (*ScenarioFile, error) {
	var f ScenarioFile
	switch strings.ToLower(format) {
	case "json":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidScenario, err)
		}
	case "yaml", "yml", "":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidScenario, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidScenario, format)
	}
	return &f, nil
}

// LoadScenarioFile reads a scenario from disk, picking the format from the
// file extension.
func LoadScenarioFile(path string) (*ScenarioFile, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer fh.Close()
	return LoadScenario(fh, FormatFromPath(path))
}

// SaveScenario encodes f in the given format.
func SaveScenario(w io.Writer, f *ScenarioFile, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	case "yaml", "yml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: unsupported format %q", ErrInvalidScenario, format)
	}
}

// FormatFromPath maps a file extension onto "json" or "yaml".
func FormatFromPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return "json"
	}
	return "yaml"
}
