package kb

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/signalsfoundry/carecascade-simulator/model"
	"gopkg.in/yaml.v3"
)

// GenericID names the fallback disease, health system and country entries.
const GenericID = "generic"

var (
	ErrDiseaseNotFound      = errors.New("disease not found")
	ErrHealthSystemNotFound = errors.New("health system not found")
	ErrCountryNotFound      = errors.New("country profile not found")
	ErrInterventionNotFound = errors.New("AI intervention not found")
	ErrDuplicate            = errors.New("catalog entry already exists")
	ErrInvalidEntry         = errors.New("invalid catalog entry")
)

//go:embed catalog.yaml
var defaultCatalog []byte

// KnowledgeBase is an in-memory, thread-safe store for the parameter
// catalogs the resolver reads from.
type KnowledgeBase struct {
	mu sync.RWMutex

	diseases      map[string]*DiseaseProfile
	healthSystems map[string]*HealthSystem
	countries     map[string]*CountryProfile
	interventions map[model.AIIntervention]*InterventionDefinition
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		diseases:      make(map[string]*DiseaseProfile),
		healthSystems: make(map[string]*HealthSystem),
		countries:     make(map[string]*CountryProfile),
		interventions: make(map[model.AIIntervention]*InterventionDefinition),
	}
}

// Default returns a KB populated with the built-in catalog.
func Default() (*KnowledgeBase, error) {
	store := NewKnowledgeBase()
	if err := store.LoadCatalog(strings.NewReader(string(defaultCatalog)), "yaml"); err != nil {
		return nil, fmt.Errorf("load default catalog: %w", err)
	}
	return store, nil
}

// LoadFile merges a catalog file into the KB. The format follows the file
// extension (.json, otherwise YAML).
func (kb *KnowledgeBase) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open catalog %q: %w", path, err)
	}
	defer f.Close()

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	return kb.LoadCatalog(f, format)
}

// LoadCatalog decodes a catalog document and adds every entry. Entries that
// already exist are replaced, so a user catalog can override defaults.
func (kb *KnowledgeBase) LoadCatalog(r io.Reader, format string) error {
	var cat Catalog
	switch strings.ToLower(format) {
	case "json":
		if err := json.NewDecoder(r).Decode(&cat); err != nil {
			return fmt.Errorf("decode catalog: %w", err)
		}
	default:
		if err := yaml.NewDecoder(r).Decode(&cat); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode catalog: %w", err)
		}
	}

	for i := range cat.Diseases {
		if err := kb.PutDisease(&cat.Diseases[i]); err != nil {
			return err
		}
	}
	for i := range cat.HealthSystems {
		if err := kb.PutHealthSystem(&cat.HealthSystems[i]); err != nil {
			return err
		}
	}
	for i := range cat.Countries {
		if err := kb.PutCountry(&cat.Countries[i]); err != nil {
			return err
		}
	}
	for i := range cat.Interventions {
		if err := kb.PutIntervention(&cat.Interventions[i]); err != nil {
			return err
		}
	}
	return nil
}

// ---- Diseases ----

// AddDisease adds a new disease. It returns ErrDuplicate if the ID exists.
func (kb *KnowledgeBase) AddDisease(d *DiseaseProfile) error {
	if err := d.Validate(); err != nil {
		return err
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if _, exists := kb.diseases[d.ID]; exists {
		return fmt.Errorf("%w: disease %q", ErrDuplicate, d.ID)
	}
	kb.diseases[d.ID] = d
	return nil
}

// PutDisease adds or replaces a disease.
func (kb *KnowledgeBase) PutDisease(d *DiseaseProfile) error {
	if err := d.Validate(); err != nil {
		return err
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.diseases[d.ID] = d
	return nil
}

// GetDisease returns a copy of the disease with the given ID.
func (kb *KnowledgeBase) GetDisease(id string) (*DiseaseProfile, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	d, ok := kb.diseases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDiseaseNotFound, id)
	}
	cp := *d
	cp.Mu = append([]float64(nil), d.Mu...)
	cp.Delta = append([]float64(nil), d.Delta...)
	cp.Rho = append([]float64(nil), d.Rho...)
	return &cp, nil
}

// ListDiseases returns all diseases sorted by ID.
func (kb *KnowledgeBase) ListDiseases() []*DiseaseProfile {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	res := make([]*DiseaseProfile, 0, len(kb.diseases))
	for _, d := range kb.diseases {
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// ---- Health systems ----

// AddHealthSystem adds a new preset. It returns ErrDuplicate if the ID exists.
func (kb *KnowledgeBase) AddHealthSystem(h *HealthSystem) error {
	if h != nil {
		h.Normalize()
	}
	if err := h.Validate(); err != nil {
		return err
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if _, exists := kb.healthSystems[h.ID]; exists {
		return fmt.Errorf("%w: health system %q", ErrDuplicate, h.ID)
	}
	kb.healthSystems[h.ID] = h
	return nil
}

// PutHealthSystem adds or replaces a preset.
func (kb *KnowledgeBase) PutHealthSystem(h *HealthSystem) error {
	if h != nil {
		h.Normalize()
	}
	if err := h.Validate(); err != nil {
		return err
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.healthSystems[h.ID] = h
	return nil
}

// GetHealthSystem returns a copy of the preset with the given ID.
func (kb *KnowledgeBase) GetHealthSystem(id string) (*HealthSystem, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	h, ok := kb.healthSystems[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrHealthSystemNotFound, id)
	}
	cp := *h
	cp.MuMultiplier = append([]float64(nil), h.MuMultiplier...)
	cp.DeltaMultiplier = append([]float64(nil), h.DeltaMultiplier...)
	cp.RhoMultiplier = append([]float64(nil), h.RhoMultiplier...)
	cp.PerDiem = append([]float64(nil), h.PerDiem...)
	return &cp, nil
}

// ListHealthSystems returns all presets sorted by ID.
func (kb *KnowledgeBase) ListHealthSystems() []*HealthSystem {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	res := make([]*HealthSystem, 0, len(kb.healthSystems))
	for _, h := range kb.healthSystems {
		res = append(res, h)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// ---- Countries ----

// PutCountry adds or replaces a country profile.
func (kb *KnowledgeBase) PutCountry(c *CountryProfile) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: country id is required", ErrInvalidEntry)
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.countries[c.ID] = c
	return nil
}

// GetCountry returns the profile with the given ID.
func (kb *KnowledgeBase) GetCountry(id string) (*CountryProfile, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	c, ok := kb.countries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCountryNotFound, id)
	}
	cp := *c
	return &cp, nil
}

// CountryOrGeneric returns the named profile, or the generic profile when
// id is empty or unknown. The boolean reports whether a fallback happened.
func (kb *KnowledgeBase) CountryOrGeneric(id string) (*CountryProfile, bool) {
	if id == "" || id == GenericID {
		if c, err := kb.GetCountry(GenericID); err == nil {
			return c, false
		}
		return GenericCountry(), false
	}
	if c, err := kb.GetCountry(id); err == nil {
		return c, false
	}
	if c, err := kb.GetCountry(GenericID); err == nil {
		return c, true
	}
	return GenericCountry(), true
}

// ListCountries returns all profiles sorted by ID.
func (kb *KnowledgeBase) ListCountries() []*CountryProfile {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	res := make([]*CountryProfile, 0, len(kb.countries))
	for _, c := range kb.countries {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// ---- Interventions ----

// PutIntervention adds or replaces an AI intervention definition.
func (kb *KnowledgeBase) PutIntervention(d *InterventionDefinition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	iv, _ := model.ParseIntervention(string(d.ID))
	d.ID = iv
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.interventions[iv] = d
	return nil
}

// GetIntervention returns a copy of the definition of iv.
func (kb *KnowledgeBase) GetIntervention(iv model.AIIntervention) (*InterventionDefinition, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	d, ok := kb.interventions[iv]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInterventionNotFound, iv)
	}
	cp := *d
	cp.Effects = append([]model.Effect(nil), d.Effects...)
	return &cp, nil
}

// ListInterventions returns all definitions in catalog order.
func (kb *KnowledgeBase) ListInterventions() []*InterventionDefinition {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	res := make([]*InterventionDefinition, 0, len(kb.interventions))
	for _, iv := range model.AllInterventions {
		if d, ok := kb.interventions[iv]; ok {
			res = append(res, d)
		}
	}
	return res
}
