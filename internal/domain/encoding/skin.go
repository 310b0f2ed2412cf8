package encoding

import (
	"fmt"
	"sort"

	"github.com/okian/attrition/internal/domain/model"
)

// CategoricalFields are the features selected from a closed list of labels.
var CategoricalFields = []string{
	model.FeatureEducation,
	model.FeatureEnvironmentSatisfaction,
	model.FeatureJobInvolvement,
	model.FeatureJobLevel,
	model.FeatureJobSatisfaction,
	model.FeaturePerformanceRating,
	model.FeatureWorkLifeBalance,
}

// Skin describes one variant of the prediction form: its title, the
// display label of each feature and the category table of each
// categorical feature.
type Skin struct {
	Name   string
	Title  string
	Labels map[string]string
	Tables map[string]CategoryTable
}

// Label returns the display label of a feature, falling back to its name.
func (s Skin) Label(field string) string {
	if l, ok := s.Labels[field]; ok && l != "" {
		return l
	}
	return field
}

// Table returns the category table of a feature.
func (s Skin) Table(field string) (CategoryTable, bool) {
	t, ok := s.Tables[field]
	return t, ok
}

// Categorical reports whether field is chosen from a table in this skin.
func (s Skin) Categorical(field string) bool {
	_, ok := s.Tables[field]
	return ok
}

// Validate checks the skin covers every categorical feature and that each
// table spans exactly the feature's documented code range.
func (s Skin) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSkin)
	}
	for _, field := range CategoricalFields {
		t, ok := s.Tables[field]
		if !ok {
			return fmt.Errorf("%w: %s has no table for %s", ErrInvalidSkin, s.Name, field)
		}
		rng := model.Ranges[field]
		if rng.Min != 1 || t.Len() != int(rng.Max) {
			return fmt.Errorf("%w: %s table for %s has %d labels, want %d",
				ErrInvalidSkin, s.Name, field, t.Len(), int(rng.Max-rng.Min)+1)
		}
	}
	for field := range s.Tables {
		if !isCategorical(field) {
			return fmt.Errorf("%w: %s has a table for non-categorical %s", ErrInvalidSkin, s.Name, field)
		}
	}
	return nil
}

// Apply encodes selections onto base. Every categorical feature must be
// selected; unknown labels fail with UnknownLabelError.
func (s Skin) Apply(base model.EmployeeRecord, selections map[string]string) (model.EmployeeRecord, error) {
	out := base
	for _, field := range CategoricalFields {
		label, ok := selections[field]
		if !ok {
			return model.EmployeeRecord{}, &UnknownLabelError{Field: field, Label: ""}
		}
		code, err := Encode(s.Tables[field], label)
		if err != nil {
			return model.EmployeeRecord{}, err
		}
		out.Set(field, float64(code))
	}
	return out, nil
}

// EncodeAll encodes each selection independently and returns the codes.
func (s Skin) EncodeAll(selections map[string]string) (map[string]int, error) {
	fields := make([]string, 0, len(selections))
	for f := range selections {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	codes := make(map[string]int, len(selections))
	for _, field := range fields {
		t, ok := s.Tables[field]
		if !ok {
			return nil, &UnknownLabelError{Field: field, Label: selections[field]}
		}
		code, err := Encode(t, selections[field])
		if err != nil {
			return nil, err
		}
		codes[field] = code
	}
	return codes, nil
}

func isCategorical(field string) bool {
	for _, f := range CategoricalFields {
		if f == field {
			return true
		}
	}
	return false
}

// Registry is an immutable set of skins with a default.
type Registry struct {
	skins       map[string]Skin
	names       []string
	defaultName string
}

// NewRegistry validates skins and selects defaultName as the fallback.
func NewRegistry(defaultName string, skins ...Skin) (*Registry, error) {
	r := &Registry{skins: make(map[string]Skin, len(skins))}
	for _, s := range skins {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.skins[s.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSkin, s.Name)
		}
		r.skins[s.Name] = s
		r.names = append(r.names, s.Name)
	}
	sort.Strings(r.names)
	if _, ok := r.skins[defaultName]; !ok {
		return nil, fmt.Errorf("%w: default %q", ErrUnknownSkin, defaultName)
	}
	r.defaultName = defaultName
	return r, nil
}

// Get returns the named skin; an empty name selects the default.
func (r *Registry) Get(name string) (Skin, error) {
	if name == "" {
		name = r.defaultName
	}
	s, ok := r.skins[name]
	if !ok {
		return Skin{}, fmt.Errorf("%w: %q", ErrUnknownSkin, name)
	}
	return s, nil
}

// Default returns the default skin.
func (r *Registry) Default() Skin { return r.skins[r.defaultName] }

// Names returns the skin names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
