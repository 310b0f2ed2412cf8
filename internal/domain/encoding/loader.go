package encoding

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type skinFile struct {
	Skins []skinSpec `yaml:"skins"`
}

type skinSpec struct {
	Name   string              `yaml:"name"`
	Title  string              `yaml:"title"`
	Labels map[string]string   `yaml:"labels"`
	Tables map[string][]string `yaml:"tables"`
}

// LoadSkins parses a YAML document of the form
//
//	skins:
//	  - name: compact
//	    title: Attrition
//	    labels: {Age: "Age (years)"}
//	    tables:
//	      JobLevel: [L1, L2, L3, L4, L5]
//
// Fields without a label fall back to the built-in wording.
func LoadSkins(r io.Reader) ([]Skin, error) {
	var f skinFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse skins yaml: %w", err)
	}

	out := make([]Skin, 0, len(f.Skins))
	for _, spec := range f.Skins {
		s := Skin{
			Name:   spec.Name,
			Title:  spec.Title,
			Labels: labelsWith(spec.Labels),
			Tables: make(map[string]CategoryTable, len(spec.Tables)),
		}
		for field, labels := range spec.Tables {
			t, err := NewCategoryTable(field, labels...)
			if err != nil {
				return nil, fmt.Errorf("skin %s: %w", spec.Name, err)
			}
			s.Tables[field] = t
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadSkinsFile reads skins from path.
func LoadSkinsFile(path string) ([]Skin, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read skins: %w", err)
	}
	defer fh.Close()
	return LoadSkins(fh)
}

// NewDefaultRegistry combines the built-in skins with those in extraFile,
// when set, and selects defaultName (dashboard when empty).
func NewDefaultRegistry(defaultName, extraFile string) (*Registry, error) {
	skins := BuiltinSkins()
	if extraFile != "" {
		extra, err := LoadSkinsFile(extraFile)
		if err != nil {
			return nil, err
		}
		skins = append(skins, extra...)
	}
	if defaultName == "" {
		defaultName = SkinDashboard
	}
	return NewRegistry(defaultName, skins...)
}
