package schema

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/goccy/go-yaml"
)

// Load resolves the named schema from a resource bundle.
//
// The bundle must contain a YAML document at "<name>.yaml". The parsed
// schema is validated before it is returned.
func Load(name string, bundle fs.FS) (*Schema, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("schema name is required")
	}
	if bundle == nil {
		return nil, fmt.Errorf("schema bundle is required")
	}
	raw, err := fs.ReadFile(bundle, name+".yaml")
	if err != nil {
		return nil, fmt.Errorf("read schema %q: %w", name, err)
	}
	var s Schema
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse schema %q: %w", name, err)
	}
	if s.Name == "" {
		s.Name = name
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("validate schema %q: %w", name, err)
	}
	return &s, nil
}

// MustLoad is Load for schemas that ship with the program. A missing or
// malformed bundled schema is a deployment defect, so MustLoad panics.
func MustLoad(name string, bundle fs.FS) *Schema {
	s, err := Load(name, bundle)
	if err != nil {
		panic(fmt.Sprintf("graphstack: load schema %q: %v", name, err))
	}
	return s
}
