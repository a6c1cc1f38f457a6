// Package schema loads and validates object-graph schema documents.
//
// A schema names the entities a store may hold and the typed attributes of
// each entity. Schemas are loaded once from a resource bundle and are
// immutable afterwards; a coordinator that needs a fresh copy reloads it
// rather than mutating a shared one.
package schema

import (
	"fmt"
	"strings"
)

// AttrType is the declared type of an entity attribute.
type AttrType string

const (
	// AttrString holds UTF-8 text.
	AttrString AttrType = "string"
	// AttrInt holds a 64-bit signed integer.
	AttrInt AttrType = "int"
	// AttrFloat holds a 64-bit float.
	AttrFloat AttrType = "float"
	// AttrBool holds a boolean.
	AttrBool AttrType = "bool"
	// AttrTime holds a UTC timestamp.
	AttrTime AttrType = "time"
	// AttrBytes holds an opaque byte blob.
	AttrBytes AttrType = "bytes"
)

// Attribute describes one typed attribute of an entity.
type Attribute struct {
	Name string   `yaml:"name"`
	Type AttrType `yaml:"type"`
}

// Entity describes one entity kind in the object graph.
type Entity struct {
	Name       string      `yaml:"name"`
	Attributes []Attribute `yaml:"attributes"`
}

// Schema is a validated, immutable object-graph schema.
type Schema struct {
	Name     string   `yaml:"name"`
	Entities []Entity `yaml:"entities"`
}

// Entity returns the named entity definition.
func (s *Schema) Entity(name string) (Entity, bool) {
	for _, e := range s.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return Entity{}, false
}

// EntityNames returns entity names in declaration order.
func (s *Schema) EntityNames() []string {
	names := make([]string, 0, len(s.Entities))
	for _, e := range s.Entities {
		names = append(names, e.Name)
	}
	return names
}

func (s *Schema) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("schema name is required")
	}
	if len(s.Entities) == 0 {
		return fmt.Errorf("schema %q declares no entities", s.Name)
	}
	seen := make(map[string]struct{}, len(s.Entities))
	for _, e := range s.Entities {
		if err := validIdent(e.Name); err != nil {
			return fmt.Errorf("entity name: %w", err)
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("duplicate entity %q", e.Name)
		}
		seen[e.Name] = struct{}{}
		attrs := make(map[string]struct{}, len(e.Attributes))
		for _, a := range e.Attributes {
			if err := validIdent(a.Name); err != nil {
				return fmt.Errorf("entity %q attribute name: %w", e.Name, err)
			}
			if _, dup := attrs[a.Name]; dup {
				return fmt.Errorf("entity %q duplicate attribute %q", e.Name, a.Name)
			}
			attrs[a.Name] = struct{}{}
			switch a.Type {
			case AttrString, AttrInt, AttrFloat, AttrBool, AttrTime, AttrBytes:
			default:
				return fmt.Errorf("entity %q attribute %q has unknown type %q", e.Name, a.Name, a.Type)
			}
		}
	}
	return nil
}

// validIdent accepts ASCII identifiers so entity names can double as table names.
func validIdent(name string) error {
	if name == "" {
		return fmt.Errorf("identifier is required")
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return fmt.Errorf("identifier %q starts with a digit", name)
			}
		default:
			return fmt.Errorf("identifier %q contains %q", name, r)
		}
	}
	return nil
}
