package ir

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
)

// AttributeType names the type of an entity attribute.
type AttributeType string

const (
	TypeNull   AttributeType = "null" // only reported by Null values
	TypeString AttributeType = "string"
	TypeInt    AttributeType = "int"
	TypeFloat  AttributeType = "float"
	TypeBool   AttributeType = "bool"
	TypeTime   AttributeType = "time"
)

// ValidAttributeTypes defines the attribute types a model may declare.
var ValidAttributeTypes = map[AttributeType]bool{
	TypeString: true,
	TypeInt:    true,
	TypeFloat:  true,
	TypeBool:   true,
	TypeTime:   true,
}

// identPattern restricts entity and attribute names. Names are embedded in
// JSON paths and bucket names, so they must stay plain identifiers.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidName reports whether s can be used as an entity or attribute name.
func ValidName(s string) bool {
	return identPattern.MatchString(s)
}

// ObjectID identifies an entity instance for its whole lifetime.
type ObjectID string

// Record is the store-level representation of an entity instance.
type Record struct {
	ID     ObjectID `json:"id"`
	Entity string   `json:"entity"`
	Seq    int64    `json:"seq"`    // Logical insertion clock, sort tie-breaker
	Values Object   `json:"values"` // nil when property values were not fetched
}

// EntitySchema describes one entity type of a model.
type EntitySchema struct {
	Name       string                   `json:"name" yaml:"name"`
	Attributes map[string]AttributeType `json:"attributes" yaml:"attributes"`
}

// AttributeNames returns the attribute names in sorted order.
func (e *EntitySchema) AttributeNames() []string {
	names := make([]string, 0, len(e.Attributes))
	for name := range e.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every attribute in values is declared by the entity
// and holds a value of the declared type (or Null).
func (e *EntitySchema) Validate(values Object) error {
	for _, key := range values.SortedKeys() {
		declared, ok := e.Attributes[key]
		if !ok {
			return fmt.Errorf("entity %s has no attribute %q", e.Name, key)
		}
		v := values[key]
		if isNull(v) {
			continue
		}
		if v.Type() != declared {
			return fmt.Errorf("attribute %s.%s: expected %s, got %s", e.Name, key, declared, v.Type())
		}
	}
	return nil
}

// Coerce returns a copy of values with each attribute converted to its
// declared type where that is lossless, then normalized. Undeclared
// attributes are kept as-is so that Validate can report them.
func (e *EntitySchema) Coerce(values Object) (Object, error) {
	out := make(Object, len(values))
	for key, v := range values {
		declared, ok := e.Attributes[key]
		if !ok {
			out[key] = v
			continue
		}
		coerced, err := Coerce(v, declared)
		if err != nil {
			return nil, fmt.Errorf("attribute %s.%s: %w", e.Name, key, err)
		}
		out[key] = Normalize(coerced)
	}
	return out, nil
}

// Model is a compiled schema: a named set of entity types.
type Model struct {
	Name     string         `json:"name" yaml:"name"`
	Entities []EntitySchema `json:"entities" yaml:"entities"`
}

// Entity looks up an entity schema by name.
func (m *Model) Entity(name string) (*EntitySchema, bool) {
	for i := range m.Entities {
		if m.Entities[i].Name == name {
			return &m.Entities[i], true
		}
	}
	return nil, false
}

// EntityNames returns every entity name in sorted order.
func (m *Model) EntityNames() []string {
	names := make([]string, 0, len(m.Entities))
	for _, e := range m.Entities {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// Validate checks names, attribute types and entity uniqueness.
func (m *Model) Validate() error {
	if len(m.Entities) == 0 {
		return fmt.Errorf("model %q declares no entities", m.Name)
	}
	seen := make([]string, 0, len(m.Entities))
	for _, e := range m.Entities {
		if !ValidName(e.Name) {
			return fmt.Errorf("invalid entity name %q", e.Name)
		}
		if slices.Contains(seen, e.Name) {
			return fmt.Errorf("duplicate entity %q", e.Name)
		}
		seen = append(seen, e.Name)
		if len(e.Attributes) == 0 {
			return fmt.Errorf("entity %s declares no attributes", e.Name)
		}
		for _, attr := range e.AttributeNames() {
			if !ValidName(attr) {
				return fmt.Errorf("invalid attribute name %s.%q", e.Name, attr)
			}
			if !ValidAttributeTypes[e.Attributes[attr]] {
				return fmt.Errorf("attribute %s.%s: unknown type %q", e.Name, attr, e.Attributes[attr])
			}
		}
	}
	return nil
}
