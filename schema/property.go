// Package schema declares entity types for the mapping layer: typed,
// optionally indexed property descriptors, relationship definitions, and the
// explicit type registry they are registered in at application startup.
package schema

import (
	"graphmodel/pkg/errors"
)

// ValueType is the declared scalar type of a property.
type ValueType int

const (
	String ValueType = iota
	Int
	Float
	Bool
)

// String returns the type name used in validation errors.
func (t ValueType) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "integer"
	case Float:
		return "float"
	case Bool:
		return "boolean"
	default:
		return "unknown"
	}
}

// Property declares a typed, optionally indexed, optionally required scalar
// field. Descriptors are immutable after type registration; Index and
// UniqueIndex are mutually exclusive, enforced at registration.
type Property struct {
	Name        string
	Type        ValueType
	Optional    bool
	Index       bool
	UniqueIndex bool
}

// PropertyOption configures a property descriptor at declaration.
type PropertyOption func(*Property)

// Optional marks the property as allowed to be absent.
func Optional() PropertyOption {
	return func(p *Property) { p.Optional = true }
}

// WithIndex marks the property for plain (non-unique) indexing.
func WithIndex() PropertyOption {
	return func(p *Property) { p.Index = true }
}

// WithUniqueIndex marks the property for unique indexing.
func WithUniqueIndex() PropertyOption {
	return func(p *Property) { p.UniqueIndex = true }
}

// StringProperty declares a string property.
func StringProperty(name string, opts ...PropertyOption) Property {
	return newProperty(name, String, opts)
}

// IntProperty declares an integer property.
func IntProperty(name string, opts ...PropertyOption) Property {
	return newProperty(name, Int, opts)
}

// FloatProperty declares a float property.
func FloatProperty(name string, opts ...PropertyOption) Property {
	return newProperty(name, Float, opts)
}

// BoolProperty declares a boolean property.
func BoolProperty(name string, opts ...PropertyOption) Property {
	return newProperty(name, Bool, opts)
}

func newProperty(name string, t ValueType, opts []PropertyOption) Property {
	p := Property{Name: name, Type: t}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Indexed reports whether the property participates in the type's index.
func (p Property) Indexed() bool {
	return p.Index || p.UniqueIndex
}

// Validate checks a candidate value against the descriptor. A nil value
// passes only when the property is optional. Validation is pure: it never
// mutates the candidate.
func (p Property) Validate(entityType string, value interface{}) error {
	if value == nil {
		if p.Optional {
			return nil
		}
		return errors.NewRequiredProperty(entityType, p.Name, p.Type.String())
	}

	switch p.Type {
	case String:
		if _, ok := value.(string); ok {
			return nil
		}
	case Int:
		switch value.(type) {
		case int, int32, int64:
			return nil
		}
	case Float:
		switch value.(type) {
		case float32, float64:
			return nil
		}
	case Bool:
		if _, ok := value.(bool); ok {
			return nil
		}
	}
	return errors.NewTypeValidation(entityType, p.Name, p.Type.String(), value)
}

// Normalize widens accepted numeric kinds to the canonical persisted form
// (int64 and float64). Call only with values that passed Validate.
func Normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return value
	}
}
