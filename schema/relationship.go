package schema

import (
	"fmt"
	"sync"

	"graphmodel/pkg/errors"
	"graphmodel/query"
)

// Cardinality is the policy governing how many relationships of one
// definition may exist from a single origin.
type Cardinality int

const (
	// ZeroOrMore places no bound on the relationship count. It is the only
	// policy currently defined.
	ZeroOrMore Cardinality = iota
)

// RelDef is the compile-time declaration of one relationship attribute: its
// type name on the wire, direction, allowed target types, cardinality
// policy, and optional payload model. Target types are named, not
// referenced, so definitions may point at types registered later; names
// resolve through the type registry on first use.
type RelDef struct {
	// Attr is the attribute name the definition is registered under. Set
	// during type registration.
	Attr string

	RelType     string
	Direction   query.Direction
	TargetNames []string
	Cardinality Cardinality
	Model       *RelSchema

	mu       sync.Mutex
	resolved map[string]*Schema
}

// RelationshipTo declares an outgoing relationship to the named types.
func RelationshipTo(relType string, targets ...string) *RelDef {
	return &RelDef{RelType: relType, Direction: query.Outgoing, TargetNames: targets, Cardinality: ZeroOrMore}
}

// RelationshipFrom declares an incoming relationship from the named types.
func RelationshipFrom(relType string, targets ...string) *RelDef {
	return &RelDef{RelType: relType, Direction: query.Incoming, TargetNames: targets, Cardinality: ZeroOrMore}
}

// Relationship declares an undirected relationship with the named types.
func Relationship(relType string, targets ...string) *RelDef {
	return &RelDef{RelType: relType, Direction: query.Either, TargetNames: targets, Cardinality: ZeroOrMore}
}

// WithModel attaches a relationship payload model to the definition.
func (d *RelDef) WithModel(m *RelSchema) *RelDef {
	d.Model = m
	return d
}

// WithCardinality sets the cardinality policy.
func (d *RelDef) WithCardinality(c Cardinality) *RelDef {
	d.Cardinality = c
	return d
}

// Targets resolves the definition's target type names against the registry,
// caching the result once every name resolves. Resolution failures are not
// cached, so a name registered later still resolves.
func (d *RelDef) Targets(types *TypeRegistry) (map[string]*Schema, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.resolved != nil {
		return d.resolved, nil
	}

	m := make(map[string]*Schema, len(d.TargetNames))
	for _, name := range d.TargetNames {
		s, err := types.Get(name)
		if err != nil {
			return nil, err
		}
		m[name] = s
	}
	d.resolved = m
	return m, nil
}

// RelSchema is a relationship payload model: a named, ordered set of
// property descriptors carried on relationships of a definition.
type RelSchema struct {
	name   string
	props  []Property
	byName map[string]Property
}

// NewRelModel declares a relationship payload model. Relationship
// properties live on edges and cannot be indexed.
func NewRelModel(name string, props ...Property) (*RelSchema, error) {
	byName := make(map[string]Property, len(props))
	for _, p := range props {
		if p.Indexed() {
			return nil, &errors.GraphError{
				Kind:       errors.KindTypeValidation,
				Message:    fmt.Sprintf("relationship property %q of %s cannot be indexed", p.Name, name),
				EntityType: name,
				Property:   p.Name,
			}
		}
		if _, dup := byName[p.Name]; dup {
			return nil, errors.NewAlreadyRegistered(name + "." + p.Name)
		}
		byName[p.Name] = p
	}
	return &RelSchema{name: name, props: props, byName: byName}, nil
}

// Name returns the model name.
func (s *RelSchema) Name() string { return s.name }

// Properties returns the ordered property descriptors.
func (s *RelSchema) Properties() []Property {
	out := make([]Property, len(s.props))
	copy(out, s.props)
	return out
}

// Property returns the descriptor with the given name.
func (s *RelSchema) Property(name string) (Property, bool) {
	p, ok := s.byName[name]
	return p, ok
}
