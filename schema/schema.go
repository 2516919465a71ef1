package schema

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"graphmodel/connection"
	"graphmodel/pkg/errors"
	"graphmodel/store"
)

// Schema is the registered descriptor of one entity type: its name, ordered
// property descriptors, relationship definitions, and the store index
// created for it at registration.
type Schema struct {
	name  string
	props []Property

	byName map[string]Property
	rels   map[string]*RelDef

	index store.Index
	conn  *connection.Registry
	types *TypeRegistry
}

// Option configures a type at registration.
type Option func(*Schema) error

// WithProperties declares the type's property descriptors, in order.
func WithProperties(props ...Property) Option {
	return func(s *Schema) error {
		for _, p := range props {
			if p.Index && p.UniqueIndex {
				return &errors.GraphError{
					Kind:       errors.KindTypeValidation,
					Message:    "unique_index and index are mutually exclusive for property \"" + p.Name + "\" of " + s.name,
					EntityType: s.name,
					Property:   p.Name,
				}
			}
			if _, dup := s.byName[p.Name]; dup {
				return errors.NewAlreadyRegistered(s.name + "." + p.Name)
			}
			s.props = append(s.props, p)
			s.byName[p.Name] = p
		}
		return nil
	}
}

// WithRelationship declares a relationship attribute on the type.
func WithRelationship(attr string, def *RelDef) Option {
	return func(s *Schema) error {
		if _, dup := s.rels[attr]; dup {
			return errors.NewAlreadyRegistered(s.name + "." + attr)
		}
		def.Attr = attr
		s.rels[attr] = def
		return nil
	}
}

// Name returns the entity type name.
func (s *Schema) Name() string { return s.name }

// Properties returns the ordered property descriptors.
func (s *Schema) Properties() []Property {
	out := make([]Property, len(s.props))
	copy(out, s.props)
	return out
}

// Property returns the descriptor with the given name.
func (s *Schema) Property(name string) (Property, bool) {
	p, ok := s.byName[name]
	return p, ok
}

// Relationship returns the relationship definition registered under attr.
func (s *Schema) Relationship(attr string) (*RelDef, bool) {
	d, ok := s.rels[attr]
	return d, ok
}

// Relationships returns all relationship definitions keyed by attribute.
func (s *Schema) Relationships() map[string]*RelDef {
	out := make(map[string]*RelDef, len(s.rels))
	for k, v := range s.rels {
		out[k] = v
	}
	return out
}

// Index returns the type's store index handle.
func (s *Schema) Index() store.Index { return s.index }

// Connection returns the registry the type was registered against.
func (s *Schema) Connection() *connection.Registry { return s.conn }

// Types returns the type registry the schema belongs to.
func (s *Schema) Types() *TypeRegistry { return s.types }

// CategoryRelation is the fixed relation name linking every instance node
// to the type's category anchor: the uppercased type name.
func (s *Schema) CategoryRelation() string {
	return strings.ToUpper(s.name)
}

// TypeRegistry maps entity type names to registered schemas. It replaces
// runtime namespace lookup for forward-declared relationship targets with a
// deterministic, explicitly populated registry.
type TypeRegistry struct {
	conn   *connection.Registry
	logger *zap.Logger

	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewTypeRegistry creates a type registry bound to a connection registry.
func NewTypeRegistry(conn *connection.Registry) *TypeRegistry {
	return &TypeRegistry{
		conn:    conn,
		logger:  conn.Logger(),
		schemas: make(map[string]*Schema),
	}
}

// Connection returns the bound connection registry.
func (t *TypeRegistry) Connection() *connection.Registry { return t.conn }

// Register declares an entity type: it validates the declaration, creates
// the type's index (idempotent get-or-create keyed by the type name), and
// records the schema for forward-reference resolution. Called once per type
// during application startup; duplicate names fail.
func (t *TypeRegistry) Register(ctx context.Context, name string, opts ...Option) (*Schema, error) {
	s := &Schema{
		name:   name,
		byName: make(map[string]Property),
		rels:   make(map[string]*RelDef),
		conn:   t.conn,
		types:  t,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	t.mu.Lock()
	if _, dup := t.schemas[name]; dup {
		t.mu.Unlock()
		return nil, errors.NewAlreadyRegistered(name)
	}
	// Reserve the name before the index round trip so concurrent duplicate
	// registrations fail fast rather than racing the store.
	t.schemas[name] = s
	t.mu.Unlock()

	index, err := t.conn.NodeIndex(ctx, name)
	if err != nil {
		t.mu.Lock()
		delete(t.schemas, name)
		t.mu.Unlock()
		return nil, err
	}
	s.index = index

	t.logger.Debug("entity type registered",
		zap.String("type", name),
		zap.Int("properties", len(s.props)),
		zap.Int("relationships", len(s.rels)),
	)
	return s, nil
}

// Get resolves a registered type by name.
func (t *TypeRegistry) Get(name string) (*Schema, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.schemas[name]
	if !ok || s.index == nil {
		return nil, errors.NewUnknownType(name)
	}
	return s, nil
}
