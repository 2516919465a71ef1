package entity

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"graphmodel/pkg/errors"
	"graphmodel/query"
	"graphmodel/schema"
	"graphmodel/store"
)

// ErrNoPayloadModel is returned by Relationship when the definition carries
// no payload model.
var ErrNoPayloadModel = stderrors.New("entity: relationship definition has no payload model")

// Manager executes graph operations for one relationship attribute of one
// saved instance. Every operation builds a structured statement anchored at
// the origin node and respecting the declared direction.
type Manager struct {
	origin *Node
	def    *schema.RelDef
	attr   string
	logger *zap.Logger
}

// Rel is one relationship instance carrying payload properties, bound to a
// persisted relationship.
type Rel struct {
	model *schema.RelSchema
	props map[string]interface{}
	ref   *store.RelRef
	start *schema.Schema
	end   *schema.Schema
}

// Get returns a payload property value (nil when absent).
func (r *Rel) Get(name string) interface{} { return r.props[name] }

// Properties returns every non-absent payload property value.
func (r *Rel) Properties() Props {
	out := make(Props)
	for k, v := range r.props {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// Ref returns the bound persisted relationship.
func (r *Rel) Ref() *store.RelRef { return r.ref }

// StartSchema returns the entity type at the relationship's start.
func (r *Rel) StartSchema() *schema.Schema { return r.start }

// EndSchema returns the entity type at the relationship's end.
func (r *Rel) EndSchema() *schema.Schema { return r.end }

func (m *Manager) pattern(lhs, rhs, ident string) query.Pattern {
	return query.Pattern{
		LHS:       lhs,
		RHS:       rhs,
		Ident:     ident,
		RelType:   m.def.RelType,
		Direction: m.def.Direction,
	}
}

func (m *Manager) client() store.Client {
	return m.origin.schema.Connection().Client()
}

// checkOrigin rejects operations on an instance without a persisted node.
func (m *Manager) checkOrigin() error {
	if !m.origin.Saved() {
		return errors.NewUnsavedNode(m.origin.schema.Name(), m.attr)
	}
	return nil
}

// checkNode rejects candidates whose type is not among the declared targets
// or that have no persisted node yet.
func (m *Manager) checkNode(candidate *Node) error {
	targets, err := m.def.Targets(m.origin.schema.Types())
	if err != nil {
		return err
	}
	if _, ok := targets[candidate.schema.Name()]; !ok {
		allowed := make([]string, 0, len(targets))
		for name := range targets {
			allowed = append(allowed, name)
		}
		return errors.NewTargetTypeMismatch(m.attr, candidate.schema.Name(), allowed)
	}
	if !candidate.Saved() {
		return errors.NewUnsavedNode(candidate.schema.Name(), m.attr)
	}
	return nil
}

// resolveTarget decides which declared target type a traversed node belongs
// to. With a single declared target the answer is immediate; otherwise the
// node's category relation names its type.
func (m *Manager) resolveTarget(ctx context.Context, ref *store.NodeRef) (*schema.Schema, error) {
	targets, err := m.def.Targets(m.origin.schema.Types())
	if err != nil {
		return nil, err
	}
	if len(targets) == 1 {
		for _, s := range targets {
			return s, nil
		}
	}

	rels, err := m.client().NodeRelationships(ctx, ref.ID)
	if err != nil {
		return nil, errors.NewStore("nodeRelationships", err)
	}
	for _, rel := range rels {
		for _, s := range targets {
			if rel.Type == s.CategoryRelation() {
				return s, nil
			}
		}
	}

	allowed := make([]string, 0, len(targets))
	for name := range targets {
		allowed = append(allowed, name)
	}
	return nil, errors.NewTargetTypeMismatch(m.attr, "unresolved", allowed)
}

// All returns every node reachable through this relationship.
func (m *Manager) All(ctx context.Context) ([]*Node, error) {
	return m.Search(ctx, nil)
}

// Search returns the reachable nodes whose properties equal every filter
// value.
func (m *Manager) Search(ctx context.Context, filters Filters) ([]*Node, error) {
	if err := m.checkOrigin(); err != nil {
		return nil, err
	}
	stmt := query.New().
		Start("origin", "self", m.origin.node.ID).
		MatchPattern(m.pattern("origin", "target", "r")).
		ReturnIdent("target")
	for _, name := range sortedKeys(filters) {
		stmt.WhereEq("target", name, "f_"+name, schema.Normalize(filters[name]))
	}

	rows, err := m.client().Query(ctx, stmt)
	if err != nil {
		return nil, errors.NewStore("traverse", err)
	}
	nodes := make([]*Node, 0, len(rows))
	for _, row := range rows {
		ref, ok := row[0].(*store.NodeRef)
		if !ok {
			return nil, errors.NewStore("traverse", stderrors.New("unexpected result shape"))
		}
		target, err := m.resolveTarget(ctx, ref)
		if err != nil {
			return nil, err
		}
		n, err := Inflate(target, ref)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Get returns the single reachable node matching the filters. No match is a
// DoesNotExist error and more than one match is an AmbiguousResult error.
func (m *Manager) Get(ctx context.Context, filters Filters) (*Node, error) {
	nodes, err := m.Search(ctx, filters)
	if err != nil {
		return nil, err
	}
	switch len(nodes) {
	case 0:
		return nil, errors.NewDoesNotExist(m.targetLabel())
	case 1:
		return nodes[0], nil
	default:
		return nil, errors.NewAmbiguousResult(m.targetLabel(), len(nodes))
	}
}

// targetLabel names what a lookup through this manager returns: the single
// declared target type, or the attribute for multi-target definitions.
func (m *Manager) targetLabel() string {
	if len(m.def.TargetNames) == 1 {
		return m.def.TargetNames[0]
	}
	return m.attr
}

// Single returns at most one reachable node, or nil when none exists.
func (m *Manager) Single(ctx context.Context) (*Node, error) {
	if err := m.checkOrigin(); err != nil {
		return nil, err
	}
	stmt := query.New().
		Start("origin", "self", m.origin.node.ID).
		MatchPattern(m.pattern("origin", "target", "r")).
		ReturnIdent("target").
		WithLimit(1)

	rows, err := m.client().Query(ctx, stmt)
	if err != nil {
		return nil, errors.NewStore("traverse", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ref, ok := rows[0][0].(*store.NodeRef)
	if !ok {
		return nil, errors.NewStore("traverse", stderrors.New("unexpected result shape"))
	}
	target, err := m.resolveTarget(ctx, ref)
	if err != nil {
		return nil, err
	}
	return Inflate(target, ref)
}

// Count returns how many relationships of this definition the origin has.
func (m *Manager) Count(ctx context.Context) (int64, error) {
	if err := m.checkOrigin(); err != nil {
		return 0, err
	}
	stmt := query.New().
		Start("origin", "self", m.origin.node.ID).
		MatchPattern(m.pattern("origin", "target", "r")).
		ReturnCount("r")

	rows, err := m.client().Query(ctx, stmt)
	if err != nil {
		return 0, errors.NewStore("count", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	count, ok := rows[0][0].(int64)
	if !ok {
		return 0, errors.NewStore("count", stderrors.New("unexpected result shape"))
	}
	return count, nil
}

// IsConnected reports whether a relationship of this definition exists
// between the origin and the candidate.
func (m *Manager) IsConnected(ctx context.Context, candidate *Node) (bool, error) {
	if err := m.checkOrigin(); err != nil {
		return false, err
	}
	if err := m.checkNode(candidate); err != nil {
		return false, err
	}
	stmt := query.New().
		Start("us", "self", m.origin.node.ID).
		Start("them", "them", candidate.node.ID).
		MatchPattern(m.pattern("us", "them", "r")).
		ReturnCount("r")

	rows, err := m.client().Query(ctx, stmt)
	if err != nil {
		return false, errors.NewStore("isConnected", err)
	}
	if len(rows) == 0 {
		return false, nil
	}
	count, ok := rows[0][0].(int64)
	if !ok {
		return false, errors.NewStore("isConnected", stderrors.New("unexpected result shape"))
	}
	return count > 0, nil
}

// Connect establishes the relationship between the origin and the
// candidate. Connecting twice yields a single relationship. When the
// definition carries a payload model the validated payload is written onto
// the relationship and a bound Rel is returned; otherwise loose payload
// properties are written as given and the returned Rel is nil.
func (m *Manager) Connect(ctx context.Context, candidate *Node, props Props) (*Rel, error) {
	if err := m.checkOrigin(); err != nil {
		return nil, err
	}
	if err := m.checkNode(candidate); err != nil {
		return nil, err
	}

	stmt := query.New().
		Start("us", "self", m.origin.node.ID).
		Start("them", "them", candidate.node.ID).
		CreateUniquePattern(m.pattern("us", "them", "r"))

	if m.def.Model != nil {
		values, err := m.validatePayload(props)
		if err != nil {
			return nil, err
		}
		for _, p := range m.def.Model.Properties() {
			v := values[p.Name]
			if v == nil {
				continue
			}
			stmt.Set("r", p.Name, "place_holder_"+p.Name, v)
		}
		stmt.ReturnIdent("r")

		rows, err := m.client().Query(ctx, stmt)
		if err != nil {
			return nil, errors.NewStore("connect", err)
		}
		if len(rows) == 0 {
			return nil, errors.NewStore("connect", stderrors.New("relationship was not created"))
		}
		ref, ok := rows[0][0].(*store.RelRef)
		if !ok {
			return nil, errors.NewStore("connect", stderrors.New("unexpected result shape"))
		}
		return m.bindRel(candidate, values, ref), nil
	}

	for _, name := range sortedKeys(props) {
		stmt.Set("r", name, "place_holder_"+name, schema.Normalize(props[name]))
	}
	if _, err := m.client().Query(ctx, stmt); err != nil {
		return nil, errors.NewStore("connect", err)
	}
	return nil, nil
}

// Relationship returns the payload-bearing relationship between the origin
// and the candidate, or nil when they are not connected. The definition
// must carry a payload model.
func (m *Manager) Relationship(ctx context.Context, candidate *Node) (*Rel, error) {
	if m.def.Model == nil {
		return nil, ErrNoPayloadModel
	}
	if err := m.checkOrigin(); err != nil {
		return nil, err
	}
	if err := m.checkNode(candidate); err != nil {
		return nil, err
	}

	stmt := query.New().
		Start("us", "self", m.origin.node.ID).
		Start("them", "them", candidate.node.ID).
		MatchPattern(m.pattern("us", "them", "r")).
		ReturnIdent("r")

	rows, err := m.client().Query(ctx, stmt)
	if err != nil {
		return nil, errors.NewStore("relationship", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ref, ok := rows[0][0].(*store.RelRef)
	if !ok {
		return nil, errors.NewStore("relationship", stderrors.New("unexpected result shape"))
	}

	values := make(map[string]interface{})
	for _, p := range m.def.Model.Properties() {
		v := ref.Properties[p.Name]
		if err := p.Validate(m.def.Model.Name(), v); err != nil {
			return nil, err
		}
		values[p.Name] = v
	}
	return m.bindRel(candidate, values, ref), nil
}

// Reconnect moves the relationship from one node to another, carrying every
// payload property over. The origin must be connected to the old node.
func (m *Manager) Reconnect(ctx context.Context, old, replacement *Node) error {
	if err := m.checkOrigin(); err != nil {
		return err
	}
	if err := m.checkNode(old); err != nil {
		return err
	}
	if err := m.checkNode(replacement); err != nil {
		return err
	}

	lookup := query.New().
		Start("us", "self", m.origin.node.ID).
		Start("old", "old", old.node.ID).
		MatchPattern(m.pattern("us", "old", "r")).
		ReturnIdent("r")
	rows, err := m.client().Query(ctx, lookup)
	if err != nil {
		return errors.NewStore("reconnect", err)
	}
	if len(rows) == 0 {
		return errors.NewNotConnected(m.attr)
	}
	existing, ok := rows[0][0].(*store.RelRef)
	if !ok {
		return errors.NewStore("reconnect", stderrors.New("unexpected result shape"))
	}

	stmt := query.New().
		Start("us", "self", m.origin.node.ID).
		Start("old", "old", old.node.ID).
		Start("new", "new", replacement.node.ID).
		MatchPattern(m.pattern("us", "old", "r")).
		CreateUniquePattern(m.pattern("us", "new", "r2"))
	for _, name := range sortedKeys(existing.Properties) {
		stmt.SetFrom("r2", name, "r", name)
	}
	stmt.DeleteIdent("r")

	if _, err := m.client().Query(ctx, stmt); err != nil {
		return errors.NewStore("reconnect", err)
	}
	m.logger.Debug("relationship moved",
		zap.String("attribute", m.attr),
		zap.String("from", old.node.ID),
		zap.String("to", replacement.node.ID),
	)
	return nil
}

// Disconnect deletes the relationship between the origin and the candidate.
// No relationship is not an error.
func (m *Manager) Disconnect(ctx context.Context, candidate *Node) error {
	if err := m.checkOrigin(); err != nil {
		return err
	}
	if !candidate.Saved() {
		return errors.NewUnsavedNode(candidate.schema.Name(), m.attr)
	}

	stmt := query.New().
		Start("us", "self", m.origin.node.ID).
		Start("them", "them", candidate.node.ID).
		MatchPattern(m.pattern("us", "them", "r")).
		DeleteIdent("r")

	if _, err := m.client().Query(ctx, stmt); err != nil {
		return errors.NewStore("disconnect", err)
	}
	return nil
}

// validatePayload checks connect payload values against the payload model.
func (m *Manager) validatePayload(props Props) (map[string]interface{}, error) {
	for name := range props {
		if _, ok := m.def.Model.Property(name); !ok {
			return nil, errors.NewNoSuchProperty(m.def.Model.Name(), name)
		}
	}
	values := make(map[string]interface{})
	for _, p := range m.def.Model.Properties() {
		v := props[p.Name]
		if err := p.Validate(m.def.Model.Name(), v); err != nil {
			return nil, err
		}
		if v != nil {
			values[p.Name] = schema.Normalize(v)
		} else {
			values[p.Name] = nil
		}
	}
	return values, nil
}

// bindRel wraps a persisted relationship in a payload instance with the
// endpoint types oriented by the declared direction.
func (m *Manager) bindRel(candidate *Node, values map[string]interface{}, ref *store.RelRef) *Rel {
	start, end := m.origin.schema, candidate.schema
	if m.def.Direction == query.Incoming {
		start, end = candidate.schema, m.origin.schema
	}
	return &Rel{
		model: m.def.Model,
		props: values,
		ref:   ref,
		start: start,
		end:   end,
	}
}
