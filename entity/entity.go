// Package entity implements the per-instance lifecycle of declared entity
// types: validated construction, create/update/delete against the graph
// store with compensating rollback, index population, and the relationship
// managers bound to declared relationship attributes.
package entity

import (
	"context"

	"go.uber.org/zap"

	"graphmodel/internal/saga"
	"graphmodel/pkg/errors"
	"graphmodel/schema"
	"graphmodel/store"
)

// Props carries property values by name.
type Props map[string]interface{}

type lifecycle int

const (
	stateUnsaved lifecycle = iota
	stateSaved
	stateDeleted
)

// Node is one instance of a registered entity type. An instance starts
// unsaved, becomes saved once bound to exactly one persisted node, and is
// terminally deleted after Delete: a deleted instance cannot be saved or
// deleted again.
type Node struct {
	schema *schema.Schema
	props  map[string]interface{}
	node   *store.NodeRef
	state  lifecycle
	logger *zap.Logger
}

// New constructs an unsaved instance, validating every supplied value
// against the type's property descriptors. Construction fails on the first
// descriptor error and performs no store interaction.
func New(s *schema.Schema, props Props) (*Node, error) {
	for name := range props {
		if _, ok := s.Property(name); !ok {
			return nil, errors.NewNoSuchProperty(s.Name(), name)
		}
	}

	values := make(map[string]interface{})
	for _, p := range s.Properties() {
		v := props[p.Name]
		if err := p.Validate(s.Name(), v); err != nil {
			return nil, err
		}
		if v != nil {
			values[p.Name] = schema.Normalize(v)
		} else {
			values[p.Name] = nil
		}
	}

	return &Node{
		schema: s,
		props:  values,
		logger: s.Connection().Logger(),
	}, nil
}

// Inflate binds a persisted node to a new saved instance of the given type.
func Inflate(s *schema.Schema, ref *store.NodeRef) (*Node, error) {
	values := make(map[string]interface{})
	for _, p := range s.Properties() {
		v := ref.Properties[p.Name]
		if err := p.Validate(s.Name(), v); err != nil {
			return nil, err
		}
		values[p.Name] = v
	}
	return &Node{
		schema: s,
		props:  values,
		node:   ref,
		state:  stateSaved,
		logger: s.Connection().Logger(),
	}, nil
}

// Schema returns the instance's entity type.
func (n *Node) Schema() *schema.Schema { return n.schema }

// Saved reports whether the instance is bound to a persisted node.
func (n *Node) Saved() bool { return n.state == stateSaved }

// Ref returns the bound persisted node, or nil while unsaved or deleted.
func (n *Node) Ref() *store.NodeRef { return n.node }

// Get returns the current value of a declared property (nil when absent).
func (n *Node) Get(name string) interface{} { return n.props[name] }

// Set validates and assigns one property value on the in-memory instance.
// The change is persisted by the next Save.
func (n *Node) Set(name string, value interface{}) error {
	p, ok := n.schema.Property(name)
	if !ok {
		return errors.NewNoSuchProperty(n.schema.Name(), name)
	}
	if err := p.Validate(n.schema.Name(), value); err != nil {
		return err
	}
	if value != nil {
		n.props[name] = schema.Normalize(value)
	} else {
		n.props[name] = nil
	}
	return nil
}

// Properties returns every non-absent declared property value. This is
// exactly what gets persisted and indexed.
func (n *Node) Properties() Props {
	out := make(Props)
	for k, v := range n.props {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// Save persists the instance: a create for unsaved instances, an update for
// saved ones. Deleted instances cannot be re-saved.
func (n *Node) Save(ctx context.Context) error {
	switch n.state {
	case stateDeleted:
		return errors.NewUnsavedNode(n.schema.Name(), "save deleted")
	case stateSaved:
		return n.update(ctx)
	default:
		return n.create(ctx)
	}
}

// create persists a new node linked to the type's category anchor, then
// populates the index. The two steps have no spanning store transaction, so
// an index failure compensates by deleting the just-created node and its
// relationships, and the index error is returned unchanged.
func (n *Node) create(ctx context.Context) error {
	conn := n.schema.Connection()
	anchor, err := conn.Category(ctx, n.schema.Name())
	if err != nil {
		return err
	}

	props := n.Properties()
	var created *store.NodeRef

	sg := saga.New("entity.create", n.logger)
	err = sg.Run(ctx,
		saga.Step{
			Name: "create-node",
			Execute: func(ctx context.Context) error {
				ref, err := conn.Client().CreateNode(ctx, props, &store.InitialRelationship{
					StartID: anchor.ID,
					Type:    n.schema.CategoryRelation(),
				})
				if err != nil {
					return errors.NewStore("createNode", err)
				}
				created = ref
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return deleteWithRelationships(ctx, conn.Client(), created.ID)
			},
		},
		saga.Step{
			Name: "populate-index",
			Execute: func(ctx context.Context) error {
				return n.updateIndex(ctx, props, created.ID)
			},
		},
	)
	if err != nil {
		return err
	}

	n.node = created
	n.state = stateSaved
	n.logger.Debug("entity created",
		zap.String("type", n.schema.Name()),
		zap.String("node_id", created.ID),
	)
	return nil
}

// update overwrites the persisted node's properties, drops every prior
// index entry for the node, and repopulates the index from the current
// properties.
func (n *Node) update(ctx context.Context) error {
	conn := n.schema.Connection()
	props := n.Properties()

	if err := conn.Client().SetNodeProperties(ctx, n.node.ID, props); err != nil {
		return errors.NewStore("setNodeProperties", err)
	}
	if err := n.schema.Index().RemoveNode(ctx, n.node.ID); err != nil {
		return errors.NewStore("indexRemove", err)
	}
	if err := n.updateIndex(ctx, props, n.node.ID); err != nil {
		return err
	}

	n.node.Properties = props
	return nil
}

// updateIndex queues one index write per indexed property and submits them
// as a single batch, conditional writes for unique properties.
func (n *Node) updateIndex(ctx context.Context, props Props, nodeID string) error {
	batch := NewIndexBatch(n.schema.Index(), n.schema.Name())
	for _, p := range n.schema.Properties() {
		v, present := props[p.Name]
		if !present {
			continue
		}
		if p.UniqueIndex {
			batch.AddIfAbsent(p.Name, v, nodeID)
		} else if p.Index {
			batch.Add(p.Name, v, nodeID)
		}
	}
	return batch.Submit(ctx)
}

// Delete removes the persisted node and every relationship incident to it
// in one request, then clears the binding. Deleting an unsaved instance
// fails.
func (n *Node) Delete(ctx context.Context) error {
	if n.state != stateSaved {
		return errors.NewUnsavedNode(n.schema.Name(), "delete")
	}
	if err := deleteWithRelationships(ctx, n.schema.Connection().Client(), n.node.ID); err != nil {
		return err
	}
	n.logger.Debug("entity deleted",
		zap.String("type", n.schema.Name()),
		zap.String("node_id", n.node.ID),
	)
	n.node = nil
	n.state = stateDeleted
	return nil
}

// deleteWithRelationships removes a node plus all its incident
// relationships in one request.
func deleteWithRelationships(ctx context.Context, client store.Client, nodeID string) error {
	rels, err := client.NodeRelationships(ctx, nodeID)
	if err != nil {
		return errors.NewStore("nodeRelationships", err)
	}
	refs := make([]store.EntityRef, 0, len(rels)+1)
	for _, rel := range rels {
		refs = append(refs, store.RelationshipEntity(rel.ID))
	}
	refs = append(refs, store.NodeEntity(nodeID))
	if err := client.DeleteEntities(ctx, refs...); err != nil {
		return errors.NewStore("deleteEntities", err)
	}
	return nil
}

// Rel returns the relationship manager for a declared relationship
// attribute, bound to this instance.
func (n *Node) Rel(attr string) (*Manager, error) {
	def, ok := n.schema.Relationship(attr)
	if !ok {
		return nil, errors.NewNoSuchProperty(n.schema.Name(), attr)
	}
	return &Manager{origin: n, def: def, attr: attr, logger: n.logger}, nil
}
