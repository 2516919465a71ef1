// Package store defines the graph store client contract consumed by the
// mapping core. The core never talks to a concrete store directly; it goes
// through these interfaces, which a remote wire client or the embedded
// localstore implement. This is a port in hexagonal architecture - the
// mapping layer doesn't know about the implementation.
package store

import (
	"context"

	"graphmodel/query"
)

// EntityKind distinguishes node indexes from relationship indexes.
type EntityKind int

const (
	KindNode EntityKind = iota
	KindRelationship
)

// NodeRef is a reference to one persisted node.
type NodeRef struct {
	ID         string
	Properties map[string]interface{}
}

// RelRef is a reference to one persisted relationship.
type RelRef struct {
	ID         string
	Type       string
	StartID    string
	EndID      string
	Properties map[string]interface{}
}

// EntityRef identifies a node or relationship for bulk deletion.
type EntityRef struct {
	Kind EntityKind
	ID   string
}

// NodeEntity returns a deletion reference for a node.
func NodeEntity(id string) EntityRef {
	return EntityRef{Kind: KindNode, ID: id}
}

// RelationshipEntity returns a deletion reference for a relationship.
func RelationshipEntity(id string) EntityRef {
	return EntityRef{Kind: KindRelationship, ID: id}
}

// InitialRelationship links a newly created node to an existing node in the
// same request, so an instance node is never persisted without its category
// anchor link.
type InitialRelationship struct {
	// StartID is the existing node the relationship starts from.
	StartID string
	// Type is the relationship type name.
	Type string
}

// Term is one key/value equality in an index query. Multiple terms are
// combined with logical AND.
type Term struct {
	Key   string
	Value interface{}
}

// BatchOp is one queued index write. Unique ops must fail when the
// key/value pair already maps to a different node.
type BatchOp struct {
	Key    string
	Value  interface{}
	NodeID string
	Unique bool
}

// BatchStatus is the per-operation outcome of a submitted batch, reported
// in submission order.
type BatchStatus int

const (
	// StatusApplied means the index entry was written.
	StatusApplied BatchStatus = iota
	// StatusConflict means a unique op found the key/value pair mapped to
	// a different node. The batch performs no partial rollback; the caller
	// compensates.
	StatusConflict
)

// Row is one result row of a pattern query. Cells hold *NodeRef, *RelRef or
// int64 counts depending on the statement's RETURN items.
type Row []interface{}

// Index is a named per-entity-type lookup structure mapping property
// key/value pairs to nodes.
type Index interface {
	// Name returns the index name.
	Name() string

	// Get returns the nodes mapped to an exact key/value pair.
	Get(ctx context.Context, key string, value interface{}) ([]*NodeRef, error)

	// Query returns the nodes matching every term.
	Query(ctx context.Context, terms []Term) ([]*NodeRef, error)

	// GetOrCreateNode returns the node mapped to key/value, creating and
	// indexing a node with the given properties when absent.
	GetOrCreateNode(ctx context.Context, key string, value interface{}, props map[string]interface{}) (*NodeRef, error)

	// RemoveNode removes every entry in this index referring to the node.
	RemoveNode(ctx context.Context, nodeID string) error

	// SubmitBatch applies queued index writes as one batch and returns one
	// status per op in submission order.
	SubmitBatch(ctx context.Context, ops []BatchOp) ([]BatchStatus, error)
}

// Client is the graph store handle. Implementations must be safe for
// concurrent use.
type Client interface {
	// GetOrCreateIndex returns the named index, creating it when absent.
	// Creation is idempotent get-or-create, keyed by name.
	GetOrCreateIndex(ctx context.Context, kind EntityKind, name string) (Index, error)

	// CreateNode persists a node with the given properties and, when
	// initial is non-nil, an initial relationship in the same request.
	CreateNode(ctx context.Context, props map[string]interface{}, initial *InitialRelationship) (*NodeRef, error)

	// SetNodeProperties overwrites all properties of a node.
	SetNodeProperties(ctx context.Context, nodeID string, props map[string]interface{}) error

	// NodeProperties returns the current properties of a node.
	NodeProperties(ctx context.Context, nodeID string) (map[string]interface{}, error)

	// NodeRelationships returns every relationship incident to a node.
	NodeRelationships(ctx context.Context, nodeID string) ([]*RelRef, error)

	// DeleteEntities removes the referenced nodes and relationships in one
	// request.
	DeleteEntities(ctx context.Context, refs ...EntityRef) error

	// Query executes a pattern query and returns its rows in store order.
	Query(ctx context.Context, stmt *query.Statement) ([]Row, error)

	// Close releases the client's resources.
	Close() error
}
