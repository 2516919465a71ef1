package entity

import (
	"context"

	"graphmodel/pkg/errors"
	"graphmodel/store"
)

// IndexBatch accumulates index writes for one node and submits them as a
// single request. Unique properties are queued as conditional writes; a
// conflict on any of them surfaces as a NotUnique error naming the
// offending property.
type IndexBatch struct {
	index      store.Index
	entityType string
	ops        []store.BatchOp
}

// NewIndexBatch returns an empty batch against the given index.
func NewIndexBatch(index store.Index, entityType string) *IndexBatch {
	return &IndexBatch{index: index, entityType: entityType}
}

// Add queues an unconditional index write.
func (b *IndexBatch) Add(key string, value interface{}, nodeID string) {
	b.ops = append(b.ops, store.BatchOp{Key: key, Value: value, NodeID: nodeID})
}

// AddIfAbsent queues a conditional write that only applies when no other
// node already holds the entry.
func (b *IndexBatch) AddIfAbsent(key string, value interface{}, nodeID string) {
	b.ops = append(b.ops, store.BatchOp{Key: key, Value: value, NodeID: nodeID, Unique: true})
}

// Submit sends the queued operations in order and inspects the per-op
// statuses. Empty batches are a no-op.
func (b *IndexBatch) Submit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	statuses, err := b.index.SubmitBatch(ctx, b.ops)
	if err != nil {
		return errors.NewStore("indexBatch", err)
	}
	for i, status := range statuses {
		if status == store.StatusConflict {
			return errors.NewNotUnique(b.entityType, b.ops[i].Key)
		}
	}
	return nil
}
