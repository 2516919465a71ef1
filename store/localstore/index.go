package localstore

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"graphmodel/store"
)

// index implements the store index contract for one named index.
type index struct {
	store *Store
	name  string
	// keyspace is the kind-qualified name used in backend keys.
	keyspace string
}

// Name returns the index name.
func (i *index) Name() string { return i.name }

// Get returns the nodes mapped to an exact key/value pair.
func (i *index) Get(ctx context.Context, key string, value interface{}) ([]*store.NodeRef, error) {
	i.store.mu.RLock()
	defer i.store.mu.RUnlock()
	return i.get(key, value)
}

// get assumes the store lock is held.
func (i *index) get(k string, value interface{}) ([]*store.NodeRef, error) {
	ids, err := i.entryNodes(k, value)
	if err != nil {
		return nil, err
	}
	out := make([]*store.NodeRef, 0, len(ids))
	for _, id := range ids {
		ref, err := i.store.nodeRef(id)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

func (i *index) entryNodes(k string, value interface{}) ([]string, error) {
	var ids []string
	err := i.store.backend.Scan(keyPrefix(prefixEntry, i.keyspace, k, canonicalValue(value)), func(bk, _ []byte) error {
		segs := splitKey(bk)
		ids = append(ids, segs[len(segs)-1])
		return nil
	})
	return ids, err
}

// Query returns the nodes matching every term.
func (i *index) Query(ctx context.Context, terms []store.Term) ([]*store.NodeRef, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	i.store.mu.RLock()
	defer i.store.mu.RUnlock()

	candidates, err := i.entryNodes(terms[0].Key, terms[0].Value)
	if err != nil {
		return nil, err
	}

	var out []*store.NodeRef
	for _, id := range candidates {
		match := true
		for _, term := range terms[1:] {
			if _, err := i.store.backend.Get(key(prefixEntry, i.keyspace, term.Key, canonicalValue(term.Value), id)); err == ErrKeyNotFound {
				match = false
				break
			} else if err != nil {
				return nil, err
			}
		}
		if !match {
			continue
		}
		ref, err := i.store.nodeRef(id)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

// GetOrCreateNode returns the node mapped to key/value, creating and
// indexing one with the given properties when absent.
func (i *index) GetOrCreateNode(ctx context.Context, k string, value interface{}, props map[string]interface{}) (*store.NodeRef, error) {
	i.store.mu.Lock()
	defer i.store.mu.Unlock()

	existing, err := i.get(k, value)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing[0], nil
	}

	id := uuid.NewString()
	if err := i.store.writeNode(id, props); err != nil {
		return nil, err
	}
	if err := i.addEntry(k, value, id); err != nil {
		return nil, err
	}
	i.store.logger.Debug("indexed node created",
		zap.String("index", i.name),
		zap.String("node_id", id),
	)
	return &store.NodeRef{ID: id, Properties: copyProps(props)}, nil
}

// RemoveNode removes every entry in this index referring to the node.
func (i *index) RemoveNode(ctx context.Context, nodeID string) error {
	i.store.mu.Lock()
	defer i.store.mu.Unlock()

	var reverseKeys [][]byte
	if err := i.store.backend.Scan(keyPrefix(prefixReverse, nodeID, i.keyspace), func(k, _ []byte) error {
		reverseKeys = append(reverseKeys, append([]byte(nil), k...))
		return nil
	}); err != nil {
		return err
	}
	for _, rk := range reverseKeys {
		segs := splitKey(rk) // v/<nodeID>/<index>/<key>/<value>
		if len(segs) == 5 {
			if err := i.store.backend.Delete(key(prefixEntry, i.keyspace, segs[3], segs[4], nodeID)); err != nil {
				return err
			}
		}
		if err := i.store.backend.Delete(rk); err != nil {
			return err
		}
	}
	return nil
}

// SubmitBatch applies queued index writes as one batch. Conditional ops
// that find the key/value pair mapped to a different node report
// StatusConflict and write nothing; later ops in the batch still apply, the
// batch performs no partial rollback.
func (i *index) SubmitBatch(ctx context.Context, ops []store.BatchOp) ([]store.BatchStatus, error) {
	i.store.mu.Lock()
	defer i.store.mu.Unlock()

	statuses := make([]store.BatchStatus, len(ops))
	for n, op := range ops {
		if op.Unique {
			ids, err := i.entryNodes(op.Key, op.Value)
			if err != nil {
				return nil, err
			}
			conflict := false
			for _, id := range ids {
				if id != op.NodeID {
					conflict = true
					break
				}
			}
			if conflict {
				statuses[n] = store.StatusConflict
				continue
			}
		}
		if err := i.addEntry(op.Key, op.Value, op.NodeID); err != nil {
			return nil, err
		}
		statuses[n] = store.StatusApplied
	}
	return statuses, nil
}

// addEntry assumes the store lock is held.
func (i *index) addEntry(k string, value interface{}, nodeID string) error {
	enc := canonicalValue(value)
	if err := i.store.backend.Set(key(prefixEntry, i.keyspace, k, enc, nodeID), nil); err != nil {
		return err
	}
	return i.store.backend.Set(key(prefixReverse, nodeID, i.keyspace, k, enc), nil)
}
