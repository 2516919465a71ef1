package localstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"graphmodel/store"
)

// Store implements the store client contract over a Backend.
//
// Individual backend operations are atomic; compound graph mutations take
// the store-level write lock so readers never observe a half-applied
// create, delete or batch.
type Store struct {
	backend Backend
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewStore wraps a backend as a graph store client.
func NewStore(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, logger: logger}
}

// indexKeyspace qualifies an index name by entity kind so a node index and
// a relationship index sharing a name occupy distinct keyspaces.
func indexKeyspace(kind store.EntityKind, name string) string {
	if kind == store.KindRelationship {
		return "rel:" + name
	}
	return "node:" + name
}

// GetOrCreateIndex returns the named index, creating it when absent.
func (s *Store) GetOrCreateIndex(ctx context.Context, kind store.EntityKind, name string) (store.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyspace := indexKeyspace(kind, name)
	k := key(prefixIndex, keyspace)
	if _, err := s.backend.Get(k); err == ErrKeyNotFound {
		if err := s.backend.Set(k, nil); err != nil {
			return nil, err
		}
		s.logger.Debug("index created", zap.String("index", keyspace))
	} else if err != nil {
		return nil, err
	}
	return &index{store: s, name: name, keyspace: keyspace}, nil
}

// CreateNode persists a node and, when initial is non-nil, its initial
// relationship in the same request.
func (s *Store) CreateNode(ctx context.Context, props map[string]interface{}, initial *store.InitialRelationship) (*store.NodeRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	if err := s.writeNode(id, props); err != nil {
		return nil, err
	}

	if initial != nil {
		if _, err := s.backend.Get(key(prefixNode, initial.StartID)); err != nil {
			return nil, fmt.Errorf("localstore: initial relationship start node %s: %w", initial.StartID, err)
		}
		if _, err := s.createRel(initial.Type, initial.StartID, id, nil); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("node created", zap.String("node_id", id))
	return &store.NodeRef{ID: id, Properties: copyProps(props)}, nil
}

// SetNodeProperties overwrites all properties of a node.
func (s *Store) SetNodeProperties(ctx context.Context, nodeID string, props map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.backend.Get(key(prefixNode, nodeID)); err != nil {
		return fmt.Errorf("localstore: node %s: %w", nodeID, err)
	}
	return s.writeNode(nodeID, props)
}

// NodeProperties returns the current properties of a node.
func (s *Store) NodeProperties(ctx context.Context, nodeID string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.readNode(nodeID)
	if err != nil {
		return nil, err
	}
	return copyProps(rec.Props), nil
}

// NodeRelationships returns every relationship incident to a node.
func (s *Store) NodeRelationships(ctx context.Context, nodeID string) ([]*store.RelRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodeRels(nodeID)
}

// DeleteEntities removes the referenced nodes and relationships in one
// request. Deleting a node also clears its adjacency and every index entry
// referring to it, so indexes never resolve to a deleted node.
func (s *Store) DeleteEntities(ctx context.Context, refs ...store.EntityRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Relationships first so node adjacency cleanup sees fewer leftovers.
	for _, ref := range refs {
		if ref.Kind == store.KindRelationship {
			if err := s.deleteRel(ref.ID); err != nil {
				return err
			}
		}
	}
	for _, ref := range refs {
		if ref.Kind == store.KindNode {
			if err := s.deleteNode(ref.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// internal helpers, caller holds the appropriate lock

func (s *Store) writeNode(id string, props map[string]interface{}) error {
	b, err := encodeRecord(nodeRecord{Props: copyProps(props)})
	if err != nil {
		return err
	}
	return s.backend.Set(key(prefixNode, id), b)
}

func (s *Store) readNode(id string) (*nodeRecord, error) {
	b, err := s.backend.Get(key(prefixNode, id))
	if err != nil {
		return nil, fmt.Errorf("localstore: node %s: %w", id, err)
	}
	var rec nodeRecord
	if err := decodeRecord(b, &rec); err != nil {
		return nil, err
	}
	if rec.Props == nil {
		rec.Props = make(map[string]interface{})
	}
	return &rec, nil
}

func (s *Store) nodeRef(id string) (*store.NodeRef, error) {
	rec, err := s.readNode(id)
	if err != nil {
		return nil, err
	}
	return &store.NodeRef{ID: id, Properties: rec.Props}, nil
}

func (s *Store) createRel(relType, startID, endID string, props map[string]interface{}) (string, error) {
	id := uuid.NewString()
	if err := s.writeRel(id, &relRecord{Type: relType, Start: startID, End: endID, Props: copyProps(props)}); err != nil {
		return "", err
	}
	if err := s.backend.Set(key(prefixAdj, startID, id), nil); err != nil {
		return "", err
	}
	if err := s.backend.Set(key(prefixAdj, endID, id), nil); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) writeRel(id string, rec *relRecord) error {
	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.backend.Set(key(prefixRel, id), b)
}

func (s *Store) readRel(id string) (*relRecord, error) {
	b, err := s.backend.Get(key(prefixRel, id))
	if err != nil {
		return nil, fmt.Errorf("localstore: relationship %s: %w", id, err)
	}
	var rec relRecord
	if err := decodeRecord(b, &rec); err != nil {
		return nil, err
	}
	if rec.Props == nil {
		rec.Props = make(map[string]interface{})
	}
	return &rec, nil
}

func (s *Store) nodeRels(nodeID string) ([]*store.RelRef, error) {
	var out []*store.RelRef
	err := s.backend.Scan(keyPrefix(prefixAdj, nodeID), func(k, _ []byte) error {
		segs := splitKey(k)
		relID := segs[len(segs)-1]
		rec, err := s.readRel(relID)
		if err != nil {
			return err
		}
		out = append(out, &store.RelRef{
			ID:         relID,
			Type:       rec.Type,
			StartID:    rec.Start,
			EndID:      rec.End,
			Properties: rec.Props,
		})
		return nil
	})
	return out, err
}

func (s *Store) deleteRel(id string) error {
	rec, err := s.readRel(id)
	if err != nil {
		// Already gone; deleting zero matches is a no-op.
		return nil
	}
	if err := s.backend.Delete(key(prefixAdj, rec.Start, id)); err != nil {
		return err
	}
	if err := s.backend.Delete(key(prefixAdj, rec.End, id)); err != nil {
		return err
	}
	return s.backend.Delete(key(prefixRel, id))
}

func (s *Store) deleteNode(id string) error {
	// Remaining adjacency entries point at relationships deleted in the
	// same request or leaked by the caller; drop the entries either way.
	var adjKeys [][]byte
	if err := s.backend.Scan(keyPrefix(prefixAdj, id), func(k, _ []byte) error {
		adjKeys = append(adjKeys, append([]byte(nil), k...))
		return nil
	}); err != nil {
		return err
	}
	for _, k := range adjKeys {
		if err := s.backend.Delete(k); err != nil {
			return err
		}
	}

	// Index referential integrity: remove every entry referring to the node.
	var reverseKeys [][]byte
	if err := s.backend.Scan(keyPrefix(prefixReverse, id), func(k, _ []byte) error {
		reverseKeys = append(reverseKeys, append([]byte(nil), k...))
		return nil
	}); err != nil {
		return err
	}
	for _, rk := range reverseKeys {
		segs := splitKey(rk) // v/<nodeID>/<index>/<key>/<value>
		if len(segs) == 5 {
			if err := s.backend.Delete(key(prefixEntry, segs[2], segs[3], segs[4], id)); err != nil {
				return err
			}
		}
		if err := s.backend.Delete(rk); err != nil {
			return err
		}
	}

	s.logger.Debug("node deleted", zap.String("node_id", id))
	return s.backend.Delete(key(prefixNode, id))
}
