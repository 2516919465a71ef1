package localstore

import (
	"context"
	"fmt"

	"graphmodel/query"
	"graphmodel/store"
)

// binding is one partial result of statement execution: node and
// relationship identifiers bound to store element ids.
type binding struct {
	nodes map[string]string
	rels  map[string]string
}

func (b binding) clone() binding {
	nb := binding{nodes: make(map[string]string, len(b.nodes)+1), rels: make(map[string]string, len(b.rels)+1)}
	for k, v := range b.nodes {
		nb.nodes[k] = v
	}
	for k, v := range b.rels {
		nb.rels[k] = v
	}
	return nb
}

// Query executes a pattern statement directly in its structured form.
// Clause semantics follow the rendered START / MATCH / WHERE /
// CREATE UNIQUE / SET / DELETE / RETURN text: matching produces bindings,
// later clauses operate on every binding, and a statement whose MATCH finds
// nothing mutates nothing.
func (s *Store) Query(ctx context.Context, stmt *query.Statement) ([]store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := binding{nodes: make(map[string]string), rels: make(map[string]string)}
	for _, b := range stmt.Starts {
		v, ok := stmt.Params[b.Param]
		if !ok {
			return nil, fmt.Errorf("localstore: missing parameter %q", b.Param)
		}
		id, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("localstore: parameter %q is not a node id", b.Param)
		}
		if _, err := s.readNode(id); err != nil {
			return nil, err
		}
		base.nodes[b.Ident] = id
	}
	rows := []binding{base}

	var err error
	for _, p := range stmt.Match {
		rows, err = s.expandMatch(rows, p)
		if err != nil {
			return nil, err
		}
	}

	rows, err = s.applyWhere(rows, stmt)
	if err != nil {
		return nil, err
	}

	for _, p := range stmt.CreateUnique {
		if err := s.applyCreateUnique(rows, p); err != nil {
			return nil, err
		}
	}

	if err := s.applySets(rows, stmt); err != nil {
		return nil, err
	}

	if err := s.applyDeletes(rows, stmt.Delete); err != nil {
		return nil, err
	}

	return s.buildRows(rows, stmt)
}

func (s *Store) expandMatch(rows []binding, p query.Pattern) ([]binding, error) {
	var next []binding
	for _, r := range rows {
		lhsID, ok := r.nodes[p.LHS]
		if !ok {
			return nil, fmt.Errorf("localstore: pattern identifier %q is not bound", p.LHS)
		}

		if rhsID, bound := r.nodes[p.RHS]; bound {
			ids, err := s.relsBetween(lhsID, rhsID, p.RelType, p.Direction)
			if err != nil {
				return nil, err
			}
			for _, relID := range ids {
				nr := r.clone()
				nr.rels[p.Ident] = relID
				next = append(next, nr)
			}
			continue
		}

		// Traversal: right-hand node unbound, expand along the pattern.
		refs, err := s.nodeRels(lhsID)
		if err != nil {
			return nil, err
		}
		for _, rel := range refs {
			other, ok := s.patternEndpoint(rel, lhsID, p)
			if !ok {
				continue
			}
			nr := r.clone()
			nr.rels[p.Ident] = rel.ID
			nr.nodes[p.RHS] = other
			next = append(next, nr)
		}
	}
	return next, nil
}

// patternEndpoint returns the node on the far side of rel when the
// relationship matches the pattern's type and direction from lhsID.
func (s *Store) patternEndpoint(rel *store.RelRef, lhsID string, p query.Pattern) (string, bool) {
	if rel.Type != p.RelType {
		return "", false
	}
	switch p.Direction {
	case query.Outgoing:
		if rel.StartID == lhsID {
			return rel.EndID, true
		}
	case query.Incoming:
		if rel.EndID == lhsID {
			return rel.StartID, true
		}
	default:
		if rel.StartID == lhsID {
			return rel.EndID, true
		}
		if rel.EndID == lhsID {
			return rel.StartID, true
		}
	}
	return "", false
}

func (s *Store) relsBetween(lhsID, rhsID, relType string, dir query.Direction) ([]string, error) {
	refs, err := s.nodeRels(lhsID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rel := range refs {
		if rel.Type != relType {
			continue
		}
		switch dir {
		case query.Outgoing:
			if rel.StartID == lhsID && rel.EndID == rhsID {
				out = append(out, rel.ID)
			}
		case query.Incoming:
			if rel.StartID == rhsID && rel.EndID == lhsID {
				out = append(out, rel.ID)
			}
		default:
			if (rel.StartID == lhsID && rel.EndID == rhsID) || (rel.StartID == rhsID && rel.EndID == lhsID) {
				out = append(out, rel.ID)
			}
		}
	}
	return out, nil
}

func (s *Store) applyWhere(rows []binding, stmt *query.Statement) ([]binding, error) {
	if len(stmt.Where) == 0 {
		return rows, nil
	}
	var out []binding
	for _, r := range rows {
		keep := true
		for _, c := range stmt.Where {
			nodeID, ok := r.nodes[c.Ident]
			if !ok {
				return nil, fmt.Errorf("localstore: condition identifier %q is not bound", c.Ident)
			}
			rec, err := s.readNode(nodeID)
			if err != nil {
				return nil, err
			}
			want, ok := stmt.Params[c.Param]
			if !ok {
				return nil, fmt.Errorf("localstore: missing parameter %q", c.Param)
			}
			got, present := rec.Props[c.Prop]
			if !present || canonicalValue(got) != canonicalValue(want) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) applyCreateUnique(rows []binding, p query.Pattern) error {
	for idx := range rows {
		lhsID, ok := rows[idx].nodes[p.LHS]
		if !ok {
			return fmt.Errorf("localstore: pattern identifier %q is not bound", p.LHS)
		}
		rhsID, ok := rows[idx].nodes[p.RHS]
		if !ok {
			return fmt.Errorf("localstore: pattern identifier %q is not bound", p.RHS)
		}

		existing, err := s.relsBetween(lhsID, rhsID, p.RelType, p.Direction)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			rows[idx].rels[p.Ident] = existing[0]
			continue
		}

		startID, endID := lhsID, rhsID
		if p.Direction == query.Incoming {
			startID, endID = rhsID, lhsID
		}
		relID, err := s.createRel(p.RelType, startID, endID, nil)
		if err != nil {
			return err
		}
		rows[idx].rels[p.Ident] = relID
	}
	return nil
}

func (s *Store) applySets(rows []binding, stmt *query.Statement) error {
	for _, a := range stmt.Sets {
		for _, r := range rows {
			relID, ok := r.rels[a.Ident]
			if !ok {
				return fmt.Errorf("localstore: set identifier %q is not bound to a relationship", a.Ident)
			}
			rec, err := s.readRel(relID)
			if err != nil {
				return err
			}

			if a.Param != "" {
				v, ok := stmt.Params[a.Param]
				if !ok {
					return fmt.Errorf("localstore: missing parameter %q", a.Param)
				}
				rec.Props[a.Prop] = v
			} else {
				src, err := s.boundProps(r, a.FromIdent)
				if err != nil {
					return err
				}
				if v, present := src[a.FromProp]; present {
					rec.Props[a.Prop] = v
				}
			}
			if err := s.writeRel(relID, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// boundProps returns the property map of a bound relationship or node
// identifier.
func (s *Store) boundProps(r binding, ident string) (map[string]interface{}, error) {
	if relID, ok := r.rels[ident]; ok {
		rec, err := s.readRel(relID)
		if err != nil {
			return nil, err
		}
		return rec.Props, nil
	}
	if nodeID, ok := r.nodes[ident]; ok {
		rec, err := s.readNode(nodeID)
		if err != nil {
			return nil, err
		}
		return rec.Props, nil
	}
	return nil, fmt.Errorf("localstore: identifier %q is not bound", ident)
}

func (s *Store) applyDeletes(rows []binding, idents []string) error {
	deleted := make(map[string]bool)
	for _, ident := range idents {
		for _, r := range rows {
			relID, ok := r.rels[ident]
			if !ok || deleted[relID] {
				continue
			}
			if err := s.deleteRel(relID); err != nil {
				return err
			}
			deleted[relID] = true
		}
	}
	return nil
}

func (s *Store) buildRows(rows []binding, stmt *query.Statement) ([]store.Row, error) {
	if len(stmt.Return) == 0 {
		return nil, nil
	}

	// count() aggregates across all bindings into a single row.
	if stmt.Return[0].Count {
		n := int64(0)
		ident := stmt.Return[0].Ident
		for _, r := range rows {
			if _, ok := r.rels[ident]; ok {
				n++
				continue
			}
			if _, ok := r.nodes[ident]; ok {
				n++
			}
		}
		return []store.Row{{n}}, nil
	}

	var out []store.Row
	for _, r := range rows {
		row := make(store.Row, 0, len(stmt.Return))
		for _, item := range stmt.Return {
			if relID, ok := r.rels[item.Ident]; ok {
				rec, err := s.readRel(relID)
				if err != nil {
					return nil, err
				}
				row = append(row, &store.RelRef{
					ID:         relID,
					Type:       rec.Type,
					StartID:    rec.Start,
					EndID:      rec.End,
					Properties: rec.Props,
				})
				continue
			}
			if nodeID, ok := r.nodes[item.Ident]; ok {
				ref, err := s.nodeRef(nodeID)
				if err != nil {
					return nil, err
				}
				row = append(row, ref)
				continue
			}
			return nil, fmt.Errorf("localstore: return identifier %q is not bound", item.Ident)
		}
		out = append(out, row)
		if stmt.Limit > 0 && len(out) == stmt.Limit {
			break
		}
	}
	return out, nil
}
