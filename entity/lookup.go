package entity

import (
	"context"
	"sort"

	"graphmodel/pkg/errors"
	"graphmodel/schema"
	"graphmodel/store"
)

// Filters names property values an index lookup must match. Multiple
// entries are combined conjunctively.
type Filters map[string]interface{}

// Search returns every instance of the type whose indexed properties match
// all filters. Each filter key must name a declared, indexed property and
// each value must pass that property's validation.
func Search(ctx context.Context, s *schema.Schema, filters Filters) ([]*Node, error) {
	terms := make([]store.Term, 0, len(filters))
	for _, name := range sortedKeys(filters) {
		p, ok := s.Property(name)
		if !ok {
			return nil, errors.NewNoSuchProperty(s.Name(), name)
		}
		if !p.Indexed() {
			return nil, errors.NewPropertyNotIndexed(s.Name(), name)
		}
		v := filters[name]
		if err := p.Validate(s.Name(), v); err != nil {
			return nil, err
		}
		terms = append(terms, store.Term{Key: name, Value: schema.Normalize(v)})
	}
	return SearchTerms(ctx, s, terms)
}

// SearchTerms runs a pre-built conjunctive index query, bypassing filter
// validation. Callers that need expressions beyond keyword equality build
// the terms themselves.
func SearchTerms(ctx context.Context, s *schema.Schema, terms []store.Term) ([]*Node, error) {
	refs, err := s.Index().Query(ctx, terms)
	if err != nil {
		return nil, errors.NewStore("indexQuery", err)
	}
	nodes := make([]*Node, 0, len(refs))
	for _, ref := range refs {
		n, err := Inflate(s, ref)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Get returns the single instance matching the filters. No match is a
// DoesNotExist error and more than one match is an AmbiguousResult error.
func Get(ctx context.Context, s *schema.Schema, filters Filters) (*Node, error) {
	nodes, err := Search(ctx, s, filters)
	if err != nil {
		return nil, err
	}
	switch len(nodes) {
	case 0:
		return nil, errors.NewDoesNotExist(s.Name())
	case 1:
		return nodes[0], nil
	default:
		return nil, errors.NewAmbiguousResult(s.Name(), len(nodes))
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
