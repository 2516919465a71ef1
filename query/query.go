// Package query models graph-pattern queries as structured statements.
//
// A Statement carries START bindings, MATCH / CREATE UNIQUE patterns, WHERE
// equalities, SET assignments, DELETE targets and RETURN items together with
// a name-to-value parameter map. Wire transports render the statement to query
// text with Render; in-process stores execute the structured form directly,
// so the builder can be unit-tested against expected pattern text without a
// live store.
package query

import (
	"fmt"
	"strings"
)

// Direction of a relationship pattern relative to its left-hand node.
type Direction int

const (
	// Outgoing renders (lhs)-[r:TYPE]->(rhs).
	Outgoing Direction = iota
	// Incoming renders (lhs)<-[r:TYPE]-(rhs).
	Incoming
	// Either renders the undirected (lhs)-[r:TYPE]-(rhs).
	Either
)

// String returns the direction name for logging.
func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	default:
		return "either"
	}
}

// Pattern is one relationship fragment between two bound node identifiers.
type Pattern struct {
	LHS       string
	RHS       string
	Ident     string
	RelType   string
	Direction Direction
}

// Render produces the textual fragment for the pattern.
func (p Pattern) Render() string {
	var stmt string
	switch p.Direction {
	case Outgoing:
		stmt = "-[%s:%s]->"
	case Incoming:
		stmt = "<-[%s:%s]-"
	default:
		stmt = "-[%s:%s]-"
	}
	return fmt.Sprintf("(%s)"+stmt+"(%s)", p.LHS, p.Ident, p.RelType, p.RHS)
}

// Binding binds a node identifier to a node id parameter in START.
type Binding struct {
	Ident string
	Param string
}

// Condition is an equality between a bound node's property and a parameter.
type Condition struct {
	Ident string
	Prop  string
	Param string
}

// Assignment sets a property on a bound relationship, either from a
// parameter or copied from another bound identifier's property.
type Assignment struct {
	Ident string
	Prop  string
	// Param names the parameter holding the value. Empty when copying.
	Param string
	// FromIdent/FromProp copy an existing property across identifiers.
	FromIdent string
	FromProp  string
}

// ReturnItem is a returned identifier, optionally aggregated as count().
type ReturnItem struct {
	Ident string
	Count bool
}

// Statement is the intermediate representation of one pattern query.
type Statement struct {
	Starts       []Binding
	Match        []Pattern
	CreateUnique []Pattern
	Where        []Condition
	Sets         []Assignment
	Delete       []string
	Return       []ReturnItem
	Limit        int
	Params       map[string]interface{}
}

// New returns an empty statement with an initialized parameter map.
func New() *Statement {
	return &Statement{Params: make(map[string]interface{})}
}

// Start binds ident to the node id carried by param.
func (s *Statement) Start(ident, param string, nodeID interface{}) *Statement {
	s.Starts = append(s.Starts, Binding{Ident: ident, Param: param})
	s.Params[param] = nodeID
	return s
}

// MatchPattern appends a MATCH pattern.
func (s *Statement) MatchPattern(p Pattern) *Statement {
	s.Match = append(s.Match, p)
	return s
}

// CreateUniquePattern appends a CREATE UNIQUE pattern.
func (s *Statement) CreateUniquePattern(p Pattern) *Statement {
	s.CreateUnique = append(s.CreateUnique, p)
	return s
}

// WhereEq filters a bound node by property equality against a parameter.
func (s *Statement) WhereEq(ident, prop, param string, value interface{}) *Statement {
	s.Where = append(s.Where, Condition{Ident: ident, Prop: prop, Param: param})
	s.Params[param] = value
	return s
}

// Set assigns a parameter value to a bound identifier's property.
func (s *Statement) Set(ident, prop, param string, value interface{}) *Statement {
	s.Sets = append(s.Sets, Assignment{Ident: ident, Prop: prop, Param: param})
	s.Params[param] = value
	return s
}

// SetFrom copies a property between bound identifiers.
func (s *Statement) SetFrom(ident, prop, fromIdent, fromProp string) *Statement {
	s.Sets = append(s.Sets, Assignment{Ident: ident, Prop: prop, FromIdent: fromIdent, FromProp: fromProp})
	return s
}

// DeleteIdent marks bound relationship identifiers for deletion.
func (s *Statement) DeleteIdent(idents ...string) *Statement {
	s.Delete = append(s.Delete, idents...)
	return s
}

// ReturnIdent returns a bound identifier.
func (s *Statement) ReturnIdent(ident string) *Statement {
	s.Return = append(s.Return, ReturnItem{Ident: ident})
	return s
}

// ReturnCount returns count() over a bound identifier.
func (s *Statement) ReturnCount(ident string) *Statement {
	s.Return = append(s.Return, ReturnItem{Ident: ident, Count: true})
	return s
}

// WithLimit caps the number of returned rows. Zero means no limit.
func (s *Statement) WithLimit(n int) *Statement {
	s.Limit = n
	return s
}

// Render produces the query text. Parameter values are never interpolated;
// placeholders use the {name} form and values travel in Params.
func (s *Statement) Render() string {
	var b strings.Builder

	if len(s.Starts) > 0 {
		b.WriteString("START ")
		for i, bind := range s.Starts {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=node({%s})", bind.Ident, bind.Param)
		}
	}

	if len(s.Match) > 0 {
		b.WriteString(" MATCH ")
		for i, p := range s.Match {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Render())
		}
	}

	if len(s.Where) > 0 {
		b.WriteString(" WHERE ")
		for i, c := range s.Where {
			if i > 0 {
				b.WriteString(" AND ")
			}
			fmt.Fprintf(&b, "%s.%s = {%s}", c.Ident, c.Prop, c.Param)
		}
	}

	if len(s.CreateUnique) > 0 {
		b.WriteString(" CREATE UNIQUE ")
		for i, p := range s.CreateUnique {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Render())
		}
	}

	for _, a := range s.Sets {
		if a.Param != "" {
			fmt.Fprintf(&b, " SET %s.%s = {%s}", a.Ident, a.Prop, a.Param)
		} else {
			fmt.Fprintf(&b, " SET %s.%s = %s.%s", a.Ident, a.Prop, a.FromIdent, a.FromProp)
		}
	}

	if len(s.Delete) > 0 {
		idents := strings.Join(s.Delete, ", ")
		// A delete following CREATE UNIQUE or SET must carry the matched
		// identifiers through WITH before removing them.
		if len(s.CreateUnique) > 0 || len(s.Sets) > 0 {
			fmt.Fprintf(&b, " WITH %s DELETE %s", idents, idents)
		} else {
			fmt.Fprintf(&b, " DELETE %s", idents)
		}
	}

	if len(s.Return) > 0 {
		b.WriteString(" RETURN ")
		for i, r := range s.Return {
			if i > 0 {
				b.WriteString(", ")
			}
			if r.Count {
				fmt.Fprintf(&b, "count(%s)", r.Ident)
			} else {
				b.WriteString(r.Ident)
			}
		}
	}

	if s.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", s.Limit)
	}

	return strings.TrimSpace(b.String())
}
