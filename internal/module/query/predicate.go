// Package query builds storage predicates that restrict results to what a
// principal may see. Store adapters translate a Predicate into their own query
// language; Match evaluates one in memory.
package query

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/projecthub/server/internal/model"
)

// Op is the kind of a predicate node.
type Op string

const (
	OpAll    Op = "all"
	OpEq     Op = "eq"
	OpIn     Op = "in"
	OpSearch Op = "search"
	OpAnd    Op = "and"
	OpOr     Op = "or"
)

// Predicate is a node of a filter expression tree.
type Predicate struct {
	Op    Op
	Field model.Field
	// Value is a uuid.UUID or a string for OpEq, a uuid.UUID for OpIn.
	Value any
	// Term and Fields are set for OpSearch.
	Term     string
	Fields   []model.Field
	Children []Predicate
}

// All matches every record.
func All() Predicate {
	return Predicate{Op: OpAll}
}

// Eq matches records whose scalar field equals v.
func Eq(f model.Field, v any) Predicate {
	return Predicate{Op: OpEq, Field: f, Value: v}
}

// In matches records whose array field contains id.
func In(f model.Field, id uuid.UUID) Predicate {
	return Predicate{Op: OpIn, Field: f, Value: id}
}

// Search matches records where any of fields contains term, ignoring case.
func Search(term string, fields ...model.Field) Predicate {
	return Predicate{Op: OpSearch, Term: term, Fields: fields}
}

// And combines predicates so that all must hold. Nested Ands are flattened and
// All operands are dropped.
func And(ps ...Predicate) Predicate {
	var children []Predicate
	for _, p := range ps {
		switch p.Op {
		case OpAll:
			continue
		case OpAnd:
			children = append(children, p.Children...)
		default:
			children = append(children, p)
		}
	}
	switch len(children) {
	case 0:
		return All()
	case 1:
		return children[0]
	default:
		return Predicate{Op: OpAnd, Children: children}
	}
}

// Or combines predicates so that at least one must hold. An All operand makes
// the whole expression All.
func Or(ps ...Predicate) Predicate {
	var children []Predicate
	for _, p := range ps {
		switch p.Op {
		case OpAll:
			return All()
		case OpOr:
			children = append(children, p.Children...)
		default:
			children = append(children, p)
		}
	}
	if len(children) == 1 {
		return children[0]
	}
	return Predicate{Op: OpOr, Children: children}
}

// IsAll reports whether p matches every record.
func (p Predicate) IsAll() bool {
	return p.Op == OpAll
}

// String renders the predicate for logs.
func (p Predicate) String() string {
	switch p.Op {
	case OpAll:
		return "*"
	case OpEq:
		return fmt.Sprintf("%s=%v", p.Field, p.Value)
	case OpIn:
		return fmt.Sprintf("%v in %s", p.Value, p.Field)
	case OpSearch:
		fields := make([]string, len(p.Fields))
		for i, f := range p.Fields {
			fields[i] = string(f)
		}
		return fmt.Sprintf("search(%q in %s)", p.Term, strings.Join(fields, ","))
	case OpAnd, OpOr:
		parts := make([]string, len(p.Children))
		for i, c := range p.Children {
			parts[i] = c.String()
		}
		sep := " AND "
		if p.Op == OpOr {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")"
	default:
		return string(p.Op)
	}
}

// Match evaluates p against doc.
func Match(p Predicate, doc model.Document) bool {
	switch p.Op {
	case OpAll:
		return true
	case OpEq:
		return doc.FieldValue(p.Field) == p.Value
	case OpIn:
		ids, ok := doc.FieldValue(p.Field).([]uuid.UUID)
		if !ok {
			return false
		}
		for _, id := range ids {
			if id == p.Value {
				return true
			}
		}
		return false
	case OpSearch:
		term := strings.ToLower(p.Term)
		for _, f := range p.Fields {
			if s, ok := doc.FieldValue(f).(string); ok && strings.Contains(strings.ToLower(s), term) {
				return true
			}
		}
		return false
	case OpAnd:
		for _, c := range p.Children {
			if !Match(c, doc) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range p.Children {
			if Match(c, doc) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
