// Package query turns the integer discriminants carried by fetch requests
// (filter type, sort type, order type) into a backend-neutral predicate,
// ordering and pagination window.
//
// Everything here is pure: no I/O, no clock. Document stores translate a Spec
// into their own query language (see docstore/mongo) or evaluate it directly
// (see docstore/memory).
package query

import (
	"fmt"
	"strings"
)

// ============================================================================
// Predicate AST
// ============================================================================

// Op is the operator of a Cond node.
type Op int

const (
	OpAnd Op = iota
	OpOr
	OpEq
	OpLt
	OpLte
	OpGt
	OpGte
)

func (o Op) String() string {
	switch o {
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpEq:
		return "eq"
	case OpLt:
		return "lt"
	case OpLte:
		return "lte"
	case OpGt:
		return "gt"
	case OpGte:
		return "gte"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Cond is a predicate tree. Leaf nodes compare Field against Value; And/Or
// nodes combine Children. The zero value is an empty And, which matches
// every document.
type Cond struct {
	Op       Op
	Field    string
	Value    any
	Children []Cond
}

func And(c ...Cond) Cond { return Cond{Op: OpAnd, Children: c} }
func Or(c ...Cond) Cond  { return Cond{Op: OpOr, Children: c} }

func Eq(field string, v any) Cond  { return Cond{Op: OpEq, Field: field, Value: v} }
func Lt(field string, v any) Cond  { return Cond{Op: OpLt, Field: field, Value: v} }
func Lte(field string, v any) Cond { return Cond{Op: OpLte, Field: field, Value: v} }
func Gt(field string, v any) Cond  { return Cond{Op: OpGt, Field: field, Value: v} }
func Gte(field string, v any) Cond { return Cond{Op: OpGte, Field: field, Value: v} }

// IsLeaf reports whether c compares a field rather than combining children.
func (c Cond) IsLeaf() bool {
	return c.Op != OpAnd && c.Op != OpOr
}

// MatchAll reports whether c places no restriction on documents.
func (c Cond) MatchAll() bool {
	if c.IsLeaf() {
		return false
	}
	if c.Op == OpOr {
		return false
	}
	for _, ch := range c.Children {
		if !ch.MatchAll() {
			return false
		}
	}
	return true
}

// Equalities collects the field/value pairs of Eq leaves reachable through
// And nodes only. Stores use it to seed a document on upsert.
func (c Cond) Equalities() map[string]any {
	out := make(map[string]any)
	c.collectEq(out)
	return out
}

func (c Cond) collectEq(out map[string]any) {
	switch c.Op {
	case OpEq:
		out[c.Field] = c.Value
	case OpAnd:
		for _, ch := range c.Children {
			ch.collectEq(out)
		}
	}
}

func (c Cond) String() string {
	if c.IsLeaf() {
		return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
	}
	parts := make([]string, len(c.Children))
	for i, ch := range c.Children {
		parts[i] = ch.String()
	}
	return c.Op.String() + "(" + strings.Join(parts, ", ") + ")"
}

// ============================================================================
// Spec
// ============================================================================

// SortField is one key of an ordering.
type SortField struct {
	Field string
	Desc  bool
}

// Spec is a complete read request: predicate, ordering and pagination.
// Skip and Limit are applied only when strictly positive.
type Spec struct {
	Filter Cond
	Sort   []SortField
	Skip   int64
	Limit  int64
}

func asc(field string) []SortField { return []SortField{{Field: field}} }
