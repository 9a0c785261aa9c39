package mongo

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ChuLiYu/fleetstore/internal/query"
)

// toFilter renders a predicate tree as a MongoDB filter document. Leaves
// become {field: value} or {field: {$op: value}}; And/Or become $and/$or.
// A match-all tree renders as the empty document.
func toFilter(c query.Cond) bson.D {
	if c.MatchAll() {
		return bson.D{}
	}
	switch c.Op {
	case query.OpAnd, query.OpOr:
		op := "$and"
		if c.Op == query.OpOr {
			op = "$or"
		}
		parts := bson.A{}
		for _, ch := range c.Children {
			if ch.MatchAll() {
				continue
			}
			parts = append(parts, toFilter(ch))
		}
		return bson.D{{Key: op, Value: parts}}
	case query.OpEq:
		return bson.D{{Key: c.Field, Value: c.Value}}
	default:
		return bson.D{{Key: c.Field, Value: bson.D{{Key: operator(c.Op), Value: c.Value}}}}
	}
}

func operator(op query.Op) string {
	switch op {
	case query.OpLt:
		return "$lt"
	case query.OpLte:
		return "$lte"
	case query.OpGt:
		return "$gt"
	case query.OpGte:
		return "$gte"
	default:
		return "$eq"
	}
}

func toSort(fields []query.SortField) bson.D {
	out := make(bson.D, 0, len(fields))
	for _, f := range fields {
		dir := 1
		if f.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: f.Field, Value: dir})
	}
	return out
}
