package memory

import (
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ChuLiYu/fleetstore/internal/query"
)

// match evaluates c against doc with Mongo-like semantics: numbers compare by
// value regardless of width, a missing field never satisfies a comparison,
// and values of different type classes never compare equal.
func match(doc bson.Raw, c query.Cond) bool {
	switch c.Op {
	case query.OpAnd:
		for _, ch := range c.Children {
			if !match(doc, ch) {
				return false
			}
		}
		return true
	case query.OpOr:
		for _, ch := range c.Children {
			if match(doc, ch) {
				return true
			}
		}
		return false
	}

	rv, err := doc.LookupErr(strings.Split(c.Field, ".")...)
	if err != nil {
		return false
	}
	cmp, ok := compare(rawToGo(rv), c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case query.OpEq:
		return cmp == 0
	case query.OpLt:
		return cmp < 0
	case query.OpLte:
		return cmp <= 0
	case query.OpGt:
		return cmp > 0
	case query.OpGte:
		return cmp >= 0
	default:
		return false
	}
}

// less orders two documents by the sort keys. Missing fields sort first.
func less(a, b bson.Raw, keys []query.SortField) bool {
	for _, k := range keys {
		path := strings.Split(k.Field, ".")
		av, aerr := a.LookupErr(path...)
		bv, berr := b.LookupErr(path...)

		var c int
		switch {
		case aerr != nil && berr != nil:
			c = 0
		case aerr != nil:
			c = -1
		case berr != nil:
			c = 1
		default:
			x, y := rawToGo(av), rawToGo(bv)
			var ok bool
			if c, ok = compare(x, y); !ok {
				c = typeRank(x) - typeRank(y)
			}
		}
		if c == 0 {
			continue
		}
		if k.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

func rawToGo(rv bson.RawValue) any {
	switch rv.Type {
	case bson.TypeInt32:
		return int64(rv.Int32())
	case bson.TypeInt64:
		return rv.Int64()
	case bson.TypeDouble:
		return rv.Double()
	case bson.TypeString:
		return rv.StringValue()
	case bson.TypeBoolean:
		return rv.Boolean()
	case bson.TypeNull:
		return nil
	default:
		return rv
	}
}

// compare returns -1/0/1 and whether the two values are comparable.
func compare(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case nil:
		if b == nil {
			return 0, true
		}
	}
	return 0, false
}

func typeRank(v any) int {
	if _, ok := toFloat(v); ok {
		return 1
	}
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 2
	case bool:
		return 4
	}
	return 3
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
