package store

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// toDocument converts any BSON-marshalable value into an ordered document.
func toDocument(v any) (bson.D, error) {
	if d, ok := v.(bson.D); ok {
		return d, nil
	}

	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	return d, nil
}

// ensureObjectID prepends a fresh ObjectID when the document has no _id and
// returns the document together with its _id in string form.
func ensureObjectID(d bson.D) (bson.D, string) {
	for _, e := range d {
		if e.Key == "_id" {
			return d, idString(e.Value)
		}
	}

	oid := bson.NewObjectID()
	return append(bson.D{{Key: "_id", Value: oid}}, d...), oid.Hex()
}

func lookup(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// setFields overwrites or appends the given fields, keeping document order.
func setFields(d bson.D, set bson.M) bson.D {
	out := make(bson.D, len(d))
	copy(out, d)

	for k, v := range set {
		replaced := false
		for i := range out {
			if out[i].Key == k {
				out[i].Value = v
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, bson.E{Key: k, Value: v})
		}
	}

	return out
}

func isNumber(v any) bool {
	_, ok := toFloat(v)
	return ok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// matchCond evaluates a single condition against a document.
func matchCond(d bson.D, c Cond) bool {
	v, ok := lookup(d, c.Field)
	if !ok {
		return false
	}

	switch c.Op {
	case OpContainsFold:
		s, ok := v.(string)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(fmt.Sprint(c.Value)))
	case OpLte:
		a, ok1 := toFloat(v)
		b, ok2 := toFloat(c.Value)
		return ok1 && ok2 && a <= b
	default:
		return valuesEqual(v, c.Value)
	}
}

func matches(d bson.D, f Filter) bool {
	for _, c := range f {
		if !matchCond(d, c) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x == y
		}
	}
	return reflect.DeepEqual(a, b)
}

// compareField orders two documents by a single sort key.
func compareField(a, b bson.D, s Sort) int {
	va, _ := lookup(a, s.Field)
	vb, _ := lookup(b, s.Field)

	var cmp int
	if s.Numeric {
		x, _ := strconv.ParseFloat(fmt.Sprint(va), 64)
		y, _ := strconv.ParseFloat(fmt.Sprint(vb), 64)
		cmp = compareFloat(x, y)
	} else if x, ok := toFloat(va); ok {
		y, _ := toFloat(vb)
		cmp = compareFloat(x, y)
	} else {
		cmp = strings.Compare(fmt.Sprint(va), fmt.Sprint(vb))
	}

	if s.Desc {
		return -cmp
	}
	return cmp
}

func compareFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}
