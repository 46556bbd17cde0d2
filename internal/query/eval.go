package query

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// Lookup resolves a dotted path inside doc.
func Lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Match reports whether doc satisfies every predicate of q. A nil query
// matches everything.
func (q *Query) Match(doc map[string]any) bool {
	if q == nil {
		return true
	}
	for _, p := range q.predicates {
		if !p.match(doc) {
			return false
		}
	}
	return true
}

func (p Predicate) match(doc map[string]any) bool {
	val, found := Lookup(doc, p.Field)

	switch p.Op {
	case OpEqual:
		if !found {
			return p.Value == nil
		}
		return matchesValue(val, p.Value)
	case OpNotEqual:
		if !found {
			return p.Value != nil
		}
		return !matchesValue(val, p.Value)
	case OpIn:
		return found && matchesAny(val, p.Value)
	case OpNotIn:
		return !found || !matchesAny(val, p.Value)
	}

	if !found {
		return false
	}
	c, ok := compareSameKind(val, p.Value)
	if !ok {
		return false
	}
	switch p.Op {
	case OpGreaterThan:
		return c > 0
	case OpGreaterThanEqual:
		return c >= 0
	case OpLessThan:
		return c < 0
	case OpLessThanEqual:
		return c <= 0
	}
	return false
}

// matchesValue is equality with array semantics: a list field matches when
// any element equals want, or when the whole list does.
func matchesValue(have, want any) bool {
	if equal(have, want) {
		return true
	}
	if list, ok := have.([]any); ok {
		for _, el := range list {
			if equal(el, want) {
				return true
			}
		}
	}
	return false
}

func matchesAny(have, candidates any) bool {
	list, ok := candidates.([]any)
	if !ok {
		return false
	}
	for _, c := range list {
		if matchesValue(have, c) {
			return true
		}
	}
	return false
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(Normalize(a), Normalize(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
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
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

const (
	kindNull = iota
	kindNumber
	kindString
	kindBool
	kindOther
)

func kindOf(v any) int {
	if v == nil {
		return kindNull
	}
	if _, ok := toFloat(v); ok {
		return kindNumber
	}
	switch v.(type) {
	case string:
		return kindString
	case bool:
		return kindBool
	}
	return kindOther
}

// compareSameKind orders two values of the same kind. Range operators never
// match across kinds.
func compareSameKind(a, b any) (int, bool) {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb || ka == kindOther || ka == kindNull {
		return 0, false
	}
	return compareValues(a, b), true
}

// compareValues is a total order used for sorting: null < number < string <
// bool < everything else, the latter compared by JSON text.
func compareValues(a, b any) int {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		return cmpInt(ka, kb)
	}
	switch ka {
	case kindNull:
		return 0
	case kindNumber:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case kindString:
		return strings.Compare(a.(string), b.(string))
	case kindBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return strings.Compare(string(ja), string(jb))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Less orders a before b under q's sort keys. Missing fields sort as null.
func (q *Query) Less(a, b map[string]any) bool {
	if q == nil {
		return false
	}
	for _, s := range q.sort {
		va, _ := Lookup(a, s.Field)
		vb, _ := Lookup(b, s.Field)
		c := compareValues(va, vb)
		if c == 0 {
			continue
		}
		if s.Order == Descending {
			return c > 0
		}
		return c < 0
	}
	return false
}

// Apply filters, sorts, skips and limits items, returning a new slice.
// The input order is treated as insertion order.
func Apply[T ~map[string]any](q *Query, items []T) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if q.Match(map[string]any(it)) {
			out = append(out, it)
		}
	}
	if q == nil {
		return out
	}

	if len(q.sort) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			return q.Less(map[string]any(out[i]), map[string]any(out[j]))
		})
	}

	if q.skip > 0 {
		if q.skip >= len(out) {
			return out[:0]
		}
		out = out[q.skip:]
	}
	if q.limit > 0 && q.limit < len(out) {
		out = out[:q.limit]
	}
	return out
}
