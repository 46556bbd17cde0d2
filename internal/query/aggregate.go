package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Reduce names the function applied to each group of an aggregation.
type Reduce string

const (
	ReduceCount   Reduce = "count"
	ReduceSum     Reduce = "sum"
	ReduceMin     Reduce = "min"
	ReduceMax     Reduce = "max"
	ReduceAverage Reduce = "average"
)

func (r Reduce) valid() bool {
	switch r {
	case ReduceCount, ReduceSum, ReduceMin, ReduceMax, ReduceAverage:
		return true
	}
	return false
}

// ResultField holds the reduced value in the wire form of a Group.
const ResultField = "_result"

// Aggregation groups documents by the values of Key and reduces Field in
// each group. Field is ignored by ReduceCount. An empty Key puts every
// document in one group.
type Aggregation struct {
	Reduce Reduce
	Key    []string
	Field  string
}

func Count(key ...string) Aggregation { return Aggregation{Reduce: ReduceCount, Key: key} }

func Sum(field string, key ...string) Aggregation {
	return Aggregation{Reduce: ReduceSum, Field: field, Key: key}
}

func Min(field string, key ...string) Aggregation {
	return Aggregation{Reduce: ReduceMin, Field: field, Key: key}
}

func Max(field string, key ...string) Aggregation {
	return Aggregation{Reduce: ReduceMax, Field: field, Key: key}
}

func Average(field string, key ...string) Aggregation {
	return Aggregation{Reduce: ReduceAverage, Field: field, Key: key}
}

func (a Aggregation) Validate() error {
	if !a.Reduce.valid() {
		return fmt.Errorf("%w: unknown reduce function %q", ErrInvalidQuery, a.Reduce)
	}
	if a.Reduce != ReduceCount && a.Field == "" {
		return fmt.Errorf("%w: %s needs a field", ErrInvalidQuery, a.Reduce)
	}
	for _, k := range a.Key {
		if k == "" {
			return fmt.Errorf("%w: empty group key", ErrInvalidQuery)
		}
	}
	return nil
}

// Group is one bucket of an aggregation result.
type Group struct {
	// Key maps each key field to the value shared by the group; a field the
	// documents lack maps to nil.
	Key    map[string]any
	Result float64
}

// MarshalJSON flattens the key fields next to ResultField.
func (g Group) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(g.Key)+1)
	for k, v := range g.Key {
		out[k] = v
	}
	out[ResultField] = g.Result
	return json.Marshal(out)
}

func (g *Group) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	res, ok := toFloat(doc[ResultField])
	if !ok {
		return fmt.Errorf("group has no numeric %s", ResultField)
	}
	delete(doc, ResultField)
	g.Key = doc
	g.Result = res
	return nil
}

type bucket struct {
	key   map[string]any
	n     int
	acc   float64
	found bool
}

// Aggregate evaluates a over the items matching condition. Sort, skip and
// limit of condition are ignored. Groups come out in the order their first
// document appears in items.
//
// Sum, min, max and average look only at numeric values of Field; under
// min, max and average a document without one does not join any group.
func Aggregate[T ~map[string]any](a Aggregation, condition *Query, items []T) ([]Group, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := condition.Validate(); err != nil {
		return nil, err
	}

	var order []string
	buckets := map[string]*bucket{}
	for _, it := range items {
		doc := map[string]any(it)
		if !condition.Match(doc) {
			continue
		}
		v, numeric := 0.0, false
		if a.Reduce != ReduceCount {
			raw, _ := Lookup(doc, a.Field)
			v, numeric = toFloat(raw)
			if !numeric && a.Reduce != ReduceSum {
				continue
			}
		}

		key, sig := groupKey(doc, a.Key)
		b, ok := buckets[sig]
		if !ok {
			b = &bucket{key: key}
			buckets[sig] = b
			order = append(order, sig)
		}
		b.n++
		if !numeric {
			continue
		}
		switch {
		case !b.found:
			b.acc = v
		case a.Reduce == ReduceMin:
			b.acc = min(b.acc, v)
		case a.Reduce == ReduceMax:
			b.acc = max(b.acc, v)
		default:
			b.acc += v
		}
		b.found = true
	}

	out := make([]Group, 0, len(order))
	for _, sig := range order {
		b := buckets[sig]
		g := Group{Key: b.key}
		switch a.Reduce {
		case ReduceCount:
			g.Result = float64(b.n)
		case ReduceAverage:
			g.Result = b.acc / float64(b.n)
		default:
			g.Result = b.acc
		}
		out = append(out, g)
	}
	return out, nil
}

// groupKey returns the key values of doc and a string identifying them.
func groupKey(doc map[string]any, fields []string) (map[string]any, string) {
	key := make(map[string]any, len(fields))
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		v, _ := Lookup(doc, f)
		v = Normalize(v)
		key[f] = v
		b, err := json.Marshal(v)
		if err != nil {
			b = []byte(fmt.Sprint(v))
		}
		parts = append(parts, string(b))
	}
	return key, strings.Join(parts, "\x00")
}

type aggregationWire struct {
	Key       []string        `json:"key"`
	Reduce    Reduce          `json:"reduce"`
	Field     string          `json:"field,omitempty"`
	Condition json.RawMessage `json:"condition,omitempty"`
}

// EncodeAggregation renders a request body such as
// {"key":["genre"],"reduce":"sum","field":"pages","condition":{"year":1999}}.
func EncodeAggregation(a Aggregation, condition *Query) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	w := aggregationWire{Key: a.Key, Reduce: a.Reduce, Field: a.Field}
	if w.Key == nil {
		w.Key = []string{}
	}
	if condition != nil && len(condition.Predicates()) > 0 {
		filter, err := condition.FilterJSON()
		if err != nil {
			return nil, err
		}
		w.Condition = json.RawMessage(filter)
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode aggregation: %w", err)
	}
	return b, nil
}

// DecodeAggregation parses what EncodeAggregation produces. The condition
// is nil when the body has none.
func DecodeAggregation(data []byte) (Aggregation, *Query, error) {
	var w aggregationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Aggregation{}, nil, fmt.Errorf("%w: aggregation: %v", ErrInvalidQuery, err)
	}
	a := Aggregation{Reduce: w.Reduce, Key: w.Key, Field: w.Field}
	if err := a.Validate(); err != nil {
		return Aggregation{}, nil, err
	}
	var cond *Query
	if len(w.Condition) > 0 && string(w.Condition) != "null" {
		q, err := Parse(string(w.Condition), "", 0, 0)
		if err != nil {
			return Aggregation{}, nil, err
		}
		cond = q
	}
	return a, cond, nil
}
