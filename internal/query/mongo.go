package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Filter renders the predicates as a Mongo-style filter document. A field
// with a single equality predicate is rendered as a bare value; repeated
// operators on the same field fall back to an explicit $and.
func (q *Query) Filter() map[string]any {
	out := map[string]any{}
	if q == nil {
		return out
	}

	byField := map[string][]Predicate{}
	var order []string
	for _, p := range q.predicates {
		if _, ok := byField[p.Field]; !ok {
			order = append(order, p.Field)
		}
		byField[p.Field] = append(byField[p.Field], p)
	}

	var and []any
	for _, field := range order {
		preds := byField[field]
		if len(preds) == 1 && preds[0].Op == OpEqual && !isOperatorDoc(preds[0].Value) {
			out[field] = preds[0].Value
			continue
		}
		ops := map[string]any{}
		for _, p := range preds {
			if _, dup := ops[string(p.Op)]; dup {
				and = append(and, map[string]any{field: map[string]any{string(p.Op): p.Value}})
				continue
			}
			ops[string(p.Op)] = p.Value
		}
		out[field] = ops
	}
	if len(and) > 0 {
		out["$and"] = and
	}
	return out
}

// FilterJSON encodes Filter. Keys are emitted in sorted order.
func (q *Query) FilterJSON() (string, error) {
	b, err := json.Marshal(q.Filter())
	if err != nil {
		return "", fmt.Errorf("failed to encode query filter: %w", err)
	}
	return string(b), nil
}

// SortJSON encodes the sort keys in precedence order, e.g. {"age":-1,"name":1}.
// It returns "" when the query has no sort.
func (q *Query) SortJSON() string {
	if q == nil || len(q.sort) == 0 {
		return ""
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range q.sort {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(s.Field)
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(int(s.Order)))
	}
	buf.WriteByte('}')
	return buf.String()
}

// Parse decodes the wire form produced by FilterJSON and SortJSON. Empty
// strings mean "no filter" and "no sort".
func Parse(filter, sortSpec string, skip, limit int) (*Query, error) {
	q := New().SetSkip(skip).SetLimit(limit)

	if strings.TrimSpace(filter) != "" {
		var doc map[string]any
		if err := json.Unmarshal([]byte(filter), &doc); err != nil {
			return nil, fmt.Errorf("%w: filter: %v", ErrInvalidQuery, err)
		}
		if err := q.parseFilter(doc); err != nil {
			return nil, err
		}
	}

	if strings.TrimSpace(sortSpec) != "" {
		if err := q.parseSort(sortSpec); err != nil {
			return nil, err
		}
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Query) parseFilter(doc map[string]any) error {
	fields := make([]string, 0, len(doc))
	for k := range doc {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	for _, field := range fields {
		v := doc[field]

		if field == "$and" {
			clauses, ok := v.([]any)
			if !ok {
				return fmt.Errorf("%w: $and needs a list", ErrInvalidQuery)
			}
			for _, c := range clauses {
				sub, ok := c.(map[string]any)
				if !ok {
					return fmt.Errorf("%w: $and clause is not a document", ErrInvalidQuery)
				}
				if err := q.parseFilter(sub); err != nil {
					return err
				}
			}
			continue
		}
		if strings.HasPrefix(field, "$") {
			return fmt.Errorf("%w: unsupported top-level operator %q", ErrInvalidQuery, field)
		}

		ops, ok := v.(map[string]any)
		if !ok || !isOperatorDoc(ops) {
			q.predicates = append(q.predicates, Predicate{Field: field, Op: OpEqual, Value: v})
			continue
		}

		names := make([]string, 0, len(ops))
		for op := range ops {
			names = append(names, op)
		}
		sort.Strings(names)
		for _, name := range names {
			op := Operator(name)
			if !op.valid() {
				return fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, name)
			}
			q.predicates = append(q.predicates, Predicate{Field: field, Op: op, Value: ops[name]})
		}
	}
	return nil
}

// parseSort walks the sort document token by token to keep key order.
func (q *Query) parseSort(spec string) error {
	dec := json.NewDecoder(strings.NewReader(spec))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return fmt.Errorf("%w: sort must be a JSON object", ErrInvalidQuery)
	}
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return fmt.Errorf("%w: sort: %v", ErrInvalidQuery, err)
		}
		field, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: sort key", ErrInvalidQuery)
		}
		tok, err = dec.Token()
		if err != nil {
			return fmt.Errorf("%w: sort: %v", ErrInvalidQuery, err)
		}
		num, ok := tok.(json.Number)
		if !ok {
			return fmt.Errorf("%w: sort order for %q must be 1 or -1", ErrInvalidQuery, field)
		}
		n, err := num.Int64()
		if err != nil {
			return fmt.Errorf("%w: sort order for %q must be 1 or -1", ErrInvalidQuery, field)
		}
		q.sort = append(q.sort, SortField{Field: field, Order: SortOrder(n)})
	}
	return nil
}

func isOperatorDoc(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

type envelope struct {
	Filter json.RawMessage `json:"filter,omitempty"`
	Sort   json.RawMessage `json:"sort,omitempty"`
	Skip   int             `json:"skip,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// Encode packs the whole query (filter, sort, skip, limit) into one JSON
// string, suitable for persisting next to a queued mutation.
func (q *Query) Encode() (string, error) {
	if q == nil {
		return "", nil
	}
	filter, err := q.FilterJSON()
	if err != nil {
		return "", err
	}
	env := envelope{Filter: json.RawMessage(filter), Skip: q.skip, Limit: q.limit}
	if s := q.SortJSON(); s != "" {
		env.Sort = json.RawMessage(s)
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to encode query: %w", err)
	}
	return string(b), nil
}

// Decode is the inverse of Encode. An empty string decodes to a nil query.
func Decode(s string) (*Query, error) {
	if s == "" {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return Parse(string(env.Filter), string(env.Sort), env.Skip, env.Limit)
}
