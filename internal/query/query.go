// Package query models the filter/sort/pagination queries accepted by the
// appdata API. The same Query value is evaluated locally against cached
// documents (Match, Apply) and encoded for the wire in the Mongo-style
// format the backend understands (FilterJSON, SortJSON, Parse).
//
// Predicates are combined with an implicit AND. Sorting is stable over the
// input order, so documents that tie on every sort field keep insertion
// order. Skip is applied before limit; a limit of 0 means "no limit".
package query

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidQuery = errors.New("invalid query")

// Operator is a comparison operator in its wire spelling.
type Operator string

const (
	OpEqual            Operator = "$eq"
	OpNotEqual         Operator = "$ne"
	OpGreaterThan      Operator = "$gt"
	OpGreaterThanEqual Operator = "$gte"
	OpLessThan         Operator = "$lt"
	OpLessThanEqual    Operator = "$lte"
	OpIn               Operator = "$in"
	OpNotIn            Operator = "$nin"
)

func (o Operator) valid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanEqual,
		OpLessThan, OpLessThanEqual, OpIn, OpNotIn:
		return true
	}
	return false
}

type SortOrder int

const (
	Ascending  SortOrder = 1
	Descending SortOrder = -1
)

// Predicate is a single field condition. Field may be a dotted path into
// nested documents.
type Predicate struct {
	Field string
	Op    Operator
	Value any
}

type SortField struct {
	Field string
	Order SortOrder
}

type Query struct {
	predicates []Predicate
	sort       []SortField
	skip       int
	limit      int
}

func New() *Query {
	return &Query{}
}

func (q *Query) where(field string, op Operator, value any) *Query {
	q.predicates = append(q.predicates, Predicate{Field: field, Op: op, Value: Normalize(value)})
	return q
}

func (q *Query) Equals(field string, value any) *Query {
	return q.where(field, OpEqual, value)
}

func (q *Query) NotEqual(field string, value any) *Query {
	return q.where(field, OpNotEqual, value)
}

func (q *Query) GreaterThan(field string, value any) *Query {
	return q.where(field, OpGreaterThan, value)
}

func (q *Query) GreaterThanEqual(field string, value any) *Query {
	return q.where(field, OpGreaterThanEqual, value)
}

func (q *Query) LessThan(field string, value any) *Query {
	return q.where(field, OpLessThan, value)
}

func (q *Query) LessThanEqual(field string, value any) *Query {
	return q.where(field, OpLessThanEqual, value)
}

func (q *Query) In(field string, values ...any) *Query {
	return q.where(field, OpIn, append([]any{}, values...))
}

func (q *Query) NotIn(field string, values ...any) *Query {
	return q.where(field, OpNotIn, append([]any{}, values...))
}

// AddSort appends a sort key. Earlier keys take precedence.
func (q *Query) AddSort(field string, order SortOrder) *Query {
	q.sort = append(q.sort, SortField{Field: field, Order: order})
	return q
}

func (q *Query) SetSkip(n int) *Query {
	q.skip = n
	return q
}

func (q *Query) SetLimit(n int) *Query {
	q.limit = n
	return q
}

func (q *Query) Predicates() []Predicate {
	return append([]Predicate(nil), q.predicates...)
}

func (q *Query) SortFields() []SortField {
	return append([]SortField(nil), q.sort...)
}

func (q *Query) Skip() int  { return q.skip }
func (q *Query) Limit() int { return q.limit }

// Paginated reports whether skip or limit is set.
func (q *Query) Paginated() bool {
	return q.skip != 0 || q.limit != 0
}

// Clone returns a deep-enough copy: predicate values are shared but the
// slices are not.
func (q *Query) Clone() *Query {
	if q == nil {
		return nil
	}
	return &Query{
		predicates: q.Predicates(),
		sort:       q.SortFields(),
		skip:       q.skip,
		limit:      q.limit,
	}
}

// Unpaginated returns a copy of q with skip and limit cleared. A nil query
// stays nil.
func (q *Query) Unpaginated() *Query {
	c := q.Clone()
	if c != nil {
		c.skip, c.limit = 0, 0
	}
	return c
}

// Validate rejects negative pagination, unknown operators, empty field names
// and non-list operands of $in/$nin.
func (q *Query) Validate() error {
	if q == nil {
		return nil
	}
	if q.skip < 0 {
		return fmt.Errorf("%w: negative skip %d", ErrInvalidQuery, q.skip)
	}
	if q.limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, q.limit)
	}
	for _, p := range q.predicates {
		if p.Field == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidQuery)
		}
		if !p.Op.valid() {
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, p.Op)
		}
		if p.Op == OpIn || p.Op == OpNotIn {
			if _, ok := p.Value.([]any); !ok {
				return fmt.Errorf("%w: %s on %q needs a list", ErrInvalidQuery, p.Op, p.Field)
			}
		}
	}
	for _, s := range q.sort {
		if s.Field == "" {
			return fmt.Errorf("%w: empty sort field", ErrInvalidQuery)
		}
		if s.Order != Ascending && s.Order != Descending {
			return fmt.Errorf("%w: sort order %d on %q", ErrInvalidQuery, s.Order, s.Field)
		}
	}
	return nil
}

func (q *Query) String() string {
	if q == nil {
		return "{}"
	}
	filter, _ := q.FilterJSON()
	return fmt.Sprintf("filter=%s sort=%s skip=%d limit=%d", filter, q.SortJSON(), q.skip, q.limit)
}

// Normalize converts v to the shape encoding/json produces when decoding
// into an interface: float64 numbers, []any, map[string]any. Values that do
// not marshal are returned unchanged.
func Normalize(v any) any {
	switch v.(type) {
	case nil, string, bool, float64:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
