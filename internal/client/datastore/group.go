package datastore

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/kinveysync/internal/query"
)

func (s *DataStore) groupRequest(a query.Aggregation, condition *query.Query) request[[]query.Group] {
	if s.storeType == Sync {
		return localGroup{s: s, a: a, condition: condition}
	}
	return networkGroup{s: s, a: a, condition: condition}
}

// localGroup reduces the cached rows, pending local writes included.
type localGroup struct {
	s         *DataStore
	a         query.Aggregation
	condition *query.Query
}

func (r localGroup) Execute(ctx context.Context) ([]query.Group, error) {
	items, err := r.s.cacheOf(r.s.repos()).GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return query.Aggregate(r.a, r.condition, items)
}

type networkGroup struct {
	s         *DataStore
	a         query.Aggregation
	condition *query.Query
}

func (r networkGroup) Execute(ctx context.Context) ([]query.Group, error) {
	groups, err := r.s.net.Group(ctx, r.s.collection, r.a, r.condition)
	if err != nil {
		return nil, remoteError("group "+r.s.collection, err)
	}
	return groups, nil
}

// Group buckets the documents matching condition by the key fields of a and
// reduces each bucket. A nil condition takes every document.
//
// Sync stores evaluate the aggregation over the local cache. Network and
// Cache stores ask the backend and leave the cache untouched.
func (s *DataStore) Group(ctx context.Context, a query.Aggregation, condition *query.Query) ([]query.Group, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if err := validateQuery(condition); err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	groups, err := s.groupRequest(a, condition.Unpaginated()).Execute(ctx)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []query.Group{}
	}
	return groups, nil
}
