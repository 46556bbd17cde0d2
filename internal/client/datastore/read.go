package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

// request is one read or write path of a store type.
type request[T any] interface {
	Execute(ctx context.Context) (T, error)
}

type findOptions struct {
	cachedEntity func(models.Entity)
	cachedList   func([]models.Entity)
}

type FindOption func(*findOptions)

// WithCachedEntity makes a Cache store hand a cache hit of FindByID to fn
// before it refreshes the entity from the backend.
func WithCachedEntity(fn func(models.Entity)) FindOption {
	return func(o *findOptions) { o.cachedEntity = fn }
}

// WithCachedList hands the cached matches of a Cache store's Find or
// FindByIDs to fn before the backend answers. The cache may hold only some
// of the matching entities, so the backend is always asked.
func WithCachedList(fn func([]models.Entity)) FindOption {
	return func(o *findOptions) { o.cachedList = fn }
}

func collectFindOptions(opts []FindOption) findOptions {
	var o findOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (s *DataStore) readByID(id string, o findOptions) request[models.Entity] {
	switch s.storeType {
	case Network:
		return networkReadByID{s: s, id: id}
	case Cache:
		return cachedReadByID{s: s, id: id, hook: o.cachedEntity}
	default:
		return localReadByID{s: s, id: id}
	}
}

func (s *DataStore) readByQuery(q *query.Query, o findOptions) request[[]models.Entity] {
	switch s.storeType {
	case Network:
		return networkReadByQuery{s: s, q: q}
	case Cache:
		return cachedReadByQuery{s: s, q: q, hook: o.cachedList}
	default:
		return localReadByQuery{s: s, q: q}
	}
}

func (s *DataStore) readByIDs(ids []string, o findOptions) request[[]models.Entity] {
	switch s.storeType {
	case Network:
		return networkReadByIDs{s: s, ids: ids}
	case Cache:
		return cachedReadByIDs{s: s, ids: ids, hook: o.cachedList}
	default:
		return localReadByIDs{s: s, ids: ids}
	}
}

func (s *DataStore) countRequest(q *query.Query) request[int] {
	if s.storeType == Sync {
		return localCount{s: s, q: q}
	}
	return networkCount{s: s, q: q}
}

type localReadByID struct {
	s  *DataStore
	id string
}

func (r localReadByID) Execute(ctx context.Context) (models.Entity, error) {
	e, err := r.s.cacheOf(r.s.repos()).Get(ctx, r.id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%s[%s]: %w", r.s.collection, r.id, ErrNotFound)
	}
	return e, nil
}

type networkReadByID struct {
	s  *DataStore
	id string
}

func (r networkReadByID) Execute(ctx context.Context) (models.Entity, error) {
	e, err := r.s.net.GetByID(ctx, r.s.collection, r.id)
	if err != nil {
		return nil, remoteError("find "+r.s.collection, err)
	}
	return e, nil
}

type cachedReadByID struct {
	s    *DataStore
	id   string
	hook func(models.Entity)
}

func (r cachedReadByID) Execute(ctx context.Context) (models.Entity, error) {
	c := r.s.cacheOf(r.s.repos())
	hit, err := c.Get(ctx, r.id)
	if err != nil {
		return nil, err
	}
	if hit != nil {
		if r.hook == nil {
			return hit, nil
		}
		r.hook(hit)
	}

	remote, err := r.s.net.GetByID(ctx, r.s.collection, r.id)
	if err != nil {
		err = remoteError("find "+r.s.collection, err)
		if errors.Is(err, ErrNotFound) && hit != nil {
			if _, derr := c.Delete(ctx, r.id); derr != nil {
				return nil, derr
			}
		}
		return nil, err
	}
	if _, err := c.Save(ctx, remote); err != nil {
		return nil, err
	}
	return remote, nil
}

type localReadByQuery struct {
	s *DataStore
	q *query.Query
}

func (r localReadByQuery) Execute(ctx context.Context) ([]models.Entity, error) {
	return r.s.cacheOf(r.s.repos()).GetByQuery(ctx, r.q)
}

type networkReadByQuery struct {
	s *DataStore
	q *query.Query
}

func (r networkReadByQuery) Execute(ctx context.Context) ([]models.Entity, error) {
	items, err := r.s.net.Find(ctx, r.s.collection, r.q)
	if err != nil {
		return nil, remoteError("find "+r.s.collection, err)
	}
	return items, nil
}

type cachedReadByQuery struct {
	s    *DataStore
	q    *query.Query
	hook func([]models.Entity)
}

func (r cachedReadByQuery) Execute(ctx context.Context) ([]models.Entity, error) {
	c := r.s.cacheOf(r.s.repos())
	if r.hook != nil {
		hits, err := c.GetByQuery(ctx, r.q)
		if err != nil {
			return nil, err
		}
		r.hook(hits)
	}

	items, err := r.s.net.Find(ctx, r.s.collection, r.q)
	if err != nil {
		return nil, remoteError("find "+r.s.collection, err)
	}
	if _, err := c.SaveAll(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

type localReadByIDs struct {
	s   *DataStore
	ids []string
}

func (r localReadByIDs) Execute(ctx context.Context) ([]models.Entity, error) {
	return r.s.cacheOf(r.s.repos()).GetByIDs(ctx, r.ids)
}

// idsQuery selects ids with one $in predicate.
func idsQuery(ids []string) *query.Query {
	values := make([]any, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}
	return query.New().In(common.FieldID, values...)
}

type networkReadByIDs struct {
	s   *DataStore
	ids []string
}

func (r networkReadByIDs) Execute(ctx context.Context) ([]models.Entity, error) {
	items, err := r.s.net.Find(ctx, r.s.collection, idsQuery(r.ids))
	if err != nil {
		return nil, remoteError("find "+r.s.collection, err)
	}
	return items, nil
}

type cachedReadByIDs struct {
	s    *DataStore
	ids  []string
	hook func([]models.Entity)
}

// Execute caches what the backend returns and drops cached rows of ids the
// backend no longer has.
func (r cachedReadByIDs) Execute(ctx context.Context) ([]models.Entity, error) {
	c := r.s.cacheOf(r.s.repos())
	if r.hook != nil {
		hits, err := c.GetByIDs(ctx, r.ids)
		if err != nil {
			return nil, err
		}
		r.hook(hits)
	}

	items, err := r.s.net.Find(ctx, r.s.collection, idsQuery(r.ids))
	if err != nil {
		return nil, remoteError("find "+r.s.collection, err)
	}
	found := make(map[string]struct{}, len(items))
	for _, e := range items {
		found[e.ID()] = struct{}{}
	}
	var gone []string
	for _, id := range r.ids {
		if _, ok := found[id]; !ok {
			gone = append(gone, id)
		}
	}
	if err := c.Apply(ctx, items, gone); err != nil {
		return nil, err
	}
	return items, nil
}

type localCount struct {
	s *DataStore
	q *query.Query
}

func (r localCount) Execute(ctx context.Context) (int, error) {
	return r.s.cacheOf(r.s.repos()).Count(ctx, r.q)
}

type networkCount struct {
	s *DataStore
	q *query.Query
}

func (r networkCount) Execute(ctx context.Context) (int, error) {
	n, err := r.s.net.Count(ctx, r.s.collection, r.q)
	if err != nil {
		return 0, remoteError("count "+r.s.collection, err)
	}
	return n, nil
}

// FindByID returns one entity. Sync stores answer from the cache only and
// report ErrNotFound on a miss.
func (s *DataStore) FindByID(ctx context.Context, id string, opts ...FindOption) (models.Entity, error) {
	if id == "" {
		return nil, invalidArgument("empty id")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s.readByID(id, collectFindOptions(opts)).Execute(ctx)
}

// FindByIDs returns the entities among ids that exist, in storage order.
// Missing ids are left out rather than reported.
func (s *DataStore) FindByIDs(ctx context.Context, ids []string, opts ...FindOption) ([]models.Entity, error) {
	if ids == nil {
		return nil, invalidArgument("nil id list")
	}
	for i, id := range ids {
		if id == "" {
			return nil, invalidArgument("empty id at %d", i)
		}
	}
	if len(ids) == 0 {
		return []models.Entity{}, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	items, err := s.readByIDs(dedupe(ids), collectFindOptions(opts)).Execute(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Entity{}
	}
	return items, nil
}

// Find returns the entities matching q, all of them when q is nil.
func (s *DataStore) Find(ctx context.Context, q *query.Query, opts ...FindOption) ([]models.Entity, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	items, err := s.readByQuery(q, collectFindOptions(opts)).Execute(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Entity{}
	}
	return items, nil
}

func (s *DataStore) FindAll(ctx context.Context, opts ...FindOption) ([]models.Entity, error) {
	return s.Find(ctx, nil, opts...)
}

// Count ignores the skip and limit of q.
func (s *DataStore) Count(ctx context.Context, q *query.Query) (int, error) {
	if err := validateQuery(q); err != nil {
		return 0, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	return s.countRequest(q.Unpaginated()).Execute(ctx)
}
