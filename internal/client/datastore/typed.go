package datastore

import (
	"context"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/client/network"
	"github.com/dmitrijs2005/kinveysync/internal/client/syncmanager"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

// Collection is a DataStore whose items are T values. T round-trips
// through JSON and should carry its id in a field tagged `json:"_id"`.
type Collection[T any] struct {
	store *DataStore
}

// NewCollection builds the underlying DataStore with the schema hash of T.
func NewCollection[T any](name string, st StoreType, sm *syncmanager.Manager, net network.Manager, opts ...Option) (*Collection[T], error) {
	opts = append(opts, WithSchemaHash(SchemaHashOf[T]()))
	s, err := New(name, st, sm, net, opts...)
	if err != nil {
		return nil, err
	}
	return &Collection[T]{store: s}, nil
}

func (c *Collection[T]) Store() *DataStore { return c.store }

// CachedItem adapts fn to WithCachedEntity. Cached rows that do not decode
// into T are not reported.
func CachedItem[T any](fn func(T)) FindOption {
	return WithCachedEntity(func(e models.Entity) {
		if v, err := models.Decode[T](e); err == nil {
			fn(v)
		}
	})
}

// CachedItems adapts fn to WithCachedList.
func CachedItems[T any](fn func([]T)) FindOption {
	return WithCachedList(func(es []models.Entity) {
		if vs, err := decodeAll[T](es); err == nil {
			fn(vs)
		}
	})
}

func decodeAll[T any](es []models.Entity) ([]T, error) {
	out := make([]T, 0, len(es))
	for _, e := range es {
		v, err := models.Decode[T](e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Collection[T]) FindByID(ctx context.Context, id string, opts ...FindOption) (T, error) {
	var zero T
	e, err := c.store.FindByID(ctx, id, opts...)
	if err != nil {
		return zero, err
	}
	return models.Decode[T](e)
}

func (c *Collection[T]) FindByIDs(ctx context.Context, ids []string, opts ...FindOption) ([]T, error) {
	es, err := c.store.FindByIDs(ctx, ids, opts...)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](es)
}

func (c *Collection[T]) Find(ctx context.Context, q *query.Query, opts ...FindOption) ([]T, error) {
	es, err := c.store.Find(ctx, q, opts...)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](es)
}

func (c *Collection[T]) FindAll(ctx context.Context, opts ...FindOption) ([]T, error) {
	return c.Find(ctx, nil, opts...)
}

func (c *Collection[T]) Count(ctx context.Context, q *query.Query) (int, error) {
	return c.store.Count(ctx, q)
}

func (c *Collection[T]) Group(ctx context.Context, a query.Aggregation, condition *query.Query) ([]query.Group, error) {
	return c.store.Group(ctx, a, condition)
}

// Save returns the stored item, including an id assigned on creation.
func (c *Collection[T]) Save(ctx context.Context, v T) (T, error) {
	var zero T
	e, err := models.FromValue(v)
	if err != nil {
		return zero, invalidArgument("%v", err)
	}
	saved, err := c.store.Save(ctx, e)
	if err != nil {
		return zero, err
	}
	return models.Decode[T](saved)
}

func (c *Collection[T]) SaveAll(ctx context.Context, vs []T) ([]T, error) {
	es := make([]models.Entity, 0, len(vs))
	for _, v := range vs {
		e, err := models.FromValue(v)
		if err != nil {
			return nil, invalidArgument("%v", err)
		}
		es = append(es, e)
	}
	saved, err := c.store.SaveAll(ctx, es)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](saved)
}

func (c *Collection[T]) Delete(ctx context.Context, id string) (int, error) {
	return c.store.Delete(ctx, id)
}

func (c *Collection[T]) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	return c.store.DeleteByIDs(ctx, ids)
}

func (c *Collection[T]) DeleteByQuery(ctx context.Context, q *query.Query) (int, error) {
	return c.store.DeleteByQuery(ctx, q)
}

func (c *Collection[T]) Push(ctx context.Context) (*PushResponse, error) {
	return c.store.Push(ctx)
}

func (c *Collection[T]) Pull(ctx context.Context, q *query.Query) (*PullResponse, error) {
	return c.store.Pull(ctx, q)
}

func (c *Collection[T]) Sync(ctx context.Context, q *query.Query, opts ...SyncOption) (*SyncResponse, error) {
	return c.store.Sync(ctx, q, opts...)
}

func (c *Collection[T]) Purge(ctx context.Context) (int, error) {
	return c.store.Purge(ctx)
}

func (c *Collection[T]) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

func (c *Collection[T]) State() syncmanager.State {
	return c.store.State()
}
