package async

import (
	"context"

	"github.com/dmitrijs2005/kinveysync/internal/client/datastore"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

// DataStore offers every operation of a typed collection in callback form.
type DataStore[T any] struct {
	c *datastore.Collection[T]
	d *Dispatcher
}

func NewDataStore[T any](c *datastore.Collection[T], d *Dispatcher) *DataStore[T] {
	return &DataStore[T]{c: c, d: d}
}

func (s *DataStore[T]) Collection() *datastore.Collection[T] { return s.c }

func (s *DataStore[T]) cachedItem(cb any) []datastore.FindOption {
	cc, ok := cb.(CachedCallback[T])
	if !ok {
		return nil
	}
	return []datastore.FindOption{datastore.CachedItem(func(v T) {
		s.d.deliver(func() { cc.OnCached(v) })
	})}
}

func (s *DataStore[T]) cachedItems(cb any) []datastore.FindOption {
	cc, ok := cb.(CachedCallback[[]T])
	if !ok {
		return nil
	}
	return []datastore.FindOption{datastore.CachedItems(func(vs []T) {
		s.d.deliver(func() { cc.OnCached(vs) })
	})}
}

func (s *DataStore[T]) FindByID(ctx context.Context, id string, cb Callback[T]) {
	opts := s.cachedItem(cb)
	Run(ctx, s.d, func(ctx context.Context) (T, error) {
		return s.c.FindByID(ctx, id, opts...)
	}, cb)
}

func (s *DataStore[T]) FindByIDs(ctx context.Context, ids []string, cb ListCallback[T]) {
	opts := s.cachedItems(cb)
	Run[[]T](ctx, s.d, func(ctx context.Context) ([]T, error) {
		return s.c.FindByIDs(ctx, ids, opts...)
	}, cb)
}

func (s *DataStore[T]) Find(ctx context.Context, q *query.Query, cb ListCallback[T]) {
	opts := s.cachedItems(cb)
	Run[[]T](ctx, s.d, func(ctx context.Context) ([]T, error) {
		return s.c.Find(ctx, q, opts...)
	}, cb)
}

func (s *DataStore[T]) FindAll(ctx context.Context, cb ListCallback[T]) {
	s.Find(ctx, nil, cb)
}

func (s *DataStore[T]) Count(ctx context.Context, q *query.Query, cb Callback[int]) {
	Run(ctx, s.d, func(ctx context.Context) (int, error) {
		return s.c.Count(ctx, q)
	}, cb)
}

func (s *DataStore[T]) Group(ctx context.Context, a query.Aggregation, condition *query.Query, cb Callback[[]query.Group]) {
	Run(ctx, s.d, func(ctx context.Context) ([]query.Group, error) {
		return s.c.Group(ctx, a, condition)
	}, cb)
}

func (s *DataStore[T]) Save(ctx context.Context, v T, cb Callback[T]) {
	Run(ctx, s.d, func(ctx context.Context) (T, error) {
		return s.c.Save(ctx, v)
	}, cb)
}

func (s *DataStore[T]) SaveAll(ctx context.Context, vs []T, cb ListCallback[T]) {
	Run[[]T](ctx, s.d, func(ctx context.Context) ([]T, error) {
		return s.c.SaveAll(ctx, vs)
	}, cb)
}

func (s *DataStore[T]) Delete(ctx context.Context, id string, cb Callback[int]) {
	Run(ctx, s.d, func(ctx context.Context) (int, error) {
		return s.c.Delete(ctx, id)
	}, cb)
}

func (s *DataStore[T]) DeleteByIDs(ctx context.Context, ids []string, cb Callback[int]) {
	Run(ctx, s.d, func(ctx context.Context) (int, error) {
		return s.c.DeleteByIDs(ctx, ids)
	}, cb)
}

func (s *DataStore[T]) DeleteByQuery(ctx context.Context, q *query.Query, cb Callback[int]) {
	Run(ctx, s.d, func(ctx context.Context) (int, error) {
		return s.c.DeleteByQuery(ctx, q)
	}, cb)
}

// Push reports partial failures through OnSuccess; the response's Err
// lists them.
func (s *DataStore[T]) Push(ctx context.Context, cb Callback[*datastore.PushResponse]) {
	Run(ctx, s.d, func(ctx context.Context) (*datastore.PushResponse, error) {
		return s.c.Push(ctx)
	}, cb)
}

func (s *DataStore[T]) Pull(ctx context.Context, q *query.Query, cb Callback[*datastore.PullResponse]) {
	Run(ctx, s.d, func(ctx context.Context) (*datastore.PullResponse, error) {
		return s.c.Pull(ctx, q)
	}, cb)
}

func (s *DataStore[T]) Purge(ctx context.Context, cb Callback[int]) {
	Run(ctx, s.d, func(ctx context.Context) (int, error) {
		return s.c.Purge(ctx)
	}, cb)
}

func (s *DataStore[T]) Clear(ctx context.Context, cb Callback[struct{}]) {
	Run(ctx, s.d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.c.Clear(ctx)
	}, cb)
}

// Sync reports the phases to cb as they happen, then either OnSuccess or
// OnFailure.
func (s *DataStore[T]) Sync(ctx context.Context, q *query.Query, cb SyncCallback) {
	hooks := datastore.SyncHooks{
		OnPushStarted: func() { s.d.deliver(cb.OnPushStarted) },
		OnPushDone: func(r *datastore.PushResponse) {
			s.d.deliver(func() { cb.OnPushSuccess(r) })
		},
		OnPullStarted: func() { s.d.deliver(cb.OnPullStarted) },
		OnPullDone: func(r *datastore.PullResponse) {
			s.d.deliver(func() { cb.OnPullSuccess(r) })
		},
	}
	s.d.submit(ctx, func(ctx context.Context) {
		resp, err := safely(ctx, s.d.logger, func(ctx context.Context) (*datastore.SyncResponse, error) {
			return s.c.Sync(ctx, q, datastore.WithSyncHooks(hooks))
		})
		if err != nil {
			s.d.deliver(func() { cb.OnFailure(err) })
			return
		}
		s.d.deliver(func() { cb.OnSuccess(resp.Push, resp.Pull) })
	}, cb.OnFailure)
}
