package client

import (
	"reflect"

	"github.com/dmitrijs2005/kinveysync/internal/client/async"
	"github.com/dmitrijs2005/kinveysync/internal/client/datastore"
)

func (c *Client) storeOptions(opts []datastore.Option) []datastore.Option {
	base := []datastore.Option{
		datastore.WithTTL(c.cfg.DefaultTTL),
		datastore.WithPullBatchSize(c.cfg.PullBatchSize),
		datastore.WithLogger(c.logger),
	}
	return append(base, opts...)
}

// remember returns the store already built for key, or builds one and, for
// SYNC stores, registers it with auto-sync. Options only apply on the
// first call.
func remember[S any](c *Client, key storeKey, build func() (S, error), underlying func(S) *datastore.DataStore) (S, error) {
	var zero S
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return zero, ErrClosed
	}
	if have, ok := c.stores[key]; ok {
		return have.(S), nil
	}
	s, err := build()
	if err != nil {
		return zero, err
	}
	if ds := underlying(s); ds.StoreType() == datastore.Sync {
		if err := c.scheduler.Register(ds); err != nil {
			return zero, err
		}
	}
	c.stores[key] = s
	return s, nil
}

// DataStore returns the untyped store of collection with type st.
func (c *Client) DataStore(collection string, st datastore.StoreType, opts ...datastore.Option) (*datastore.DataStore, error) {
	key := storeKey{collection: collection, storeType: st.String()}
	return remember(c, key,
		func() (*datastore.DataStore, error) {
			return datastore.New(collection, st, c.sm, c.net, c.storeOptions(opts)...)
		},
		func(s *datastore.DataStore) *datastore.DataStore { return s },
	)
}

// Collection returns the store of collection holding T values.
func Collection[T any](c *Client, collection string, st datastore.StoreType, opts ...datastore.Option) (*datastore.Collection[T], error) {
	key := storeKey{collection: collection, storeType: st.String(), item: reflect.TypeFor[T]()}
	return remember(c, key,
		func() (*datastore.Collection[T], error) {
			return datastore.NewCollection[T](collection, st, c.sm, c.net, c.storeOptions(opts)...)
		},
		func(s *datastore.Collection[T]) *datastore.DataStore { return s.Store() },
	)
}

// Async wraps Collection with callback delivery on the client's dispatcher.
func Async[T any](c *Client, collection string, st datastore.StoreType, opts ...datastore.Option) (*async.DataStore[T], error) {
	coll, err := Collection[T](c, collection, st, opts...)
	if err != nil {
		return nil, err
	}
	return async.NewDataStore(coll, c.workers), nil
}
