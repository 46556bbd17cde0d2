// Package datastore is the offline data-store engine. A DataStore binds one
// collection to a StoreType and routes every read and write to the local
// cache, the backend, or both; under Sync it records writes in the
// collection's pending-mutation queue and reconciles through Push, Pull
// and Sync.
package datastore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/kinveysync/internal/client/network"
	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/cache"
	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/kinveysync/internal/client/syncmanager"
	"github.com/dmitrijs2005/kinveysync/internal/logging"
)

const DefaultPullBatchSize = 10000

type DataStore struct {
	collection    string
	storeType     StoreType
	ttl           time.Duration
	schemaHash    string
	pullBatchSize int
	newID         func() string

	sm     *syncmanager.Manager
	net    network.Manager
	logger logging.Logger

	schemaMu    sync.Mutex
	schemaReady bool
}

type Option func(*DataStore)

// WithTTL sets how long cached rows stay live. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(s *DataStore) { s.ttl = d }
}

// WithSchemaHash enables the cache rebuild check for the collection's item
// type.
func WithSchemaHash(h string) Option {
	return func(s *DataStore) { s.schemaHash = h }
}

// WithPullBatchSize sets the page size of unpaginated pulls. Zero or less
// fetches everything in one request.
func WithPullBatchSize(n int) Option {
	return func(s *DataStore) { s.pullBatchSize = n }
}

func WithLogger(l logging.Logger) Option {
	return func(s *DataStore) { s.logger = l }
}

// WithIDGenerator replaces the UUID generator for locally created entities.
func WithIDGenerator(fn func() string) Option {
	return func(s *DataStore) { s.newID = fn }
}

func New(collection string, st StoreType, sm *syncmanager.Manager, net network.Manager, opts ...Option) (*DataStore, error) {
	if collection == "" {
		return nil, invalidArgument("collection name is empty")
	}
	if !st.valid() {
		return nil, invalidArgument("unknown store type %d", int(st))
	}
	if sm == nil || net == nil {
		return nil, invalidArgument("sync manager and network manager are required")
	}
	s := &DataStore{
		collection:    collection,
		storeType:     st,
		pullBatchSize: DefaultPullBatchSize,
		newID:         uuid.NewString,
		sm:            sm,
		net:           net,
		logger:        logging.Nop{},
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "datastore", "collection", collection, "store", st.String())
	return s, nil
}

func (s *DataStore) Collection() string   { return s.collection }
func (s *DataStore) StoreType() StoreType { return s.storeType }
func (s *DataStore) TTL() time.Duration   { return s.ttl }

// State reports the latest push/pull lifecycle state of the collection.
func (s *DataStore) State() syncmanager.State {
	return s.sm.State(s.collection)
}

func (s *DataStore) repos() repomanager.RepositoryManager {
	return s.sm.Repositories()
}

func (s *DataStore) cacheOf(rm repomanager.RepositoryManager) cache.Repository {
	return rm.Cache(s.collection, s.ttl)
}

func (s *DataStore) usesCache() bool {
	return s.storeType != Network
}

// ensureSchema clears the cache region once when the recorded schema hash
// of the collection differs from the store's. Untyped stores skip it.
func (s *DataStore) ensureSchema(ctx context.Context) error {
	if s.schemaHash == "" || !s.usesCache() {
		return nil
	}
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	err := s.repos().WithTx(ctx, func(ctx context.Context, rm repomanager.RepositoryManager) error {
		key := metadata.SchemaKey(s.collection)
		stored, err := rm.Metadata().Get(ctx, key)
		if err != nil {
			return err
		}
		if string(stored) == s.schemaHash {
			return nil
		}
		if stored != nil {
			s.logger.Info(ctx, "item schema changed, rebuilding cache")
		}
		if err := s.cacheOf(rm).Clear(ctx); err != nil {
			return err
		}
		return rm.Metadata().Set(ctx, key, []byte(s.schemaHash))
	})
	if err != nil {
		return err
	}
	s.schemaReady = true
	return nil
}

// locked runs fn holding the collection lock after the schema check.
func (s *DataStore) locked(ctx context.Context, fn func() error) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	l := s.sm.Lock(s.collection)
	l.Lock()
	defer l.Unlock()
	return fn()
}
