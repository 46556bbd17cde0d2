// Package syncmanager owns the pending-mutation queues of all collections
// and the per-collection locks that serialize writers against push, pull
// and purge.
package syncmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/kinveysync/internal/logging"
)

var (
	ErrEmptyCollection = errors.New("collection name is empty")
	ErrMissingTarget   = errors.New("mutation has no target")
)

// shared is the per-collection state every derived Manager sees.
type shared struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	states   map[string]State
	observer func(collection string, s State)
}

func (t *shared) lock(collection string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		t.locks[collection] = l
	}
	return l
}

type Manager struct {
	repos  repomanager.RepositoryManager
	shared *shared
	logger logging.Logger
}

type Option func(*shared)

// WithStateObserver registers fn to be called on every state change.
func WithStateObserver(fn func(collection string, s State)) Option {
	return func(s *shared) { s.observer = fn }
}

func New(repos repomanager.RepositoryManager, logger logging.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.Nop{}
	}
	sh := &shared{
		locks:  make(map[string]*sync.Mutex),
		states: make(map[string]State),
	}
	for _, o := range opts {
		o(sh)
	}
	return &Manager{
		repos:  repos,
		shared: sh,
		logger: logger.With("module", "syncmanager"),
	}
}

// WithRepositories returns a Manager sharing this one's locks whose queue
// operations go through rm, typically a transactional repository set.
func (m *Manager) WithRepositories(rm repomanager.RepositoryManager) *Manager {
	return &Manager{repos: rm, shared: m.shared, logger: m.logger}
}

func (m *Manager) Repositories() repomanager.RepositoryManager { return m.repos }

// Lock returns the mutex serializing writers of collection. Every Manager
// derived through WithRepositories returns the same mutex.
func (m *Manager) Lock(collection string) *sync.Mutex {
	return m.shared.lock(collection)
}

func validateTarget(op models.Operation, t models.Target) error {
	switch op {
	case models.OperationQuery:
		if t.Query == "" {
			return fmt.Errorf("%w: %s needs a query", ErrMissingTarget, op)
		}
	default:
		if t.EntityID == "" {
			return fmt.Errorf("%w: %s needs an entity id", ErrMissingTarget, op)
		}
	}
	return nil
}

// Enqueue appends a mutation. Repeated writes to one entity are kept as
// separate entries.
func (m *Manager) Enqueue(ctx context.Context, collection string, op models.Operation, t models.Target) (*models.Mutation, error) {
	if collection == "" {
		return nil, ErrEmptyCollection
	}
	if err := validateTarget(op, t); err != nil {
		return nil, err
	}
	mut := &models.Mutation{
		Collection: collection,
		Operation:  op,
		EntityID:   t.EntityID,
		Query:      t.Query,
		Payload:    t.Payload,
	}
	if err := m.repos.Queue().Enqueue(ctx, mut); err != nil {
		return nil, err
	}
	m.logger.Debug(ctx, "mutation enqueued", "collection", collection, "op", op, "seq", mut.Seq, "id", t.EntityID)
	return mut, nil
}

// Clear drops the queue of collection without touching cache or network.
func (m *Manager) Clear(ctx context.Context, collection string) (int, error) {
	n, err := m.repos.Queue().Clear(ctx, collection)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info(ctx, "queue cleared", "collection", collection, "count", n)
	}
	return n, nil
}

func (m *Manager) Count(ctx context.Context, collection string) (int, error) {
	return m.repos.Queue().Count(ctx, collection)
}

// Pending is a FIFO snapshot of the queue.
func (m *Manager) Pending(ctx context.Context, collection string) ([]models.Mutation, error) {
	return m.repos.Queue().List(ctx, collection)
}

func (m *Manager) Remove(ctx context.Context, seq int64) error {
	return m.repos.Queue().Delete(ctx, seq)
}

func (m *Manager) CountFor(ctx context.Context, collection, id string) (int, error) {
	return m.repos.Queue().CountForEntity(ctx, collection, id)
}

// Retarget points every queued mutation of oldID at newID.
func (m *Manager) Retarget(ctx context.Context, collection, oldID, newID string) (int, error) {
	if oldID == newID {
		return 0, nil
	}
	n, err := m.repos.Queue().Retarget(ctx, collection, oldID, newID)
	if err != nil {
		return 0, err
	}
	m.logger.Debug(ctx, "mutations retargeted", "collection", collection, "from", oldID, "to", newID, "count", n)
	return n, nil
}

// Collections lists collections with pending mutations, oldest first.
func (m *Manager) Collections(ctx context.Context) ([]string, error) {
	return m.repos.Queue().Collections(ctx)
}
