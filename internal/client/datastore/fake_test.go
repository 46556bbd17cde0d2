package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/kinveysync/internal/client/localdb"
	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/client/network"
	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/kinveysync/internal/client/syncmanager"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

// fakeNetwork is an in-memory backend. fail, when set for an op, is asked
// before every call with the 1-based call number of that op.
type fakeNetwork struct {
	mu        sync.Mutex
	docs      map[string]map[string]models.Entity
	order     map[string][]string
	calls     map[string]int
	fail      map[string]func(n int) error
	assignIDs bool
	nextID    int
	finds     []*query.Query
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{
		docs:  map[string]map[string]models.Entity{},
		order: map[string][]string{},
		calls: map[string]int{},
		fail:  map[string]func(int) error{},
	}
}

func (f *fakeNetwork) enter(op string) error {
	f.calls[op]++
	if fn, ok := f.fail[op]; ok {
		return fn(f.calls[op])
	}
	return nil
}

func (f *fakeNetwork) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeNetwork) put(collection string, e models.Entity) {
	if f.docs[collection] == nil {
		f.docs[collection] = map[string]models.Entity{}
	}
	if _, ok := f.docs[collection][e.ID()]; !ok {
		f.order[collection] = append(f.order[collection], e.ID())
	}
	c, _ := e.Clone()
	f.docs[collection][e.ID()] = c
}

// seed stores entities as if another client had created them.
func (f *fakeNetwork) seed(collection string, es ...models.Entity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range es {
		f.put(collection, e)
	}
}

func (f *fakeNetwork) remove(collection, id string) bool {
	if _, ok := f.docs[collection][id]; !ok {
		return false
	}
	delete(f.docs[collection], id)
	ids := f.order[collection][:0]
	for _, x := range f.order[collection] {
		if x != id {
			ids = append(ids, x)
		}
	}
	f.order[collection] = ids
	return true
}

func (f *fakeNetwork) all(collection string) []models.Entity {
	out := make([]models.Entity, 0, len(f.order[collection]))
	for _, id := range f.order[collection] {
		c, _ := f.docs[collection][id].Clone()
		out = append(out, c)
	}
	return out
}

func (f *fakeNetwork) stored(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs[collection])
}

func (f *fakeNetwork) GetByID(_ context.Context, collection, id string) (models.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("get"); err != nil {
		return nil, err
	}
	e, ok := f.docs[collection][id]
	if !ok {
		return nil, fmt.Errorf("get: %w", network.ErrNotFound)
	}
	return e.Clone()
}

func (f *fakeNetwork) Find(_ context.Context, collection string, q *query.Query) ([]models.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("find"); err != nil {
		return nil, err
	}
	f.finds = append(f.finds, q.Clone())
	return query.Apply(q, f.all(collection)), nil
}

func (f *fakeNetwork) Count(_ context.Context, collection string, q *query.Query) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("count"); err != nil {
		return 0, err
	}
	return len(query.Apply(q.Unpaginated(), f.all(collection))), nil
}

func (f *fakeNetwork) Create(_ context.Context, collection string, e models.Entity) (models.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("create"); err != nil {
		return nil, err
	}
	c, _ := e.Clone()
	if c.ID() == "" || f.assignIDs {
		f.nextID++
		c.SetID(fmt.Sprintf("srv-%d", f.nextID))
	}
	if _, ok := f.docs[collection][c.ID()]; ok {
		return nil, fmt.Errorf("create: %w", network.ErrConflict)
	}
	c["_kmd"] = map[string]any{"lmt": time.Now().UTC().Format(time.RFC3339Nano)}
	f.put(collection, c)
	return c.Clone()
}

func (f *fakeNetwork) Update(_ context.Context, collection string, e models.Entity) (models.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("update"); err != nil {
		return nil, err
	}
	c, _ := e.Clone()
	c["_kmd"] = map[string]any{"lmt": time.Now().UTC().Format(time.RFC3339Nano)}
	f.put(collection, c)
	return c.Clone()
}

func (f *fakeNetwork) Delete(_ context.Context, collection, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("delete"); err != nil {
		return 0, err
	}
	if !f.remove(collection, id) {
		return 0, fmt.Errorf("delete: %w", network.ErrNotFound)
	}
	return 1, nil
}

func (f *fakeNetwork) DeleteByQuery(_ context.Context, collection string, q *query.Query) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("deleteByQuery"); err != nil {
		return 0, err
	}
	n := 0
	for _, e := range query.Apply(q, f.all(collection)) {
		if f.remove(collection, e.ID()) {
			n++
		}
	}
	return n, nil
}

func (f *fakeNetwork) Group(_ context.Context, collection string, a query.Aggregation, condition *query.Query) ([]query.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("group"); err != nil {
		return nil, err
	}
	return query.Aggregate(a, condition, f.all(collection))
}

func (f *fakeNetwork) Login(context.Context, string, string) (*models.User, error) {
	return &models.User{ID: "u1", AuthToken: "t"}, nil
}

func (f *fakeNetwork) Signup(context.Context, string, string) (*models.User, error) {
	return &models.User{ID: "u1", AuthToken: "t"}, nil
}

func (f *fakeNetwork) SetAuthToken(string)        {}
func (f *fakeNetwork) Ping(context.Context) error { return nil }
func (f *fakeNetwork) Close() error               { return nil }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type env struct {
	db     *sql.DB
	sm     *syncmanager.Manager
	net    *fakeNetwork
	clock  *fakeClock
	states []syncmanager.State
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := localdb.OpenInMemory(context.Background(), t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &env{db: db, net: newFakeNetwork(), clock: &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}}
	rm := repomanager.NewSQLiteRepositoryManager(db, repomanager.WithClock(e.clock.Now))
	e.sm = syncmanager.New(rm, nil, syncmanager.WithStateObserver(func(_ string, s syncmanager.State) {
		e.states = append(e.states, s)
	}))
	return e
}

func (e *env) store(t *testing.T, collection string, st StoreType, opts ...Option) *DataStore {
	t.Helper()
	s, err := New(collection, st, e.sm, e.net, opts...)
	require.NoError(t, err)
	return s
}

func (e *env) queued(t *testing.T, collection string) int {
	t.Helper()
	n, err := e.sm.Count(context.Background(), collection)
	require.NoError(t, err)
	return n
}

func entityIDs(es []models.Entity) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID())
	}
	return out
}
