package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

// MemoryManager is an in-process backend. It keeps documents in insertion
// order and stamps _kmd like the real one, so it can stand in for a server
// in offline demos and tests.
type MemoryManager struct {
	mu      sync.Mutex
	docs    map[string]map[string]models.Entity
	order   map[string][]string
	users   map[string]*memoryUser
	token   string
	offline bool
	now     func() time.Time
}

type memoryUser struct {
	user     models.User
	password string
}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		docs:  map[string]map[string]models.Entity{},
		order: map[string][]string{},
		users: map[string]*memoryUser{},
		now:   time.Now,
	}
}

// SetOffline makes every call fail with ErrUnavailable until it is reset.
func (m *MemoryManager) SetOffline(offline bool) {
	m.mu.Lock()
	m.offline = offline
	m.mu.Unlock()
}

// AuthToken returns the token the last SetAuthToken installed.
func (m *MemoryManager) AuthToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Len reports how many documents collection holds.
func (m *MemoryManager) Len(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[collection])
}

func (m *MemoryManager) check(op string) error {
	if m.offline {
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	return nil
}

func (m *MemoryManager) all(collection string) []models.Entity {
	out := make([]models.Entity, 0, len(m.order[collection]))
	for _, id := range m.order[collection] {
		out = append(out, m.docs[collection][id])
	}
	return out
}

func (m *MemoryManager) store(collection string, e models.Entity, created bool) (models.Entity, error) {
	c, err := e.Clone()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if m.docs[collection] == nil {
		m.docs[collection] = map[string]models.Entity{}
	}
	id := c.ID()
	ts := m.now().UTC().Format(time.RFC3339Nano)
	kmd := map[string]any{common.FieldModified: ts}
	if prev, ok := m.docs[collection][id]; ok && !created {
		if md := prev.Metadata(); md.Created != "" {
			kmd[common.FieldCreated] = md.Created
		}
	} else {
		kmd[common.FieldCreated] = ts
	}
	c[common.FieldMetadata] = kmd

	if _, ok := m.docs[collection][id]; !ok {
		m.order[collection] = append(m.order[collection], id)
	}
	m.docs[collection][id] = c
	return c.Clone()
}

func (m *MemoryManager) remove(collection, id string) bool {
	if _, ok := m.docs[collection][id]; !ok {
		return false
	}
	delete(m.docs[collection], id)
	ids := m.order[collection][:0]
	for _, x := range m.order[collection] {
		if x != id {
			ids = append(ids, x)
		}
	}
	m.order[collection] = ids
	return true
}

func (m *MemoryManager) GetByID(_ context.Context, collection, id string) (models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("get"); err != nil {
		return nil, err
	}
	e, ok := m.docs[collection][id]
	if !ok {
		return nil, fmt.Errorf("get %s[%s]: %w", collection, id, ErrNotFound)
	}
	return e.Clone()
}

func (m *MemoryManager) Find(_ context.Context, collection string, q *query.Query) ([]models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("find"); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("find %s: %w: %w", collection, ErrBadRequest, err)
	}
	matched := query.Apply(q, m.all(collection))
	out := make([]models.Entity, 0, len(matched))
	for _, e := range matched {
		c, err := e.Clone()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *MemoryManager) Count(_ context.Context, collection string, q *query.Query) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("count"); err != nil {
		return 0, err
	}
	return len(query.Apply(q.Unpaginated(), m.all(collection))), nil
}

func (m *MemoryManager) Create(_ context.Context, collection string, e models.Entity) (models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("create"); err != nil {
		return nil, err
	}
	c, err := e.Clone()
	if err != nil {
		return nil, fmt.Errorf("create %s: %w: %v", collection, ErrBadRequest, err)
	}
	if c.ID() == "" {
		c.SetID(uuid.NewString())
	}
	if _, ok := m.docs[collection][c.ID()]; ok {
		return nil, fmt.Errorf("create %s[%s]: %w", collection, c.ID(), ErrConflict)
	}
	return m.store(collection, c, true)
}

func (m *MemoryManager) Update(_ context.Context, collection string, e models.Entity) (models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("update"); err != nil {
		return nil, err
	}
	if e.ID() == "" {
		return nil, fmt.Errorf("update %s: %w: missing _id", collection, ErrBadRequest)
	}
	return m.store(collection, e, false)
}

func (m *MemoryManager) Delete(_ context.Context, collection, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("delete"); err != nil {
		return 0, err
	}
	if !m.remove(collection, id) {
		return 0, fmt.Errorf("delete %s[%s]: %w", collection, id, ErrNotFound)
	}
	return 1, nil
}

func (m *MemoryManager) DeleteByQuery(_ context.Context, collection string, q *query.Query) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("delete"); err != nil {
		return 0, err
	}
	n := 0
	for _, e := range query.Apply(q.Unpaginated(), m.all(collection)) {
		if m.remove(collection, e.ID()) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryManager) Group(_ context.Context, collection string, a query.Aggregation, condition *query.Query) ([]query.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("group"); err != nil {
		return nil, err
	}
	groups, err := query.Aggregate(a, condition, m.all(collection))
	if err != nil {
		return nil, fmt.Errorf("group %s: %w: %w", collection, ErrBadRequest, err)
	}
	return groups, nil
}

func (m *MemoryManager) Login(_ context.Context, username, password string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("login"); err != nil {
		return nil, err
	}
	u, ok := m.users[username]
	if !ok || u.password != password {
		return nil, fmt.Errorf("login: %w", ErrUnauthorized)
	}
	out := u.user
	out.AuthToken = uuid.NewString()
	return &out, nil
}

func (m *MemoryManager) Signup(_ context.Context, username, password string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("signup"); err != nil {
		return nil, err
	}
	if _, ok := m.users[username]; ok {
		return nil, fmt.Errorf("signup %s: %w", username, ErrConflict)
	}
	u := &memoryUser{user: models.User{ID: uuid.NewString(), Username: username}, password: password}
	m.users[username] = u
	out := u.user
	out.AuthToken = uuid.NewString()
	return &out, nil
}

func (m *MemoryManager) SetAuthToken(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

func (m *MemoryManager) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check("ping")
}

func (m *MemoryManager) Close() error { return nil }
