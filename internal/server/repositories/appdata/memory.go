package appdata

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/query"
	"github.com/dmitrijs2005/kinveysync/internal/server/models"
)

type bucketKey struct {
	appKey, name string
}

type bucket struct {
	order []string
	docs  map[string]models.Document
}

// MemoryRepository keeps documents in process memory. Documents are cloned
// on the way in and out.
type MemoryRepository struct {
	mu          sync.RWMutex
	collections map[bucketKey]*bucket
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{collections: map[bucketKey]*bucket{}}
}

func (r *MemoryRepository) lookup(appKey, name string, create bool) *bucket {
	k := bucketKey{appKey, name}
	c, ok := r.collections[k]
	if !ok && create {
		c = &bucket{docs: map[string]models.Document{}}
		r.collections[k] = c
	}
	return c
}

func (r *MemoryRepository) all(appKey, name string) []models.Document {
	c := r.lookup(appKey, name, false)
	if c == nil {
		return nil
	}
	out := make([]models.Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.docs[id])
	}
	return out
}

func cloneAll(docs []models.Document) ([]models.Document, error) {
	out := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		c, err := d.Clone()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepository) Get(_ context.Context, appKey, collection, id string) (models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.lookup(appKey, collection, false)
	if c == nil {
		return nil, common.ErrorNotFound
	}
	d, ok := c.docs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return d.Clone()
}

func (r *MemoryRepository) Find(_ context.Context, appKey, collection string, q *query.Query) ([]models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(query.Apply(q, r.all(appKey, collection)))
}

func (r *MemoryRepository) Count(_ context.Context, appKey, collection string, q *query.Query) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(query.Apply(q.Unpaginated(), r.all(appKey, collection))), nil
}

func (r *MemoryRepository) put(appKey, name string, doc models.Document, overwrite bool) error {
	c := r.lookup(appKey, name, true)
	id := doc.ID()
	if _, ok := c.docs[id]; ok {
		if !overwrite {
			return common.ErrorAlreadyExists
		}
	} else {
		c.order = append(c.order, id)
	}
	clone, err := doc.Clone()
	if err != nil {
		return err
	}
	c.docs[id] = clone
	return nil
}

func (r *MemoryRepository) Insert(_ context.Context, appKey, collection string, doc models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.put(appKey, collection, doc, false)
}

func (r *MemoryRepository) Save(_ context.Context, appKey, collection string, doc models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.put(appKey, collection, doc, true)
}

func (r *MemoryRepository) remove(c *bucket, id string) int {
	if _, ok := c.docs[id]; !ok {
		return 0
	}
	delete(c.docs, id)
	for i, have := range c.order {
		if have == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return 1
}

func (r *MemoryRepository) Delete(_ context.Context, appKey, collection, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.lookup(appKey, collection, false)
	if c == nil {
		return 0, nil
	}
	return r.remove(c, id), nil
}

func (r *MemoryRepository) DeleteByQuery(_ context.Context, appKey, collection string, q *query.Query) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.lookup(appKey, collection, false)
	if c == nil {
		return 0, nil
	}
	n := 0
	for _, d := range query.Apply(q.Unpaginated(), r.all(appKey, collection)) {
		n += r.remove(c, d.ID())
	}
	return n, nil
}
