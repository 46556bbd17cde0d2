package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/client/network"
	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

func (s *DataStore) saveRequest(items []models.Entity) request[[]models.Entity] {
	switch s.storeType {
	case Network:
		return networkSave{s: s, items: items}
	case Cache:
		return writeThroughSave{networkSave{s: s, items: items}}
	default:
		return localSave{s: s, items: items}
	}
}

func (s *DataStore) deleteByIDs(ids []string) request[int] {
	switch s.storeType {
	case Network:
		return networkDeleteByIDs{s: s, ids: ids}
	case Cache:
		return writeThroughDeleteByIDs{networkDeleteByIDs{s: s, ids: ids}}
	default:
		return localDeleteByIDs{s: s, ids: ids}
	}
}

func (s *DataStore) deleteByQuery(q *query.Query) request[int] {
	switch s.storeType {
	case Network:
		return networkDeleteByQuery{s: s, q: q}
	case Cache:
		return writeThroughDeleteByQuery{networkDeleteByQuery{s: s, q: q}}
	default:
		return localDeleteByQuery{s: s, q: q}
	}
}

// localSave writes the cache rows and their mutations in one transaction.
// Entities without an id get a fresh one and are queued as POST.
type localSave struct {
	s     *DataStore
	items []models.Entity
}

func (r localSave) Execute(ctx context.Context) ([]models.Entity, error) {
	saved := make([]models.Entity, 0, len(r.items))
	err := r.s.repos().WithTx(ctx, func(ctx context.Context, rm repomanager.RepositoryManager) error {
		c := r.s.cacheOf(rm)
		sm := r.s.sm.WithRepositories(rm)
		for _, item := range r.items {
			e, err := item.Clone()
			if err != nil {
				return invalidArgument("entity does not encode: %v", err)
			}
			op := models.OperationPut
			if e.ID() == "" {
				e.SetID(r.s.newID())
				op = models.OperationPost
			}
			if _, err := c.Save(ctx, e); err != nil {
				return err
			}
			if _, err := sm.Enqueue(ctx, r.s.collection, op, models.Target{EntityID: e.ID(), Payload: e}); err != nil {
				return err
			}
			saved = append(saved, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

type networkSave struct {
	s     *DataStore
	items []models.Entity
}

func (r networkSave) Execute(ctx context.Context) ([]models.Entity, error) {
	saved := make([]models.Entity, 0, len(r.items))
	for _, e := range r.items {
		var (
			remote models.Entity
			err    error
		)
		if e.ID() == "" {
			remote, err = r.s.net.Create(ctx, r.s.collection, e)
		} else {
			remote, err = r.s.net.Update(ctx, r.s.collection, e)
		}
		if err != nil {
			return nil, remoteError("save "+r.s.collection, err)
		}
		saved = append(saved, remote)
	}
	return saved, nil
}

// writeThroughSave caches the server copies once every remote save is done.
type writeThroughSave struct {
	networkSave
}

func (r writeThroughSave) Execute(ctx context.Context) ([]models.Entity, error) {
	saved, err := r.networkSave.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := r.s.cacheOf(r.s.repos()).SaveAll(ctx, saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// localRemove drops the rows of ids, expired ones included, and queues one
// DELETE per id.
func (s *DataStore) localRemove(ctx context.Context, rm repomanager.RepositoryManager, ids []string) (int, error) {
	if err := s.cacheOf(rm).Apply(ctx, nil, ids); err != nil {
		return 0, err
	}
	sm := s.sm.WithRepositories(rm)
	for _, id := range ids {
		if _, err := sm.Enqueue(ctx, s.collection, models.OperationDelete, models.Target{EntityID: id}); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

type localDeleteByIDs struct {
	s   *DataStore
	ids []string
}

// Execute matches rows whether or not their TTL has passed, so the backend
// copy of an expired row is still deleted on push.
func (r localDeleteByIDs) Execute(ctx context.Context) (int, error) {
	var n int
	err := r.s.repos().WithTx(ctx, func(ctx context.Context, rm repomanager.RepositoryManager) error {
		stored, err := r.s.cacheOf(rm).StoredIDs(ctx, dedupe(r.ids))
		if err != nil {
			return err
		}
		n, err = r.s.localRemove(ctx, rm, stored)
		return err
	})
	return n, err
}

type localDeleteByQuery struct {
	s *DataStore
	q *query.Query
}

func (r localDeleteByQuery) Execute(ctx context.Context) (int, error) {
	var n int
	err := r.s.repos().WithTx(ctx, func(ctx context.Context, rm repomanager.RepositoryManager) error {
		matched, err := r.s.cacheOf(rm).GetByQuery(ctx, r.q)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(matched))
		for _, e := range matched {
			ids = append(ids, e.ID())
		}
		n, err = r.s.localRemove(ctx, rm, ids)
		return err
	})
	return n, err
}

type networkDeleteByIDs struct {
	s   *DataStore
	ids []string
}

// Execute treats ids the backend does not know as already deleted.
func (r networkDeleteByIDs) Execute(ctx context.Context) (int, error) {
	total := 0
	for _, id := range dedupe(r.ids) {
		n, err := r.s.net.Delete(ctx, r.s.collection, id)
		if errors.Is(err, network.ErrNotFound) {
			continue
		}
		if err != nil {
			return total, remoteError("delete "+r.s.collection, err)
		}
		total += n
	}
	return total, nil
}

type writeThroughDeleteByIDs struct {
	networkDeleteByIDs
}

func (r writeThroughDeleteByIDs) Execute(ctx context.Context) (int, error) {
	n, err := r.networkDeleteByIDs.Execute(ctx)
	if err != nil {
		return n, err
	}
	if _, err := r.s.cacheOf(r.s.repos()).DeleteByIDs(ctx, r.ids); err != nil {
		return n, err
	}
	return n, nil
}

type networkDeleteByQuery struct {
	s *DataStore
	q *query.Query
}

func (r networkDeleteByQuery) Execute(ctx context.Context) (int, error) {
	n, err := r.s.net.DeleteByQuery(ctx, r.s.collection, r.q)
	if err != nil {
		return 0, remoteError("delete "+r.s.collection, err)
	}
	return n, nil
}

type writeThroughDeleteByQuery struct {
	networkDeleteByQuery
}

func (r writeThroughDeleteByQuery) Execute(ctx context.Context) (int, error) {
	n, err := r.networkDeleteByQuery.Execute(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := r.s.cacheOf(r.s.repos()).DeleteByQuery(ctx, r.q); err != nil {
		return n, err
	}
	return n, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Save stores e and returns the stored copy, which carries the entity id.
func (s *DataStore) Save(ctx context.Context, e models.Entity) (models.Entity, error) {
	if e == nil {
		return nil, invalidArgument("nil entity")
	}
	saved, err := s.SaveAll(ctx, []models.Entity{e})
	if err != nil {
		return nil, err
	}
	return saved[0], nil
}

func (s *DataStore) SaveAll(ctx context.Context, es []models.Entity) ([]models.Entity, error) {
	for i, e := range es {
		if e == nil {
			return nil, invalidArgument("nil entity at %d", i)
		}
	}
	if len(es) == 0 {
		return []models.Entity{}, nil
	}
	var saved []models.Entity
	err := s.locked(ctx, func() error {
		var err error
		saved, err = s.saveRequest(es).Execute(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug(ctx, "saved", "count", len(saved))
	return saved, nil
}

func (s *DataStore) Delete(ctx context.Context, id string) (int, error) {
	if id == "" {
		return 0, invalidArgument("empty id")
	}
	return s.DeleteByIDs(ctx, []string{id})
}

func (s *DataStore) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if ids == nil {
		return 0, invalidArgument("nil id list")
	}
	for i, id := range ids {
		if id == "" {
			return 0, invalidArgument("empty id at %d", i)
		}
	}
	var n int
	err := s.locked(ctx, func() error {
		var err error
		n, err = s.deleteByIDs(ids).Execute(ctx)
		return err
	})
	if err != nil {
		return n, err
	}
	return n, nil
}

func (s *DataStore) DeleteByQuery(ctx context.Context, q *query.Query) (int, error) {
	if q == nil {
		return 0, invalidArgument("nil query")
	}
	if err := validateQuery(q); err != nil {
		return 0, err
	}
	var n int
	err := s.locked(ctx, func() error {
		var err error
		n, err = s.deleteByQuery(q).Execute(ctx)
		return err
	})
	if err != nil {
		return n, fmt.Errorf("delete by query: %w", err)
	}
	return n, nil
}
