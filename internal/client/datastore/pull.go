package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/kinveysync/internal/client/syncmanager"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

// Pull refreshes the cache from the backend: every entity matching q, or
// the whole collection when q is nil.
//
// Returned entities overwrite their cache rows. When q carries no skip or
// limit, cached rows matching q that the backend did not return are
// removed. Rows with queued mutations are left alone, but a standalone Pull
// refuses to run at all while the queue is not empty.
func (s *DataStore) Pull(ctx context.Context, q *query.Query) (*PullResponse, error) {
	if s.storeType != Sync {
		return nil, invalidStoreType("pull", s.storeType)
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	var (
		resp *PullResponse
		err  error
	)
	lerr := s.locked(ctx, func() error {
		n, cerr := s.sm.Count(ctx, s.collection)
		if cerr != nil {
			return cerr
		}
		if n > 0 {
			return fmt.Errorf("pull %s: %w (%d queued)", s.collection, ErrPendingMutations, n)
		}
		s.sm.SetState(ctx, s.collection, syncmanager.StatePulling)
		resp, err = s.pull(ctx, q)
		if err != nil {
			s.sm.SetState(ctx, s.collection, syncmanager.StateFailed)
			return nil
		}
		s.sm.SetState(ctx, s.collection, syncmanager.StateDone)
		return nil
	})
	if lerr != nil {
		return nil, lerr
	}
	return resp, err
}

// fetch pages through the backend in pullBatchSize steps unless the caller
// paginates q itself.
func (s *DataStore) fetch(ctx context.Context, q *query.Query) ([]models.Entity, error) {
	if (q != nil && q.Paginated()) || s.pullBatchSize <= 0 {
		return s.net.Find(ctx, s.collection, q)
	}
	var all []models.Entity
	for skip := 0; ; skip += s.pullBatchSize {
		page := q.Clone()
		if page == nil {
			page = query.New()
		}
		page.SetSkip(skip).SetLimit(s.pullBatchSize)
		items, err := s.net.Find(ctx, s.collection, page)
		if err != nil {
			return all, err
		}
		all = append(all, items...)
		if len(items) < s.pullBatchSize {
			return all, nil
		}
	}
}

func (s *DataStore) pull(ctx context.Context, q *query.Query) (*PullResponse, error) {
	resp := &PullResponse{Entities: []models.Entity{}}
	items, err := s.fetch(ctx, q)
	if err != nil {
		return resp, &OperationError{Op: "pull", Pull: resp, Err: remoteError("pull "+s.collection, err)}
	}
	resp.Count = len(items)

	err = s.repos().WithTx(ctx, func(ctx context.Context, rm repomanager.RepositoryManager) error {
		pending, err := s.sm.WithRepositories(rm).Pending(ctx, s.collection)
		if err != nil {
			return err
		}
		busy := make(map[string]bool, len(pending))
		for _, m := range pending {
			if m.EntityID != "" {
				busy[m.EntityID] = true
			}
		}

		returned := make(map[string]bool, len(items))
		upserts := make([]models.Entity, 0, len(items))
		for _, e := range items {
			id := e.ID()
			if id == "" {
				s.logger.Warn(ctx, "pulled entity without _id ignored")
				continue
			}
			returned[id] = true
			if !busy[id] {
				upserts = append(upserts, e)
			}
		}

		c := s.cacheOf(rm)
		var deletes []string
		if q == nil || !q.Paginated() {
			local, err := c.GetByQuery(ctx, q)
			if err != nil {
				return err
			}
			for _, e := range local {
				if id := e.ID(); !returned[id] && !busy[id] {
					deletes = append(deletes, id)
				}
			}
		}

		if err := c.Apply(ctx, upserts, deletes); err != nil {
			return err
		}
		resp.Removed = len(deletes)
		return rm.Metadata().SetJSON(ctx, metadata.LastPullKey(s.collection), time.Now().UTC())
	})
	if err != nil {
		return resp, &OperationError{Op: "pull", Pull: resp, Err: err}
	}
	resp.Entities = items

	s.logger.Info(ctx, "pull finished", "count", resp.Count, "removed", resp.Removed)
	return resp, nil
}
