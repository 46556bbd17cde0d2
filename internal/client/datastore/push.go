package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/client/network"
	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/kinveysync/internal/client/syncmanager"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

// Push replays the collection's queue against the backend in FIFO order.
//
// A mutation the backend rejects stays queued and is listed in the
// response's Errors; the drain goes on with the next one. A timeout or a
// cancelled context stops the drain and is returned as an *OperationError
// wrapping ErrTimeout, with the partial response attached.
func (s *DataStore) Push(ctx context.Context) (*PushResponse, error) {
	if s.storeType != Sync {
		return nil, invalidStoreType("push", s.storeType)
	}
	var (
		resp *PushResponse
		err  error
	)
	lerr := s.locked(ctx, func() error {
		s.sm.SetState(ctx, s.collection, syncmanager.StatePushing)
		resp, err = s.push(ctx)
		if err != nil {
			s.sm.SetState(ctx, s.collection, syncmanager.StateFailed)
			return nil
		}
		s.sm.SetState(ctx, s.collection, syncmanager.StatePushDone)
		return nil
	})
	if lerr != nil {
		return nil, lerr
	}
	return resp, err
}

func (s *DataStore) push(ctx context.Context) (*PushResponse, error) {
	resp := &PushResponse{}
	pending, err := s.sm.Pending(ctx, s.collection)
	if err != nil {
		return resp, &OperationError{Op: "push", Push: resp, Err: err}
	}

	// ids the backend replaced while this drain was running
	renamed := make(map[string]string)

	for _, m := range pending {
		if err := ctx.Err(); err != nil {
			return resp, &OperationError{Op: "push", Push: resp, Err: remoteError("push "+s.collection, err)}
		}
		if to, ok := renamed[m.EntityID]; ok {
			m.EntityID = to
			if m.Payload != nil {
				m.Payload.SetID(to)
			}
		}

		resp.Attempted++
		newID, err := s.replay(ctx, m)
		if err != nil {
			resp.Errors = append(resp.Errors, MutationError{Mutation: m, Err: err})
			if isTimeout(err) {
				s.logger.Warn(ctx, "push interrupted", "seq", m.Seq, "error", err)
				return resp, &OperationError{Op: "push", Push: resp, Err: asTimeout(err)}
			}
			s.logger.Warn(ctx, "mutation rejected", "seq", m.Seq, "op", m.Operation, "id", m.EntityID, "error", err)
			continue
		}
		if newID != "" && newID != m.EntityID {
			renamed[m.EntityID] = newID
		}
		resp.SuccessCount++
	}

	s.logger.Info(ctx, "push finished", "attempted", resp.Attempted, "pushed", resp.SuccessCount, "failed", len(resp.Errors))
	return resp, nil
}

// replay sends one mutation and, once the backend accepted it, removes it
// from the queue and refreshes the cache in one transaction. It returns the
// id the backend assigned when a POST came back under a different id.
func (s *DataStore) replay(ctx context.Context, m models.Mutation) (string, error) {
	switch m.Operation {
	case models.OperationPost:
		if m.Payload == nil {
			return "", invalidArgument("POST without payload")
		}
		created, err := s.net.Create(ctx, s.collection, m.Payload)
		if errors.Is(err, network.ErrConflict) && m.Payload.ID() != "" {
			// an earlier attempt was stored but its answer never came back
			s.logger.Debug(ctx, "create conflict, replaying as update", "seq", m.Seq, "id", m.EntityID)
			created, err = s.net.Update(ctx, s.collection, m.Payload)
		}
		if err != nil {
			return "", remoteError("create", err)
		}
		return created.ID(), s.complete(ctx, m, func(ctx context.Context, rm repomanager.RepositoryManager) error {
			return s.adoptCreated(ctx, rm, m.EntityID, created)
		})

	case models.OperationPut:
		if m.Payload == nil {
			return "", invalidArgument("PUT without payload")
		}
		updated, err := s.net.Update(ctx, s.collection, m.Payload)
		if err != nil {
			return "", remoteError("update", err)
		}
		return "", s.complete(ctx, m, func(ctx context.Context, rm repomanager.RepositoryManager) error {
			return s.refresh(ctx, rm, updated)
		})

	case models.OperationDelete:
		if _, err := s.net.Delete(ctx, s.collection, m.EntityID); err != nil && !errors.Is(err, network.ErrNotFound) {
			return "", remoteError("delete", err)
		}
		return "", s.complete(ctx, m, nil)

	case models.OperationGet:
		e, err := s.net.GetByID(ctx, s.collection, m.EntityID)
		if errors.Is(err, network.ErrNotFound) {
			return "", s.complete(ctx, m, func(ctx context.Context, rm repomanager.RepositoryManager) error {
				return s.forget(ctx, rm, m.EntityID)
			})
		}
		if err != nil {
			return "", remoteError("get", err)
		}
		return "", s.complete(ctx, m, func(ctx context.Context, rm repomanager.RepositoryManager) error {
			return s.refresh(ctx, rm, e)
		})

	case models.OperationQuery:
		q, err := query.Decode(m.Query)
		if err != nil {
			return "", invalidArgument("queued query: %v", err)
		}
		items, err := s.net.Find(ctx, s.collection, q)
		if err != nil {
			return "", remoteError("find", err)
		}
		return "", s.complete(ctx, m, func(ctx context.Context, rm repomanager.RepositoryManager) error {
			for _, e := range items {
				if err := s.refresh(ctx, rm, e); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return "", invalidArgument("unknown operation %q", m.Operation)
}

// complete removes m from the queue and runs then in the same transaction.
func (s *DataStore) complete(ctx context.Context, m models.Mutation, then func(context.Context, repomanager.RepositoryManager) error) error {
	err := s.repos().WithTx(ctx, func(ctx context.Context, rm repomanager.RepositoryManager) error {
		if err := s.sm.WithRepositories(rm).Remove(ctx, m.Seq); err != nil {
			return err
		}
		if then == nil {
			return nil
		}
		return then(ctx, rm)
	})
	if err != nil {
		return fmt.Errorf("failed to complete mutation %d: %w", m.Seq, err)
	}
	return nil
}

// refresh caches the server copy of e unless a later mutation still
// targets it.
func (s *DataStore) refresh(ctx context.Context, rm repomanager.RepositoryManager, e models.Entity) error {
	id := e.ID()
	if id == "" {
		return nil
	}
	n, err := s.sm.WithRepositories(rm).CountFor(ctx, s.collection, id)
	if err != nil || n > 0 {
		return err
	}
	_, err = s.cacheOf(rm).Save(ctx, e)
	return err
}

// forget drops the cache row of id unless a later mutation still targets it.
func (s *DataStore) forget(ctx context.Context, rm repomanager.RepositoryManager, id string) error {
	n, err := s.sm.WithRepositories(rm).CountFor(ctx, s.collection, id)
	if err != nil || n > 0 {
		return err
	}
	return s.cacheOf(rm).Apply(ctx, nil, []string{id})
}

// adoptCreated handles the server copy of a POST. When the backend kept
// the local id it is a plain refresh; otherwise the remaining mutations and
// the cache row move to the new id.
func (s *DataStore) adoptCreated(ctx context.Context, rm repomanager.RepositoryManager, localID string, created models.Entity) error {
	newID := created.ID()
	if newID == "" || newID == localID {
		return s.refresh(ctx, rm, created)
	}
	sm := s.sm.WithRepositories(rm)
	moved, err := sm.Retarget(ctx, s.collection, localID, newID)
	if err != nil {
		return err
	}
	c := s.cacheOf(rm)
	row, err := c.Get(ctx, localID)
	if err != nil {
		return err
	}
	if err := c.Apply(ctx, nil, []string{localID}); err != nil {
		return err
	}
	if moved == 0 {
		_, err = c.Save(ctx, created)
		return err
	}
	if row != nil {
		row.SetID(newID)
		_, err = c.Save(ctx, row)
	}
	return err
}
