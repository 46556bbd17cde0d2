package datastore

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/client/network"
	"github.com/dmitrijs2005/kinveysync/internal/client/repositories/repomanager"
)

// Purge discards the queue and reverts the cache to the backend's state:
// locally created rows are dropped and locally changed or deleted rows are
// fetched again. A transport failure stops the purge; mutations reverted
// until then stay removed. It returns the number of mutations purged.
func (s *DataStore) Purge(ctx context.Context) (int, error) {
	if s.storeType != Sync {
		return 0, invalidStoreType("purge", s.storeType)
	}
	var (
		purged int
		err    error
	)
	lerr := s.locked(ctx, func() error {
		purged, err = s.purge(ctx)
		return nil
	})
	if lerr != nil {
		return 0, lerr
	}
	return purged, err
}

func (s *DataStore) purge(ctx context.Context) (int, error) {
	pending, err := s.sm.Pending(ctx, s.collection)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, m := range pending {
		if err := ctx.Err(); err != nil {
			return purged, &OperationError{Op: "purge", Err: remoteError("purge "+s.collection, err)}
		}
		revert, err := s.revert(ctx, m)
		if err != nil {
			return purged, &OperationError{Op: "purge", Err: err}
		}
		if err := s.complete(ctx, m, revert); err != nil {
			return purged, &OperationError{Op: "purge", Err: err}
		}
		purged++
	}
	if purged > 0 {
		s.logger.Info(ctx, "queue purged", "count", purged)
	}
	return purged, nil
}

// revert works out how to undo m locally. Only PUT and DELETE need the
// backend.
func (s *DataStore) revert(ctx context.Context, m models.Mutation) (func(context.Context, repomanager.RepositoryManager) error, error) {
	drop := func(ctx context.Context, rm repomanager.RepositoryManager) error {
		return s.cacheOf(rm).Apply(ctx, nil, []string{m.EntityID})
	}
	switch m.Operation {
	case models.OperationPost:
		return drop, nil
	case models.OperationPut, models.OperationDelete:
		e, err := s.net.GetByID(ctx, s.collection, m.EntityID)
		if errors.Is(err, network.ErrNotFound) {
			return drop, nil
		}
		if err != nil {
			return nil, remoteError("purge "+s.collection, err)
		}
		return func(ctx context.Context, rm repomanager.RepositoryManager) error {
			_, err := s.cacheOf(rm).Save(ctx, e)
			return err
		}, nil
	}
	return nil, nil
}

// Clear empties the collection's cache region and queue.
func (s *DataStore) Clear(ctx context.Context) error {
	if s.storeType == Network {
		return invalidStoreType("clear", s.storeType)
	}
	return s.locked(ctx, func() error {
		return s.repos().WithTx(ctx, func(ctx context.Context, rm repomanager.RepositoryManager) error {
			if err := s.cacheOf(rm).Clear(ctx); err != nil {
				return err
			}
			_, err := s.sm.WithRepositories(rm).Clear(ctx, s.collection)
			return err
		})
	})
}

// ClearCache empties the collection's cache region and keeps the queue.
func (s *DataStore) ClearCache(ctx context.Context) error {
	if s.storeType == Network {
		return invalidStoreType("clear cache", s.storeType)
	}
	return s.locked(ctx, func() error {
		return s.cacheOf(s.repos()).Clear(ctx)
	})
}
