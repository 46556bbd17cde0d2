package datastore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/client/network"
)

func TestPurge_RevertsLocalChanges(t *testing.T) {
	e := newEnv(t)
	e.net.seed("books",
		models.Entity{"_id": "edited", "title": "server"},
		models.Entity{"_id": "deleted", "title": "server"},
	)
	s := e.store(t, "books", Sync)
	ctx := context.Background()

	_, err := s.Pull(ctx, nil)
	require.NoError(t, err)

	_, err = s.Save(ctx, models.Entity{"_id": "edited", "title": "local"})
	require.NoError(t, err)
	_, err = s.Delete(ctx, "deleted")
	require.NoError(t, err)
	created, err := s.Save(ctx, models.Entity{"title": "new"})
	require.NoError(t, err)
	_, err = s.Save(ctx, models.Entity{"_id": "never-pushed", "title": "x"})
	require.NoError(t, err)

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 0, e.queued(t, "books"))

	edited, err := s.FindByID(ctx, "edited")
	require.NoError(t, err)
	assert.Equal(t, "server", edited["title"])
	_, err = s.FindByID(ctx, "deleted")
	require.NoError(t, err)
	_, err = s.FindByID(ctx, created.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindByID(ctx, "never-pushed")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 0, e.net.callCount("update"))
	assert.Equal(t, 0, e.net.callCount("create"))
}

func TestPurge_TimeoutStopsAndKeepsRevertedRemoved(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, "books", Sync)
	ctx := context.Background()

	_, err := s.Save(ctx, models.Entity{"title": "new"})
	require.NoError(t, err)
	_, err = s.Save(ctx, models.Entity{"_id": "b", "title": "local"})
	require.NoError(t, err)
	_, err = s.Save(ctx, models.Entity{"_id": "c", "title": "local"})
	require.NoError(t, err)
	e.net.fail["get"] = func(int) error { return fmt.Errorf("get: %w", network.ErrTimeout) }

	n, err := s.Purge(ctx)
	assert.ErrorIs(t, err, ErrTimeout)
	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "purge", opErr.Op)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, e.queued(t, "books"))
}

func TestPurge_OnlySyncStores(t *testing.T) {
	e := newEnv(t)
	for _, st := range []StoreType{Network, Cache} {
		s := e.store(t, "books", st)
		_, err := s.Purge(context.Background())
		assert.ErrorIs(t, err, ErrInvalidStoreType)
	}
}

func TestClear_EmptiesCacheAndQueue(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, "books", Sync)
	other := e.store(t, "authors", Sync)
	ctx := context.Background()

	_, err := s.Save(ctx, models.Entity{"_id": "a"})
	require.NoError(t, err)
	_, err = other.Save(ctx, models.Entity{"_id": "x"})
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, e.queued(t, "books"))
	n, err := s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, 1, e.queued(t, "authors"))
}
