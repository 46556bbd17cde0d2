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
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

func TestPush_EmptyQueueTwice(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, "books", Sync)

	for i := 0; i < 2; i++ {
		resp, err := s.Push(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, resp.Attempted)
		assert.Equal(t, 0, resp.SuccessCount)
		assert.Empty(t, resp.Errors)
		assert.NoError(t, resp.Err())
	}
}

func TestPush_ReplaysFIFOAndEmptiesQueue(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, "books", Sync)
	ctx := context.Background()

	saved, err := s.Save(ctx, models.Entity{"title": "v1"})
	require.NoError(t, err)
	saved["title"] = "v2"
	_, err = s.Save(ctx, saved)
	require.NoError(t, err)
	_, err = s.Save(ctx, models.Entity{"_id": "other", "title": "x"})
	require.NoError(t, err)
	_, err = s.Delete(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 4, e.queued(t, "books"))

	resp, err := s.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Attempted)
	assert.Equal(t, 4, resp.SuccessCount)
	assert.Equal(t, 0, e.queued(t, "books"))

	assert.Equal(t, 1, e.net.callCount("create"))
	assert.Equal(t, 2, e.net.callCount("update"))
	assert.Equal(t, 1, e.net.callCount("delete"))
	assert.Equal(t, 1, e.net.stored("books"))

	row, err := s.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	assert.Equal(t, "v2", row["title"])
	assert.NotNil(t, row["_kmd"], "cache holds the server copy after push")
}

func TestPush_CacheRefreshWaitsForLaterMutations(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, "books", Sync)
	ctx := context.Background()

	_, err := s.Save(ctx, models.Entity{"_id": "b1", "title": "v1"})
	require.NoError(t, err)
	e.net.fail["update"] = func(n int) error {
		if n == 1 {
			return nil
		}
		return fmt.Errorf("update: %w", network.ErrBadRequest)
	}
	_, err = s.Save(ctx, models.Entity{"_id": "b1", "title": "v2"})
	require.NoError(t, err)

	resp, err := s.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempted)
	assert.Equal(t, 1, resp.SuccessCount)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 1, e.queued(t, "books"))

	row, err := s.FindByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "v2", row["title"], "local change with a pending mutation is kept")
	assert.Nil(t, row["_kmd"])
}

func TestPush_FailuresAreRecordedAndDrainContinues(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, "books", Sync)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Save(ctx, models.Entity{"_id": fmt.Sprintf("b%d", i)})
		require.NoError(t, err)
	}
	e.net.fail["update"] = func(n int) error {
		if n == 2 {
			return fmt.Errorf("update: %w", &network.StatusError{Code: 500, Name: "KinveyInternalErrorRetry"})
		}
		return nil
	}

	resp, err := s.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempted)
	assert.Equal(t, 2, resp.SuccessCount)
	assert.Equal(t, resp.Attempted, resp.SuccessCount+len(resp.Errors))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "b1", resp.Errors[0].Mutation.EntityID)
	assert.ErrorIs(t, resp.Err(), ErrPartialFailure)
	assert.ErrorIs(t, resp.Err(), ErrNetwork)

	pending, err := e.sm.Pending(ctx, "books")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b1", pending[0].EntityID)

	e.net.fail = map[string]func(int) error{}
	resp, err = s.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.SuccessCount)
	assert.Equal(t, 0, e.queued(t, "books"))
}

func TestPush_TimeoutTerminatesWithPartialResult(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, "books", Sync)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Save(ctx, models.Entity{"n": i})
		require.NoError(t, err)
	}
	e.net.fail["create"] = func(n int) error {
		if n == 3 {
			return fmt.Errorf("create: %w", network.ErrTimeout)
		}
		return nil
	}

	resp, err := s.Push(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "push", opErr.Op)
	assert.Same(t, resp, opErr.Push)

	assert.Equal(t, 2, resp.SuccessCount)
	assert.Equal(t, 3, resp.Attempted)
	assert.Equal(t, 3, e.queued(t, "books"))
	assert.Equal(t, 3, e.net.callCount("create"), "drain stops at the timeout")
}

func TestPush_CancelledContext(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, "books", Sync)

	_, err := s.Save(context.Background(), models.Entity{"n": 1})
	require.NoError(t, err)
	_, err = s.Save(context.Background(), models.Entity{"n": 2})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	e.net.fail["create"] = func(int) error {
		cancel()
		return nil
	}

	resp, err := s.Push(ctx)
	assert.ErrorIs(t, err, ErrTimeout)
	require.NotNil(t, resp)
	assert.Equal(t, resp.Attempted, resp.SuccessCount+len(resp.Errors))
	assert.Equal(t, 1, e.net.callCount("create"))
}

func TestPush_ServerAssignedIDRetargetsQueue(t *testing.T) {
	e := newEnv(t)
	e.net.assignIDs = true
	s := e.store(t, "books", Sync, WithIDGenerator(func() string { return "tmp" }))
	ctx := context.Background()

	saved, err := s.Save(ctx, models.Entity{"title": "v1"})
	require.NoError(t, err)
	saved["title"] = "v2"
	_, err = s.Save(ctx, saved)
	require.NoError(t, err)

	resp, err := s.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.SuccessCount)

	_, err = s.FindByID(ctx, "tmp")
	assert.ErrorIs(t, err, ErrNotFound)
	row, err := s.FindByID(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", row["title"])
	assert.Equal(t, 1, e.net.stored("books"))
}

func TestPush_ServerAssignedIDWhileLaterMutationFails(t *testing.T) {
	e := newEnv(t)
	e.net.assignIDs = true
	s := e.store(t, "books", Sync, WithIDGenerator(func() string { return "tmp" }))
	ctx := context.Background()

	saved, err := s.Save(ctx, models.Entity{"title": "v1"})
	require.NoError(t, err)
	saved["title"] = "v2"
	_, err = s.Save(ctx, saved)
	require.NoError(t, err)
	e.net.fail["update"] = func(int) error { return fmt.Errorf("update: %w", network.ErrConflict) }

	resp, err := s.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.SuccessCount)

	pending, err := e.sm.Pending(ctx, "books")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "srv-1", pending[0].EntityID)
	assert.Equal(t, "srv-1", pending[0].Payload.ID())

	row, err := s.FindByID(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", row["title"], "the local row moved to the new id")
}

func TestPush_CreateWhoseAnswerWasLost(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, "books", Sync, WithIDGenerator(func() string { return "x" }))
	ctx := context.Background()

	_, err := s.Save(ctx, models.Entity{"title": "v1"})
	require.NoError(t, err)
	// the backend already stored the create, the client never heard back
	e.net.seed("books", models.Entity{"_id": "x", "title": "v1"})

	resp, err := s.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Attempted)
	assert.Equal(t, 1, resp.SuccessCount)
	assert.Empty(t, resp.Errors)
	assert.Equal(t, 0, e.queued(t, "books"))
	assert.Equal(t, 1, e.net.callCount("create"))
	assert.Equal(t, 1, e.net.callCount("update"))
	assert.Equal(t, 1, e.net.stored("books"))

	resp, err = s.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Attempted)
}

func TestPush_DeleteOfUnknownEntityCountsAsSuccess(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, "books", Sync)
	ctx := context.Background()

	_, err := e.sm.Enqueue(ctx, "books", models.OperationDelete, models.Target{EntityID: "ghost"})
	require.NoError(t, err)

	resp, err := s.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.SuccessCount)
	assert.Equal(t, 0, e.queued(t, "books"))
}

func TestPush_GetAndQueryMutationsFillCache(t *testing.T) {
	e := newEnv(t)
	e.net.seed("books",
		models.Entity{"_id": "a", "genre": "sf"},
		models.Entity{"_id": "b", "genre": "sf"},
		models.Entity{"_id": "c", "genre": "crime"},
	)
	s := e.store(t, "books", Sync)
	ctx := context.Background()

	_, err := e.sm.Enqueue(ctx, "books", models.OperationGet, models.Target{EntityID: "c"})
	require.NoError(t, err)
	encoded, err := query.New().Equals("genre", "sf").Encode()
	require.NoError(t, err)
	_, err = e.sm.Enqueue(ctx, "books", models.OperationQuery, models.Target{Query: encoded})
	require.NoError(t, err)

	resp, err := s.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.SuccessCount)

	all, err := s.FindAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, entityIDs(all))
}
