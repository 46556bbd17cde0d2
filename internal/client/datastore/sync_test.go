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
	"github.com/dmitrijs2005/kinveysync/internal/client/syncmanager"
)

func TestSync_StatesAndHooks(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, "books", Sync)
	ctx := context.Background()
	assert.Equal(t, syncmanager.StateIdle, s.State())

	_, err := s.Save(ctx, models.Entity{"title": "a"})
	require.NoError(t, err)

	var calls []string
	resp, err := s.Sync(ctx, nil, WithSyncHooks(SyncHooks{
		OnPushStarted: func() { calls = append(calls, "push-started") },
		OnPushDone:    func(r *PushResponse) { calls = append(calls, fmt.Sprintf("push-done:%d", r.SuccessCount)) },
		OnPullStarted: func() { calls = append(calls, "pull-started") },
		OnPullDone:    func(r *PullResponse) { calls = append(calls, fmt.Sprintf("pull-done:%d", r.Count)) },
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Push.SuccessCount)
	assert.Equal(t, 1, resp.Pull.Count)
	assert.Equal(t, []string{"push-started", "push-done:1", "pull-started", "pull-done:1"}, calls)
	assert.Equal(t, []syncmanager.State{
		syncmanager.StatePushing, syncmanager.StatePushDone, syncmanager.StatePulling, syncmanager.StateDone,
	}, e.states)
	assert.Equal(t, syncmanager.StateDone, s.State())
}

func TestSync_PullRunsAfterFailedPushAndSkipsPendingRows(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, "books", Sync)
	ctx := context.Background()

	e.net.seed("books", models.Entity{"_id": "mine", "title": "server"}, models.Entity{"_id": "theirs"})
	_, err := s.Save(ctx, models.Entity{"_id": "mine", "title": "local"})
	require.NoError(t, err)
	e.net.fail["update"] = func(int) error { return fmt.Errorf("update: %w", network.ErrTimeout) }

	resp, err := s.Sync(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "sync", opErr.Op)
	require.NotNil(t, opErr.Push)
	require.NotNil(t, opErr.Pull)
	assert.Equal(t, 2, opErr.Pull.Count)
	assert.Same(t, resp.Pull, opErr.Pull)

	mine, err := s.FindByID(ctx, "mine")
	require.NoError(t, err)
	assert.Equal(t, "local", mine["title"])
	_, err = s.FindByID(ctx, "theirs")
	require.NoError(t, err)

	assert.Equal(t, syncmanager.StateFailed, s.State())
	assert.Contains(t, e.states, syncmanager.StatePulling)
}

func TestSync_PushPartialFailureIsNotFatal(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, "books", Sync)
	ctx := context.Background()

	_, err := s.Save(ctx, models.Entity{"_id": "a"})
	require.NoError(t, err)
	e.net.fail["update"] = func(int) error { return fmt.Errorf("update: %w", network.ErrBadRequest) }

	resp, err := s.Sync(ctx, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, resp.Push.Err(), ErrPartialFailure)
	assert.Equal(t, syncmanager.StateDone, s.State())
}
