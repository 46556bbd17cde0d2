package datastore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
)

func TestSaveAllDuringPush_KeepsQueueOrdered(t *testing.T) {
	const (
		writers = 4
		rounds  = 5
	)
	e := newEnv(t)
	s := e.store(t, "books", Sync)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Save(ctx, models.Entity{"_id": fmt.Sprintf("seed-%d", i)})
		require.NoError(t, err)
	}

	start := make(chan struct{})
	var (
		wg       sync.WaitGroup
		pushResp *PushResponse
		pushErr  error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		pushResp, pushErr = s.Push(ctx)
	}()
	errs := make(chan error, writers*rounds)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for r := 0; r < rounds; r++ {
				batch := []models.Entity{
					{"_id": fmt.Sprintf("w%d-%d-a", w, r), "round": r},
					{"_id": fmt.Sprintf("w%d-%d-b", w, r), "round": r},
				}
				if _, err := s.SaveAll(ctx, batch); err != nil {
					errs <- err
				}
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.NoError(t, pushErr)
	assert.Equal(t, pushResp.Attempted, pushResp.SuccessCount+len(pushResp.Errors))
	assert.Empty(t, pushResp.Errors)

	pending, err := e.sm.Pending(ctx, "books")
	require.NoError(t, err)
	total := 3 + writers*rounds*2
	assert.Equal(t, total, pushResp.SuccessCount+len(pending), "no mutation is lost")

	position := make(map[string]int, len(pending))
	for i, m := range pending {
		if i > 0 {
			assert.Less(t, pending[i-1].Seq, m.Seq)
		}
		position[m.EntityID] = i
	}
	// each writer's mutations stay in the order it saved them
	for w := 0; w < writers; w++ {
		last := -1
		for r := 0; r < rounds; r++ {
			for _, suffix := range []string{"a", "b"} {
				p, ok := position[fmt.Sprintf("w%d-%d-%s", w, r, suffix)]
				if !ok {
					continue
				}
				assert.Greater(t, p, last)
				last = p
			}
		}
	}

	resp, err := s.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(pending), resp.SuccessCount)
	assert.Equal(t, 0, e.queued(t, "books"))
	assert.Equal(t, total, e.net.stored("books"))
}
