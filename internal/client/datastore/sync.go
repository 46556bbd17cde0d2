package datastore

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/kinveysync/internal/client/syncmanager"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

// SyncHooks observe the phases of a Sync. Nil fields are skipped.
type SyncHooks struct {
	OnPushStarted func()
	OnPushDone    func(*PushResponse)
	OnPullStarted func()
	OnPullDone    func(*PullResponse)
}

type SyncOption func(*SyncHooks)

func WithSyncHooks(h SyncHooks) SyncOption {
	return func(dst *SyncHooks) { *dst = h }
}

// Sync pushes the queue and then pulls q. The pull runs even when the push
// failed; it skips rows that still have queued mutations. If either phase
// stops with an error, an *OperationError carries both partial responses.
func (s *DataStore) Sync(ctx context.Context, q *query.Query, opts ...SyncOption) (*SyncResponse, error) {
	if s.storeType != Sync {
		return nil, invalidStoreType("sync", s.storeType)
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	var hooks SyncHooks
	for _, o := range opts {
		o(&hooks)
	}

	resp := &SyncResponse{}
	var pushErr, pullErr error
	lerr := s.locked(ctx, func() error {
		s.sm.SetState(ctx, s.collection, syncmanager.StatePushing)
		if hooks.OnPushStarted != nil {
			hooks.OnPushStarted()
		}
		resp.Push, pushErr = s.push(ctx)
		if pushErr != nil {
			s.sm.SetState(ctx, s.collection, syncmanager.StateFailed)
		} else {
			s.sm.SetState(ctx, s.collection, syncmanager.StatePushDone)
			if hooks.OnPushDone != nil {
				hooks.OnPushDone(resp.Push)
			}
		}

		s.sm.SetState(ctx, s.collection, syncmanager.StatePulling)
		if hooks.OnPullStarted != nil {
			hooks.OnPullStarted()
		}
		resp.Pull, pullErr = s.pull(ctx, q)
		if pullErr == nil && hooks.OnPullDone != nil {
			hooks.OnPullDone(resp.Pull)
		}

		if pushErr != nil || pullErr != nil {
			s.sm.SetState(ctx, s.collection, syncmanager.StateFailed)
		} else {
			s.sm.SetState(ctx, s.collection, syncmanager.StateDone)
		}
		return nil
	})
	if lerr != nil {
		return nil, lerr
	}
	if pushErr != nil || pullErr != nil {
		return resp, &OperationError{Op: "sync", Push: resp.Push, Pull: resp.Pull, Err: errors.Join(pushErr, pullErr)}
	}
	return resp, nil
}
