package cli

import (
	"context"

	"github.com/dmitrijs2005/kinveysync/internal/client/datastore"
)

func (a *App) reportPush(r *datastore.PushResponse) {
	if r == nil {
		return
	}
	a.printf("Pushed %d of %d change(s)\n", r.SuccessCount, r.Attempted)
	for _, e := range r.Errors {
		a.printf("  #%d %s %s: %v\n", e.Mutation.Seq, e.Mutation.Operation, e.Mutation.EntityID, e.Err)
	}
}

func (a *App) reportPull(r *datastore.PullResponse) {
	if r == nil {
		return
	}
	a.printf("Pulled %d item(s), removed %d\n", r.Count, r.Removed)
}

func (a *App) Push(ctx context.Context, _ []string) error {
	r, err := a.current().Push(ctx)
	a.reportPush(r)
	return err
}

func (a *App) Pull(ctx context.Context, args []string) error {
	q, err := parseQuery(args)
	if err != nil {
		return err
	}
	r, err := a.current().Pull(ctx, q)
	a.reportPull(r)
	return err
}

// Sync pushes, then pulls, printing each phase.
func (a *App) Sync(ctx context.Context, args []string) error {
	q, err := parseQuery(args)
	if err != nil {
		return err
	}
	hooks := datastore.SyncHooks{
		OnPushStarted: func() { a.printf("... pushing\n") },
		OnPushDone:    a.reportPush,
		OnPullStarted: func() { a.printf("... pulling\n") },
		OnPullDone:    a.reportPull,
	}
	_, err = a.current().Sync(ctx, q, datastore.WithSyncHooks(hooks))
	return err
}

func (a *App) Purge(ctx context.Context, _ []string) error {
	n, err := a.current().Purge(ctx)
	if err != nil {
		return err
	}
	a.printf("Purged %d change(s)\n", n)
	return nil
}

func (a *App) Clear(ctx context.Context, _ []string) error {
	if err := a.current().Clear(ctx); err != nil {
		return err
	}
	a.printf("Cleared %s\n", a.current().Collection())
	return nil
}

// Pending lists the queued changes of the current collection.
func (a *App) Pending(ctx context.Context, _ []string) error {
	store := a.current()
	ms, err := a.client.SyncManager().Pending(ctx, store.Collection())
	if err != nil {
		return err
	}
	for _, m := range ms {
		target := m.EntityID
		if target == "" {
			target = m.Query
		}
		a.printf("#%d %s %s %s\n", m.Seq, m.Operation, target, m.CreatedAt.Local().Format("15:04:05"))
	}
	a.printf("%d pending\n", len(ms))
	return nil
}
