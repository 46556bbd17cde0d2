// Package autosync syncs registered SYNC stores on a cron schedule.
//
// A run walks the stores in registration order, BatchSize at a time, and
// waits StaggerTime between batches. Runs are skipped while the backend does
// not answer a ping and while the previous run is still going.
package autosync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/kinveysync/internal/client/datastore"
	"github.com/dmitrijs2005/kinveysync/internal/logging"
)

const (
	DefaultBatchSize   = 3
	DefaultStaggerTime = time.Second
)

var (
	ErrNotSyncStore = errors.New("only SYNC stores can be auto-synced")
	ErrStarted      = errors.New("scheduler already started")
)

// Skip reasons reported in Report.Skipped.
const (
	SkipOffline = "backend unreachable"
	SkipRunning = "previous run still in flight"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Result struct {
	Collection string
	Push       *datastore.PushResponse
	Pull       *datastore.PullResponse
	Err        error
}

type Report struct {
	Started time.Time
	Skipped string
	Results []Result
}

type Scheduler struct {
	pinger  Pinger
	batch   int
	stagger time.Duration
	timeout time.Duration
	logger  logging.Logger
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time

	mu     sync.Mutex
	stores []*datastore.DataStore
	cron   *cron.Cron

	running atomic.Bool
}

type Option func(*Scheduler)

func WithBatchSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.batch = n
		}
	}
}

func WithStaggerTime(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.stagger = d
		}
	}
}

// WithRunTimeout bounds a whole run. Zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(p Pinger, opts ...Option) *Scheduler {
	s := &Scheduler{
		pinger:  p,
		batch:   DefaultBatchSize,
		stagger: DefaultStaggerTime,
		logger:  logging.Nop{},
		sleep:   sleep,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "autosync")
	return s
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register adds a store to every later run.
func (s *Scheduler) Register(store *datastore.DataStore) error {
	if store.StoreType() != datastore.Sync {
		return fmt.Errorf("%w: %s is %s", ErrNotSyncStore, store.Collection(), store.StoreType())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.stores {
		if have == store {
			return nil
		}
	}
	s.stores = append(s.stores, store)
	return nil
}

func (s *Scheduler) registered() []*datastore.DataStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*datastore.DataStore(nil), s.stores...)
}

// Start runs RunOnce on schedule, a cron spec such as "@every 30s" or
// "*/5 * * * *".
func (s *Scheduler) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return ErrStarted
	}
	c := cron.New(cron.WithLogger(cronLogger{s.logger}))
	if _, err := c.AddFunc(schedule, s.tick); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info(context.Background(), "auto-sync started", "schedule", schedule)
	return nil
}

// Stop halts the schedule and waits for a run in progress.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info(context.Background(), "auto-sync stopped")
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	_, _ = s.RunOnce(ctx)
}

// RunOnce performs one run. A skipped run returns a Report with Skipped set
// and no error.
func (s *Scheduler) RunOnce(ctx context.Context) (*Report, error) {
	report := &Report{Started: s.now()}
	if !s.running.CompareAndSwap(false, true) {
		report.Skipped = SkipRunning
		s.logger.Info(ctx, "auto-sync skipped", "reason", report.Skipped)
		return report, nil
	}
	defer s.running.Store(false)

	if err := s.pinger.Ping(ctx); err != nil {
		report.Skipped = SkipOffline
		s.logger.Info(ctx, "auto-sync skipped", "reason", report.Skipped, "error", err)
		return report, nil
	}

	stores := s.registered()
	for start := 0; start < len(stores); start += s.batch {
		if start > 0 {
			if err := s.sleep(ctx, s.stagger); err != nil {
				return report, err
			}
		}
		end := min(start+s.batch, len(stores))
		report.Results = append(report.Results, s.runBatch(ctx, stores[start:end])...)
	}

	failed := 0
	for _, r := range report.Results {
		if r.Err != nil {
			failed++
			s.logger.Warn(ctx, "auto-sync of collection failed", "collection", r.Collection, "error", r.Err)
		}
	}
	s.logger.Info(ctx, "auto-sync finished", "stores", len(report.Results), "failed", failed)
	return report, nil
}

func (s *Scheduler) runBatch(ctx context.Context, batch []*datastore.DataStore) []Result {
	results := make([]Result, len(batch))
	var g errgroup.Group
	for i, store := range batch {
		g.Go(func() error {
			resp, err := store.Sync(ctx, nil)
			r := Result{Collection: store.Collection(), Err: err}
			if resp != nil {
				r.Push, r.Pull = resp.Push, resp.Pull
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// cronLogger routes cron's own messages to the scheduler's logger.
type cronLogger struct {
	l logging.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug(context.Background(), msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error(context.Background(), msg, append(kv, "error", err)...)
}
