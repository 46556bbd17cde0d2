// Package async runs data-store operations on a bounded worker pool and
// reports their outcome through callbacks.
//
// Every submitted operation produces exactly one terminal signal, OnSuccess
// or OnFailure, including when the dispatcher is closed, the context is
// cancelled before a worker frees up, or the operation panics. Callbacks and
// progress hooks are handed to the dispatcher's Executor, which lets a
// caller run them on its own goroutine or event loop.
package async

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/kinveysync/internal/logging"
)

const DefaultWorkers = 4

var (
	ErrClosed = errors.New("dispatcher is closed")
	ErrPanic  = errors.New("operation panicked")
)

// Executor runs a callback. The default runs it on the worker goroutine.
type Executor func(func())

func Inline(f func()) { f() }

type Dispatcher struct {
	sem    *semaphore.Weighted
	exec   Executor
	logger logging.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Dispatcher)

func WithExecutor(e Executor) Option {
	return func(d *Dispatcher) {
		if e != nil {
			d.exec = e
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher allows up to workers operations to run at once. A value
// <= 0 selects DefaultWorkers.
func NewDispatcher(workers int, opts ...Option) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	d := &Dispatcher{
		sem:    semaphore.NewWeighted(int64(workers)),
		exec:   Inline,
		logger: logging.Nop{},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Dispatcher) deliver(f func()) { d.exec(f) }

// submit runs op on a worker. fail receives the error when op never gets
// to run.
func (d *Dispatcher) submit(ctx context.Context, op func(context.Context), fail func(error)) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.deliver(func() { fail(ErrClosed) })
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		if err := d.sem.Acquire(ctx, 1); err != nil {
			d.deliver(func() { fail(err) })
			return
		}
		defer d.sem.Release(1)
		op(ctx)
	}()
}

// Close rejects new operations and waits for the running ones.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

// Run executes op on d and reports its result to cb.
func Run[T any](ctx context.Context, d *Dispatcher, op func(context.Context) (T, error), cb Callback[T]) {
	d.submit(ctx, func(ctx context.Context) {
		v, err := safely(ctx, d.logger, op)
		if err != nil {
			d.deliver(func() { cb.OnFailure(err) })
			return
		}
		d.deliver(func() { cb.OnSuccess(v) })
	}, cb.OnFailure)
}

func safely[T any](ctx context.Context, logger logging.Logger, op func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "operation panicked", "panic", r)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return op(ctx)
}
