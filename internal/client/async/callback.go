package async

import "github.com/dmitrijs2005/kinveysync/internal/client/datastore"

type Callback[T any] interface {
	OnSuccess(T)
	OnFailure(error)
}

type ListCallback[T any] interface {
	OnSuccess([]T)
	OnFailure(error)
}

// CachedCallback is implemented by callbacks that want the cached result
// of a find on a CACHE store before the network answer arrives.
type CachedCallback[T any] interface {
	OnCached(T)
}

type SyncCallback interface {
	OnPushStarted()
	OnPushSuccess(*datastore.PushResponse)
	OnPullStarted()
	OnPullSuccess(*datastore.PullResponse)
	OnSuccess(push *datastore.PushResponse, pull *datastore.PullResponse)
	OnFailure(error)
}

// Funcs adapts two functions to Callback. Nil fields are skipped.
type Funcs[T any] struct {
	Success func(T)
	Failure func(error)
}

func (f Funcs[T]) OnSuccess(v T) {
	if f.Success != nil {
		f.Success(v)
	}
}

func (f Funcs[T]) OnFailure(err error) {
	if f.Failure != nil {
		f.Failure(err)
	}
}

type cached[T any] struct {
	Callback[T]
	fn func(T)
}

func (c cached[T]) OnCached(v T) { c.fn(v) }

// WithCached returns cb extended with a cached-result hook.
func WithCached[T any](cb Callback[T], fn func(T)) Callback[T] {
	return cached[T]{Callback: cb, fn: fn}
}

// SyncFuncs adapts functions to SyncCallback. Nil fields are skipped.
type SyncFuncs struct {
	PushStarted func()
	PushSuccess func(*datastore.PushResponse)
	PullStarted func()
	PullSuccess func(*datastore.PullResponse)
	Success     func(*datastore.PushResponse, *datastore.PullResponse)
	Failure     func(error)
}

func (f SyncFuncs) OnPushStarted() {
	if f.PushStarted != nil {
		f.PushStarted()
	}
}

func (f SyncFuncs) OnPushSuccess(r *datastore.PushResponse) {
	if f.PushSuccess != nil {
		f.PushSuccess(r)
	}
}

func (f SyncFuncs) OnPullStarted() {
	if f.PullStarted != nil {
		f.PullStarted()
	}
}

func (f SyncFuncs) OnPullSuccess(r *datastore.PullResponse) {
	if f.PullSuccess != nil {
		f.PullSuccess(r)
	}
}

func (f SyncFuncs) OnSuccess(push *datastore.PushResponse, pull *datastore.PullResponse) {
	if f.Success != nil {
		f.Success(push, pull)
	}
}

func (f SyncFuncs) OnFailure(err error) {
	if f.Failure != nil {
		f.Failure(err)
	}
}
