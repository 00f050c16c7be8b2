// File: sched/future.go
// Package sched implements the asynchronous multi-transfer scheduler
// bridging the engine's cooperative single-call execution model into a
// concurrency-safe submit/await API.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import (
	"context"
	"sync"

	"github.com/momentics/curlmux/api"
)

// Future is the caller side of one submitted transfer. It resolves
// exactly once, with a result on success or an error on failure,
// cancellation or scheduler shutdown.
type Future struct {
	done chan struct{}

	mu        sync.Mutex
	resolved  bool
	result    api.TransferResult
	err       error
	callbacks []func(api.TransferResult, error)

	dispatch func(fn func())
}

func newFuture(dispatch func(fn func())) *Future {
	return &Future{
		done:     make(chan struct{}),
		dispatch: dispatch,
	}
}

// resolve settles the future. Only the first call has any effect.
func (f *Future) resolve(res api.TransferResult, err error) bool {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return false
	}
	f.resolved = true
	f.result = res
	f.err = err
	cbs := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	close(f.done)
	for _, cb := range cbs {
		cb := cb
		f.dispatch(func() { cb(res, err) })
	}
	return true
}

// Done returns a channel closed once the future is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the settled outcome. Valid only after Done is closed;
// before resolution it returns the zero result and a nil error.
func (f *Future) Result() (api.TransferResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.err
}

// Wait blocks until resolution or context cancellation.
func (f *Future) Wait(ctx context.Context) (api.TransferResult, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		return api.TransferResult{}, ctx.Err()
	}
}

// OnDone registers a completion callback. Callbacks run on the
// scheduler's worker pool, never on the poll goroutine; a callback
// registered after resolution is dispatched immediately.
func (f *Future) OnDone(cb func(api.TransferResult, error)) {
	f.mu.Lock()
	if !f.resolved {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	res, err := f.result, f.err
	f.mu.Unlock()
	f.dispatch(func() { cb(res, err) })
}
