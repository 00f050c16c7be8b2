// File: sched/scheduler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scheduler owns one native multiplexing context and drives a single
// cooperative poll loop over it. All multi-context calls are serialized
// by engineMu: the engine is not safe for concurrent calls on one
// context, and the loop's bounded Wait keeps submit/cancel/close
// responsive while the lock is held.

package sched

import (
	"context"
	"strconv"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/momentics/curlmux/api"
	"github.com/momentics/curlmux/handle"
)

// pendingTransfer links one multiplexed handle to its caller's future.
// At most one record exists per handle identity at any time.
type pendingTransfer struct {
	h    *handle.Handle
	raw  api.Handle
	fut  *Future
	span trace.Span
}

// Scheduler multiplexes many transfers over one native context.
type Scheduler struct {
	cfg   config
	multi api.MultiContext

	// engineMu serializes every call into the multi context.
	engineMu    sync.Mutex
	multiClosed bool

	// stateMu guards closed and the poll-loop ownership flag.
	stateMu sync.Mutex
	closed  bool
	looping bool

	pending cmap.ConcurrentMap[string, *pendingTransfer]
	pool    *ants.Pool
	m       *metrics
}

// New creates a dedicated scheduler over the given engine.
func New(eng api.Engine, opts ...Option) (*Scheduler, error) {
	if eng == nil {
		return nil, api.ErrNoEngine
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	multi, err := eng.NewMultiContext()
	if err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(cfg.callbackWorkers)
	if err != nil {
		multi.Close()
		return nil, err
	}
	return &Scheduler{
		cfg:     cfg,
		multi:   multi,
		pending: cmap.New[*pendingTransfer](),
		pool:    pool,
		m:       newMetrics(cfg.registerer),
	}, nil
}

func recordKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// dispatch runs fn off the poll goroutine, falling back to a plain
// goroutine if the pool was already released.
func (s *Scheduler) dispatch(fn func()) {
	if err := s.pool.Submit(fn); err != nil {
		go fn()
	}
}

// Submit registers the handle for multiplexed execution and returns a
// future resolved exactly once. Fails with ErrSchedulerClosed after
// Close and with ErrDuplicateHandle while a record for the same handle
// identity exists.
func (s *Scheduler) Submit(h *handle.Handle) (*Future, error) {
	if h == nil || h.Released() {
		return nil, api.ErrHandleReleased
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.closed {
		return nil, api.ErrSchedulerClosed
	}

	// The record must be fully initialized before it is published: the
	// poll loop and Cancel take records from the map without stateMu.
	rec := &pendingTransfer{h: h, raw: h.Raw(), fut: newFuture(s.dispatch)}
	_, rec.span = s.cfg.tracer.Start(context.Background(), "sched.transfer")

	key := recordKey(h.ID())
	if !s.pending.SetIfAbsent(key, rec) {
		rec.span.End()
		return nil, api.ErrDuplicateHandle
	}

	s.engineMu.Lock()
	st := s.multi.Add(rec.raw)
	s.engineMu.Unlock()
	if !st.OK() {
		s.pending.Remove(key)
		rec.span.End()
		return nil, &api.TransferError{Status: st}
	}

	s.m.submitted.Inc()
	s.m.inflight.Inc()
	s.cfg.logger.Debug("transfer submitted", "handle", h.ID())

	if !s.looping {
		s.looping = true
		go s.pollLoop()
	}
	return rec.fut, nil
}

// Cancel removes the transfer if still pending, rejects its future with
// ErrCancelled, and reports whether anything was cancelled. The engine
// may not stop in-flight I/O instantly; only the caller stops waiting.
func (s *Scheduler) Cancel(h *handle.Handle) bool {
	if h == nil {
		return false
	}
	rec, ok := s.pending.Pop(recordKey(h.ID()))
	if !ok {
		return false
	}
	s.engineMu.Lock()
	if !s.multiClosed {
		s.multi.Remove(rec.raw)
	}
	s.engineMu.Unlock()

	rec.fut.resolve(api.TransferResult{HandleID: rec.raw.ID()}, api.ErrCancelled)
	rec.span.End()
	s.m.cancelled.Inc()
	s.m.inflight.Dec()
	s.cfg.logger.Debug("transfer cancelled", "handle", rec.raw.ID())
	return true
}

// Close stops future submissions, force-fails all pending transfers with
// ErrSchedulerClosed and releases the native context. Idempotent and
// safe while transfers are in flight.
func (s *Scheduler) Close() {
	s.stateMu.Lock()
	if s.closed {
		s.stateMu.Unlock()
		return
	}
	s.closed = true
	s.stateMu.Unlock()

	s.failAll(api.ErrSchedulerClosed)

	s.engineMu.Lock()
	s.multiClosed = true
	s.multi.Close()
	s.engineMu.Unlock()

	s.pool.Release()
	s.cfg.logger.Debug("scheduler closed")
}

// Pending returns the number of outstanding transfer records.
func (s *Scheduler) Pending() int {
	return s.pending.Count()
}

// pollLoop advances the multi context until no records remain. Only one
// loop runs per scheduler; ownership is handed over via the looping flag
// under stateMu, so a submit racing a loop exit starts a fresh loop.
func (s *Scheduler) pollLoop() {
	for {
		s.stateMu.Lock()
		if s.closed || s.pending.Count() == 0 {
			s.looping = false
			s.stateMu.Unlock()
			return
		}
		s.stateMu.Unlock()

		s.engineMu.Lock()
		if s.multiClosed {
			s.engineMu.Unlock()
			s.exitLoop()
			return
		}
		st, _ := s.multi.Perform()
		if !st.OK() {
			s.engineMu.Unlock()
			s.broadcastFault(st)
			continue
		}
		var completions []api.Completion
		for {
			c, ok := s.multi.ReadCompletion()
			if !ok {
				break
			}
			completions = append(completions, c)
		}
		s.engineMu.Unlock()

		// Resolve in native queue order for this iteration.
		for _, c := range completions {
			s.finish(c)
		}
		if len(completions) > 0 {
			continue
		}

		s.engineMu.Lock()
		if s.multiClosed {
			s.engineMu.Unlock()
			s.exitLoop()
			return
		}
		wst := s.multi.Wait(s.cfg.waitTimeout)
		s.engineMu.Unlock()
		if !wst.OK() {
			s.broadcastFault(wst)
		}
	}
}

func (s *Scheduler) exitLoop() {
	s.stateMu.Lock()
	s.looping = false
	s.stateMu.Unlock()
}

// finish matches one engine completion to its record and resolves the
// future. A completion whose record was popped by a concurrent cancel is
// only unregistered.
func (s *Scheduler) finish(c api.Completion) {
	id := c.Handle.ID()
	rec, ok := s.pending.Pop(recordKey(id))

	s.engineMu.Lock()
	if !s.multiClosed {
		s.multi.Remove(c.Handle)
	}
	s.engineMu.Unlock()

	if !ok {
		return
	}

	res := api.TransferResult{HandleID: id, Status: c.Status, FinishedAt: time.Now()}
	if c.Status.OK() {
		rec.fut.resolve(res, nil)
		s.m.completed.Inc()
	} else {
		err := &api.TransferError{Status: c.Status}
		rec.fut.resolve(res, err)
		rec.span.RecordError(err)
		s.m.failed.Inc()
		s.cfg.logger.Debug("transfer failed", "handle", id, "status", c.Status.String())
	}
	rec.span.End()
	s.m.inflight.Dec()
}

// broadcastFault handles a context-level engine fault. The engine cannot
// attribute such a fault to one handle among many, so every pending
// record fails with the same error.
func (s *Scheduler) broadcastFault(st api.Status) {
	err := &api.TransferError{Status: st}
	s.cfg.logger.Warn("multi context fault", "status", st.String())
	s.failAll(err)
}

func (s *Scheduler) failAll(err error) {
	for _, key := range s.pending.Keys() {
		rec, ok := s.pending.Pop(key)
		if !ok {
			continue
		}
		s.engineMu.Lock()
		if !s.multiClosed {
			s.multi.Remove(rec.raw)
		}
		s.engineMu.Unlock()

		rec.fut.resolve(api.TransferResult{HandleID: rec.raw.ID()}, err)
		rec.span.RecordError(err)
		rec.span.End()
		s.m.failed.Inc()
		s.m.inflight.Dec()
	}
}

func (s *Scheduler) isClosed() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.closed
}
