// File: fake/handle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"sync"

	"github.com/momentics/curlmux/api"
)

// OptionCall records one SetOption invocation.
type OptionCall struct {
	Opt   api.Option
	Value any
}

// Frame is one scripted inbound websocket frame.
type Frame struct {
	Flags   api.FrameFlags
	Payload []byte
}

// SentFrame records one SendFrame invocation.
type SentFrame struct {
	Flags   api.FrameFlags
	Payload []byte
}

// Handle implements api.Handle for testing. Behavior is driven by
// scripted statuses and Func overrides; every call is recorded.
type Handle struct {
	mu sync.Mutex
	id uint64

	Options     []OptionCall
	SetOptFunc  func(opt api.Option, value any) api.Status
	PerformStat api.Status
	PerformFunc func() api.Status
	CloseCalls  int

	frames   []Frame
	RecvFunc func(buf []byte) (api.Status, int, api.FrameFlags)

	Sent     []SentFrame
	SendFunc func(payload []byte, flags api.FrameFlags) (api.Status, int)
}

func (h *Handle) ID() uint64 { return h.id }

func (h *Handle) SetOption(opt api.Option, value any) api.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Options = append(h.Options, OptionCall{Opt: opt, Value: value})
	if h.SetOptFunc != nil {
		return h.SetOptFunc(opt, value)
	}
	return api.StatusOK
}

func (h *Handle) Perform() api.Status {
	h.mu.Lock()
	fn := h.PerformFunc
	st := h.PerformStat
	h.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return st
}

func (h *Handle) Close() {
	h.mu.Lock()
	h.CloseCalls++
	h.mu.Unlock()
}

// PushFrame enqueues one inbound frame for RecvFrame to deliver.
func (h *Handle) PushFrame(flags api.FrameFlags, payload []byte) {
	h.mu.Lock()
	h.frames = append(h.frames, Frame{Flags: flags, Payload: payload})
	h.mu.Unlock()
}

// RecvFrame pops the next scripted frame, or reports StatusAgain when
// nothing is queued.
func (h *Handle) RecvFrame(buf []byte) (api.Status, int, api.FrameFlags) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.RecvFunc != nil {
		return h.RecvFunc(buf)
	}
	if len(h.frames) == 0 {
		return api.StatusAgain, 0, 0
	}
	fr := h.frames[0]
	h.frames = h.frames[1:]
	n := copy(buf, fr.Payload)
	return api.StatusOK, n, fr.Flags
}

func (h *Handle) SendFrame(payload []byte, flags api.FrameFlags) (api.Status, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	owned := make([]byte, len(payload))
	copy(owned, payload)
	h.Sent = append(h.Sent, SentFrame{Flags: flags, Payload: owned})
	if h.SendFunc != nil {
		return h.SendFunc(payload, flags)
	}
	return api.StatusOK, len(payload)
}

// SentFrames returns a snapshot of recorded sends.
func (h *Handle) SentFrames() []SentFrame {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SentFrame, len(h.Sent))
	copy(out, h.Sent)
	return out
}
