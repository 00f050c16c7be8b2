// File: handle/handle.go
// Package handle wraps one native single-transfer object together with the
// auxiliary buffers and header lists that must outlive the transfer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package handle

import (
	"github.com/valyala/bytebufferpool"

	"github.com/momentics/curlmux/api"
)

// HeaderList is an owned header-line container handed to the engine via
// OptHeaderList. The handle keeps it live until Release.
type HeaderList struct {
	Lines []string
}

// Handle owns one native transfer object for its entire lifetime.
//
// A Handle is single-owner: it must never be read from two callers
// concurrently. Release is idempotent and must run on every exit path.
type Handle struct {
	raw api.Handle

	released bool

	// Auxiliary resources the engine may reference until release.
	bodies  []*bytebufferpool.ByteBuffer
	headers []*HeaderList
}

// New creates a handle on the given engine.
func New(eng api.Engine) (*Handle, error) {
	if eng == nil {
		return nil, api.ErrNoEngine
	}
	raw, err := eng.NewHandle()
	if err != nil {
		return nil, err
	}
	return &Handle{raw: raw}, nil
}

// ID returns the address-stable native identity, or zero once released.
// A released identity must never be reused as a lookup key.
func (h *Handle) ID() uint64 {
	if h.released {
		return 0
	}
	return h.raw.ID()
}

// Raw exposes the underlying native handle for the scheduler and the
// websocket session. Callers must not retain it past Release.
func (h *Handle) Raw() api.Handle {
	return h.raw
}

// SetOption applies one native option.
func (h *Handle) SetOption(opt api.Option, value any) error {
	if h.released {
		return api.ErrHandleReleased
	}
	if st := h.raw.SetOption(opt, value); !st.OK() {
		return &api.ConfigurationError{Opt: opt, Status: st}
	}
	return nil
}

// SetRequestBody copies the outgoing body into an owned pooled buffer and
// hands that copy to the engine. The copy stays live until Release.
func (h *Handle) SetRequestBody(body []byte) error {
	if h.released {
		return api.ErrHandleReleased
	}
	buf := bytebufferpool.Get()
	buf.Reset()
	_, _ = buf.Write(body)
	h.bodies = append(h.bodies, buf)
	return h.SetOption(api.OptRequestBody, buf.B)
}

// SetHeaderList builds an owned header-list object and registers it with
// the engine. The list stays live until Release.
func (h *Handle) SetHeaderList(lines []string) error {
	if h.released {
		return api.ErrHandleReleased
	}
	hl := &HeaderList{Lines: append([]string(nil), lines...)}
	h.headers = append(h.headers, hl)
	return h.SetOption(api.OptHeaderList, hl)
}

// OnBody installs a bridged body callback.
func (h *Handle) OnBody(fn func(chunk []byte) int) error {
	return h.SetOption(api.OptWriteFunc, Bridge(fn))
}

// OnHeader installs a bridged header-line callback.
func (h *Handle) OnHeader(fn func(line []byte) int) error {
	return h.SetOption(api.OptHeaderFunc, Bridge(fn))
}

// Perform runs the transfer synchronously. Used only outside the
// scheduler, e.g. for the websocket connect upgrade.
func (h *Handle) Perform() error {
	if h.released {
		return api.ErrHandleReleased
	}
	if st := h.raw.Perform(); !st.OK() {
		return &api.TransferError{Status: st}
	}
	return nil
}

// Release frees the native object and every owned auxiliary resource.
// Idempotent; safe on every exit path including configuration failures.
func (h *Handle) Release() {
	if h.released {
		return
	}
	h.released = true
	for _, buf := range h.bodies {
		bytebufferpool.Put(buf)
	}
	h.bodies = nil
	h.headers = nil
	h.raw.Close()
}

// Released reports whether Release already ran.
func (h *Handle) Released() bool {
	return h.released
}
