// File: handle/callback.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Callback bridging between the engine's chunk/consumed contract and
// caller-supplied functions. The engine buffer is only valid for the
// duration of the call, so every bridge hands callers an owned copy.

package handle

import (
	"github.com/valyala/bytebufferpool"

	"github.com/momentics/curlmux/api"
)

// Bridge adapts a "bytes consumed" callback to the engine signature.
// Zero-length invocations return zero without calling fn. The chunk
// passed to fn is an owned copy; fn may retain it.
func Bridge(fn func(chunk []byte) int) api.WriteFunc {
	return func(chunk []byte) int {
		if len(chunk) == 0 {
			return 0
		}
		owned := make([]byte, len(chunk))
		copy(owned, chunk)
		return fn(owned)
	}
}

// BridgeSink adapts a callback that reports no consumed count. The full
// chunk length is reported as consumed; under-reporting would make the
// engine fail the transfer.
func BridgeSink(fn func(chunk []byte)) api.WriteFunc {
	return func(chunk []byte) int {
		if len(chunk) == 0 {
			return 0
		}
		owned := make([]byte, len(chunk))
		copy(owned, chunk)
		fn(owned)
		return len(chunk)
	}
}

// BodySink accumulates streamed body chunks into a pooled buffer.
type BodySink struct {
	buf *bytebufferpool.ByteBuffer
}

// NewBodySink creates an empty sink backed by the shared buffer pool.
func NewBodySink() *BodySink {
	return &BodySink{buf: bytebufferpool.Get()}
}

// WriteFunc returns the engine-facing callback feeding this sink.
func (s *BodySink) WriteFunc() api.WriteFunc {
	return func(chunk []byte) int {
		if len(chunk) == 0 {
			return 0
		}
		_, _ = s.buf.Write(chunk)
		return len(chunk)
	}
}

// Bytes returns a copy of the accumulated body.
func (s *BodySink) Bytes() []byte {
	out := make([]byte, len(s.buf.B))
	copy(out, s.buf.B)
	return out
}

// Len returns the number of accumulated bytes.
func (s *BodySink) Len() int {
	return len(s.buf.B)
}

// Release returns the backing buffer to the pool. The sink must not be
// used afterwards.
func (s *BodySink) Release() {
	if s.buf != nil {
		bytebufferpool.Put(s.buf)
		s.buf = nil
	}
}
