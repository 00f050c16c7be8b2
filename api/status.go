// File: api/status.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Flat status-code, option and frame-flag spaces of the native engine.

package api

import "fmt"

// Status is the engine's flat integer status enumeration. Zero means
// success; every other value maps to a domain error kind.
type Status int

const (
	StatusOK Status = 0

	// Subset of transfer-level codes the core distinguishes by name.
	StatusUnsupportedProtocol Status = 1
	StatusCouldntConnect      Status = 7
	StatusOperationTimedout   Status = 28
	StatusSendError           Status = 55
	StatusRecvError           Status = 56
	StatusGotNothing          Status = 52

	// StatusAgain is the distinguished "nothing available yet" code for
	// non-blocking frame I/O. Polling logic must treat it as non-error.
	StatusAgain Status = 81
)

// OK reports whether the status is the success code.
func (s Status) OK() bool { return s == StatusOK }

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAgain:
		return "again"
	case StatusCouldntConnect:
		return "couldn't connect"
	case StatusOperationTimedout:
		return "operation timed out"
	default:
		return fmt.Sprintf("engine status %d", int(s))
	}
}

// Option is the engine's flat option space. Values are opaque to the
// scheduler; only the handle layer assigns meaning.
type Option int

const (
	OptURL Option = iota + 1
	OptWriteFunc
	OptHeaderFunc
	OptRequestBody
	OptHeaderList
	OptConnectOnly
	OptUpgrade
	OptTimeoutMs
	OptConnectTimeoutMs
	OptMaxConnections
)

// FrameFlags is the bitmask describing one WebSocket frame.
type FrameFlags int

const (
	FrameText   FrameFlags = 1 << 0
	FrameBinary FrameFlags = 1 << 1
	FrameCont   FrameFlags = 1 << 2
	FrameClose  FrameFlags = 1 << 3
	FramePing   FrameFlags = 1 << 4
	FramePong   FrameFlags = 1 << 5
)

// IsControl reports whether the flags mark a control frame.
func (f FrameFlags) IsControl() bool {
	return f&(FrameClose|FramePing|FramePong) != 0
}

func (f FrameFlags) String() string {
	switch {
	case f&FrameText != 0:
		return "text"
	case f&FrameBinary != 0:
		return "binary"
	case f&FrameClose != 0:
		return "close"
	case f&FramePing != 0:
		return "ping"
	case f&FramePong != 0:
		return "pong"
	case f&FrameCont != 0:
		return "continuation"
	default:
		return "unknown"
	}
}
