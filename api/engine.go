// File: api/engine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Contract consumed from the native transfer engine: handle lifecycle,
// single-transfer execution, multiplexing context, and raw WebSocket
// frame I/O. The engine is an opaque collaborator; curlmux only
// sequences and multiplexes calls into it.

package api

import (
	"sync"
	"time"
)

// Handle is one native single-transfer object.
//
// A Handle is not safe for concurrent use. Identity is the address-stable
// ID, never the configured values; a released handle's ID must not be
// reused as a lookup key.
type Handle interface {
	// ID returns an address-stable identity for this handle.
	ID() uint64

	// SetOption applies one native option. Non-zero status means the
	// engine rejected the option/value pair.
	SetOption(opt Option, value any) Status

	// Perform runs the transfer to completion from the engine's
	// perspective. Used only outside a MultiContext.
	Perform() Status

	// Close releases the native object. Idempotent at the engine level.
	Close()

	// RecvFrame reads one WebSocket frame fragment into buf.
	// StatusAgain signals nothing available yet and is not an error.
	RecvFrame(buf []byte) (st Status, n int, flags FrameFlags)

	// SendFrame writes one WebSocket frame with the given flags and
	// reports how many payload bytes the engine accepted.
	SendFrame(payload []byte, flags FrameFlags) (st Status, n int)
}

// Completion is one entry drained from a MultiContext completion queue.
type Completion struct {
	Handle Handle
	Status Status
}

// MultiContext batches many handles for cooperative concurrent progress.
//
// A MultiContext is not safe for concurrent calls; callers must serialize
// all interaction with one context.
type MultiContext interface {
	// Add registers a handle for multiplexed execution. Registering the
	// same handle twice is forbidden by the engine.
	Add(h Handle) Status

	// Remove unregisters a handle. Safe on handles that already
	// completed.
	Remove(h Handle) Status

	// Perform advances all registered transfers one step and reports how
	// many are still running.
	Perform() (st Status, running int)

	// Wait blocks until engine activity or the timeout elapses.
	Wait(timeout time.Duration) Status

	// ReadCompletion pops one finished transfer, or reports false when
	// the queue is drained.
	ReadCompletion() (Completion, bool)

	// Close releases the native multiplexing context.
	Close()
}

// Engine is the factory surface of the native transfer engine.
type Engine interface {
	NewHandle() (Handle, error)
	NewMultiContext() (MultiContext, error)
}

// WriteFunc is the callback signature the engine invokes for streamed
// body and header data. The chunk is only valid for the duration of the
// call; the return value is the number of bytes consumed, and any value
// short of len(chunk) makes the engine fail the transfer.
type WriteFunc func(chunk []byte) int

var (
	defaultEngineMu sync.RWMutex
	defaultEngine   Engine
)

// SetDefaultEngine installs the process-wide engine used by lazily
// created shared components.
func SetDefaultEngine(e Engine) {
	defaultEngineMu.Lock()
	defaultEngine = e
	defaultEngineMu.Unlock()
}

// DefaultEngine returns the process-wide engine, or nil when none was
// installed.
func DefaultEngine() Engine {
	defaultEngineMu.RLock()
	defer defaultEngineMu.RUnlock()
	return defaultEngine
}
