// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error kinds shared by the scheduler, handle and websocket layers.

package api

import "fmt"

// Sentinel errors used across the library.
var (
	ErrDuplicateHandle = fmt.Errorf("handle already submitted")
	ErrSchedulerClosed = fmt.Errorf("scheduler is closed")
	ErrCancelled       = fmt.Errorf("transfer cancelled")
	ErrHandleReleased  = fmt.Errorf("handle is released")
	ErrReceiveTimeout  = fmt.Errorf("websocket receive timeout")
	ErrNoEngine        = fmt.Errorf("no engine installed")
)

// ConfigurationError reports that the engine rejected an option/value pair.
type ConfigurationError struct {
	Opt    Option
	Status Status
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("engine rejected option %d: %s", int(e.Opt), e.Status)
}

// TransferError reports a transfer that finished with a non-success
// engine status.
type TransferError struct {
	Status Status
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed: %s", e.Status)
}

// WebSocketError reports a failed websocket operation, including partial
// frame writes, which are surfaced rather than retried.
type WebSocketError struct {
	Status  Status
	Message string
}

func (e *WebSocketError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("websocket: %s (%s)", e.Message, e.Status)
	}
	return fmt.Sprintf("websocket: %s", e.Status)
}

// WebSocketClosedError reports an operation on a closed session, carrying
// the close handshake details when known.
type WebSocketClosedError struct {
	Code   int
	Reason string
}

func (e *WebSocketClosedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("websocket closed: %d %q", e.Code, e.Reason)
	}
	return fmt.Sprintf("websocket closed: %d", e.Code)
}
