// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

import "time"

// SessionStatus enumerates the state of a WebSocket session.
type SessionStatus int32

const (
	SessionUnknown SessionStatus = iota
	SessionConnecting
	SessionOpen
	SessionClosing
	SessionClosed
)

func (s SessionStatus) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionOpen:
		return "open"
	case SessionClosing:
		return "closing"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TransferResult describes one finished multiplexed transfer.
type TransferResult struct {
	HandleID   uint64
	Status     Status
	FinishedAt time.Time
}

// OK reports whether the transfer finished with the success status.
func (r TransferResult) OK() bool { return r.Status.OK() }
