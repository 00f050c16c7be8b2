// File: websocket/message.go
// Package websocket implements a client session over the engine's raw
// frame primitives: message framing, ping auto-reply and the close
// handshake, polled outside the multi-transfer scheduler.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package websocket

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/momentics/curlmux/api"
)

// MessageType tags one websocket message.
type MessageType int

const (
	MessageText MessageType = iota + 1
	MessageBinary
	MessagePing
	MessagePong
	MessageClose
)

func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	case MessagePing:
		return "ping"
	case MessagePong:
		return "pong"
	case MessageClose:
		return "close"
	default:
		return "unknown"
	}
}

// Close codes from RFC 6455 section 7.4.1.
const (
	CloseNormalClosure   = 1000
	CloseGoingAway       = 1001
	CloseProtocolError   = 1002
	CloseUnsupportedData = 1003
	CloseNoStatusRcvd    = 1005
	CloseAbnormalClosure = 1006
)

// Message is one immutable decoded websocket message.
type Message struct {
	Type MessageType
	Data []byte
}

// Text returns the payload as a string.
func (m *Message) Text() string {
	return string(m.Data)
}

// CloseEvent records the close handshake outcome. It is set at most once
// per session, from a decoded close frame or a caller-initiated close.
type CloseEvent struct {
	Code     int
	Reason   string
	WasClean bool
}

// frameKind is the result of the classification step applied to every
// decoded frame before it can reach the caller.
type frameKind int

const (
	frameData frameKind = iota
	frameControlAutoHandled
	frameControlTerminal
)

// classifyFrame maps engine frame flags to a message type and a
// handling class. Ping frames are auto-handled, close frames terminate
// the session, everything else is surfaced as data.
func classifyFrame(flags api.FrameFlags) (MessageType, frameKind) {
	switch {
	case flags&api.FramePing != 0:
		return MessagePing, frameControlAutoHandled
	case flags&api.FrameClose != 0:
		return MessageClose, frameControlTerminal
	case flags&api.FramePong != 0:
		return MessagePong, frameData
	case flags&api.FrameText != 0:
		return MessageText, frameData
	default:
		return MessageBinary, frameData
	}
}

// decodeClose parses a close frame payload: 2-byte big-endian code plus
// UTF-8 reason. An empty payload means no status was received.
func decodeClose(payload []byte) (code int, reason string) {
	if len(payload) < 2 {
		return CloseNoStatusRcvd, ""
	}
	code = int(binary.BigEndian.Uint16(payload[:2]))
	rest := payload[2:]
	if utf8.Valid(rest) {
		reason = string(rest)
	}
	return code, reason
}

// encodeClose builds a close frame payload.
func encodeClose(code int, reason string) []byte {
	out := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(out[:2], uint16(code))
	copy(out[2:], reason)
	return out
}
