// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

// session_test.go — Unit tests for the websocket session poll loop,
// control-frame handling and close handshake.
package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/curlmux/api"
	"github.com/momentics/curlmux/fake"
)

func newOpenSession(t *testing.T, opts ...Option) (*Session, *fake.Engine, *fake.Handle) {
	t.Helper()
	eng := fake.NewEngine()
	opts = append([]Option{WithPollInterval(time.Millisecond)}, opts...)
	s, err := Connect(eng, "wss://example.com/feed", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(CloseNormalClosure, "") })
	return s, eng, eng.Handles[0]
}

// TestConnect_ConfiguresUpgrade places the handle into upgrade mode and
// performs the handshake synchronously.
func TestConnect_ConfiguresUpgrade(t *testing.T) {
	s, _, raw := newOpenSession(t, WithHeaders("Origin: https://example.com"))

	assert.Equal(t, api.SessionOpen, s.State())

	var sawURL, sawUpgrade, sawHeaders bool
	for _, call := range raw.Options {
		switch call.Opt {
		case api.OptURL:
			sawURL = call.Value.(string) == "wss://example.com/feed"
		case api.OptConnectOnly:
			sawUpgrade = true
		case api.OptHeaderList:
			sawHeaders = true
		}
	}
	assert.True(t, sawURL, "url option missing")
	assert.True(t, sawUpgrade, "upgrade mode option missing")
	assert.True(t, sawHeaders, "header list missing")
}

// TestConnect_FailureReleasesHandle surfaces WebSocketError and releases
// the handle when the upgrade fails.
func TestConnect_FailureReleasesHandle(t *testing.T) {
	eng := fake.NewEngine()
	eng.HandleSetup = func(h *fake.Handle) { h.PerformStat = api.StatusCouldntConnect }

	_, err := Connect(eng, "wss://unreachable")
	var wsErr *api.WebSocketError
	require.ErrorAs(t, err, &wsErr)
	assert.Equal(t, api.StatusCouldntConnect, wsErr.Status)
	assert.Equal(t, 1, eng.Handles[0].CloseCalls, "handle must be released on failure")
}

// TestReceive_PingAutoPong echoes a ping payload as a pong and never
// surfaces the ping to the caller.
func TestReceive_PingAutoPong(t *testing.T) {
	s, _, raw := newOpenSession(t)

	raw.PushFrame(api.FramePing, []byte("x"))
	raw.PushFrame(api.FrameText, []byte("hello"))

	msg, err := s.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, MessageText, msg.Type)
	assert.Equal(t, "hello", msg.Text())

	sent := raw.SentFrames()
	require.Len(t, sent, 1)
	assert.Equal(t, api.FramePong, sent[0].Flags)
	assert.Equal(t, []byte("x"), sent[0].Payload)
}

// TestReceive_Timeout rejects within a bounded margin of the requested
// timeout when no frames are available.
func TestReceive_Timeout(t *testing.T) {
	s, _, _ := newOpenSession(t)

	start := time.Now()
	_, err := s.Receive(100 * time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, api.ErrReceiveTimeout)
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

// TestReceive_CloseFrame decodes code and reason, records a clean close
// event and transitions the session to Closed.
func TestReceive_CloseFrame(t *testing.T) {
	s, _, raw := newOpenSession(t)

	raw.PushFrame(api.FrameClose, encodeClose(CloseGoingAway, "bye"))

	_, err := s.Receive(time.Second)
	var closed *api.WebSocketClosedError
	require.ErrorAs(t, err, &closed)
	assert.Equal(t, CloseGoingAway, closed.Code)
	assert.Equal(t, "bye", closed.Reason)

	evt := s.CloseEvent()
	require.NotNil(t, evt)
	assert.Equal(t, CloseEvent{Code: 1001, Reason: "bye", WasClean: true}, *evt)
	assert.Equal(t, api.SessionClosed, s.State())
	assert.Equal(t, 1, raw.CloseCalls, "handle released on remote close")
}

// TestReceive_BufferedBurst drains every available frame on one poll and
// serves later receives from the buffer.
func TestReceive_BufferedBurst(t *testing.T) {
	s, _, raw := newOpenSession(t)

	raw.PushFrame(api.FrameText, []byte("one"))
	raw.PushFrame(api.FrameText, []byte("two"))
	raw.PushFrame(api.FrameBinary, []byte{3})

	msg, err := s.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "one", msg.Text())

	// Subsequent receives must not need the engine at all.
	raw.RecvFunc = func(buf []byte) (api.Status, int, api.FrameFlags) {
		return api.StatusRecvError, 0, 0
	}

	msg, err = s.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "two", msg.Text())

	msg, err = s.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, MessageBinary, msg.Type)

	_, err = s.Receive(time.Second)
	var wsErr *api.WebSocketError
	assert.ErrorAs(t, err, &wsErr)
}

// TestReceive_FragmentedMessage reassembles continued frames into one
// message before classification.
func TestReceive_FragmentedMessage(t *testing.T) {
	s, _, raw := newOpenSession(t)

	raw.PushFrame(api.FrameText|api.FrameCont, []byte("hel"))
	raw.PushFrame(api.FrameText, []byte("lo"))

	msg, err := s.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, MessageText, msg.Type)
	assert.Equal(t, "hello", msg.Text())
}

// TestSend_PartialWrite surfaces short writes instead of retrying.
func TestSend_PartialWrite(t *testing.T) {
	s, _, raw := newOpenSession(t)

	raw.SendFunc = func(payload []byte, flags api.FrameFlags) (api.Status, int) {
		return api.StatusOK, len(payload) - 1
	}

	err := s.Send([]byte("abcdef"))
	var wsErr *api.WebSocketError
	require.ErrorAs(t, err, &wsErr)
	assert.Contains(t, wsErr.Message, "partial")
}

// TestSend_FrameFlags maps each send variant to its frame flag.
func TestSend_FrameFlags(t *testing.T) {
	s, _, raw := newOpenSession(t)

	require.NoError(t, s.SendText("t"))
	require.NoError(t, s.Send([]byte{1}))
	require.NoError(t, s.Ping([]byte("p")))

	sent := raw.SentFrames()
	require.Len(t, sent, 3)
	assert.Equal(t, api.FrameText, sent[0].Flags)
	assert.Equal(t, api.FrameBinary, sent[1].Flags)
	assert.Equal(t, api.FramePing, sent[2].Flags)
}

// TestClose_Idempotent sends one best-effort close frame, records a
// clean local close event and releases the handle exactly once.
func TestClose_Idempotent(t *testing.T) {
	s, _, raw := newOpenSession(t)

	s.Close(CloseNormalClosure, "done")
	s.Close(CloseNormalClosure, "done")

	evt := s.CloseEvent()
	require.NotNil(t, evt)
	assert.Equal(t, CloseNormalClosure, evt.Code)
	assert.Equal(t, "done", evt.Reason)
	assert.True(t, evt.WasClean)
	assert.Equal(t, api.SessionClosed, s.State())
	assert.Equal(t, 1, raw.CloseCalls)

	sent := raw.SentFrames()
	require.Len(t, sent, 1)
	assert.Equal(t, api.FrameClose, sent[0].Flags)
	assert.Equal(t, encodeClose(CloseNormalClosure, "done"), sent[0].Payload)

	err := s.Send([]byte("late"))
	var closed *api.WebSocketClosedError
	assert.ErrorAs(t, err, &closed)
}

// TestMessages_CleanCloseEndsIteration yields messages until a clean
// close, then terminates without error.
func TestMessages_CleanCloseEndsIteration(t *testing.T) {
	s, _, raw := newOpenSession(t)

	raw.PushFrame(api.FrameText, []byte("a"))
	raw.PushFrame(api.FrameText, []byte("b"))
	raw.PushFrame(api.FrameClose, encodeClose(CloseNormalClosure, ""))

	var got []string
	for msg, err := range s.Messages() {
		require.NoError(t, err, "clean close must not surface an error")
		got = append(got, msg.Text())
	}
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, api.SessionClosed, s.State())
}

// TestDecodeClose_NoStatus maps an empty close payload to 1005.
func TestDecodeClose_NoStatus(t *testing.T) {
	code, reason := decodeClose(nil)
	assert.Equal(t, CloseNoStatusRcvd, code)
	assert.Empty(t, reason)
}
