// File: websocket/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session retains exclusive ownership of its handle and polls the
// engine's frame primitives directly: websocket I/O is call-by-handle,
// so it never goes through the multi-transfer scheduler.

package websocket

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eapache/queue"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/momentics/curlmux/api"
	"github.com/momentics/curlmux/handle"
)

// Session is a client websocket connection over one native handle.
//
// Receive is single-owner; Close may be called from any goroutine and
// unblocks in-flight receive polling.
type Session struct {
	id  string
	cfg config

	h      *handle.Handle
	status atomic.Int32

	// hMu serializes engine calls on the handle against Close.
	hMu      sync.Mutex
	buffered *queue.Queue
	recvBuf  []byte

	// Fragment assembly for continued frames.
	fragActive bool
	fragType   MessageType
	frag       []byte

	limiter *rate.Limiter

	closeOnce sync.Once
	doneOnce  sync.Once
	done      chan struct{}

	evtMu    sync.Mutex
	closeEvt *CloseEvent
}

// Connect configures a handle into upgrade mode, executes the handshake
// synchronously and returns an open session. On failure the handle is
// released before the error is returned.
func Connect(eng api.Engine, url string, opts ...Option) (*Session, error) {
	cfg := defaultWSConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	h, err := handle.New(eng)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		h:        h,
		buffered: queue.New(),
		recvBuf:  make([]byte, cfg.recvBufSize),
		limiter:  rate.NewLimiter(rate.Every(cfg.pollInterval), 1),
		done:     make(chan struct{}),
	}
	s.status.Store(int32(api.SessionConnecting))

	if err := s.configure(url); err != nil {
		h.Release()
		return nil, err
	}

	perform := func() error { return h.Perform() }
	if cfg.connectRetries > 0 {
		err = backoff.Retry(perform, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.connectRetries))
	} else {
		err = perform()
	}
	if err != nil {
		h.Release()
		var te *api.TransferError
		if errors.As(err, &te) {
			return nil, &api.WebSocketError{Status: te.Status, Message: "connect failed"}
		}
		return nil, err
	}

	s.status.Store(int32(api.SessionOpen))
	cfg.logger.Debug("websocket open", "session", s.id, "url", url)
	return s, nil
}

func (s *Session) configure(url string) error {
	if err := s.h.SetOption(api.OptURL, url); err != nil {
		return err
	}
	// Upgrade mode: the engine performs the handshake and then leaves the
	// connection in raw frame I/O mode.
	if err := s.h.SetOption(api.OptConnectOnly, 2); err != nil {
		return err
	}
	if len(s.cfg.headers) > 0 {
		if err := s.h.SetHeaderList(s.cfg.headers); err != nil {
			return err
		}
	}
	if s.cfg.connectTimeout > 0 {
		if err := s.h.SetOption(api.OptConnectTimeoutMs, int(s.cfg.connectTimeout/time.Millisecond)); err != nil {
			return err
		}
	}
	return nil
}

// ID returns the session identity used in logs.
func (s *Session) ID() string { return s.id }

// State returns the current session state.
func (s *Session) State() api.SessionStatus {
	return api.SessionStatus(s.status.Load())
}

// CloseEvent returns the recorded close handshake outcome, or nil while
// the session is open.
func (s *Session) CloseEvent() *CloseEvent {
	s.evtMu.Lock()
	defer s.evtMu.Unlock()
	return s.closeEvt
}

// setCloseEvent records the close event at most once.
func (s *Session) setCloseEvent(code int, reason string, clean bool) {
	s.evtMu.Lock()
	if s.closeEvt == nil {
		s.closeEvt = &CloseEvent{Code: code, Reason: reason, WasClean: clean}
	}
	s.evtMu.Unlock()
}

func (s *Session) closedErr() error {
	if evt := s.CloseEvent(); evt != nil {
		return &api.WebSocketClosedError{Code: evt.Code, Reason: evt.Reason}
	}
	return &api.WebSocketClosedError{Code: CloseNoStatusRcvd}
}

// Receive returns the next message. Buffered messages are returned
// immediately; otherwise the engine is polled on a fixed short interval
// until data arrives, the session closes, or the timeout elapses with
// ErrReceiveTimeout. A timeout of zero or less waits indefinitely.
func (s *Session) Receive(timeout time.Duration) (*Message, error) {
	ctx, cancel := s.receiveContext(timeout)
	defer cancel()

	for {
		// Buffered messages are delivered before the closed state is
		// observed: frames decoded ahead of a close are not lost.
		if msg := s.popBuffered(); msg != nil {
			return msg, nil
		}
		if s.State() == api.SessionClosed {
			return nil, s.closedErr()
		}

		msg, err, again := s.tryRecv()
		if err != nil {
			return nil, err
		}
		if msg != nil {
			s.drainAvailable()
			return msg, nil
		}
		if !again {
			continue
		}

		// Nothing available yet; pace the next attempt.
		if err := s.limiter.Wait(ctx); err != nil {
			if s.State() == api.SessionClosed {
				return nil, s.closedErr()
			}
			return nil, api.ErrReceiveTimeout
		}
	}
}

// receiveContext bounds one receive call by the caller's timeout and by
// session close.
func (s *Session) receiveContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (s *Session) popBuffered() *Message {
	s.hMu.Lock()
	defer s.hMu.Unlock()
	if s.buffered.Length() == 0 {
		return nil
	}
	return s.buffered.Remove().(*Message)
}

func (s *Session) pushBuffered(msg *Message) {
	s.hMu.Lock()
	s.buffered.Add(msg)
	s.hMu.Unlock()
}

// drainAvailable consumes every frame the engine already holds so the
// next Receive returns instantly from the buffer. Control frames keep
// their usual handling; a failure here surfaces on the next read.
func (s *Session) drainAvailable() {
	for {
		msg, err, again := s.tryRecv()
		if again || err != nil {
			return
		}
		if msg != nil {
			s.pushBuffered(msg)
		}
	}
}

// tryRecv performs one non-blocking frame read and classifies the
// result. It returns (nil, nil, true) when the engine had nothing yet
// and (nil, nil, false) when a frame was consumed internally.
func (s *Session) tryRecv() (msg *Message, err error, again bool) {
	s.hMu.Lock()
	if s.h.Released() || s.State() == api.SessionClosed {
		s.hMu.Unlock()
		return nil, s.closedErr(), false
	}
	st, n, flags := s.h.Raw().RecvFrame(s.recvBuf)
	s.hMu.Unlock()

	switch {
	case st == api.StatusAgain:
		return nil, nil, true
	case !st.OK():
		return nil, &api.WebSocketError{Status: st, Message: "frame receive failed"}, false
	}

	payload := make([]byte, n)
	copy(payload, s.recvBuf[:n])

	// Continued fragments are assembled before classification applies.
	if flags&api.FrameCont != 0 {
		if !s.fragActive {
			s.fragActive = true
			s.fragType, _ = classifyFrame(flags)
		}
		s.frag = append(s.frag, payload...)
		return nil, nil, false
	}
	if s.fragActive {
		payload = append(s.frag, payload...)
		flags = fragFlags(s.fragType)
		s.fragActive = false
		s.frag = nil
	}

	mt, kind := classifyFrame(flags)
	switch kind {
	case frameControlAutoHandled:
		// Ping: best-effort pong echo, never surfaced.
		s.autoPong(payload)
		return nil, nil, false
	case frameControlTerminal:
		code, reason := decodeClose(payload)
		s.setCloseEvent(code, reason, true)
		s.shutdown()
		s.cfg.logger.Debug("websocket remote close", "session", s.id, "code", code, "reason", reason)
		return nil, s.closedErr(), false
	default:
		return &Message{Type: mt, Data: payload}, nil, false
	}
}

func fragFlags(t MessageType) api.FrameFlags {
	if t == MessageText {
		return api.FrameText
	}
	return api.FrameBinary
}

// autoPong echoes a ping payload. Failures are swallowed: auto-replies
// are best-effort and must not disturb the receive path.
func (s *Session) autoPong(payload []byte) {
	s.hMu.Lock()
	if s.h.Released() {
		s.hMu.Unlock()
		return
	}
	st, _ := s.h.Raw().SendFrame(payload, api.FramePong)
	s.hMu.Unlock()
	if !st.OK() {
		s.cfg.logger.Debug("auto-pong failed", "session", s.id, "status", st.String())
	}
}

// Send transmits a binary message.
func (s *Session) Send(data []byte) error {
	return s.sendFrame(data, api.FrameBinary)
}

// SendText transmits a text message.
func (s *Session) SendText(text string) error {
	return s.sendFrame([]byte(text), api.FrameText)
}

// Ping transmits a ping frame with an optional payload.
func (s *Session) Ping(payload []byte) error {
	return s.sendFrame(payload, api.FramePing)
}

// sendFrame writes one frame. A partial write is surfaced as an error
// and never retried: re-sending would duplicate frame boundaries.
func (s *Session) sendFrame(payload []byte, flags api.FrameFlags) error {
	s.hMu.Lock()
	defer s.hMu.Unlock()
	if s.State() != api.SessionOpen {
		return s.closedErr()
	}
	st, n := s.h.Raw().SendFrame(payload, flags)
	if !st.OK() {
		return &api.WebSocketError{Status: st, Message: "frame send failed"}
	}
	if n != len(payload) {
		return &api.WebSocketError{Status: api.StatusSendError, Message: "partial frame write"}
	}
	return nil
}

// Close performs the caller-initiated close handshake: a best-effort
// close frame, a locally recorded clean close event, handle release and
// the end of any in-flight receive polling. Idempotent.
func (s *Session) Close(code int, reason string) {
	s.closeOnce.Do(func() {
		s.status.Store(int32(api.SessionClosing))

		s.hMu.Lock()
		if !s.h.Released() {
			st, _ := s.h.Raw().SendFrame(encodeClose(code, reason), api.FrameClose)
			if !st.OK() {
				s.cfg.logger.Debug("close frame send failed", "session", s.id, "status", st.String())
			}
		}
		s.hMu.Unlock()

		s.setCloseEvent(code, reason, true)
		s.shutdown()
		s.cfg.logger.Debug("websocket closed", "session", s.id, "code", code)
	})
}

// shutdown moves the session to Closed, releases the handle and wakes
// any poller. Safe to call from both close paths.
func (s *Session) shutdown() {
	s.status.Store(int32(api.SessionClosed))
	s.hMu.Lock()
	s.h.Release()
	s.hMu.Unlock()
	s.doneOnce.Do(func() { close(s.done) })
}

// Messages yields messages until the session closes cleanly, at which
// point iteration ends without error. Any other failure is yielded once
// and terminates the iteration.
func (s *Session) Messages() iter.Seq2[*Message, error] {
	return func(yield func(*Message, error) bool) {
		for {
			msg, err := s.Receive(0)
			if err != nil {
				var closed *api.WebSocketClosedError
				if errors.As(err, &closed) {
					if evt := s.CloseEvent(); evt != nil && evt.WasClean {
						return
					}
				}
				yield(nil, err)
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}
