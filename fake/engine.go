// Package fake provides scripted engine implementations for testing
// curlmux components without a native transfer engine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/curlmux/api"
)

// Engine implements api.Engine with scripted handles and multi contexts.
type Engine struct {
	mu     sync.Mutex
	nextID uint64

	NewHandleErr error
	NewMultiErr  error

	// HandleSetup, when set, customizes every handle before it is
	// handed out. Useful to script behavior of handles created inside
	// the component under test.
	HandleSetup func(*Handle)

	Handles []*Handle
	Multis  []*Multi
}

// NewEngine creates an empty fake engine.
func NewEngine() *Engine {
	return &Engine{}
}

// NewHandle returns a fresh fake handle with a unique identity.
func (e *Engine) NewHandle() (api.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.NewHandleErr != nil {
		return nil, e.NewHandleErr
	}
	h := &Handle{id: atomic.AddUint64(&e.nextID, 1)}
	if e.HandleSetup != nil {
		e.HandleSetup(h)
	}
	e.Handles = append(e.Handles, h)
	return h, nil
}

// NewMultiContext returns a fresh fake multi context.
func (e *Engine) NewMultiContext() (api.MultiContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.NewMultiErr != nil {
		return nil, e.NewMultiErr
	}
	m := NewMulti()
	e.Multis = append(e.Multis, m)
	return m, nil
}
