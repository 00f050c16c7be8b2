// File: fake/multi.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"sync"
	"time"

	"github.com/momentics/curlmux/api"
)

// Step scripts one Perform iteration of the fake multi context: the
// status it returns and the completions it pushes onto the queue.
type Step struct {
	Status      api.Status
	Completions []api.Completion
}

// Multi implements api.MultiContext with a scripted advance sequence.
type Multi struct {
	mu sync.Mutex

	added map[uint64]api.Handle
	steps []Step
	queue []api.Completion

	AddStatus    api.Status
	RemoveStatus api.Status
	WaitStatus   api.Status

	AddCalls     int
	RemoveCalls  int
	PerformCalls int
	WaitCalls    int
	CloseCalls   int
}

// NewMulti creates an empty fake multi context.
func NewMulti() *Multi {
	return &Multi{added: make(map[uint64]api.Handle)}
}

// Script appends advance steps consumed one per Perform call.
func (m *Multi) Script(steps ...Step) {
	m.mu.Lock()
	m.steps = append(m.steps, steps...)
	m.mu.Unlock()
}

func (m *Multi) Add(h api.Handle) api.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddCalls++
	if !m.AddStatus.OK() {
		return m.AddStatus
	}
	m.added[h.ID()] = h
	return api.StatusOK
}

func (m *Multi) Remove(h api.Handle) api.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoveCalls++
	delete(m.added, h.ID())
	return m.RemoveStatus
}

// Registered reports whether the handle is currently added.
func (m *Multi) Registered(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.added[id]
	return ok
}

func (m *Multi) Perform() (api.Status, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PerformCalls++
	if len(m.steps) > 0 {
		step := m.steps[0]
		m.steps = m.steps[1:]
		if !step.Status.OK() {
			return step.Status, len(m.added)
		}
		m.queue = append(m.queue, step.Completions...)
	}
	return api.StatusOK, len(m.added) - len(m.queue)
}

func (m *Multi) Wait(timeout time.Duration) api.Status {
	m.mu.Lock()
	m.WaitCalls++
	st := m.WaitStatus
	m.mu.Unlock()
	if !st.OK() {
		return st
	}
	// Keep test loops cheap regardless of the scheduler's wait timeout.
	if timeout > time.Millisecond {
		timeout = time.Millisecond
	}
	time.Sleep(timeout)
	return api.StatusOK
}

func (m *Multi) ReadCompletion() (api.Completion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return api.Completion{}, false
	}
	c := m.queue[0]
	m.queue = m.queue[1:]
	return c, true
}

func (m *Multi) Close() {
	m.mu.Lock()
	m.CloseCalls++
	m.added = make(map[uint64]api.Handle)
	m.queue = nil
	m.mu.Unlock()
}
