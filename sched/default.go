// File: sched/default.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process-wide shared scheduler, created lazily over the default engine.

package sched

import (
	"sync"

	"github.com/momentics/curlmux/api"
)

var (
	sharedMu sync.Mutex
	shared   *Scheduler
)

// Default returns the shared scheduler, creating it on first use from
// the engine installed via api.SetDefaultEngine. A closed shared
// scheduler is replaced on the next call.
func Default() (*Scheduler, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil && !shared.isClosed() {
		return shared, nil
	}
	eng := api.DefaultEngine()
	if eng == nil {
		return nil, api.ErrNoEngine
	}
	s, err := New(eng)
	if err != nil {
		return nil, err
	}
	shared = s
	return shared, nil
}
