// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"sync"
	"time"
)

// Expiry is the idle-sweep ticker described in spec.md §4.2/§4.5: it wakes
// every idleWindow and deletes every stream whose last_touched is older
// than idleWindow. Actual expiry of an idle stream therefore happens
// between idleWindow and 2*idleWindow-1 after its last touch.
//
// The sweeper never holds a lock across the whole scan: it snapshots
// candidate ids per shard under that shard's own read lock, then deletes
// them one at a time under the shard's write lock, so an enqueue into a
// busy shard is never blocked for longer than a single-entry removal
// (spec.md §5 "must not hold a lock that can block an enqueue for longer
// than a single-entry removal").
type Expiry struct {
	reg        *Registry
	idleWindow time.Duration
	clock      Clock

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewExpiry builds an Expiry sweeper for reg. idleWindow <= 0 means the
// sweeper is disabled entirely (spec.md §4.2: "If FSDB_KEY_EXPIRY == 0,
// the sweeper is disabled and streams live until explicitly deleted") —
// Start is then a no-op and Stop returns immediately.
func NewExpiry(reg *Registry, idleWindow time.Duration, clock Clock) *Expiry {
	if clock == nil {
		clock = RealClock
	}
	return &Expiry{
		reg:        reg,
		idleWindow: idleWindow,
		clock:      clock,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine. It is a no-op if
// idleWindow <= 0.
func (e *Expiry) Start() {
	if e.idleWindow <= 0 {
		close(e.done)
		return
	}
	go e.run()
}

// Stop ends the sweep loop and waits for it to exit. Safe to call more
// than once.
func (e *Expiry) Stop() {
	e.once.Do(func() { close(e.stop) })
	<-e.done
}

func (e *Expiry) run() {
	defer close(e.done)

	ticker := time.NewTicker(e.idleWindow)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

func (e *Expiry) sweep() {
	deadline := e.clock.Now().Add(-e.idleWindow).UnixNano()

	for _, sh := range e.reg.shards {
		sh.mu.RLock()
		var expired []uint32
		for id, s := range sh.streams {
			if s.lastTouched.Load() < deadline {
				expired = append(expired, id)
			}
		}
		sh.mu.RUnlock()

		if len(expired) == 0 {
			continue
		}

		for _, id := range expired {
			sh.mu.Lock()
			if s, ok := sh.streams[id]; ok && s.lastTouched.Load() < deadline {
				delete(sh.streams, id)
			}
			sh.mu.Unlock()
		}
	}
}
