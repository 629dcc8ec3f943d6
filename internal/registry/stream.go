// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"sync"
	"sync/atomic"
)

// stream is one player's outbound byte accumulator. buffer only ever grows
// (append) or is atomically replaced with an empty slice (Drain) — it is
// never partially truncated, per spec.md §3.
type stream struct {
	id uint32

	mu     sync.Mutex
	buffer []byte

	// lastTouched is UnixNano, stored atomically so the expiry sweeper can
	// read it without taking the buffer's own mutex.
	lastTouched atomic.Int64
}

func newStream(id uint32, now int64) *stream {
	s := &stream{id: id}
	s.lastTouched.Store(now)
	return s
}

func (s *stream) touch(now int64) {
	s.lastTouched.Store(now)
}

// append adds data to the buffer and refreshes last_touched. A zero-length
// append is a valid no-op that still refreshes last_touched (spec.md §8).
func (s *stream) append(data []byte, now int64) {
	s.mu.Lock()
	s.buffer = append(s.buffer, data...)
	s.lastTouched.Store(now)
	s.mu.Unlock()
}

// drain swaps the buffer for a fresh empty one and returns the old bytes.
func (s *stream) drain(now int64) []byte {
	s.mu.Lock()
	old := s.buffer
	s.buffer = nil
	s.lastTouched.Store(now)
	s.mu.Unlock()
	if old == nil {
		return []byte{}
	}
	return old
}

// peek returns a copy of the current buffer without mutating it.
func (s *stream) peek(now int64) []byte {
	s.mu.Lock()
	cp := make([]byte, len(s.buffer))
	copy(cp, s.buffer)
	s.lastTouched.Store(now)
	s.mu.Unlock()
	return cp
}

func (s *stream) size() int {
	s.mu.Lock()
	n := len(s.buffer)
	s.mu.Unlock()
	return n
}
