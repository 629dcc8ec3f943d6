// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry implements FastStreamDB's stream registry and enqueue
// engine: a concurrent mapping from 32-bit stream ids to byte-accumulator
// buffers (spec.md §3, §4.2), sharded so that fan-out operations — whose
// cost must scale with the number of streams, not with buffer size — don't
// serialize on one global lock.
package registry

import (
	"sync"
)

// shardCount is the number of buckets the registry is split into. A power
// of two lets shardFor use a mask instead of a modulo. This mirrors the
// teacher's two-tier locking (a package-level structure plus per-entry
// state) rather than a single global map lock, per spec.md §9's suggested
// substrate.
const shardCount = 32

type shard struct {
	mu      sync.RWMutex
	streams map[uint32]*stream
}

// Registry is the set of currently live streams, keyed uniquely by
// StreamId (spec.md §3). All operations are atomic with respect to the
// registry; see spec.md §4.2 for the exact per-operation contract.
type Registry struct {
	shards [shardCount]*shard
	clock  Clock
}

// New creates an empty Registry. clock is injected so tests can control
// "now" without sleeping; production code should pass RealClock.
func New(clock Clock) *Registry {
	if clock == nil {
		clock = RealClock
	}
	r := &Registry{clock: clock}
	for i := range r.shards {
		r.shards[i] = &shard{streams: make(map[uint32]*stream)}
	}
	return r
}

func (r *Registry) shardFor(id uint32) *shard {
	return r.shards[id&(shardCount-1)]
}

func (r *Registry) now() int64 {
	return r.clock.Now().UnixNano()
}

// Create inserts a fresh empty stream if id doesn't already exist. A
// repeat Create(id) is a no-op: spec.md §8 "Create is idempotent."
func (r *Registry) Create(id uint32) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	if _, exists := sh.streams[id]; !exists {
		sh.streams[id] = newStream(id, r.now())
	}
	sh.mu.Unlock()
}

// Delete removes the stream with id, if any. No-op if it doesn't exist.
func (r *Registry) Delete(id uint32) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	delete(sh.streams, id)
	sh.mu.Unlock()
}

func (r *Registry) lookup(id uint32) (*stream, bool) {
	sh := r.shardFor(id)
	sh.mu.RLock()
	s, ok := sh.streams[id]
	sh.mu.RUnlock()
	return s, ok
}

// EnqueueSingle appends data to id's buffer if it exists. A nonexistent
// stream is explicitly not an error (spec.md §4.2, §7 category 3).
func (r *Registry) EnqueueSingle(id uint32, data []byte) {
	if s, ok := r.lookup(id); ok {
		s.append(data, r.now())
	}
}

// EnqueueMultiple appends data to every id in ids that currently exists.
// Duplicate ids in the list still only append once per spec.md §4.2.
func (r *Registry) EnqueueMultiple(ids []uint32, data []byte) {
	seen := make(map[uint32]struct{}, len(ids))
	now := r.now()
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if s, ok := r.lookup(id); ok {
			s.append(data, now)
		}
	}
}

// EnqueueAll appends data to every currently existing stream. Cost scales
// with the number of streams, not with any buffer's size: each shard's
// membership is snapshotted under a brief read lock, then appends happen
// outside any registry-wide lock, so concurrent Create/Delete calls wait
// at most for that one shard's snapshot, never for the appends.
func (r *Registry) EnqueueAll(data []byte) {
	r.enqueueAllExcept(nil, data)
}

// EnqueueAllExcept is EnqueueAll but skips ids present in exclude. Per
// spec.md §4.2/§9, exclude ids are never checked for existence — the set
// is applied purely as a filter over current membership.
func (r *Registry) EnqueueAllExcept(exclude []uint32, data []byte) {
	r.enqueueAllExcept(exclude, data)
}

func (r *Registry) enqueueAllExcept(exclude []uint32, data []byte) {
	var skip map[uint32]struct{}
	if len(exclude) > 0 {
		skip = make(map[uint32]struct{}, len(exclude))
		for _, id := range exclude {
			skip[id] = struct{}{}
		}
	}

	now := r.now()
	for _, sh := range r.shards {
		sh.mu.RLock()
		targets := make([]*stream, 0, len(sh.streams))
		for id, s := range sh.streams {
			if skip != nil {
				if _, excluded := skip[id]; excluded {
					continue
				}
			}
			targets = append(targets, s)
		}
		sh.mu.RUnlock()

		for _, s := range targets {
			s.append(data, now)
		}
	}
}

// Drain atomically swaps id's buffer for an empty one and returns the old
// bytes. Returns an empty slice if id doesn't exist — indistinguishable on
// the wire from "exists but empty", by design (spec.md §9).
func (r *Registry) Drain(id uint32) []byte {
	s, ok := r.lookup(id)
	if !ok {
		return []byte{}
	}
	return s.drain(r.now())
}

// Peek returns a copy of id's buffer without clearing it. Refreshes
// last_touched, same as Drain.
func (r *Registry) Peek(id uint32) []byte {
	s, ok := r.lookup(id)
	if !ok {
		return []byte{}
	}
	return s.peek(r.now())
}

// CheckState reports whether a stream with id currently exists.
func (r *Registry) CheckState(id uint32) bool {
	_, ok := r.lookup(id)
	return ok
}

// Stats is a point-in-time snapshot of registry size, used by the
// operational stats surface (SPEC_FULL.md §2 component H). It is not on
// any hot path: callers are expected to poll it on the order of seconds.
type Stats struct {
	StreamCount        int
	TotalBufferedBytes int64
}

func (r *Registry) Stats() Stats {
	var st Stats
	for _, sh := range r.shards {
		sh.mu.RLock()
		st.StreamCount += len(sh.streams)
		for _, s := range sh.streams {
			st.TotalBufferedBytes += int64(s.size())
		}
		sh.mu.RUnlock()
	}
	return st
}
