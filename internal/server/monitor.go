// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// processStats is a point-in-time sample of this process's own resource
// usage, surfaced on the stats HTTP endpoint (SPEC_FULL.md §2 component J).
// FastStreamDB trusts producers and enforces no buffer cap (spec.md §5),
// so this is the operator's only signal of memory pressure building up.
type processStats struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
}

// processMonitor periodically samples the running process's RSS and CPU
// usage, grounded in the teacher's SystemMonitor
// (internal/agent/monitor.go) but scoped to this process rather than the
// whole host — FastStreamDB runs as one foreground process per spec.md §6.
type processMonitor struct {
	logger *slog.Logger
	proc   *process.Process

	mu    sync.RWMutex
	stats processStats

	stop chan struct{}
	done chan struct{}
}

func newProcessMonitor(logger *slog.Logger) *processMonitor {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("process monitor disabled: could not open self process handle", "error", err)
		proc = nil
	}
	return &processMonitor{
		logger: logger.With("component", "process_monitor"),
		proc:   proc,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (m *processMonitor) Start(interval time.Duration) {
	if m.proc == nil {
		close(m.done)
		return
	}
	go m.run(interval)
}

func (m *processMonitor) Stop() {
	select {
	case <-m.done:
		return
	default:
	}
	close(m.stop)
	<-m.done
}

func (m *processMonitor) run(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.collect()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.collect()
		}
	}
}

func (m *processMonitor) collect() {
	var st processStats

	if memInfo, err := m.proc.MemoryInfo(); err == nil && memInfo != nil {
		st.RSSBytes = memInfo.RSS
	} else {
		m.logger.Debug("failed to sample RSS", "error", err)
	}

	if pct, err := m.proc.CPUPercent(); err == nil {
		st.CPUPercent = pct
	} else {
		m.logger.Debug("failed to sample CPU percent", "error", err)
	}

	m.mu.Lock()
	m.stats = st
	m.mu.Unlock()
}

func (m *processMonitor) Stats() processStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}
