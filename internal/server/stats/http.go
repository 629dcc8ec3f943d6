// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Snapshot is the aggregate, point-in-time view served by the stats
// surface. It never carries stream contents — only counts and totals —
// so it can't be used to observe application-layer data (spec.md §1
// "out of scope": queryability of buffer contents).
type Snapshot struct {
	StreamCount        int     `json:"stream_count"`
	TotalBufferedBytes int64   `json:"total_buffered_bytes"`
	IngressMBps        float64 `json:"ingress_mbps"`
	RSSBytes           uint64  `json:"rss_bytes"`
	CPUPercent         float64 `json:"cpu_percent"`
}

// Provider produces the current Snapshot on demand.
type Provider func() Snapshot

// NewServer builds an *http.Server exposing GET /stats as JSON, gated by
// acl. addr being empty means the caller should not start the server at
// all (FSDB_STATS_ADDR defaults to disabled).
func NewServer(addr string, acl *ACL, provider Provider, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if !acl.Allowed(r.RemoteAddr) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(provider()); err != nil {
			logger.Debug("stats handler: encode error", "error", err)
		}
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}

// Shutdown gracefully stops srv, bounding the wait so process shutdown
// never hangs on a slow client.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
