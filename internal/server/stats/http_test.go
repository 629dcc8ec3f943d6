// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
)

func TestStatsHandler_AllowedIPGetsSnapshot(t *testing.T) {
	acl := NewACL(parseCIDRs(t, "127.0.0.1/32"))
	provider := func() Snapshot { return Snapshot{StreamCount: 3, TotalBufferedBytes: 42} }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := NewServer("", acl, provider, logger)

	req := httptest.NewRequest("GET", "/stats", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.StreamCount != 3 || got.TotalBufferedBytes != 42 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestStatsHandler_DeniedIPGets403(t *testing.T) {
	acl := NewACL(parseCIDRs(t, "10.0.0.0/8"))
	provider := func() Snapshot { return Snapshot{} }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := NewServer("", acl, provider, logger)

	req := httptest.NewRequest("GET", "/stats", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != 403 {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
