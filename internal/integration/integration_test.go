// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package integration replays the literal byte scenarios from spec.md §8
// end-to-end against a running server, over a real TCP socket.
package integration

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/faststreamdb/faststreamdb/internal/config"
	"github.com/faststreamdb/faststreamdb/internal/protocol"
	"github.com/faststreamdb/faststreamdb/internal/server"
)

func startServer(t *testing.T, cfg *config.Config) (net.Conn, func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.RunWithListener(ctx, ln, cfg, logger); err != nil {
			t.Errorf("RunWithListener: %v", err)
		}
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		cancel()
		t.Fatalf("dial: %v", err)
	}

	return conn, func() {
		conn.Close()
		cancel()
		<-done
	}
}

func defaultTestConfig() *config.Config {
	return &config.Config{
		ConnectionMode: config.ModeTCP,
		MaxFrameBytes:  protocol.DefaultMaxFrameBytes,
	}
}

func readN(t *testing.T, conn net.Conn, n int) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("reading %d bytes: %v", n, err)
	}
	return buf
}

// TestScenario1_Ping replays spec.md §8 scenario 1: client sends
// 00 00 00 00, server replies 0A 00 00 00.
func TestScenario1_Ping(t *testing.T) {
	conn, cleanup := startServer(t, defaultTestConfig())
	defer cleanup()

	if _, err := conn.Write([]byte{0x00, 0x00, 0x00, 0x00}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := readN(t, conn, 4)
	want := []byte{0x0A, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

// TestScenario2_CreateAndCheckState replays spec.md §8 scenario 2.
func TestScenario2_CreateAndCheckState(t *testing.T) {
	conn, cleanup := startServer(t, defaultTestConfig())
	defer cleanup()

	create := []byte{0x01, 0x00, 0x00, 0x00, 0x2A, 0x00, 0x00, 0x00}
	check := []byte{0x09, 0x00, 0x00, 0x00, 0x2A, 0x00, 0x00, 0x00}
	if _, err := conn.Write(append(create, check...)); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := readN(t, conn, 12)
	want := []byte{0x0C, 0x00, 0x00, 0x00, 0x2A, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

// TestScenario3_EnqueueAndDrain replays spec.md §8 scenario 3.
func TestScenario3_EnqueueAndDrain(t *testing.T) {
	conn, cleanup := startServer(t, defaultTestConfig())
	defer cleanup()

	create := []byte{0x01, 0x00, 0x00, 0x00, 0x2A, 0x00, 0x00, 0x00}
	enqueue := []byte{0x03, 0x00, 0x00, 0x00, 0x2A, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x68, 0x69}
	drain := []byte{0x07, 0x00, 0x00, 0x00, 0x2A, 0x00, 0x00, 0x00}

	var out bytes.Buffer
	out.Write(create)
	out.Write(enqueue)
	out.Write(drain)
	if _, err := conn.Write(out.Bytes()); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := readN(t, conn, 10)
	want := []byte{0x0B, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x68, 0x69}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}

	if _, err := conn.Write(drain); err != nil {
		t.Fatalf("write second drain: %v", err)
	}
	got = readN(t, conn, 8)
	want = []byte{0x0B, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("second drain: got % X, want % X", got, want)
	}
}

// TestScenario4_FanOut replays spec.md §8 scenario 4.
func TestScenario4_FanOut(t *testing.T) {
	conn, cleanup := startServer(t, defaultTestConfig())
	defer cleanup()

	for _, id := range [][]byte{
		{0x01, 0x00, 0x00, 0x00},
		{0x02, 0x00, 0x00, 0x00},
		{0x03, 0x00, 0x00, 0x00},
	} {
		create := append([]byte{0x01, 0x00, 0x00, 0x00}, id...)
		if _, err := conn.Write(create); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	enqueueAll := []byte{0x05, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x58}
	if _, err := conn.Write(enqueueAll); err != nil {
		t.Fatalf("enqueue all: %v", err)
	}

	for _, id := range []byte{2, 1, 3} {
		drain := []byte{0x07, 0x00, 0x00, 0x00, id, 0x00, 0x00, 0x00}
		if _, err := conn.Write(drain); err != nil {
			t.Fatalf("drain %d: %v", id, err)
		}
		got := readN(t, conn, 9)
		want := []byte{0x0B, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x58}
		if !bytes.Equal(got, want) {
			t.Fatalf("drain %d: got % X, want % X", id, got, want)
		}
	}
}

// TestScenario5_ExceptFanOut replays spec.md §8 scenario 5, continuing
// from the same state as scenario 4 (Create 1,2,3, then EnqueueAll("X")
// already drained — here we set up fresh state and apply EnqueueAllExcept).
func TestScenario5_ExceptFanOut(t *testing.T) {
	conn, cleanup := startServer(t, defaultTestConfig())
	defer cleanup()

	for _, id := range []byte{1, 2, 3} {
		create := []byte{0x01, 0x00, 0x00, 0x00, id, 0x00, 0x00, 0x00}
		if _, err := conn.Write(create); err != nil {
			t.Fatalf("create %d: %v", id, err)
		}
	}

	except := []byte{
		0x06, 0x00, 0x00, 0x00, // packet id
		0x01, 0x00, 0x00, 0x00, 0x58, // enqueue_size=1, "X"
		0x02, 0x00, 0x00, 0x00, // filter_size=2
		0x01, 0x00, 0x00, 0x00, // id 1
		0x03, 0x00, 0x00, 0x00, // id 3
	}
	if _, err := conn.Write(except); err != nil {
		t.Fatalf("enqueue all except: %v", err)
	}

	drain2 := []byte{0x07, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
	if _, err := conn.Write(drain2); err != nil {
		t.Fatalf("drain 2: %v", err)
	}
	got := readN(t, conn, 9)
	want := []byte{0x0B, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x58}
	if !bytes.Equal(got, want) {
		t.Fatalf("drain 2: got % X, want % X", got, want)
	}

	for _, id := range []byte{1, 3} {
		drain := []byte{0x07, 0x00, 0x00, 0x00, id, 0x00, 0x00, 0x00}
		if _, err := conn.Write(drain); err != nil {
			t.Fatalf("drain %d: %v", id, err)
		}
		got := readN(t, conn, 8)
		want := []byte{0x0B, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
		if !bytes.Equal(got, want) {
			t.Fatalf("drain %d: excluded stream should be empty, got % X, want % X", id, got, want)
		}
	}
}

// TestScenario6_IdleExpiry replays spec.md §8 scenario 6: after
// FSDB_KEY_EXPIRY seconds of idle time (here scaled down for test speed),
// CheckState on an untouched stream returns false.
func TestScenario6_IdleExpiry(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.KeyExpiry = 100 * time.Millisecond

	conn, cleanup := startServer(t, cfg)
	defer cleanup()

	create := []byte{0x01, 0x00, 0x00, 0x00, 0x07, 0x00, 0x00, 0x00}
	if _, err := conn.Write(create); err != nil {
		t.Fatalf("create: %v", err)
	}

	time.Sleep(300 * time.Millisecond) // > 2*T_expiry, per spec.md §4.2's bound

	check := []byte{0x09, 0x00, 0x00, 0x00, 0x07, 0x00, 0x00, 0x00}
	if _, err := conn.Write(check); err != nil {
		t.Fatalf("check: %v", err)
	}
	got := readN(t, conn, 12)
	want := []byte{0x0C, 0x00, 0x00, 0x00, 0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

// TestRoundTrip_RequestsAndResponses exercises spec.md §8's
// decode(encode(x)) == x property for every request and response shape,
// via protocol.Write*/Read* directly against an in-memory bytes.Buffer.
func TestRoundTrip_RequestsAndResponses(t *testing.T) {
	requests := []protocol.Request{
		{Kind: protocol.PacketPing},
		{Kind: protocol.PacketCreateStream, StreamID: 1},
		{Kind: protocol.PacketDeleteStream, StreamID: 2},
		{Kind: protocol.PacketEnqueueSingle, StreamID: 3, Data: []byte("abc")},
		{Kind: protocol.PacketEnqueueMultiple, Data: []byte("xyz"), FilterIDs: []uint32{1, 2, 3}},
		{Kind: protocol.PacketEnqueueAll, Data: []byte("")},
		{Kind: protocol.PacketEnqueueAllExcept, Data: []byte("q"), FilterIDs: nil},
		{Kind: protocol.PacketDrainStream, StreamID: 9},
		{Kind: protocol.PacketPeekStream, StreamID: 10},
		{Kind: protocol.PacketCheckState, StreamID: 11},
	}

	for _, req := range requests {
		var buf bytes.Buffer
		if err := protocol.WriteRequest(&buf, req); err != nil {
			t.Fatalf("%v: WriteRequest: %v", req.Kind, err)
		}
		got, err := protocol.ReadRequest(&buf, protocol.DefaultMaxFrameBytes)
		if err != nil {
			t.Fatalf("%v: ReadRequest: %v", req.Kind, err)
		}
		if got.Kind != req.Kind || got.StreamID != req.StreamID ||
			!bytes.Equal(got.Data, req.Data) || !equalUint32Slices(got.FilterIDs, req.FilterIDs) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, req)
		}
	}

	responses := []protocol.Response{
		{Kind: protocol.PacketPong},
		{Kind: protocol.PacketStreamContents, Data: []byte("hello")},
		{Kind: protocol.PacketStreamState, StreamID: 42, IsValid: true},
		{Kind: protocol.PacketStreamState, StreamID: 7, IsValid: false},
	}
	for _, resp := range responses {
		var buf bytes.Buffer
		if err := protocol.WriteResponse(&buf, resp); err != nil {
			t.Fatalf("%v: WriteResponse: %v", resp.Kind, err)
		}
		got, err := protocol.ReadResponse(&buf, protocol.DefaultMaxFrameBytes)
		if err != nil {
			t.Fatalf("%v: ReadResponse: %v", resp.Kind, err)
		}
		if got.Kind != resp.Kind || got.StreamID != resp.StreamID ||
			got.IsValid != resp.IsValid || !bytes.Equal(got.Data, resp.Data) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, resp)
		}
	}
}

func equalUint32Slices(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
