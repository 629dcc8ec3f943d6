// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/faststreamdb/faststreamdb/internal/dispatch"
	"github.com/faststreamdb/faststreamdb/internal/protocol"
	"github.com/faststreamdb/faststreamdb/internal/registry"
)

// session runs one accepted connection: read -> decode -> dispatch ->
// (maybe) encode -> write, looping until the client disconnects or the
// codec hits a fatal error (spec.md §4.4). Requests on one connection are
// processed strictly in receive order and any responses are emitted in
// that same order (spec.md §5) — nothing here reorders across requests,
// since a single goroutine drives the whole loop serially.
type session struct {
	conn          net.Conn
	reg           *registry.Registry
	logger        *slog.Logger
	maxFrameBytes uint32
	bytesPerSec   float64

	ingressBytes *atomic.Int64 // shared server-wide counter, may be nil in tests
}

func (s *session) run(ctx context.Context) {
	defer s.conn.Close()

	if tcpConn, ok := s.conn.(*net.TCPConn); ok {
		// Requests are small and latency-sensitive: coalescing delay would
		// hurt more than it saves (spec.md §4.4).
		_ = tcpConn.SetNoDelay(true)
	}

	var reader io.Reader = s.conn
	reader = newThrottledReader(ctx, reader, s.bytesPerSec)
	br := bufio.NewReader(reader)
	bw := bufio.NewWriter(s.conn)

	remote := s.conn.RemoteAddr().String()
	logger := s.logger.With("remote", remote)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		req, err := protocol.ReadRequest(br, s.maxFrameBytes)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Debug("session closed cleanly")
			} else {
				logger.Debug("session ended on protocol error", "error", err)
			}
			return
		}

		if s.ingressBytes != nil {
			s.ingressBytes.Add(int64(frameByteCount(req)))
		}

		resp, wantsResponse, err := dispatch.Dispatch(req, s.reg)
		if err != nil {
			logger.Warn("dispatch error, closing session", "error", err)
			return
		}
		if !wantsResponse {
			continue
		}

		if err := protocol.WriteResponse(bw, resp); err != nil {
			logger.Debug("session ended on write error", "error", err)
			return
		}
		if err := bw.Flush(); err != nil {
			logger.Debug("session ended on flush error", "error", err)
			return
		}
	}
}

// frameByteCount approximates the wire size of a decoded request, used
// only for the operational stats surface's ingress counter — it is never
// part of the protocol contract itself.
func frameByteCount(req protocol.Request) int {
	const u32 = 4
	n := u32 // packet id

	switch req.Kind {
	case protocol.PacketCreateStream, protocol.PacketDeleteStream,
		protocol.PacketDrainStream, protocol.PacketPeekStream, protocol.PacketCheckState:
		n += u32 // stream_id

	case protocol.PacketEnqueueSingle:
		n += u32 + u32 + len(req.Data) // stream_id, len, data

	case protocol.PacketEnqueueAll:
		n += u32 + len(req.Data) // len, data

	case protocol.PacketEnqueueMultiple, protocol.PacketEnqueueAllExcept:
		n += u32 + len(req.Data) + u32 + u32*len(req.FilterIDs) // len, data, fsize, ids
	}

	return n
}
