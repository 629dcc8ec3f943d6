// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dispatch maps a decoded protocol.Request onto a registry
// operation and, for query requests, an encoded protocol.Response. It is
// the thin translation layer between the wire and the stream registry,
// grounded in the teacher's Handler methods, which are themselves thin
// wrappers translating one decoded frame into exactly one backend call.
package dispatch

import (
	"fmt"

	"github.com/faststreamdb/faststreamdb/internal/protocol"
	"github.com/faststreamdb/faststreamdb/internal/registry"
)

// Dispatch applies req to reg and returns the response to write back, if
// any. The second return value reports whether a response frame is
// expected: false for the six fire-and-forget requests (spec.md §4.3),
// true for Ping/DrainStream/PeekStream/CheckState.
func Dispatch(req protocol.Request, reg *registry.Registry) (protocol.Response, bool, error) {
	switch req.Kind {
	case protocol.PacketPing:
		return protocol.Response{Kind: protocol.PacketPong}, true, nil

	case protocol.PacketCreateStream:
		reg.Create(req.StreamID)
		return protocol.Response{}, false, nil

	case protocol.PacketDeleteStream:
		reg.Delete(req.StreamID)
		return protocol.Response{}, false, nil

	case protocol.PacketEnqueueSingle:
		reg.EnqueueSingle(req.StreamID, req.Data)
		return protocol.Response{}, false, nil

	case protocol.PacketEnqueueMultiple:
		reg.EnqueueMultiple(req.FilterIDs, req.Data)
		return protocol.Response{}, false, nil

	case protocol.PacketEnqueueAll:
		reg.EnqueueAll(req.Data)
		return protocol.Response{}, false, nil

	case protocol.PacketEnqueueAllExcept:
		reg.EnqueueAllExcept(req.FilterIDs, req.Data)
		return protocol.Response{}, false, nil

	case protocol.PacketDrainStream:
		data := reg.Drain(req.StreamID)
		return protocol.Response{Kind: protocol.PacketStreamContents, Data: data}, true, nil

	case protocol.PacketPeekStream:
		data := reg.Peek(req.StreamID)
		return protocol.Response{Kind: protocol.PacketStreamContents, Data: data}, true, nil

	case protocol.PacketCheckState:
		exists := reg.CheckState(req.StreamID)
		return protocol.Response{Kind: protocol.PacketStreamState, StreamID: req.StreamID, IsValid: exists}, true, nil

	default:
		return protocol.Response{}, false, fmt.Errorf("dispatch: unhandled request kind %d", req.Kind)
	}
}
