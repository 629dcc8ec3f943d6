// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package protocol implements FastStreamDB's binary wire protocol: a
// length-prefixed, little-endian framing with a 4-byte packet id at the
// start of every frame. The codec is a pure function over byte streams; it
// owns no state beyond the bufio.Reader the connection loop already holds.
package protocol

import "errors"

// PacketID identifies a frame's shape. Values 0-9 are client requests,
// 10-12 are server responses. See spec.md §6 for the bit-exact layout.
type PacketID uint32

const (
	PacketPing             PacketID = 0
	PacketCreateStream     PacketID = 1
	PacketDeleteStream     PacketID = 2
	PacketEnqueueSingle    PacketID = 3
	PacketEnqueueMultiple  PacketID = 4
	PacketEnqueueAll       PacketID = 5
	PacketEnqueueAllExcept PacketID = 6
	PacketDrainStream      PacketID = 7
	PacketPeekStream       PacketID = 8
	PacketCheckState       PacketID = 9

	PacketPong           PacketID = 10
	PacketStreamContents PacketID = 11
	PacketStreamState    PacketID = 12
)

// DefaultMaxFrameBytes is the implementation-chosen cap on any length field
// in the wire format (§9 "an implementation-chosen cap (say 2^28 bytes) is
// prudent"). It is never observable to a well-behaved client; it only
// rejects frames whose length field is implausible.
const DefaultMaxFrameBytes uint32 = 1 << 28

var (
	ErrUnknownPacket  = errors.New("protocol: unknown packet id")
	ErrFrameTooLarge  = errors.New("protocol: frame length exceeds configured cap")
	ErrTruncatedFrame = errors.New("protocol: truncated frame")
)

// Request is a decoded client frame (packet ids 0-9). Which fields are
// meaningful depends on Kind:
//
//	Ping                -  (none)
//	CreateStream        StreamID
//	DeleteStream        StreamID
//	EnqueueSingle       StreamID, Data
//	EnqueueMultiple     Data, FilterIDs
//	EnqueueAll          Data
//	EnqueueAllExcept    Data, FilterIDs
//	DrainStream         StreamID
//	PeekStream          StreamID
//	CheckState          StreamID
type Request struct {
	Kind      PacketID
	StreamID  uint32
	Data      []byte
	FilterIDs []uint32
}

// Response is an encoded server frame (packet ids 10-12).
//
//	Pong            -  (none)
//	StreamContents  Data
//	StreamState     StreamID, IsValid
type Response struct {
	Kind     PacketID
	StreamID uint32
	Data     []byte
	IsValid  bool
}
