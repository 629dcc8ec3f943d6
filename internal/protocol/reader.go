// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ReadRequest decodes the next client frame from r. It never allocates a
// payload buffer until the length field that governs it has been read and
// validated against maxFrameBytes (streaming parse, per spec.md §4.1).
//
// A clean disconnect exactly between frames is reported as io.EOF; any
// read error once a frame has started is wrapped in ErrTruncatedFrame. An
// unknown packet id yields ErrUnknownPacket and a length field over the cap
// yields ErrFrameTooLarge. All of these end the session without affecting
// any other connection or the registry.
func ReadRequest(r io.Reader, maxFrameBytes uint32) (Request, error) {
	id, err := readUint32(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Request{}, io.EOF
		}
		return Request{}, fmt.Errorf("reading packet id: %w: %v", ErrTruncatedFrame, err)
	}

	kind := PacketID(id)
	req := Request{Kind: kind}

	switch kind {
	case PacketPing:
		// no payload

	case PacketCreateStream, PacketDeleteStream, PacketDrainStream, PacketPeekStream, PacketCheckState:
		sid, err := readUint32(r)
		if err != nil {
			return Request{}, truncated("stream_id", err)
		}
		req.StreamID = sid

	case PacketEnqueueSingle:
		sid, err := readUint32(r)
		if err != nil {
			return Request{}, truncated("stream_id", err)
		}
		data, err := readLenPrefixed(r, maxFrameBytes)
		if err != nil {
			return Request{}, err
		}
		req.StreamID = sid
		req.Data = data

	case PacketEnqueueAll:
		data, err := readLenPrefixed(r, maxFrameBytes)
		if err != nil {
			return Request{}, err
		}
		req.Data = data

	case PacketEnqueueMultiple, PacketEnqueueAllExcept:
		data, err := readLenPrefixed(r, maxFrameBytes)
		if err != nil {
			return Request{}, err
		}
		ids, err := readIDList(r, maxFrameBytes)
		if err != nil {
			return Request{}, err
		}
		req.Data = data
		req.FilterIDs = ids

	default:
		return Request{}, fmt.Errorf("%w: %d", ErrUnknownPacket, id)
	}

	return req, nil
}

// readLenPrefixed reads a uint32 length followed by that many bytes.
func readLenPrefixed(r io.Reader, maxFrameBytes uint32) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, truncated("length", err)
	}
	if n > maxFrameBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, truncated("payload", err)
	}
	return buf, nil
}

// readIDList reads a uint32 count followed by that many little-endian
// uint32 stream ids.
func readIDList(r io.Reader, maxFrameBytes uint32) ([]uint32, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, truncated("filter_size", err)
	}
	// Guard against an implausible id count the same way byte lengths are
	// guarded: each id is 4 bytes, so cap the count at maxFrameBytes/4.
	if n > maxFrameBytes/4 {
		return nil, fmt.Errorf("%w: %d ids", ErrFrameTooLarge, n)
	}
	if n == 0 {
		return nil, nil
	}
	ids := make([]uint32, n)
	for i := range ids {
		v, err := readUint32(r)
		if err != nil {
			return nil, truncated("filter_id", err)
		}
		ids[i] = v
	}
	return ids, nil
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func truncated(field string, err error) error {
	return fmt.Errorf("reading %s: %w: %v", field, ErrTruncatedFrame, err)
}
