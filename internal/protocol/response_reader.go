// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package protocol

import (
	"errors"
	"fmt"
	"io"
)

// ReadResponse decodes the next server frame from r. Symmetric to
// ReadRequest; used by tests, both to read the server's replies over a
// socket and to validate the round-trip property in spec.md §8.
func ReadResponse(r io.Reader, maxFrameBytes uint32) (Response, error) {
	id, err := readUint32(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Response{}, io.EOF
		}
		return Response{}, truncated("packet id", err)
	}

	kind := PacketID(id)
	resp := Response{Kind: kind}

	switch kind {
	case PacketPong:
		// no payload

	case PacketStreamContents:
		data, err := readLenPrefixed(r, maxFrameBytes)
		if err != nil {
			return Response{}, err
		}
		resp.Data = data

	case PacketStreamState:
		sid, err := readUint32(r)
		if err != nil {
			return Response{}, truncated("stream_id", err)
		}
		var pad [4]byte
		if _, err := io.ReadFull(r, pad[:]); err != nil {
			return Response{}, truncated("is_valid padding", err)
		}
		resp.StreamID = sid
		resp.IsValid = pad[0] != 0

	default:
		return Response{}, fmt.Errorf("%w: %d", ErrUnknownPacket, id)
	}

	return resp, nil
}
