// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteRequest encodes req onto w. It exists alongside ReadRequest so the
// round-trip property in spec.md §8 ("decode(encode(R)) == R") is testable,
// and so a thin test client can drive the server the same way the game
// server would.
func WriteRequest(w io.Writer, req Request) error {
	if err := writeUint32(w, uint32(req.Kind)); err != nil {
		return fmt.Errorf("writing packet id: %w", err)
	}

	switch req.Kind {
	case PacketPing:
		return nil

	case PacketCreateStream, PacketDeleteStream, PacketDrainStream, PacketPeekStream, PacketCheckState:
		return writeUint32(w, req.StreamID)

	case PacketEnqueueSingle:
		if err := writeUint32(w, req.StreamID); err != nil {
			return fmt.Errorf("writing stream_id: %w", err)
		}
		return writeLenPrefixed(w, req.Data)

	case PacketEnqueueAll:
		return writeLenPrefixed(w, req.Data)

	case PacketEnqueueMultiple, PacketEnqueueAllExcept:
		if err := writeLenPrefixed(w, req.Data); err != nil {
			return err
		}
		return writeIDList(w, req.FilterIDs)

	default:
		return fmt.Errorf("%w: %d", ErrUnknownPacket, req.Kind)
	}
}

// WriteResponse encodes resp onto w.
func WriteResponse(w io.Writer, resp Response) error {
	if err := writeUint32(w, uint32(resp.Kind)); err != nil {
		return fmt.Errorf("writing packet id: %w", err)
	}

	switch resp.Kind {
	case PacketPong:
		return nil

	case PacketStreamContents:
		return writeLenPrefixed(w, resp.Data)

	case PacketStreamState:
		if err := writeUint32(w, resp.StreamID); err != nil {
			return fmt.Errorf("writing stream_id: %w", err)
		}
		var valid byte
		if resp.IsValid {
			valid = 1
		}
		if _, err := w.Write([]byte{valid, 0, 0, 0}); err != nil {
			return fmt.Errorf("writing is_valid padding: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("%w: %d", ErrUnknownPacket, resp.Kind)
	}
}

func writeLenPrefixed(w io.Writer, data []byte) error {
	if err := writeUint32(w, uint32(len(data))); err != nil {
		return fmt.Errorf("writing length: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}
	return nil
}

func writeIDList(w io.Writer, ids []uint32) error {
	if err := writeUint32(w, uint32(len(ids))); err != nil {
		return fmt.Errorf("writing filter_size: %w", err)
	}
	for _, id := range ids {
		if err := writeUint32(w, id); err != nil {
			return fmt.Errorf("writing filter_id: %w", err)
		}
	}
	return nil
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}
