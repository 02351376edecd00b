// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

import "encoding/binary"

// Fragment is one inbound notification packet. An initial fragment opens a
// logical message and carries the header, declared length, marker, and
// subtype; a continuation fragment is nothing but data bytes appended to
// whatever message is being collected.
type Fragment struct {
	Initial  bool
	Subtype  uint16 // little-endian of the two subtype bytes, initial only
	Declared int    // payload bytes the whole message owes, initial only
	Data     []byte // marker/subtype stripped for initial fragments

	// Raw header bytes (header, length, marker, subtype) of an initial
	// fragment, retained so the reassembler can verify the CRC over the
	// full frame.
	headerBytes []byte
}

// Group returns the first subtype byte (the command group, e.g. 0x07 for
// device info) of an initial fragment.
func (f Fragment) Group() byte {
	return byte(f.Subtype)
}

// Field returns the second subtype byte (the field selector echoed from the
// query) of an initial fragment.
func (f Fragment) Field() byte {
	return byte(f.Subtype >> 8)
}

// DecodeFragment classifies and decodes a single notification packet.
//
// A packet is an initial fragment iff its first byte is 0x24; it then must
// carry the length byte, the f8 e7 marker, and the two subtype bytes. A
// marker mismatch returns ErrInvalidMarker. Any packet not starting with
// 0x24 is a continuation fragment and is returned as pure data.
//
// Note that the data of an initial fragment may include the CRC trailer
// when the packet is also terminal: only the reassembler knows how many
// data bytes are still owed, so the split happens there.
func DecodeFragment(pkt []byte) (Fragment, error) {
	if len(pkt) == 0 || pkt[0] != ResponseHeader {
		return Fragment{Data: pkt}, nil
	}

	// header + length + marker + subtype
	if len(pkt) < 2+responseOverhead {
		return Fragment{}, ErrTruncated
	}
	if pkt[2] != MarkerByte0 || pkt[3] != MarkerByte1 {
		return Fragment{}, ErrInvalidMarker
	}

	declared := int(pkt[1]) - responseOverhead
	if declared < 0 {
		return Fragment{}, ErrInvalidLength
	}

	return Fragment{
		Initial:     true,
		Subtype:     binary.LittleEndian.Uint16(pkt[4:6]),
		Declared:    declared,
		Data:        pkt[6:],
		headerBytes: pkt[:6],
	}, nil
}
