// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

import "time"

// Message is a fully reassembled, CRC-validated logical response. It is
// immutable once minted by the reassembler.
type Message struct {
	subtype   uint16
	raw       []byte
	crc       uint16
	fragments int
	timestamp time.Time
}

// Subtype returns the message subtype from the initial fragment.
func (m *Message) Subtype() uint16 {
	return m.subtype
}

// Group returns the first subtype byte (command group).
func (m *Message) Group() byte {
	return byte(m.subtype)
}

// Field returns the second subtype byte (field selector).
func (m *Message) Field() byte {
	return byte(m.subtype >> 8)
}

// Raw returns the reassembled payload bytes, marker/subtype/CRC stripped.
func (m *Message) Raw() []byte {
	return m.raw
}

// CRC returns the verified checksum carried by the terminal fragment.
func (m *Message) CRC() uint16 {
	return m.crc
}

// Fragments returns how many notification packets made up the message.
func (m *Message) Fragments() int {
	return m.fragments
}

// Timestamp returns the completion time of the message.
func (m *Message) Timestamp() time.Time {
	return m.timestamp
}

// Decode interprets the payload as the given kind. Shorthand for
// DecodeAs(m.Raw(), k).
func (m *Message) Decode(k Kind) (Value, error) {
	return DecodeAs(m.raw, k)
}
