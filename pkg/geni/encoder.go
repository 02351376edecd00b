// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

import (
	"encoding/binary"
	"fmt"
)

// EncodeCommand encodes a command frame ready for a GATT write:
//
//	0x27, length, type(2 LE), subcommand(2 LE), parameters..., crc16(LE)
//
// where length counts everything between the length byte and the CRC.
// Encoding is pure: the same spec and checksum always yield identical bytes.
func EncodeCommand(spec CommandSpec, cs Checksum) ([]byte, error) {
	if cs == nil {
		cs = DefaultChecksum()
	}
	if len(spec.Params) > MaxParameterSize {
		return nil, fmt.Errorf("geni: %d parameter bytes (max %d)", len(spec.Params), MaxParameterSize)
	}

	bodyLen := 4 + len(spec.Params) // type + subcommand + parameters
	frame := make([]byte, 0, 2+bodyLen+CRCSize)
	frame = append(frame, CommandHeader, byte(bodyLen))
	frame = binary.LittleEndian.AppendUint16(frame, spec.Type)
	frame = binary.LittleEndian.AppendUint16(frame, spec.Sub)
	frame = append(frame, spec.Params...)

	crc := cs.Compute(frame)
	frame = binary.LittleEndian.AppendUint16(frame, crc)
	return frame, nil
}

// DecodeCommand is the inverse of EncodeCommand. It validates the header,
// length, and CRC trailer of a command frame and recovers the CommandSpec.
// Used by the offline decoder and by round-trip tests.
func DecodeCommand(frame []byte, cs Checksum) (CommandSpec, error) {
	if cs == nil {
		cs = DefaultChecksum()
	}
	if len(frame) < 2+4+CRCSize {
		return CommandSpec{}, fmt.Errorf("geni: command frame too short (%d bytes)", len(frame))
	}
	if frame[0] != CommandHeader {
		return CommandSpec{}, fmt.Errorf("geni: not a command frame (header 0x%02X)", frame[0])
	}

	bodyLen := int(frame[1])
	if bodyLen < 4 {
		return CommandSpec{}, ErrInvalidLength
	}
	if len(frame) != 2+bodyLen+CRCSize {
		return CommandSpec{}, fmt.Errorf("geni: frame is %d bytes, declared length wants %d", len(frame), 2+bodyLen+CRCSize)
	}

	body := frame[:2+bodyLen]
	crc := binary.LittleEndian.Uint16(frame[2+bodyLen:])
	if !cs.Verify(body, crc) {
		return CommandSpec{}, ErrChecksumMismatch
	}

	spec := CommandSpec{
		Type: binary.LittleEndian.Uint16(frame[2:4]),
		Sub:  binary.LittleEndian.Uint16(frame[4:6]),
	}
	if bodyLen > 4 {
		spec.Params = append([]byte(nil), frame[6:2+bodyLen]...)
	}
	return spec, nil
}
