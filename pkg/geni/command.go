// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

import (
	"encoding/hex"
	"fmt"
)

// CommandSpec is an immutable descriptor of an outbound request: command
// type, subcommand, and raw parameter bytes. Its identity is the full
// (type, subcommand, parameters) tuple.
type CommandSpec struct {
	Type   uint16
	Sub    uint16
	Params []byte
}

// Key returns a stable string identity for the command, usable as a
// correlation or map key.
func (c CommandSpec) Key() string {
	return fmt.Sprintf("%04x/%04x/%s", c.Type, c.Sub, hex.EncodeToString(c.Params))
}

// String returns a short human-readable form of the command.
func (c CommandSpec) String() string {
	if len(c.Params) == 0 {
		return fmt.Sprintf("cmd %04X sub %04X", c.Type, c.Sub)
	}
	return fmt.Sprintf("cmd %04X sub %04X params %s", c.Type, c.Sub, hex.EncodeToString(c.Params))
}

// Command builder functions create CommandSpec values ready for encoding.
// These cover the commands recovered from packet captures; unknown commands
// can be built directly from the struct.

// NewHandshake creates the connection handshake command. The pump ignores
// queries until this has been written once after connecting. It produces no
// framed response, so send it fire-and-forget.
func NewHandshake() CommandSpec {
	return CommandSpec{
		Type:   CmdTypeHandshake,
		Sub:    SubHandshake,
		Params: []byte{0x94, 0x95, 0x96},
	}
}

// NewDeviceInfoQuery creates a device-info query for the given field
// selector (FieldModel, FieldSerial1, FieldSerial2, FieldName).
func NewDeviceInfoQuery(field byte) CommandSpec {
	return CommandSpec{
		Type:   CmdTypeQuery,
		Sub:    SubDeviceInfo,
		Params: []byte{field},
	}
}

// NewNameQuery creates the device-name query. The response is an ASCII
// string such as "grendal".
func NewNameQuery() CommandSpec {
	return NewDeviceInfoQuery(FieldName)
}

// NewSerialQuery creates the query for one half of the serial number.
// The full serial is the part-1 response concatenated with part 2.
func NewSerialQuery(part int) CommandSpec {
	if part == 2 {
		return NewDeviceInfoQuery(FieldSerial2)
	}
	return NewDeviceInfoQuery(FieldSerial1)
}

// NewModelQuery creates the model-string query. Long model strings arrive
// over several responses and are joined by the caller.
func NewModelQuery() CommandSpec {
	return NewDeviceInfoQuery(FieldModel)
}
