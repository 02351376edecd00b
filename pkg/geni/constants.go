// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

// Package geni provides a Go implementation of the Grundfos SCALA BLE
// wire protocol.
//
// The protocol is a length-prefixed, CRC-checked framing layer carried over
// GATT writes and notifications on a single characteristic. Commands are
// written as self-contained frames; responses arrive as one or more
// notification fragments that must be reassembled before the payload can be
// decoded. This package provides command encoding, fragment decoding,
// reassembly, payload decoding, and a single-in-flight request/response
// correlator.
//
// The command table is open ended: the framing, reassembly, and CRC engine
// work for any command code, and the named constants below cover only the
// commands recovered from packet captures so far.
package geni

// Protocol framing bytes
const (
	CommandHeader  = 0x27 // first byte of an outbound command frame
	ResponseHeader = 0x24 // first byte of an initial response fragment
	MarkerByte0    = 0xF8
	MarkerByte1    = 0xE7
)

// Frame size limits
const (
	MaxParameterSize = 250 // length byte is a u8, minus type+subcommand
	MarkerSize       = 2
	SubtypeSize      = 2
	CRCSize          = 2

	// Bytes of the declared length consumed by marker and subtype rather
	// than payload data.
	responseOverhead = MarkerSize + SubtypeSize
)

// CRC-16 configuration for the default (provisional) checksum strategy
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Command types (first two bytes after the length, little-endian)
const (
	CmdTypeQuery     = 0xF8E7 // device information queries
	CmdTypeHandshake = 0xF8FF // connection handshake
)

// Subcommands
const (
	SubDeviceInfo = 0x0107 // one parameter byte selects the field
	SubHandshake  = 0x0302
)

// Device-info field selectors (single parameter byte of SubDeviceInfo
// queries, echoed back as the second subtype byte of the response)
const (
	FieldModel   = 0x01 // model string, may span several responses
	FieldSerial1 = 0x08 // serial number, first half
	FieldSerial2 = 0x09 // serial number, second half
	FieldName    = 0x11 // user-assigned device name
)

// GroupDeviceInfo is the first subtype byte of device-info responses.
const GroupDeviceInfo = 0x07

// BLE GATT identifiers for the SCALA custom service. The pump exposes the
// protocol on a single characteristic carrying both writes and
// notifications; some firmware revisions split the two.
const (
	ServiceUUID1 = "9d410018-35d6-f4ad-ad60-e7bd8dc491c0"
	ServiceUUID2 = "9d410019-35d6-f4ad-ad60-e7bd8dc491c0"
)

// Reassembler states (internal)
const (
	stateIdle = iota
	stateCollecting
)
