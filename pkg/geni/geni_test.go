// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

import (
	"bytes"
	"errors"
	"testing"
)

// ============================================================
// CRC Tests
// ============================================================
//
// The default checksum strategy is provisional: the pump's real polynomial
// has not been confirmed from captures. These tests pin the placeholder
// (CRC-16/CCITT-FALSE) so a future swap is a deliberate, visible change.

func TestCCITTChecksum_Empty(t *testing.T) {
	crc := CCITTChecksum{}.Compute([]byte{})
	if crc != crcInitial {
		t.Errorf("CRC of empty data should be initial value, got 0x%04X", crc)
	}
}

func TestCCITTChecksum_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{
			name:     "ASCII '123456789'",
			data:     []byte("123456789"),
			expected: 0x29B1, // Standard CRC-16/CCITT-FALSE check value
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crc := CCITTChecksum{}.Compute(tt.data)
			if crc != tt.expected {
				t.Errorf("CRC mismatch: expected 0x%04X, got 0x%04X", tt.expected, crc)
			}
		})
	}
}

func TestCCITTChecksum_Verify(t *testing.T) {
	data := []byte{0x27, 0x05, 0xE7, 0xF8, 0x07, 0x01, 0x08}
	cs := CCITTChecksum{}
	crc := cs.Compute(data)

	if !cs.Verify(data, crc) {
		t.Error("Verify should accept the computed checksum")
	}
	if cs.Verify(data, crc^0xFFFF) {
		t.Error("Verify should reject a wrong checksum")
	}
}

// ============================================================
// Payload Decoding Tests
// ============================================================

func TestDecodeAs_String(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		expected string
	}{
		{"nul terminated", []byte("99530420\x00"), "99530420"},
		{"no terminator", []byte("grendal"), "grendal"},
		{"nul mid buffer", []byte("SCALA\x00junk"), "SCALA"},
		{"empty", []byte{}, ""},
		{"only nul", []byte{0x00}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := DecodeAs(tt.raw, KindString)
			if err != nil {
				t.Fatalf("DecodeAs error: %v", err)
			}
			if v.Str != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, v.Str)
			}
		})
	}
}

func TestDecodeAs_Uint16(t *testing.T) {
	v, err := DecodeAs([]byte{0x34, 0x12, 0xFF}, KindUint16)
	if err != nil {
		t.Fatalf("DecodeAs error: %v", err)
	}
	if v.U16 != 0x1234 {
		t.Errorf("expected 0x1234, got 0x%04X", v.U16)
	}
}

func TestDecodeAs_Uint32(t *testing.T) {
	v, err := DecodeAs([]byte{0x78, 0x56, 0x34, 0x12}, KindUint32)
	if err != nil {
		t.Fatalf("DecodeAs error: %v", err)
	}
	if v.U32 != 0x12345678 {
		t.Errorf("expected 0x12345678, got 0x%08X", v.U32)
	}
}

func TestDecodeAs_ShortBuffer(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		kind Kind
	}{
		{"u16 one byte", []byte{0x01}, KindUint16},
		{"u16 empty", []byte{}, KindUint16},
		{"u32 three bytes", []byte{0x01, 0x02, 0x03}, KindUint32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAs(tt.raw, tt.kind)
			if !errors.Is(err, ErrShortBuffer) {
				t.Errorf("expected ErrShortBuffer, got %v", err)
			}
		})
	}
}

func TestDecodeAs_Raw(t *testing.T) {
	raw := []byte{0x01, 0x00, 0x24, 0xFF}
	v, err := DecodeAs(raw, KindRaw)
	if err != nil {
		t.Fatalf("DecodeAs error: %v", err)
	}
	if !bytes.Equal(v.Raw, raw) {
		t.Errorf("raw decode should pass bytes through unchanged")
	}
}

// ============================================================
// Command Builder Tests
// ============================================================

func TestNewHandshake(t *testing.T) {
	spec := NewHandshake()
	if spec.Type != CmdTypeHandshake || spec.Sub != SubHandshake {
		t.Errorf("unexpected handshake identity: %s", spec)
	}
	if !bytes.Equal(spec.Params, []byte{0x94, 0x95, 0x96}) {
		t.Errorf("unexpected handshake parameters: %x", spec.Params)
	}
}

func TestDeviceInfoQueries(t *testing.T) {
	tests := []struct {
		name  string
		spec  CommandSpec
		field byte
	}{
		{"name", NewNameQuery(), FieldName},
		{"serial part 1", NewSerialQuery(1), FieldSerial1},
		{"serial part 2", NewSerialQuery(2), FieldSerial2},
		{"model", NewModelQuery(), FieldModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.spec.Type != CmdTypeQuery || tt.spec.Sub != SubDeviceInfo {
				t.Errorf("unexpected query identity: %s", tt.spec)
			}
			if len(tt.spec.Params) != 1 || tt.spec.Params[0] != tt.field {
				t.Errorf("expected field 0x%02X, got %x", tt.field, tt.spec.Params)
			}
		})
	}
}

func TestCommandSpec_Key(t *testing.T) {
	a := NewNameQuery()
	b := NewNameQuery()
	c := NewModelQuery()

	if a.Key() != b.Key() {
		t.Error("identical commands should share a key")
	}
	if a.Key() == c.Key() {
		t.Error("different commands should not share a key")
	}
}

// ============================================================
// DeviceInfo Aggregation Tests
// ============================================================

func infoResponse(field byte, text string) *Response {
	raw := append([]byte(text), 0x00)
	v, _ := DecodeAs(raw, KindString)
	return &Response{
		Subtype: uint16(GroupDeviceInfo) | uint16(field)<<8,
		Value:   v,
		Raw:     raw,
	}
}

func TestDeviceInfo_SerialCombining(t *testing.T) {
	var info DeviceInfo

	info.Absorb(infoResponse(FieldSerial1, "9953"))
	if info.Serial() != "" {
		t.Error("serial should be empty until both halves arrive")
	}

	info.Absorb(infoResponse(FieldSerial2, "0420"))
	if info.Serial() != "99530420" {
		t.Errorf("expected combined serial 99530420, got %q", info.Serial())
	}
}

func TestDeviceInfo_ModelAndFirmware(t *testing.T) {
	var info DeviceInfo

	info.Absorb(infoResponse(FieldModel, "SCALA1"))
	info.Absorb(infoResponse(FieldModel, "3-45"))
	info.Absorb(infoResponse(FieldModel, "V01.00.02.000001"))
	info.Absorb(infoResponse(FieldName, "grendal"))

	if info.Model != "SCALA1 3-45" {
		t.Errorf("expected model parts joined, got %q", info.Model)
	}
	if info.Firmware != "V01.00.02.000001" {
		t.Errorf("expected firmware captured, got %q", info.Firmware)
	}
	if info.Name != "grendal" {
		t.Errorf("expected name grendal, got %q", info.Name)
	}
}

func TestDeviceInfo_IgnoresOtherGroups(t *testing.T) {
	var info DeviceInfo
	info.Absorb(&Response{Subtype: 0x0105, Raw: []byte("x\x00")})
	if info.Name != "" || info.Model != "" {
		t.Error("responses from unknown groups should be ignored")
	}
}
