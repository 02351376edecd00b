// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex literal %q: %v", s, err)
	}
	return b
}

// ============================================================
// Command Encoding Tests
// ============================================================
//
// The prefix bytes (everything before the CRC) are pinned against frames
// observed going to a real SCALA1 pump. The CRC trailer is checked against
// the configured strategy instead of the captured bytes because the pump's
// polynomial has not been confirmed.

func TestEncodeCommand_CapturedPrefixes(t *testing.T) {
	tests := []struct {
		name   string
		spec   CommandSpec
		prefix string
	}{
		{"handshake", NewHandshake(), "2707fff80203949596"},
		{"model query", NewModelQuery(), "2705e7f8070101"},
		{"serial part 1", NewSerialQuery(1), "2705e7f8070108"},
		{"serial part 2", NewSerialQuery(2), "2705e7f8070109"},
		{"name query", NewNameQuery(), "2705e7f8070111"},
	}

	cs := DefaultChecksum()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncodeCommand(tt.spec, cs)
			if err != nil {
				t.Fatalf("EncodeCommand error: %v", err)
			}

			prefix := mustHex(t, tt.prefix)
			if len(frame) != len(prefix)+CRCSize {
				t.Fatalf("frame is %d bytes, expected %d", len(frame), len(prefix)+CRCSize)
			}
			if !bytes.Equal(frame[:len(prefix)], prefix) {
				t.Errorf("prefix mismatch:\n  expected %x\n  got      %x", prefix, frame[:len(prefix)])
			}

			crc := binary.LittleEndian.Uint16(frame[len(prefix):])
			if !cs.Verify(prefix, crc) {
				t.Errorf("trailer 0x%04X does not verify against the frame body", crc)
			}
		})
	}
}

func TestEncodeCommand_Deterministic(t *testing.T) {
	a, err := EncodeCommand(NewNameQuery(), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncodeCommand(NewNameQuery(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding the same command twice should yield identical bytes")
	}
}

func TestEncodeCommand_ParameterLimit(t *testing.T) {
	spec := CommandSpec{Type: CmdTypeQuery, Sub: SubDeviceInfo, Params: make([]byte, MaxParameterSize)}
	if _, err := EncodeCommand(spec, nil); err != nil {
		t.Errorf("encoding at the parameter limit should succeed: %v", err)
	}

	spec.Params = make([]byte, MaxParameterSize+1)
	if _, err := EncodeCommand(spec, nil); err == nil {
		t.Error("encoding past the parameter limit should fail")
	}
}

// ============================================================
// Command Decoding Tests
// ============================================================

func TestDecodeCommand_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		spec CommandSpec
	}{
		{"no parameters", CommandSpec{Type: 0xF8E7, Sub: 0x0200}},
		{"one parameter", NewNameQuery()},
		{"handshake", NewHandshake()},
		{"max parameters", CommandSpec{Type: 0x1234, Sub: 0x5678, Params: bytes.Repeat([]byte{0xAB}, MaxParameterSize)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncodeCommand(tt.spec, nil)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := DecodeCommand(frame, nil)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Type != tt.spec.Type || got.Sub != tt.spec.Sub {
				t.Errorf("identity mismatch: sent %s, got %s", tt.spec, got)
			}
			if !bytes.Equal(got.Params, tt.spec.Params) {
				t.Errorf("parameter mismatch: sent %x, got %x", tt.spec.Params, got.Params)
			}
		})
	}
}

func TestDecodeCommand_Errors(t *testing.T) {
	good, err := EncodeCommand(NewNameQuery(), nil)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("too short", func(t *testing.T) {
		if _, err := DecodeCommand(good[:5], nil); err == nil {
			t.Error("truncated frame should fail to decode")
		}
	})

	t.Run("wrong header", func(t *testing.T) {
		bad := append([]byte(nil), good...)
		bad[0] = ResponseHeader
		if _, err := DecodeCommand(bad, nil); err == nil {
			t.Error("response header should be rejected")
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		bad := append([]byte(nil), good...)
		bad[1]++
		if _, err := DecodeCommand(bad, nil); err == nil {
			t.Error("declared length disagreeing with frame size should fail")
		}
	})

	t.Run("corrupt crc", func(t *testing.T) {
		bad := append([]byte(nil), good...)
		bad[len(bad)-1] ^= 0xFF
		if _, err := DecodeCommand(bad, nil); !errors.Is(err, ErrChecksumMismatch) {
			t.Errorf("expected ErrChecksumMismatch, got %v", err)
		}
	})

	t.Run("corrupt body", func(t *testing.T) {
		bad := append([]byte(nil), good...)
		bad[6] ^= 0x01
		if _, err := DecodeCommand(bad, nil); !errors.Is(err, ErrChecksumMismatch) {
			t.Errorf("expected ErrChecksumMismatch, got %v", err)
		}
	})
}
