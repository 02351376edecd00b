// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Kind selects how a completed message's payload bytes are interpreted.
// The subtype alone does not determine the payload shape, so the caller
// issuing the request supplies the kind it expects.
type Kind int

const (
	// KindRaw passes the payload through untouched. Use it for payload
	// shapes that are not understood yet.
	KindRaw Kind = iota
	// KindString truncates at the first NUL byte and interprets the prefix
	// as ASCII.
	KindString
	// KindUint16 reads a little-endian u16 from the start of the payload.
	KindUint16
	// KindUint32 reads a little-endian u32 from the start of the payload.
	KindUint32
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindString:
		return "string"
	case KindUint16:
		return "u16"
	case KindUint32:
		return "u32"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a decoded payload. Exactly one of the typed fields is meaningful,
// per Kind; Raw always holds the undecoded bytes.
type Value struct {
	Kind Kind
	Str  string
	U16  uint16
	U32  uint32
	Raw  []byte
}

// String formats the value for display.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return fmt.Sprintf("%q", v.Str)
	case KindUint16:
		return fmt.Sprintf("%d (0x%04X)", v.U16, v.U16)
	case KindUint32:
		return fmt.Sprintf("%d (0x%08X)", v.U32, v.U32)
	default:
		return hex.EncodeToString(v.Raw)
	}
}

// DecodeAs interprets raw payload bytes as the given kind.
//
// Strings are cut at the first NUL; fragment reassembly happens before this
// step, so fragment boundaries never split the string being decoded.
// Fixed-width integers are little-endian from offset zero and fail with
// ErrShortBuffer when the payload is narrower than the requested width.
func DecodeAs(raw []byte, k Kind) (Value, error) {
	v := Value{Kind: k, Raw: raw}

	switch k {
	case KindRaw:
		return v, nil

	case KindString:
		s := string(raw)
		if i := strings.IndexByte(s, 0); i >= 0 {
			s = s[:i]
		}
		v.Str = s
		return v, nil

	case KindUint16:
		if len(raw) < 2 {
			return Value{}, fmt.Errorf("%w: have %d bytes, want 2", ErrShortBuffer, len(raw))
		}
		v.U16 = binary.LittleEndian.Uint16(raw)
		return v, nil

	case KindUint32:
		if len(raw) < 4 {
			return Value{}, fmt.Errorf("%w: have %d bytes, want 4", ErrShortBuffer, len(raw))
		}
		v.U32 = binary.LittleEndian.Uint32(raw)
		return v, nil

	default:
		return Value{}, fmt.Errorf("geni: unknown payload kind %d", int(k))
	}
}
