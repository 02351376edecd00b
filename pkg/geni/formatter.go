// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

import (
	"fmt"
	"strings"
)

// FormatMessage formats a completed message into a human-readable string.
func FormatMessage(m *Message) string {
	timestamp := m.Timestamp().Format("15:04:05.000")

	result := fmt.Sprintf("[%s] %s (%02X/%02X) len=%d frags=%d crc=0x%04X\n",
		timestamp, FormatSubtype(m.Group(), m.Field()), m.Group(), m.Field(),
		len(m.Raw()), m.Fragments(), m.CRC())

	if len(m.Raw()) > 0 {
		result += formatPayload(m.Group(), m.Raw())
	}
	return result
}

// FormatResponse formats a decoded response for display.
func FormatResponse(r *Response) string {
	timestamp := r.At.Format("15:04:05.000")
	return fmt.Sprintf("[%s] %s (%02X/%02X) %s\n",
		timestamp, FormatSubtype(r.Group(), r.Field()), r.Group(), r.Field(),
		r.Value.String())
}

// FormatCommand formats an outbound command for display.
func FormatCommand(spec CommandSpec) string {
	switch {
	case spec.Type == CmdTypeHandshake && spec.Sub == SubHandshake:
		return "HANDSHAKE"
	case spec.Type == CmdTypeQuery && spec.Sub == SubDeviceInfo && len(spec.Params) == 1:
		return "QUERY " + FormatSubtype(GroupDeviceInfo, spec.Params[0])
	default:
		return spec.String()
	}
}

// FormatSubtype returns the human-readable name for a response subtype.
func FormatSubtype(group, field byte) string {
	if group != GroupDeviceInfo {
		return "UNKNOWN"
	}
	switch field {
	case FieldModel:
		return "DEVICE_MODEL"
	case FieldSerial1:
		return "SERIAL_PART_1"
	case FieldSerial2:
		return "SERIAL_PART_2"
	case FieldName:
		return "DEVICE_NAME"
	default:
		return "DEVICE_INFO"
	}
}

// FormatFragment renders one raw notification packet, classified.
func FormatFragment(pkt []byte) string {
	frag, err := DecodeFragment(pkt)
	if err != nil {
		return fmt.Sprintf("  MALFORMED (%v): %s\n", err, HexDump(pkt))
	}
	if frag.Initial {
		return fmt.Sprintf("  INITIAL %s owes=%d bytes: %s\n",
			FormatSubtype(frag.Group(), frag.Field()), frag.Declared, HexDump(frag.Data))
	}
	return fmt.Sprintf("  CONTINUATION %d bytes: %s\n", len(frag.Data), HexDump(frag.Data))
}

// formatPayload renders a payload per command group. Device-info payloads
// are ASCII; anything else falls back to a hex dump.
func formatPayload(group byte, raw []byte) string {
	if group == GroupDeviceInfo {
		if v, err := DecodeAs(raw, KindString); err == nil && isPrintableASCII(v.Str) && v.Str != "" {
			return fmt.Sprintf("  Text: %q\n", v.Str)
		}
	}
	return "  Payload: " + HexDump(raw) + "\n"
}

// HexDump renders bytes as space-separated hex, wrapping long payloads.
func HexDump(b []byte) string {
	var sb strings.Builder
	for i, c := range b {
		if i > 0 {
			if i%16 == 0 {
				sb.WriteString("\n           ")
			} else {
				sb.WriteByte(' ')
			}
		}
		fmt.Fprintf(&sb, "%02x", c)
	}
	return sb.String()
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7E {
			return false
		}
	}
	return true
}
