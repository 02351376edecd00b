// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

import "fmt"

// AnomalyType classifies packet and message anomalies the validator
// detects. These are diagnostics, not protocol errors: an anomalous message
// still completed reassembly and passed its CRC.
type AnomalyType int

const (
	AnomalyUnknownGroup AnomalyType = iota
	AnomalyEmptyPayload
	AnomalyNonPrintableText
	AnomalyMissingTerminator
	AnomalyOversizeFragment
	AnomalyLengthMismatch
)

// ValidationError describes one detected anomaly.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateMessage checks a completed message for anomalies. Returns an
// empty slice for a clean message.
func ValidateMessage(m *Message) []ValidationError {
	errors := []ValidationError{}

	if m.Group() != GroupDeviceInfo {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownGroup,
			Message: fmt.Sprintf("unknown command group 0x%02X", m.Group()),
			Details: map[string]interface{}{"group": m.Group(), "field": m.Field()},
		})
		return errors
	}

	raw := m.Raw()
	if len(raw) == 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyEmptyPayload,
			Message: "device-info response with empty payload",
			Details: map[string]interface{}{"field": m.Field()},
		})
		return errors
	}

	// Device-info payloads observed so far are NUL-terminated ASCII.
	errors = append(errors, validateInfoText(m.Field(), raw)...)
	return errors
}

// validateInfoText checks a device-info payload for the NUL-terminated
// printable-ASCII shape every captured response has had.
func validateInfoText(field byte, raw []byte) []ValidationError {
	errors := []ValidationError{}

	terminated := false
	end := len(raw)
	for i, b := range raw {
		if b == 0 {
			terminated = true
			end = i
			break
		}
	}
	if !terminated {
		errors = append(errors, ValidationError{
			Type:    AnomalyMissingTerminator,
			Message: "device-info payload lacks NUL terminator",
			Details: map[string]interface{}{"field": field, "length": len(raw)},
		})
	}

	if !isPrintableASCII(string(raw[:end])) {
		errors = append(errors, ValidationError{
			Type:    AnomalyNonPrintableText,
			Message: fmt.Sprintf("non-printable bytes in device-info field 0x%02X", field),
			Details: map[string]interface{}{"field": field},
		})
	}

	return errors
}

// ValidateFragment checks a raw notification packet for anomalies that do
// not rise to decode errors.
func ValidateFragment(pkt []byte) []ValidationError {
	errors := []ValidationError{}

	if len(pkt) > 2+MaxParameterSize+responseOverhead+CRCSize {
		errors = append(errors, ValidationError{
			Type:    AnomalyOversizeFragment,
			Message: fmt.Sprintf("fragment of %d bytes exceeds protocol maximum", len(pkt)),
			Details: map[string]interface{}{"length": len(pkt)},
		})
	}

	if len(pkt) >= 2 && pkt[0] == ResponseHeader {
		// A self-contained frame should not carry more bytes than the
		// declared length plus header and CRC can account for.
		max := 2 + int(pkt[1]) + CRCSize
		if len(pkt) > max {
			errors = append(errors, ValidationError{
				Type:    AnomalyLengthMismatch,
				Message: fmt.Sprintf("frame has %d bytes but declared length accounts for %d", len(pkt), max),
				Details: map[string]interface{}{"length": len(pkt), "declared": int(pkt[1])},
			})
		}
	}

	return errors
}
