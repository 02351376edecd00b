// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

import (
	"errors"
	"fmt"
	"time"
)

// Protocol and correlator error conditions. None of these are fatal: every
// one is returned as a value and leaves the engine ready for the next
// message or request.
var (
	// ErrInvalidMarker means an initial fragment did not carry the f8 e7
	// marker after the length byte. The message is discarded and reassembly
	// returns to idle.
	ErrInvalidMarker = errors.New("geni: invalid fragment marker")

	// ErrInvalidLength means a frame's declared length is impossible
	// (shorter than the marker and subtype it must cover).
	ErrInvalidLength = errors.New("geni: invalid declared length")

	// ErrChecksumMismatch means the trailing CRC16 failed verification
	// after the terminal fragment was appended.
	ErrChecksumMismatch = errors.New("geni: checksum mismatch")

	// ErrTruncated means a terminal fragment did not carry the full CRC16
	// trailer after the last owed data byte.
	ErrTruncated = errors.New("geni: truncated terminal fragment")

	// ErrReassemblyTimeout means no continuation fragment arrived within
	// the inter-fragment window while a message was being collected.
	ErrReassemblyTimeout = errors.New("geni: reassembly timeout")

	// ErrRequestTimeout means no response completed before the request
	// deadline.
	ErrRequestTimeout = errors.New("geni: request timeout")

	// ErrShortBuffer means a payload is smaller than the width the caller
	// asked to decode. Reassembly state is unaffected.
	ErrShortBuffer = errors.New("geni: payload shorter than requested width")

	// ErrBusy means Send was called while another request was in flight.
	// The caller must wait for the current request to resolve.
	ErrBusy = errors.New("geni: request already in flight")

	// ErrTooSoon means the pacing floor since the previous send has not
	// elapsed yet. See TooSoonError for the earliest acceptable time.
	ErrTooSoon = errors.New("geni: pacing floor not reached")

	// ErrConnectionClosed means the transport went away; all pending state
	// has been torn down.
	ErrConnectionClosed = errors.New("geni: connection closed")
)

// TooSoonError rejects a Send issued before the pacing floor elapsed and
// reports the earliest time a new send will be accepted.
type TooSoonError struct {
	Earliest time.Time
}

func (e *TooSoonError) Error() string {
	return fmt.Sprintf("geni: pacing floor not reached, retry after %s", e.Earliest.Format("15:04:05.000"))
}

// Is makes errors.Is(err, ErrTooSoon) match.
func (e *TooSoonError) Is(target error) bool {
	return target == ErrTooSoon
}
