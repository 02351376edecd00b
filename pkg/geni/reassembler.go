// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

import (
	"encoding/binary"
	"errors"
	"time"
)

// Reassembler stitches notification fragments back into logical messages.
//
// One instance serves one connection and must be fed from a single
// goroutine: BLE notifications for one characteristic arrive in
// transmission order, so there is never a second fragment to process
// concurrently. Create a fresh instance per connection; no state survives
// a disconnect.
type Reassembler struct {
	checksum Checksum

	// Stats, when set, receives fragment/message/error counts.
	Stats *Statistics

	state    int
	subtype  uint16
	declared int
	data     []byte
	crcBuf   []byte // header through payload, the CRC input
	frags    int
	lastAt   time.Time
}

// NewReassembler creates an idle reassembler using the given checksum
// strategy (nil selects the default).
func NewReassembler(cs Checksum) *Reassembler {
	if cs == nil {
		cs = DefaultChecksum()
	}
	return &Reassembler{checksum: cs}
}

// Collecting reports whether a message is partially assembled.
func (r *Reassembler) Collecting() bool {
	return r.state == stateCollecting
}

// LastFragment returns the arrival time of the most recent accepted
// fragment. The owner of the inter-fragment timer uses this to decide
// staleness.
func (r *Reassembler) LastFragment() time.Time {
	return r.lastAt
}

// Reset discards any partially assembled message and returns to idle.
func (r *Reassembler) Reset() {
	r.state = stateIdle
	r.subtype = 0
	r.declared = 0
	r.data = r.data[:0]
	r.crcBuf = r.crcBuf[:0]
	r.frags = 0
}

// Expire handles the inter-fragment timeout firing: a partially assembled
// message is discarded and the engine returns to idle. Reports whether a
// message was actually in progress.
func (r *Reassembler) Expire() bool {
	if r.state != stateCollecting {
		return false
	}
	if r.Stats != nil {
		r.Stats.ReassemblyTimeouts++
	}
	r.Reset()
	return true
}

// Feed processes one notification packet. It returns a completed message
// once the terminal fragment's CRC verifies, nil while more fragments are
// owed, and an error for malformed or corrupt input. No error is fatal:
// after any error the reassembler is idle and ready for the next message.
//
// Continuation fragments arriving while idle are orphans from an exchange
// that already failed or timed out. They are counted and dropped.
func (r *Reassembler) Feed(pkt []byte) (*Message, error) {
	if r.Stats != nil {
		r.Stats.TotalFragments++
	}

	frag, err := DecodeFragment(pkt)
	if err != nil {
		// Malformed initial fragment. Whatever was being collected is
		// unrecoverable too.
		if r.Stats != nil {
			if errors.Is(err, ErrInvalidMarker) {
				r.Stats.InvalidMarkers++
			} else {
				r.Stats.DecodeErrors++
			}
		}
		r.Reset()
		return nil, err
	}

	if frag.Initial {
		if r.state == stateCollecting {
			// A new message started before the old one finished; the old
			// one can never complete now.
			if r.Stats != nil {
				r.Stats.AbandonedMessages++
			}
		}
		r.Reset()
		r.state = stateCollecting
		r.subtype = frag.Subtype
		r.declared = frag.Declared
		r.crcBuf = append(r.crcBuf[:0], frag.headerBytes...)
		return r.consume(frag.Data)
	}

	if r.state != stateCollecting {
		if r.Stats != nil {
			r.Stats.OrphanFragments++
		}
		return nil, nil
	}
	return r.consume(frag.Data)
}

// consume appends one fragment's data, checks the owed-byte count against
// the length declared by the initial fragment, and finalizes the message
// when the count is satisfied.
func (r *Reassembler) consume(chunk []byte) (*Message, error) {
	r.frags++
	r.lastAt = time.Now()

	owed := r.declared - len(r.data)
	if len(chunk) < owed {
		r.data = append(r.data, chunk...)
		r.crcBuf = append(r.crcBuf, chunk...)
		return nil, nil
	}

	// This fragment satisfies the owed count, so it is terminal and its
	// trailing bytes are the CRC16.
	r.data = append(r.data, chunk[:owed]...)
	r.crcBuf = append(r.crcBuf, chunk[:owed]...)
	trailer := chunk[owed:]

	if len(trailer) < CRCSize {
		if r.Stats != nil {
			r.Stats.TruncatedTerminals++
		}
		r.Reset()
		return nil, ErrTruncated
	}
	if len(trailer) > CRCSize && r.Stats != nil {
		// Some captures show a stray byte (a NUL terminator) between the
		// last owed data byte and the checksum. The CRC is always the last
		// two bytes of the terminal fragment.
		r.Stats.TrailingGarbage++
	}

	crc := binary.LittleEndian.Uint16(trailer[len(trailer)-CRCSize:])
	if !r.checksum.Verify(r.crcBuf, crc) {
		if r.Stats != nil {
			r.Stats.CRCErrors++
		}
		r.Reset()
		return nil, ErrChecksumMismatch
	}

	msg := &Message{
		subtype:   r.subtype,
		raw:       append([]byte(nil), r.data...),
		crc:       crc,
		fragments: r.frags,
		timestamp: time.Now(),
	}
	if r.Stats != nil {
		r.Stats.Messages++
	}
	r.Reset()
	return msg, nil
}
