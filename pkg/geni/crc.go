// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

// Checksum is the strategy used to compute and verify the 16-bit trailer on
// every frame. The polynomial the pump firmware actually uses has not been
// pinned down from captures yet, so the strategy is swappable: the rest of
// the package only ever calls Compute and Verify, and the real algorithm can
// be dropped in without touching the codec or the reassembler.
type Checksum interface {
	Compute(data []byte) uint16
	Verify(data []byte, expected uint16) bool
}

// CCITTChecksum is the default, provisional strategy: CRC-16/CCITT-FALSE
// (polynomial 0x1021, initial value 0xFFFF, no final XOR).
type CCITTChecksum struct{}

// Compute returns the CRC-16/CCITT-FALSE checksum of data.
func (CCITTChecksum) Compute(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Verify reports whether the computed checksum of data matches expected.
func (c CCITTChecksum) Verify(data []byte, expected uint16) bool {
	return c.Compute(data) == expected
}

// DefaultChecksum returns the strategy used when none is supplied.
func DefaultChecksum() Checksum {
	return CCITTChecksum{}
}
