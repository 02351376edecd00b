// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

import (
	"fmt"
	"time"
)

// Statistics tracks fragment, message, and request counters for one
// connection. The struct itself is not synchronized: a Device mutates every
// counter under its own mutex and publishes copies through Device.Stats,
// while standalone Reassembler owners feed and read from one goroutine.
type Statistics struct {
	StartTime time.Time

	// Fragment and message counters
	TotalFragments     uint64
	Messages           uint64
	OrphanFragments    uint64
	AbandonedMessages  uint64
	CRCErrors          uint64
	InvalidMarkers     uint64
	DecodeErrors       uint64
	TruncatedTerminals uint64
	TrailingGarbage    uint64
	ReassemblyTimeouts uint64

	// Request counters
	RequestsSent     uint64
	RequestsResolved uint64
	RequestsFailed   uint64
	RequestTimeouts  uint64
	BusyRejections   uint64
	PacingRejections uint64
	UnsolicitedMsgs  uint64

	// Rates (calculated)
	FragmentRate float64 // fragments/sec
	ErrorRate    float64 // errors/sec
}

// NewStatistics creates a statistics tracker starting now.
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// Errors returns the total number of protocol-level failures.
func (s *Statistics) Errors() uint64 {
	return s.CRCErrors + s.InvalidMarkers + s.DecodeErrors +
		s.TruncatedTerminals + s.ReassemblyTimeouts
}

// CalculateRates refreshes the fragment and error rates.
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FragmentRate = float64(s.TotalFragments) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// Snapshot returns a copy safe to hand to another goroutine.
func (s *Statistics) Snapshot() Statistics {
	c := *s
	c.CalculateRates()
	return c
}

// String returns a formatted statistics summary.
func (s *Statistics) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Fragments:       %8d\n", s.TotalFragments)
	result += fmt.Sprintf("Messages:        %8d\n", s.Messages)

	if s.OrphanFragments > 0 {
		result += fmt.Sprintf("Orphan Frags:    %8d\n", s.OrphanFragments)
	}
	if s.AbandonedMessages > 0 {
		result += fmt.Sprintf("Abandoned Msgs:  %8d\n", s.AbandonedMessages)
	}
	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d\n", s.CRCErrors)
	}
	if s.InvalidMarkers > 0 {
		result += fmt.Sprintf("Invalid Markers: %8d\n", s.InvalidMarkers)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
	}
	if s.TruncatedTerminals > 0 {
		result += fmt.Sprintf("Truncated Terms: %8d\n", s.TruncatedTerminals)
	}
	if s.ReassemblyTimeouts > 0 {
		result += fmt.Sprintf("Reasm Timeouts:  %8d\n", s.ReassemblyTimeouts)
	}

	if s.RequestsSent > 0 {
		result += fmt.Sprintf("Requests:        %8d (resolved %d, failed %d, timed out %d)\n",
			s.RequestsSent, s.RequestsResolved, s.RequestsFailed, s.RequestTimeouts)
	}
	if s.BusyRejections > 0 {
		result += fmt.Sprintf("Busy Rejections: %8d\n", s.BusyRejections)
	}
	if s.PacingRejections > 0 {
		result += fmt.Sprintf("Pacing Rejects:  %8d\n", s.PacingRejections)
	}
	if s.UnsolicitedMsgs > 0 {
		result += fmt.Sprintf("Unsolicited:     %8d\n", s.UnsolicitedMsgs)
	}

	result += fmt.Sprintf("Fragment Rate:   %8.1f frags/sec\n", s.FragmentRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset zeroes all counters and restarts the clock.
func (s *Statistics) Reset() {
	*s = Statistics{StartTime: time.Now()}
}
