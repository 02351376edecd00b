// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

import (
	"bytes"
	"errors"
	"testing"
)

// acceptAllChecksum lets captured frames through without knowing the
// pump's real polynomial. Capture-replay tests use this so the literal
// CRC trailers from the air are preserved byte for byte.
type acceptAllChecksum struct{}

func (acceptAllChecksum) Compute([]byte) uint16      { return 0 }
func (acceptAllChecksum) Verify([]byte, uint16) bool { return true }

// buildNotification assembles a complete response frame with a trailer
// computed by the default checksum, for tests that synthesize traffic.
func buildNotification(group, field byte, payload []byte) []byte {
	frame := []byte{ResponseHeader, byte(len(payload) + responseOverhead), MarkerByte0, MarkerByte1, group, field}
	frame = append(frame, payload...)
	crc := DefaultChecksum().Compute(frame)
	return append(frame, byte(crc), byte(crc>>8))
}

// ============================================================
// Capture Replay Tests
// ============================================================

func TestReassembler_CapturedSinglePacket(t *testing.T) {
	// Serial part 2 response from a SCALA1 pump, one notification.
	pkt := mustHex(t, "240df8e70709"+"3939353330343230"+"00"+"559e")

	stats := NewStatistics()
	r := NewReassembler(acceptAllChecksum{})
	r.Stats = stats

	msg, err := r.Feed(pkt)
	if err != nil {
		t.Fatalf("Feed error: %v", err)
	}
	if msg == nil {
		t.Fatal("single-packet message should complete immediately")
	}

	if msg.Group() != GroupDeviceInfo || msg.Field() != FieldSerial2 {
		t.Errorf("unexpected subtype: group 0x%02X field 0x%02X", msg.Group(), msg.Field())
	}
	if !bytes.Equal(msg.Raw(), []byte("99530420\x00")) {
		t.Errorf("unexpected payload: %x", msg.Raw())
	}
	if msg.CRC() != 0x9E55 {
		t.Errorf("expected trailer 0x9E55, got 0x%04X", msg.CRC())
	}
	if msg.Fragments() != 1 {
		t.Errorf("expected 1 fragment, got %d", msg.Fragments())
	}

	v, err := msg.Decode(KindString)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if v.Str != "99530420" {
		t.Errorf("expected serial half 99530420, got %q", v.Str)
	}

	if r.Collecting() {
		t.Error("reassembler should be idle after completion")
	}
	if stats.Messages != 1 || stats.TotalFragments != 1 {
		t.Errorf("unexpected counters: %+v", stats.Snapshot())
	}
}

func TestReassembler_CapturedTwoFragments(t *testing.T) {
	// Serial + firmware response spanning two notifications. The pump
	// declares 0x1c, so 24 payload bytes are owed; the second fragment
	// carries the tail, a stray NUL, and the CRC.
	frag1 := mustHex(t, "241cf8e70718"+"39393534353235385630312e3030")
	frag2 := mustHex(t, "2e30322e303030303031"+"00"+"b792")

	stats := NewStatistics()
	r := NewReassembler(acceptAllChecksum{})
	r.Stats = stats

	msg, err := r.Feed(frag1)
	if err != nil {
		t.Fatalf("Feed(frag1) error: %v", err)
	}
	if msg != nil {
		t.Fatal("message should not complete before all owed bytes arrive")
	}
	if !r.Collecting() {
		t.Fatal("reassembler should be collecting between fragments")
	}

	msg, err = r.Feed(frag2)
	if err != nil {
		t.Fatalf("Feed(frag2) error: %v", err)
	}
	if msg == nil {
		t.Fatal("message should complete on the terminal fragment")
	}

	v, err := msg.Decode(KindString)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if v.Str != "99545258V01.00.02.000001" {
		t.Errorf("unexpected payload text: %q", v.Str)
	}
	if msg.CRC() != 0x92B7 {
		t.Errorf("expected trailer 0x92B7, got 0x%04X", msg.CRC())
	}
	if msg.Fragments() != 2 {
		t.Errorf("expected 2 fragments, got %d", msg.Fragments())
	}

	if r.Collecting() {
		t.Error("reassembler should be idle after completion")
	}
	if stats.TrailingGarbage != 1 {
		t.Errorf("the stray NUL before the CRC should be counted, got %d", stats.TrailingGarbage)
	}
}

// ============================================================
// Synthetic Traffic Tests
// ============================================================

func TestReassembler_SynthesizedRoundTrip(t *testing.T) {
	payload := []byte("SCALA1 3-45\x00")
	pkt := buildNotification(GroupDeviceInfo, FieldModel, payload)

	r := NewReassembler(nil)
	msg, err := r.Feed(pkt)
	if err != nil {
		t.Fatalf("Feed error: %v", err)
	}
	if msg == nil {
		t.Fatal("expected a completed message")
	}
	if !bytes.Equal(msg.Raw(), payload) {
		t.Errorf("payload mismatch: %x", msg.Raw())
	}
}

func TestReassembler_ThreeFragments(t *testing.T) {
	payload := bytes.Repeat([]byte{'A'}, 40)
	frame := buildNotification(GroupDeviceInfo, FieldName, payload)

	r := NewReassembler(nil)
	var msg *Message
	var err error
	for _, chunk := range [][]byte{frame[:20], frame[20:35], frame[35:]} {
		msg, err = r.Feed(chunk)
		if err != nil {
			t.Fatalf("Feed error: %v", err)
		}
	}
	if msg == nil {
		t.Fatal("expected completion on the final chunk")
	}
	if msg.Fragments() != 3 {
		t.Errorf("expected 3 fragments, got %d", msg.Fragments())
	}
	if !bytes.Equal(msg.Raw(), payload) {
		t.Errorf("payload mismatch after three-way split")
	}
}

// ============================================================
// Error Recovery Tests
// ============================================================

func TestReassembler_OrphanContinuation(t *testing.T) {
	stats := NewStatistics()
	r := NewReassembler(nil)
	r.Stats = stats

	msg, err := r.Feed([]byte{0x41, 0x42, 0x43})
	if err != nil {
		t.Fatalf("orphan fragments should be dropped silently, got %v", err)
	}
	if msg != nil {
		t.Fatal("orphan fragment should not produce a message")
	}
	if stats.OrphanFragments != 1 {
		t.Errorf("expected 1 orphan counted, got %d", stats.OrphanFragments)
	}

	// The engine must still accept a well-formed message afterwards.
	if msg, err = r.Feed(buildNotification(GroupDeviceInfo, FieldName, []byte("ok\x00"))); err != nil || msg == nil {
		t.Errorf("reassembler should recover after an orphan: msg=%v err=%v", msg, err)
	}
}

func TestReassembler_ChecksumMismatch(t *testing.T) {
	pkt := buildNotification(GroupDeviceInfo, FieldName, []byte("grendal\x00"))
	pkt[len(pkt)-1] ^= 0xFF

	stats := NewStatistics()
	r := NewReassembler(nil)
	r.Stats = stats

	msg, err := r.Feed(pkt)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
	if msg != nil {
		t.Fatal("corrupt message should not be delivered")
	}
	if r.Collecting() {
		t.Error("reassembler should return to idle after a CRC failure")
	}
	if stats.CRCErrors != 1 {
		t.Errorf("expected 1 CRC error counted, got %d", stats.CRCErrors)
	}
}

func TestReassembler_InvalidMarker(t *testing.T) {
	pkt := buildNotification(GroupDeviceInfo, FieldName, []byte("x\x00"))
	pkt[2] = 0x00 // clobber the marker

	stats := NewStatistics()
	r := NewReassembler(nil)
	r.Stats = stats

	if _, err := r.Feed(pkt); !errors.Is(err, ErrInvalidMarker) {
		t.Fatalf("expected ErrInvalidMarker, got %v", err)
	}
	if stats.InvalidMarkers != 1 {
		t.Errorf("expected 1 invalid marker counted, got %d", stats.InvalidMarkers)
	}
}

func TestReassembler_TruncatedInitial(t *testing.T) {
	r := NewReassembler(nil)
	if _, err := r.Feed([]byte{ResponseHeader, 0x0d, MarkerByte0}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if r.Collecting() {
		t.Error("reassembler should stay idle after a truncated initial fragment")
	}
}

func TestReassembler_TruncatedTerminal(t *testing.T) {
	// Terminal fragment delivers the owed bytes but only one CRC byte.
	frame := buildNotification(GroupDeviceInfo, FieldName, []byte("abc\x00"))
	frame = frame[:len(frame)-1]

	stats := NewStatistics()
	r := NewReassembler(nil)
	r.Stats = stats

	if _, err := r.Feed(frame); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if stats.TruncatedTerminals != 1 {
		t.Errorf("expected 1 truncated terminal counted, got %d", stats.TruncatedTerminals)
	}
}

func TestReassembler_AbandonedByNewInitial(t *testing.T) {
	long := buildNotification(GroupDeviceInfo, FieldName, bytes.Repeat([]byte{'z'}, 30))

	stats := NewStatistics()
	r := NewReassembler(nil)
	r.Stats = stats

	if _, err := r.Feed(long[:15]); err != nil {
		t.Fatalf("Feed error: %v", err)
	}
	if !r.Collecting() {
		t.Fatal("expected a partial message in progress")
	}

	// A fresh initial fragment abandons the partial message and wins.
	msg, err := r.Feed(buildNotification(GroupDeviceInfo, FieldModel, []byte("new\x00")))
	if err != nil {
		t.Fatalf("Feed error: %v", err)
	}
	if msg == nil {
		t.Fatal("the new message should complete")
	}
	if msg.Field() != FieldModel {
		t.Errorf("completed message should be the new one, got field 0x%02X", msg.Field())
	}
	if stats.AbandonedMessages != 1 {
		t.Errorf("expected 1 abandoned message counted, got %d", stats.AbandonedMessages)
	}
}

func TestReassembler_Expire(t *testing.T) {
	long := buildNotification(GroupDeviceInfo, FieldName, bytes.Repeat([]byte{'z'}, 30))

	stats := NewStatistics()
	r := NewReassembler(nil)
	r.Stats = stats

	if r.Expire() {
		t.Error("expiring an idle reassembler should be a no-op")
	}

	if _, err := r.Feed(long[:15]); err != nil {
		t.Fatalf("Feed error: %v", err)
	}
	if !r.Expire() {
		t.Error("expiring a collecting reassembler should report the abandonment")
	}
	if r.Collecting() {
		t.Error("reassembler should be idle after expiry")
	}
	if stats.ReassemblyTimeouts != 1 {
		t.Errorf("expected 1 reassembly timeout counted, got %d", stats.ReassemblyTimeouts)
	}

	// The tail of the expired message now arrives as orphans.
	if msg, err := r.Feed(long[15:]); msg != nil || err != nil {
		t.Errorf("late fragments should be dropped: msg=%v err=%v", msg, err)
	}
	if stats.OrphanFragments != 1 {
		t.Errorf("expected the late fragment counted as orphan, got %d", stats.OrphanFragments)
	}
}

func TestReassembler_EmptyPayload(t *testing.T) {
	// Declared length of exactly the subtype overhead: zero payload bytes.
	pkt := buildNotification(GroupDeviceInfo, FieldName, nil)

	r := NewReassembler(nil)
	msg, err := r.Feed(pkt)
	if err != nil {
		t.Fatalf("Feed error: %v", err)
	}
	if msg == nil {
		t.Fatal("zero-payload message should still complete")
	}
	if len(msg.Raw()) != 0 {
		t.Errorf("expected empty payload, got %x", msg.Raw())
	}
}
