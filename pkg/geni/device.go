// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Hydrolab

package geni

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Transport is the byte-level connection the device core drives. A BLE
// central implements it with GATT writes and characteristic notifications;
// tests and bridges implement it over anything that can carry packets.
//
// Notifications must deliver one inbound packet per receive, in arrival
// order. Done is closed when the connection is gone for good.
type Transport interface {
	Write(ctx context.Context, pkt []byte) error
	Notifications() <-chan []byte
	Done() <-chan struct{}
	Close() error
}

// Policy defaults. The pump refuses overlapping command streams and wants
// breathing room between commands, so writes are paced.
const (
	DefaultRequestTimeout  = time.Second
	DefaultFragmentTimeout = time.Second
	DefaultSendGap         = 200 * time.Millisecond
)

// Response is a completed, decoded reply from the device.
type Response struct {
	Subtype   uint16
	Value     Value
	Raw       []byte
	Fragments int
	At        time.Time
}

// Group returns the first subtype byte (command group).
func (r *Response) Group() byte {
	return byte(r.Subtype)
}

// Field returns the second subtype byte (field selector).
func (r *Response) Field() byte {
	return byte(r.Subtype >> 8)
}

type result struct {
	resp *Response
	err  error
}

type pendingRequest struct {
	spec     CommandSpec
	kind     Kind
	issuedAt time.Time
	done     chan result // buffered; resolved exactly once
}

// Device correlates outbound commands with reassembled responses over one
// connection. At most one request is in flight at a time; a second Send is
// rejected with ErrBusy rather than queued, and sends issued before the
// pacing floor elapses are rejected with a TooSoonError.
//
// Create one Device per connection and discard it on disconnect; nothing
// carries over.
type Device struct {
	transport Transport
	checksum  Checksum
	reasm     *Reassembler
	stats     *Statistics
	log       *slog.Logger

	// FragmentTimeout is the inter-fragment reassembly window. SendGap is
	// the pacing floor between accepted sends. Set before Start.
	FragmentTimeout time.Duration
	SendGap         time.Duration

	mu       sync.Mutex
	pending  *pendingRequest
	earliest time.Time // next send accepted at or after this instant
	closed   bool

	events    chan *Response
	startOnce sync.Once
}

// NewDevice creates a device core on the given transport. A nil checksum
// selects the default strategy; a nil logger discards logs.
func NewDevice(t Transport, cs Checksum, logger *slog.Logger) *Device {
	if cs == nil {
		cs = DefaultChecksum()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	stats := NewStatistics()
	reasm := NewReassembler(cs)
	reasm.Stats = stats
	return &Device{
		transport:       t,
		checksum:        cs,
		reasm:           reasm,
		stats:           stats,
		log:             logger,
		FragmentTimeout: DefaultFragmentTimeout,
		SendGap:         DefaultSendGap,
		events:          make(chan *Response, 16),
	}
}

// Stats returns a consistent copy of the connection's counters, safe to
// read from any goroutine.
func (d *Device) Stats() Statistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats.Snapshot()
}

// Events is the stream of completed responses that had no matching request:
// late completions after a timeout, or pushes the device sends on its own.
// The channel is closed when the connection goes away.
func (d *Device) Events() <-chan *Response {
	return d.events
}

// Start launches the event loop that feeds notifications through the
// reassembler. It must be called once before Send; further calls are no-ops.
func (d *Device) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.run(ctx)
	})
}

// Close shuts the transport down, which fails any in-flight request with
// ErrConnectionClosed.
func (d *Device) Close() error {
	return d.transport.Close()
}

// Send issues a command and suspends the caller until the response
// completes, fails, or times out. expect selects how the response payload
// is decoded. A timeout <= 0 selects DefaultRequestTimeout.
//
// The in-flight and pacing checks fail fast: callers serialise their own
// command sequences and retry after ErrBusy resolution or after the time
// reported by a TooSoonError.
func (d *Device) Send(ctx context.Context, spec CommandSpec, expect Kind, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	frame, err := EncodeCommand(spec, d.checksum)
	if err != nil {
		return nil, err
	}

	p := &pendingRequest{
		spec: spec,
		kind: expect,
		done: make(chan result, 1),
	}

	now := time.Now()
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	if d.pending != nil {
		d.stats.BusyRejections++
		d.mu.Unlock()
		return nil, ErrBusy
	}
	if now.Before(d.earliest) {
		earliest := d.earliest
		d.stats.PacingRejections++
		d.mu.Unlock()
		return nil, &TooSoonError{Earliest: earliest}
	}
	p.issuedAt = now
	d.pending = p
	d.earliest = now.Add(d.SendGap)
	d.stats.RequestsSent++
	d.mu.Unlock()

	d.log.Debug("sending command", "command", spec.String(), "expect", expect.String())
	if err := d.transport.Write(ctx, frame); err != nil {
		d.abandon(p)
		return nil, fmt.Errorf("geni: write failed: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-p.done:
		return res.resp, res.err
	case <-timer.C:
		if d.abandon(p) {
			d.mu.Lock()
			d.stats.RequestTimeouts++
			d.mu.Unlock()
			return nil, ErrRequestTimeout
		}
		// Resolved in the gap between timer fire and abandon.
		res := <-p.done
		return res.resp, res.err
	case <-ctx.Done():
		if d.abandon(p) {
			return nil, ctx.Err()
		}
		res := <-p.done
		return res.resp, res.err
	}
}

// WriteCommand encodes and writes a command without waiting for a response.
// The busy and pacing rules still apply so a fire-and-forget write cannot
// land in the middle of a pending exchange.
func (d *Device) WriteCommand(ctx context.Context, spec CommandSpec) error {
	frame, err := EncodeCommand(spec, d.checksum)
	if err != nil {
		return err
	}

	now := time.Now()
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrConnectionClosed
	}
	if d.pending != nil {
		d.stats.BusyRejections++
		d.mu.Unlock()
		return ErrBusy
	}
	if now.Before(d.earliest) {
		earliest := d.earliest
		d.stats.PacingRejections++
		d.mu.Unlock()
		return &TooSoonError{Earliest: earliest}
	}
	d.earliest = now.Add(d.SendGap)
	d.mu.Unlock()

	d.log.Debug("writing command", "command", spec.String())
	return d.transport.Write(ctx, frame)
}

// Handshake writes the connection handshake. The pump answers nothing
// framed to it but ignores queries until it has been sent.
func (d *Device) Handshake(ctx context.Context) error {
	return d.WriteCommand(ctx, NewHandshake())
}

// abandon clears p if it is still the pending request. Reports whether this
// call won the race against the event loop resolving it.
func (d *Device) abandon(p *pendingRequest) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == p {
		d.pending = nil
		return true
	}
	return false
}

// run is the per-connection event loop: every inbound packet, reassembly
// timeout, and connection-loss signal passes through here, one at a time.
func (d *Device) run(ctx context.Context) {
	fragTimer := time.NewTimer(d.FragmentTimeout)
	if !fragTimer.Stop() {
		<-fragTimer.C
	}
	defer fragTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.teardown()
			return

		case <-d.transport.Done():
			d.teardown()
			return

		case pkt, ok := <-d.transport.Notifications():
			if !ok {
				d.teardown()
				return
			}
			d.handlePacket(pkt, fragTimer)

		case <-fragTimer.C:
			d.mu.Lock()
			expired := d.reasm.Expire()
			d.mu.Unlock()
			if expired {
				d.log.Warn("reassembly timed out waiting for continuation")
				d.fail(ErrReassemblyTimeout)
			}
		}
	}
}

// handlePacket feeds one notification through the reassembler and keeps the
// inter-fragment timer honest: armed while collecting, quiet while idle.
// Feed mutates the shared counters, so it runs under d.mu like the request
// counters do; Stats snapshots under the same lock.
func (d *Device) handlePacket(pkt []byte, fragTimer *time.Timer) {
	d.mu.Lock()
	msg, err := d.reasm.Feed(pkt)
	d.mu.Unlock()

	if !fragTimer.Stop() {
		select {
		case <-fragTimer.C:
		default:
		}
	}
	if d.reasm.Collecting() {
		fragTimer.Reset(d.FragmentTimeout)
	}

	if err != nil {
		switch {
		case errors.Is(err, ErrChecksumMismatch), errors.Is(err, ErrTruncated):
			// The message is lost; the request that asked for it fails.
			d.log.Warn("message integrity failure", "error", err)
			d.fail(err)
		default:
			// Decode-layer warning only. The reassembler is idle again and
			// any pending request keeps waiting for its deadline.
			d.log.Warn("dropped malformed fragment", "error", err)
		}
		return
	}
	if msg == nil {
		return
	}
	d.deliver(msg)
}

// deliver resolves the pending request with a completed message, or pushes
// it on the event stream when nothing is waiting.
func (d *Device) deliver(msg *Message) {
	d.mu.Lock()
	p := d.pending
	d.pending = nil
	if p != nil {
		v, err := msg.Decode(p.kind)
		if err != nil {
			d.stats.RequestsFailed++
			d.mu.Unlock()
			p.done <- result{err: err}
			return
		}
		d.stats.RequestsResolved++
		d.mu.Unlock()
		p.done <- result{resp: &Response{
			Subtype:   msg.Subtype(),
			Value:     v,
			Raw:       msg.Raw(),
			Fragments: msg.Fragments(),
			At:        msg.Timestamp(),
		}}
		return
	}
	d.stats.UnsolicitedMsgs++
	d.mu.Unlock()

	v, _ := msg.Decode(KindRaw)
	resp := &Response{
		Subtype:   msg.Subtype(),
		Value:     v,
		Raw:       msg.Raw(),
		Fragments: msg.Fragments(),
		At:        msg.Timestamp(),
	}
	select {
	case d.events <- resp:
	default:
		d.log.Warn("event stream full, dropping unsolicited response",
			"subtype", fmt.Sprintf("%04x", msg.Subtype()))
	}
}

// fail resolves the pending request with a protocol failure, if one exists.
func (d *Device) fail(err error) {
	d.mu.Lock()
	p := d.pending
	d.pending = nil
	if p != nil {
		d.stats.RequestsFailed++
	}
	d.mu.Unlock()
	if p != nil {
		p.done <- result{err: err}
	}
}

// teardown fails any in-flight request with ErrConnectionClosed and closes
// the event stream. The reassembler is reset so no partial state could leak
// even if the instance were (incorrectly) reused.
func (d *Device) teardown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	p := d.pending
	d.pending = nil
	d.mu.Unlock()

	if p != nil {
		p.done <- result{err: ErrConnectionClosed}
	}
	d.reasm.Reset()
	close(d.events)
	d.log.Debug("device core shut down")
}
