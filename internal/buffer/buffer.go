// Package buffer implements the bounded, fingerprint-keyed message buffer
// described as Component A: it holds outgoing wire requests keyed by their
// content fingerprint, enforces a hard byte budget, and tracks each
// message's Buffered/Pending state.
//
// A Buffer is not safe for concurrent use. Every logger owns exactly one
// dispatcher goroutine (see the root critlog package) and all buffer
// mutation happens on that goroutine, so no internal locking is needed.
package buffer

import "github.com/hyp3rd/critlog/internal/wire"

// State is the lifecycle state of a buffered message.
type State uint8

const (
	// Buffered means the message is awaiting send.
	Buffered State = iota
	// Pending means the message was sent and is awaiting acknowledgement.
	Pending
)

// Message is a single buffered wire request plus its bookkeeping state.
type Message struct {
	ID      uint32
	State   State
	Payload wire.Request
	Size    int
}

// Sender receives a message that has just transitioned to Pending. It
// mirrors Grpc::AsyncStream::sendMessage from the source implementation.
type Sender interface {
	Send(msg wire.Request) error
}

// Buffer is the Component A message buffer.
type Buffer struct {
	maxBytes     int
	currentBytes int
	entries      map[uint32]*Message
}

// New creates an empty Buffer with the given hard byte budget.
func New(maxBufferBytes int) *Buffer {
	return &Buffer{
		maxBytes: maxBufferBytes,
		entries:  make(map[uint32]*Message),
	}
}

// CurrentBytes returns the sum of payload sizes currently held.
func (b *Buffer) CurrentBytes() int {
	return b.currentBytes
}

// Len returns the number of distinct fingerprints currently buffered.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// Buffer stores (id, message) in state Buffered, provided the byte budget
// allows it. If id already exists it is left untouched — buffering is
// idempotent on the fingerprint, which is what makes it safe to call again
// from the timeout-driven retry path with an identical payload. If adding
// the message would exceed maxBytes, the call is a silent no-op: access
// logging must never backpressure the data plane.
func (b *Buffer) Buffer(id uint32, req wire.Request, size int) {
	if _, exists := b.entries[id]; exists {
		return
	}

	if b.currentBytes+size > b.maxBytes {
		return
	}

	b.entries[id] = &Message{
		ID:      id,
		State:   Buffered,
		Payload: req,
		Size:    size,
	}
	b.currentBytes += size
}

// SendPending forwards every Buffered entry to sender, flips it to Pending,
// and returns the set of ids that were newly marked Pending. Entries
// already Pending are skipped. Iteration order is unspecified.
func (b *Buffer) SendPending(sender Sender) []uint32 {
	inflight := make([]uint32, 0, len(b.entries))

	for id, msg := range b.entries {
		if msg.State == Pending {
			continue
		}

		msg.State = Pending
		inflight = append(inflight, id)
		_ = sender.Send(msg.Payload)
	}

	return inflight
}

// OnAck removes id if it is present and Pending, decrementing the byte
// budget. Absent ids or ids still Buffered are no-ops (ack(id); ack(id) is
// observably equivalent to ack(id)).
func (b *Buffer) OnAck(id uint32) {
	msg, ok := b.entries[id]
	if !ok || msg.State != Pending {
		return
	}

	b.currentBytes -= msg.Size
	delete(b.entries, id)
}

// OnNack either rebuffers id (state flips back to Buffered so it is resent
// on the next flush) or removes it outright, depending on rebuffer.
func (b *Buffer) OnNack(id uint32, rebuffer bool) {
	msg, ok := b.entries[id]
	if !ok {
		return
	}

	if rebuffer {
		msg.State = Buffered

		return
	}

	b.currentBytes -= msg.Size
	delete(b.entries, id)
}

// Rebuffer idempotently flips id back to Buffered. Used by the ack/timeout
// tracker when a deadline expires without a matching acknowledgement, and
// safe to call on an id that has already been removed (no-op) or is already
// Buffered (no-op).
func (b *Buffer) Rebuffer(id uint32) {
	if msg, ok := b.entries[id]; ok {
		msg.State = Buffered
	}
}

// Snapshot returns a defensive copy of the current entries, for tests that
// need to assert on buffer contents without exposing internal pointers.
func (b *Buffer) Snapshot() map[uint32]Message {
	out := make(map[uint32]Message, len(b.entries))
	for id, msg := range b.entries {
		out[id] = *msg
	}

	return out
}
