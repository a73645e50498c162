// Package streamclient implements Component B, the streaming client: it
// owns the bidirectional stream's lifecycle, forwards buffered messages,
// observes peer backpressure, and routes inbound acknowledgements back
// into the buffer and the ack/timeout tracker.
//
// Client itself is not safe for concurrent use: Flush and HandleEvent must
// both run on the owning logger's single dispatcher goroutine (see the
// root critlog package). The one piece of unavoidable concurrency — reading
// the next response off an open stream — lives entirely inside receiveLoop,
// which does nothing but decode and forward; it never touches the buffer,
// the tracker, or the stream handle itself.
package streamclient

import (
	"context"
	"time"

	"github.com/hyp3rd/critlog/internal/buffer"
	"github.com/hyp3rd/critlog/internal/wire"
	"github.com/hyp3rd/critlog/pkg/transport"
)

// Buffer is the capability Client needs from Component A. It is satisfied
// by *buffer.Buffer; Component B is always wired to the concrete Component
// A implementation, so this interface exists for tests, not polymorphism.
type Buffer interface {
	SendPending(sender buffer.Sender) []uint32
	OnAck(id uint32)
	Rebuffer(id uint32)
}

// Tracker is the capability Client needs from Component C.
type Tracker interface {
	Track(ids []uint32, deadline time.Time)
	Received(id uint32)
}

// Metrics receives the counters and gauge named in the specification that
// are Component B's responsibility to maintain.
type Metrics interface {
	IncAckReceived()
	IncNackReceived()
	IncPendingCriticalLogs()
	DecPendingCriticalLogs()
}

// EventKind discriminates the events a stream's receive loop can produce.
type EventKind uint8

const (
	// EventAck reports a collector acknowledgement for a message id.
	EventAck EventKind = iota
	// EventNack reports a collector rejection for a message id.
	EventNack
	// EventRemoteClose reports that the stream ended (cleanly or not).
	EventRemoteClose
)

// Event is a single inbound occurrence on the current stream, tagged with
// the generation of the stream it came from so a Client can discard events
// from a stream it has already dropped.
type Event struct {
	Kind       EventKind
	ID         uint32
	Generation uint64
}

// Client is the Component B streaming client.
type Client struct {
	opener      transport.Opener
	buf         Buffer
	tracker     Tracker
	metrics     Metrics
	ackTimeout  time.Duration
	events      chan Event
	stream      transport.Stream
	generation  uint64
	nowFunc     func() time.Time
}

// Config carries the fixed collaborators and tuning knobs a Client needs.
type Config struct {
	Opener         transport.Opener
	Buffer         Buffer
	Tracker        Tracker
	Metrics        Metrics
	AckTimeout     time.Duration
	EventQueueSize int
}

// New creates a Client in the Absent state.
func New(cfg Config) *Client {
	queueSize := cfg.EventQueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	return &Client{
		opener:     cfg.Opener,
		buf:        cfg.Buffer,
		tracker:    cfg.Tracker,
		metrics:    cfg.Metrics,
		ackTimeout: cfg.AckTimeout,
		events:     make(chan Event, queueSize),
		nowFunc:    time.Now,
	}
}

// Events returns the channel the owning dispatcher must drain and route to
// HandleEvent.
func (c *Client) Events() <-chan Event {
	return c.events
}

// IsOpen reports whether a stream handle is currently held. Its presence is
// the single source of truth for "the logger is connected".
func (c *Client) IsOpen() bool {
	return c.stream != nil
}

// Flush opens a stream if one is not already open, then forwards every
// Buffered message in the buffer. If the stream reports it is above its
// high watermark before sending, the stream handle is dropped and no
// message is sent; the caller's next Flush will retry. Returns the ids
// that were newly marked Pending, or nil if nothing was sent.
func (c *Client) Flush(ctx context.Context) []uint32 {
	if c.stream == nil {
		stream, err := c.opener.Open(ctx)
		if err != nil {
			// Stream open failure is treated as an immediate remote close:
			// the client stays Absent and the caller retries on the next
			// flush interval.
			return nil
		}

		c.stream = stream
		c.generation++
		generation := c.generation

		go c.receiveLoop(stream, generation)
	}

	if c.stream.AboveHighWatermark() {
		c.dropStream()

		return nil
	}

	ids := c.buf.SendPending(senderAdapter{c.stream})
	if len(ids) == 0 {
		return nil
	}

	c.tracker.Track(ids, c.nowFunc().Add(c.ackTimeout))
	// Per the specification's preserved open question, the pending gauge
	// is incremented once per flush batch, not once per message.
	c.metrics.IncPendingCriticalLogs()

	return ids
}

// HandleEvent applies an inbound event produced by receiveLoop. Events from
// a stream generation older than the current one are discarded: the stream
// they came from has already been dropped, and on_remote_close never
// interleaves with an in-progress flush on the same dispatcher.
func (c *Client) HandleEvent(ev Event) {
	if ev.Generation != c.generation {
		return
	}

	switch ev.Kind {
	case EventAck:
		c.tracker.Received(ev.ID)
		c.buf.OnAck(ev.ID)
		c.metrics.IncAckReceived()
		c.metrics.DecPendingCriticalLogs()
	case EventNack:
		c.metrics.IncNackReceived()
		c.buf.Rebuffer(ev.ID)
	case EventRemoteClose:
		c.dropStream()
	}
}

// Close releases the stream handle unconditionally. Used on logger
// shutdown; any in-flight deadline cohorts are left for the caller to
// discard.
func (c *Client) Close() error {
	if c.stream == nil {
		return nil
	}

	err := c.stream.Close()
	c.stream = nil
	c.generation++

	return err
}

func (c *Client) dropStream() {
	if c.stream == nil {
		return
	}

	_ = c.stream.Close()
	c.stream = nil
	c.generation++
}

func (c *Client) receiveLoop(stream transport.Stream, generation uint64) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			c.events <- Event{Kind: EventRemoteClose, Generation: generation}

			return
		}

		switch resp.Status {
		case wire.StatusAck:
			c.events <- Event{Kind: EventAck, ID: resp.ID, Generation: generation}
		case wire.StatusNack:
			c.events <- Event{Kind: EventNack, ID: resp.ID, Generation: generation}
		default:
			continue
		}
	}
}

type senderAdapter struct {
	stream transport.Stream
}

func (s senderAdapter) Send(req wire.Request) error {
	return s.stream.Send(req)
}
