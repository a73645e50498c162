package critlog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hyp3rd/critlog/internal/obslog"
	"github.com/hyp3rd/critlog/pkg/transport"
)

const (
	defaultMaxPendingBufferBytes = 16384
	defaultFlushInterval         = 500 * time.Millisecond
	defaultAckTimeout            = 5 * time.Second
	defaultEventQueueSize        = 64
	defaultEntryQueueSize        = 1024
	minTickInterval              = 250 * time.Millisecond
)

// NodeInfo identifies the process this Logger runs in to the collector. It
// is stamped on the composite message built while no stream is open.
type NodeInfo struct {
	ID      string
	Cluster string
	Zone    string
}

// Config configures a Logger.
type Config struct {
	// Opener creates the transport.Stream a Logger's streaming client talks
	// over. Required.
	Opener transport.Opener
	// Node is stamped on the composite message built by a flush that runs
	// while no stream is open.
	Node NodeInfo
	// LogName identifies which critical log stream this Logger belongs to,
	// analogous to Envoy's access log config name.
	LogName string
	// MaxBufferBytes is the approximate size, in bytes, of the pending
	// composite message that triggers a size-based flush. Required: it has
	// no default, matching the source configuration surface.
	MaxBufferBytes int
	// MaxPendingBufferBytes caps the total size of buffered-but-unacknowledged
	// wire requests held by the message buffer; requests offered past the
	// cap are dropped silently. Defaults to 16384, the source's default for
	// the critical path's buffer.
	MaxPendingBufferBytes int
	// FlushInterval is how often the dispatcher goroutine attempts to open
	// a stream (if absent) and send buffered entries.
	FlushInterval time.Duration
	// MessageAckTimeout is how long a sent entry waits for an ack before
	// the ack/timeout tracker returns it to the buffer.
	MessageAckTimeout time.Duration
	// TickInterval is how often the dispatcher scans the ack/timeout
	// tracker for expired deadlines. Defaults to a quarter of
	// MessageAckTimeout, floored at 250ms.
	TickInterval time.Duration
	// EventQueueSize sizes the streaming client's inbound event channel.
	EventQueueSize int
	// EntryQueueSize sizes the dispatcher's inbound entry channel.
	EntryQueueSize int
	// ObsLog receives the Logger's own lifecycle events. Defaults to a
	// no-op logger.
	ObsLog obslog.Logger
	// MetricsRegisterer is the Prometheus registerer the domain metrics
	// (ack/nack/timeout counters, pending gauge) are registered against.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegisterer prometheus.Registerer
}

// DefaultConfig returns a Config with every tunable set to its default; the
// caller still must set Opener, Node, and MaxBufferBytes before passing it
// to New.
func DefaultConfig() Config {
	return Config{
		MaxPendingBufferBytes: defaultMaxPendingBufferBytes,
		FlushInterval:         defaultFlushInterval,
		MessageAckTimeout:     defaultAckTimeout,
		EventQueueSize:        defaultEventQueueSize,
		EntryQueueSize:        defaultEntryQueueSize,
		ObsLog:                obslog.NewNoop(),
	}
}

func (c *Config) applyDefaults() {
	if c.MaxPendingBufferBytes <= 0 {
		c.MaxPendingBufferBytes = defaultMaxPendingBufferBytes
	}

	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}

	if c.MessageAckTimeout <= 0 {
		c.MessageAckTimeout = defaultAckTimeout
	}

	if c.TickInterval <= 0 {
		c.TickInterval = c.MessageAckTimeout / 4
		if c.TickInterval < minTickInterval {
			c.TickInterval = minTickInterval
		}
	}

	if c.EventQueueSize <= 0 {
		c.EventQueueSize = defaultEventQueueSize
	}

	if c.EntryQueueSize <= 0 {
		c.EntryQueueSize = defaultEntryQueueSize
	}

	if c.ObsLog == nil {
		c.ObsLog = obslog.NewNoop()
	}
}
