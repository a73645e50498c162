package critlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hyp3rd/critlog/internal/ack"
	"github.com/hyp3rd/critlog/internal/buffer"
	"github.com/hyp3rd/critlog/internal/fingerprint"
	"github.com/hyp3rd/critlog/internal/obslog"
	"github.com/hyp3rd/critlog/internal/streamclient"
	"github.com/hyp3rd/critlog/internal/wire"
	"github.com/hyp3rd/critlog/pkg/metrics"
)

// Entry is a single critical log record a caller wants delivered to the
// collector at least once. Marshal is called on the dispatcher goroutine;
// implementations should not do their own I/O.
type Entry interface {
	// Marshal renders the entry's payload bytes. The result is sent as a
	// wire.Batch entry; the fingerprint used for deduplication is taken over
	// the serialized composite batch that holds it.
	Marshal() ([]byte, error)
	// Kind reports whether this entry belongs to an HTTP or TCP access log
	// stream, mirroring the source's dual log-type support.
	Kind() wire.Kind
}

type logRequest struct {
	entry  Entry
	result chan error
}

// Logger is the Component D facade: entry ingestion, buffering, and
// delivery are all serialized onto a single dispatcher goroutine so that
// Component A, B, and C never need their own locks.
type Logger struct {
	cfg Config

	buf     *buffer.Buffer
	tracker *ack.Tracker
	client  *streamclient.Client
	metrics *metrics.Metrics
	log     obslog.Logger

	requests chan logRequest
	closeCh  chan struct{}
	doneCh   chan struct{}

	// composite accumulates entries between flushes: the pending message
	// Component D builds up via ingest and hands to Component A whole, per
	// the source's addCriticalMessageEntry/flushCriticalMessage split.
	composite     wire.Batch
	compositeSize int
}

// New constructs a Logger and starts its dispatcher goroutine. Callers must
// call Close when done to release the underlying stream.
func New(cfg Config) (*Logger, error) {
	if cfg.Opener == nil {
		return nil, ErrMissingOpener
	}

	if cfg.MaxBufferBytes <= 0 {
		return nil, ErrMissingMaxBufferBytes
	}

	cfg.applyDefaults()

	m := metrics.New(cfg.MetricsRegisterer)
	buf := buffer.New(cfg.MaxPendingBufferBytes)
	tracker := ack.New()

	client := streamclient.New(streamclient.Config{
		Opener:         cfg.Opener,
		Buffer:         buf,
		Tracker:        tracker,
		Metrics:        m,
		AckTimeout:     cfg.MessageAckTimeout,
		EventQueueSize: cfg.EventQueueSize,
	})

	l := &Logger{
		cfg:      cfg,
		buf:      buf,
		tracker:  tracker,
		client:   client,
		metrics:  m,
		log:      cfg.ObsLog,
		requests: make(chan logRequest, cfg.EntryQueueSize),
		closeCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go l.dispatch()

	return l, nil
}

// Log submits entry for delivery. It returns once the entry has been
// appended to the pending composite message (and, if that pushed the
// composite past Config.MaxBufferBytes, once the composite has been
// flushed), not once it has been acknowledged: acknowledgement is
// asynchronous by design. Fingerprinting and buffering of the composite
// happen at flush time.
func (l *Logger) Log(ctx context.Context, entry Entry) error {
	if entry == nil {
		return ErrNilEntry
	}

	result := make(chan error, 1)

	select {
	case l.requests <- logRequest{entry: entry, result: result}:
	case <-l.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-l.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the dispatcher goroutine and releases the stream. It blocks
// until the dispatcher has exited.
func (l *Logger) Close() error {
	close(l.closeCh)
	<-l.doneCh

	return l.client.Close()
}

func (l *Logger) dispatch() {
	defer close(l.doneCh)

	flushTicker := time.NewTicker(l.cfg.FlushInterval)
	defer flushTicker.Stop()

	tickTicker := time.NewTicker(l.cfg.TickInterval)
	defer tickTicker.Stop()

	for {
		select {
		case req := <-l.requests:
			req.result <- l.ingest(req.entry)
		case ev := <-l.client.Events():
			l.client.HandleEvent(ev)

			if ev.Kind == streamclient.EventRemoteClose {
				l.log.Warn("stream closed", obslog.Uint32("stream_generation", uint32(ev.Generation)))
			}
		case <-flushTicker.C:
			l.flush()
		case <-tickTicker.C:
			l.tracker.Tick(time.Now(), l.buf, l.metrics)
		case <-l.closeCh:
			return
		}
	}
}

// ingest appends entry to the pending composite message and adds its size
// to the approximate running counter. If the counter exceeds
// Config.MaxBufferBytes, it triggers an immediate flush rather than waiting
// for the periodic timer, mirroring logCritical/addCriticalMessageEntry.
func (l *Logger) ingest(entry Entry) error {
	payload, err := entry.Marshal()
	if err != nil {
		return err
	}

	if l.composite.Empty() {
		l.composite.Kind = entry.Kind()
	}

	l.composite.Entries = append(l.composite.Entries, payload)
	l.compositeSize += len(payload)

	if l.compositeSize > l.cfg.MaxBufferBytes {
		l.flush()
	}

	return nil
}

// flush hands the pending composite to Component A whole, then always gives
// Component B a chance to drain the buffer. That second step is what lets a
// message rebuffered by a nack, an ack timeout, or a watermark drop get
// resent on a later tick even when no new entry has been logged since.
func (l *Logger) flush() {
	if !l.composite.Empty() {
		req := wire.Request{Message: l.composite}

		// The identifier is stamped on the composite built while no stream
		// is open, which covers both the first flush ever and any flush
		// after a drop; composites built while a stream is open carry none.
		// Requests already in the buffer keep whatever identifier they were
		// built with when they are resent, and the order in which
		// SendPending sends them on a new stream is not defined.
		if !l.client.IsOpen() {
			req.Identifier = &wire.Identifier{
				Node: wire.NodeInfo{
					ID:      l.cfg.Node.ID,
					Cluster: l.cfg.Node.Cluster,
					Zone:    l.cfg.Node.Zone,
				},
				LogName: l.cfg.LogName,
			}
		}

		data, err := json.Marshal(l.composite)
		if err != nil {
			l.log.Error("encoding composite for fingerprint", obslog.Err(err))

			return
		}

		req.ID = fingerprint.Of(data)
		size := l.composite.Size()

		l.composite = wire.Batch{}
		l.compositeSize = 0

		l.buf.Buffer(req.ID, req, size)
	}

	// This bounds only the attempt to open a stream, per transport.Opener's
	// contract; cancel() firing when flush returns must not (and, for the
	// gRPC transport, does not) tear down a stream Open already handed back.
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.FlushInterval)
	defer cancel()

	ids := l.client.Flush(ctx)
	if len(ids) == 0 {
		return
	}

	l.log.Debug("flushed critical log batch", obslog.Int("count", len(ids)))
}
