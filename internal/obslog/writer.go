package obslog

import (
	"io"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyp3rd/ewrap"
)

// OverflowStrategy controls what happens when the async writer's buffer is
// full.
type OverflowStrategy int

const (
	// OverflowDropNewest drops the incoming log line. Default.
	OverflowDropNewest OverflowStrategy = iota
	// OverflowBlock makes the caller block until there is space.
	OverflowBlock
	// OverflowDropOldest discards the oldest buffered line to make space.
	OverflowDropOldest
	// OverflowHandoff writes the line synchronously when the buffer is full.
	OverflowHandoff
)

const (
	defaultBufferSize   = 1024
	defaultWaitTimeout  = 5 * time.Second
	defaultRetryBackoff = 10 * time.Millisecond
)

// WriterConfig configures an asyncWriter.
type WriterConfig struct {
	BufferSize             int
	WaitTimeout            time.Duration
	OverflowStrategy       OverflowStrategy
	DropHandler            DropHandler
	ErrorHandler           func(error)
	RetryEnabled           bool
	MaxRetries             int
	RetryBackoff           time.Duration
	RetryBackoffMultiplier float64
	RetryMaxBackoff        time.Duration
}

// asyncWriter decouples log encoding from the underlying sink's I/O:
// Write enqueues an already-encoded line onto a channel drained by a single
// background goroutine, so a slow sink (a file on a loaded disk, a pipe to
// a log shipper) cannot stall the caller's dispatcher goroutine.
type asyncWriter struct {
	out         io.Writer
	config      WriterConfig
	msgCh       chan *payload
	stopCh      chan struct{}
	flushCh     chan chan struct{}
	wg          sync.WaitGroup
	closed      bool
	closeMutex  sync.Mutex
	payloadPool *sync.Pool

	enqueuedCount  atomic.Uint64
	processedCount atomic.Uint64
	droppedCount   atomic.Uint64
	writeErrors    atomic.Uint64
	retryCount     atomic.Uint64
	bypassCount    atomic.Uint64
}

// WriterMetrics is a point-in-time snapshot of an asyncWriter's counters.
type WriterMetrics struct {
	Enqueued   uint64
	Processed  uint64
	Dropped    uint64
	WriteError uint64
	Retried    uint64
	QueueDepth int
	Bypassed   uint64
}

type payload struct {
	data    []byte
	storage *[]byte
}

// newAsyncWriter creates an asyncWriter that writes to out asynchronously.
func newAsyncWriter(out io.Writer, config WriterConfig) *asyncWriter {
	if config.BufferSize <= 0 {
		config.BufferSize = defaultBufferSize
	}

	if config.WaitTimeout <= 0 {
		config.WaitTimeout = defaultWaitTimeout
	}

	if config.ErrorHandler == nil {
		config.ErrorHandler = func(error) {}
	}

	if config.DropHandler == nil {
		counter := &dropCounter{}
		config.DropHandler = counter.handle
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaultRetryBackoff
	}

	if config.RetryBackoffMultiplier <= 1 {
		config.RetryBackoffMultiplier = 2
	}

	if config.RetryMaxBackoff <= 0 {
		config.RetryMaxBackoff = config.RetryBackoff * 10
	}

	pool := &sync.Pool{
		New: func() any {
			buf := make([]byte, 0, defaultBufferSize)

			return &buf
		},
	}

	w := &asyncWriter{
		out:         out,
		config:      config,
		msgCh:       make(chan *payload, config.BufferSize),
		stopCh:      make(chan struct{}),
		flushCh:     make(chan chan struct{}, 1),
		payloadPool: pool,
	}

	w.wg.Add(1)

	go w.processLogs()

	return w
}

// Write implements io.Writer.
func (w *asyncWriter) Write(data []byte) (int, error) {
	w.closeMutex.Lock()
	closed := w.closed
	w.closeMutex.Unlock()

	if closed {
		return 0, ErrWriterClosed
	}

	p := w.borrow(data)

	switch w.config.OverflowStrategy {
	case OverflowBlock:
		select {
		case w.msgCh <- p:
			w.enqueuedCount.Add(1)

			return len(data), nil
		case <-w.stopCh:
			w.release(p)

			return 0, ErrWriterClosed
		}
	case OverflowDropOldest:
		if w.tryEnqueue(p) {
			return len(data), nil
		}

		w.discardOldest()

		if w.tryEnqueue(p) {
			return len(data), nil
		}

		w.recordOverflow(p)

		return 0, ErrBufferFull
	case OverflowHandoff:
		if w.tryEnqueue(p) {
			return len(data), nil
		}

		return w.writeDirect(p)
	default:
		if w.tryEnqueue(p) {
			return len(data), nil
		}

		w.recordOverflow(p)

		return 0, ErrBufferFull
	}
}

// WriteCritical bypasses the buffer and writes synchronously. Adapter uses
// it for every ErrorLevel line, where asynchronous delivery could be lost.
func (w *asyncWriter) WriteCritical(data []byte) (int, error) {
	w.closeMutex.Lock()
	closed := w.closed
	w.closeMutex.Unlock()

	if closed {
		return 0, ErrWriterClosed
	}

	return w.writeDirect(w.borrow(data))
}

// Sync flushes all buffered lines.
func (w *asyncWriter) Sync() error { return w.Flush() }

// Flush waits for all currently buffered lines to be written.
func (w *asyncWriter) Flush() error {
	w.closeMutex.Lock()

	if w.closed {
		w.closeMutex.Unlock()

		return ErrWriterClosed
	}

	w.closeMutex.Unlock()

	done := make(chan struct{})
	w.flushCh <- done

	select {
	case <-done:
		return w.syncUnderlying()
	case <-time.After(w.config.WaitTimeout):
		return ErrFlushTimeout
	}
}

// Close stops the background goroutine and closes the underlying writer if
// it is an io.Closer, except for stdout/stderr.
func (w *asyncWriter) Close() error {
	w.closeMutex.Lock()
	defer w.closeMutex.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	w.closed = true

	close(w.stopCh)
	close(w.msgCh)
	w.wg.Wait()

	if err := w.syncUnderlying(); err != nil {
		return err
	}

	return w.closeUnderlying()
}

// Metrics returns a snapshot of the writer's counters.
func (w *asyncWriter) Metrics() WriterMetrics {
	return WriterMetrics{
		Enqueued:   w.enqueuedCount.Load(),
		Processed:  w.processedCount.Load(),
		Dropped:    w.droppedCount.Load(),
		WriteError: w.writeErrors.Load(),
		Retried:    w.retryCount.Load(),
		QueueDepth: len(w.msgCh),
		Bypassed:   w.bypassCount.Load(),
	}
}

func (w *asyncWriter) processLogs() {
	defer w.wg.Done()

	for {
		select {
		case msg, ok := <-w.msgCh:
			if !ok {
				return
			}

			w.writeMessage(msg)
		case done := <-w.flushCh:
			w.handleFlush(done)
		case <-w.stopCh:
			w.drain()

			return
		}
	}
}

func (w *asyncWriter) writeMessage(p *payload) {
	if p == nil {
		return
	}

	if err := w.performWrite(p.data); err != nil {
		w.handleDrop(p)
		w.droppedCount.Add(1)

		return
	}

	w.release(p)
}

func (w *asyncWriter) handleFlush(done chan struct{}) {
	for {
		select {
		case msg, ok := <-w.msgCh:
			if !ok {
				close(done)

				return
			}

			w.writeMessage(msg)
		default:
			close(done)

			return
		}
	}
}

func (w *asyncWriter) writeDirect(p *payload) (int, error) {
	if p == nil {
		return 0, nil
	}

	if err := w.performWrite(p.data); err != nil {
		w.release(p)

		return 0, err
	}

	w.bypassCount.Add(1)

	written := len(p.data)
	w.release(p)

	return written, nil
}

func (w *asyncWriter) performWrite(msg []byte) error {
	attempt := 0
	backoff := w.config.RetryBackoff

	for {
		_, err := w.out.Write(msg)
		if err == nil {
			w.processedCount.Add(1)

			return nil
		}

		w.writeErrors.Add(1)
		w.config.ErrorHandler(err)

		if !w.config.RetryEnabled || attempt >= w.config.MaxRetries {
			return ewrap.Wrap(err, "obslog: writing log line")
		}

		attempt++
		w.retryCount.Add(1)
		time.Sleep(backoff)

		backoff = time.Duration(math.Min(
			float64(w.config.RetryMaxBackoff),
			float64(backoff)*w.config.RetryBackoffMultiplier,
		))
	}
}

func (w *asyncWriter) drain() {
	for {
		select {
		case msg, ok := <-w.msgCh:
			if !ok {
				return
			}

			w.writeMessage(msg)
		default:
			return
		}
	}
}

func (w *asyncWriter) discardOldest() {
	select {
	case p, ok := <-w.msgCh:
		if ok {
			w.handleDrop(p)
			w.droppedCount.Add(1)
		}
	default:
	}
}

func (w *asyncWriter) recordOverflow(p *payload) {
	if p == nil {
		return
	}

	w.handleDrop(p)
	w.droppedCount.Add(1)
	w.config.ErrorHandler(ErrBufferFull)
}

func (w *asyncWriter) tryEnqueue(p *payload) bool {
	select {
	case w.msgCh <- p:
		w.enqueuedCount.Add(1)

		return true
	default:
		return false
	}
}

func (w *asyncWriter) handleDrop(p *payload) {
	if p == nil {
		return
	}

	w.config.DropHandler(&dropPayload{data: p.data})
	w.release(p)
}

func (w *asyncWriter) borrow(src []byte) *payload {
	size := len(src)

	var storage *[]byte

	if raw := w.payloadPool.Get(); raw != nil {
		if candidate, ok := raw.(*[]byte); ok && candidate != nil {
			storage = candidate
		}
	}

	if storage == nil {
		buf := make([]byte, 0, size)
		storage = &buf
	}

	data := *storage
	if cap(data) < size {
		data = make([]byte, size)
	}

	data = data[:size]
	copy(data, src)
	*storage = data

	return &payload{data: data, storage: storage}
}

func (w *asyncWriter) release(p *payload) {
	if p == nil || p.storage == nil {
		return
	}

	buf := (*p.storage)[:0]
	*p.storage = buf
	w.payloadPool.Put(p.storage)
	p.storage = nil
	p.data = nil
}

func (w *asyncWriter) syncUnderlying() error {
	if syncer, ok := w.out.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			return ewrap.Wrap(err, "obslog: syncing underlying writer")
		}
	}

	return nil
}

func (w *asyncWriter) closeUnderlying() error {
	closer, ok := w.out.(io.Closer)
	if !ok {
		return nil
	}

	if f, ok := closer.(*os.File); ok && (f == os.Stdout || f == os.Stderr) {
		return nil
	}

	if err := closer.Close(); err != nil {
		return ewrap.Wrap(err, "obslog: closing underlying writer")
	}

	return nil
}
