package critlog_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hyp3rd/critlog"
	"github.com/hyp3rd/critlog/internal/wire"
	"github.com/hyp3rd/critlog/pkg/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type jsonEntry struct {
	Message string `json:"message"`
}

func (e jsonEntry) Marshal() ([]byte, error) { return json.Marshal(e) }
func (jsonEntry) Kind() wire.Kind            { return wire.KindHTTP }

// memStream is a minimal in-process transport.Stream: sent messages are
// captured, and the test drives Recv by pushing onto respond.
type memStream struct {
	mu       sync.Mutex
	sent     []wire.Request
	respond  chan wire.Response
	closeErr chan error
	aboveWM  bool
	closed   bool
}

func newMemStream() *memStream {
	return &memStream{
		respond:  make(chan wire.Response, 32),
		closeErr: make(chan error, 1),
	}
}

func (s *memStream) Send(req wire.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)

	return nil
}

func (s *memStream) Recv() (wire.Response, error) {
	select {
	case r := <-s.respond:
		return r, nil
	case err := <-s.closeErr:
		return wire.Response{}, err
	}
}

func (s *memStream) AboveHighWatermark() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.aboveWM
}

func (s *memStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.closeErr <- context.Canceled

	return nil
}

func (s *memStream) sentBatches() []wire.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]wire.Batch, len(s.sent))
	for i, r := range s.sent {
		out[i] = r.Message
	}

	return out
}

func (s *memStream) sentIDs() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint32, len(s.sent))
	for i, r := range s.sent {
		ids[i] = r.ID
	}

	return ids
}

type memOpener struct {
	mu      sync.Mutex
	streams []*memStream
	nextErr error
}

func (o *memOpener) Open(context.Context) (transport.Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.nextErr != nil {
		err := o.nextErr
		o.nextErr = nil

		return nil, err
	}

	s := newMemStream()
	o.streams = append(o.streams, s)

	return s, nil
}

func (o *memOpener) last() *memStream {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.streams[len(o.streams)-1]
}

func (o *memOpener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.streams)
}

func newTestLogger(t *testing.T, opener *memOpener) *critlog.Logger {
	t.Helper()

	cfg := critlog.DefaultConfig()
	cfg.Opener = opener
	cfg.Node = critlog.NodeInfo{ID: "test-node"}
	cfg.LogName = "access_log"
	cfg.MaxBufferBytes = 1 << 20
	cfg.FlushInterval = 10 * time.Millisecond
	cfg.MessageAckTimeout = 60 * time.Millisecond
	cfg.TickInterval = 10 * time.Millisecond
	cfg.MetricsRegisterer = prometheus.NewRegistry()

	logger, err := critlog.New(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = logger.Close() })

	return logger
}

func TestHappyPathDeliversAndAcks(t *testing.T) {
	opener := &memOpener{}
	logger := newTestLogger(t, opener)

	require.NoError(t, logger.Log(context.Background(), jsonEntry{Message: "hello"}))

	require.Eventually(t, func() bool {
		return opener.count() > 0 && len(opener.last().sentIDs()) == 1
	}, time.Second, 5*time.Millisecond)

	stream := opener.last()
	stream.respond <- wire.Response{ID: stream.sentIDs()[0], Status: wire.StatusAck}

	// An acknowledged message must never be resent, including across the
	// ack-timeout window: wait past MessageAckTimeout and confirm the send
	// count stayed at one.
	time.Sleep(150 * time.Millisecond)
	require.Len(t, stream.sentIDs(), 1)
}

func TestNackTriggersRetry(t *testing.T) {
	opener := &memOpener{}
	logger := newTestLogger(t, opener)

	require.NoError(t, logger.Log(context.Background(), jsonEntry{Message: "retry-me"}))

	require.Eventually(t, func() bool {
		return opener.count() > 0 && len(opener.last().sentIDs()) == 1
	}, time.Second, 5*time.Millisecond)

	stream := opener.last()
	id := stream.sentIDs()[0]
	stream.respond <- wire.Response{ID: id, Status: wire.StatusNack}

	require.Eventually(t, func() bool {
		return len(opener.last().sentIDs()) >= 2
	}, time.Second, 5*time.Millisecond, "nacked message should be resent")
}

func TestAckTimeoutRebuffersAndResends(t *testing.T) {
	opener := &memOpener{}
	logger := newTestLogger(t, opener)

	require.NoError(t, logger.Log(context.Background(), jsonEntry{Message: "slow-collector"}))

	require.Eventually(t, func() bool {
		return opener.count() > 0 && len(opener.last().sentIDs()) == 1
	}, time.Second, 5*time.Millisecond)

	// No ack ever arrives; the ack timeout (60ms) should cause a resend on
	// a later flush tick without any collector response.
	require.Eventually(t, func() bool {
		return len(opener.last().sentIDs()) >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatermarkDropsStreamAndRetriesLater(t *testing.T) {
	opener := &memOpener{}
	logger := newTestLogger(t, opener)

	require.NoError(t, logger.Log(context.Background(), jsonEntry{Message: "first"}))

	require.Eventually(t, func() bool {
		return opener.count() > 0
	}, time.Second, 5*time.Millisecond)

	opener.last().aboveWM = true

	require.NoError(t, logger.Log(context.Background(), jsonEntry{Message: "second"}))

	require.Eventually(t, func() bool {
		return opener.count() >= 2
	}, time.Second, 5*time.Millisecond, "watermark should force a stream drop and reopen")
}

func TestReconnectPreservesUnacknowledgedPayload(t *testing.T) {
	opener := &memOpener{}
	logger := newTestLogger(t, opener)

	require.NoError(t, logger.Log(context.Background(), jsonEntry{Message: "preserved"}))

	require.Eventually(t, func() bool {
		return opener.count() > 0 && len(opener.last().sentIDs()) == 1
	}, time.Second, 5*time.Millisecond)

	first := opener.last()
	sentID := first.sentIDs()[0]
	_ = first.Close()

	require.Eventually(t, func() bool {
		return opener.count() >= 2 && len(opener.last().sentIDs()) >= 1
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, sentID, opener.last().sentIDs()[0])
}

func TestNewRequiresMaxBufferBytes(t *testing.T) {
	cfg := critlog.DefaultConfig()
	cfg.Opener = &memOpener{}
	cfg.Node = critlog.NodeInfo{ID: "test-node"}
	cfg.LogName = "access_log"

	_, err := critlog.New(cfg)
	require.ErrorIs(t, err, critlog.ErrMissingMaxBufferBytes)
}

func TestLogAccumulatesEntriesIntoOneCompositeRequest(t *testing.T) {
	opener := &memOpener{}
	cfg := critlog.DefaultConfig()
	cfg.Opener = opener
	cfg.Node = critlog.NodeInfo{ID: "test-node"}
	cfg.LogName = "access_log"
	cfg.MaxBufferBytes = 1 << 20
	cfg.FlushInterval = 200 * time.Millisecond
	cfg.MessageAckTimeout = time.Second
	cfg.TickInterval = 250 * time.Millisecond
	cfg.MetricsRegisterer = prometheus.NewRegistry()

	logger, err := critlog.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	require.NoError(t, logger.Log(context.Background(), jsonEntry{Message: "one"}))
	require.NoError(t, logger.Log(context.Background(), jsonEntry{Message: "two"}))

	require.Eventually(t, func() bool {
		return opener.count() > 0 && len(opener.last().sentIDs()) == 1
	}, time.Second, 5*time.Millisecond)

	batches := opener.last().sentBatches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Entries, 2, "entries logged before the flush tick fires must ship as one composite request")
}

func TestSizeTriggeredFlushBypassesTimer(t *testing.T) {
	opener := &memOpener{}
	cfg := critlog.DefaultConfig()
	cfg.Opener = opener
	cfg.Node = critlog.NodeInfo{ID: "test-node"}
	cfg.LogName = "access_log"
	cfg.MaxBufferBytes = 4
	cfg.FlushInterval = time.Hour
	cfg.MessageAckTimeout = time.Second
	cfg.TickInterval = time.Hour
	cfg.MetricsRegisterer = prometheus.NewRegistry()

	logger, err := critlog.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	require.NoError(t, logger.Log(context.Background(), jsonEntry{Message: "bigger-than-four-bytes"}))

	require.Eventually(t, func() bool {
		return opener.count() > 0 && len(opener.last().sentIDs()) == 1
	}, time.Second, 5*time.Millisecond, "a composite past MaxBufferBytes should flush immediately, not wait for the timer")
}
