package streamclient_test

import (
	"context"
	"sync"

	"github.com/hyp3rd/critlog/internal/wire"
	"github.com/hyp3rd/critlog/pkg/transport"
)

// fakeStream is an in-memory transport.Stream for tests: every Send is
// recorded, and responses are delivered by pushing onto resp from the test.
type fakeStream struct {
	mu           sync.Mutex
	sent         []wire.Request
	resp         chan wire.Response
	aboveWM      bool
	closed       bool
	recvErr      chan error
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		resp:    make(chan wire.Response, 16),
		recvErr: make(chan error, 1),
	}
}

func (s *fakeStream) Send(req wire.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, req)

	return nil
}

func (s *fakeStream) Recv() (wire.Response, error) {
	select {
	case r := <-s.resp:
		return r, nil
	case err := <-s.recvErr:
		return wire.Response{}, err
	}
}

func (s *fakeStream) AboveHighWatermark() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.aboveWM
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.recvErr <- context.Canceled

	return nil
}

func (s *fakeStream) sentSnapshot() []wire.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]wire.Request, len(s.sent))
	copy(out, s.sent)

	return out
}

type fakeOpener struct {
	mu      sync.Mutex
	streams []*fakeStream
	err     error
}

var _ transport.Stream = (*fakeStream)(nil)

func (o *fakeOpener) Open(context.Context) (transport.Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.err != nil {
		return nil, o.err
	}

	s := newFakeStream()
	o.streams = append(o.streams, s)

	return s, nil
}

func (o *fakeOpener) last() *fakeStream {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.streams) == 0 {
		return nil
	}

	return o.streams[len(o.streams)-1]
}
