package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	googlegrpc "google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/hyp3rd/critlog/internal/wire"
)

const bufSize = 1024 * 1024

func startTestServer(t *testing.T, handle func(stream googlegrpc.ServerStream) error) (*bufconn.Listener, func()) {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	srv := googlegrpc.NewServer()
	srv.RegisterService(&googlegrpc.ServiceDesc{
		ServiceName: "critlog.v1.CriticalAccessLogService",
		HandlerType: (*any)(nil),
		Streams: []googlegrpc.StreamDesc{
			{
				StreamName: "StreamCriticalLogs",
				Handler: func(_ any, stream googlegrpc.ServerStream) error {
					return handle(stream)
				},
				ServerStreams: true,
				ClientStreams: true,
			},
		},
	}, nil)

	go func() { _ = srv.Serve(lis) }()

	return lis, srv.Stop
}

func dialTestOpener(t *testing.T, lis *bufconn.Listener) *Opener {
	t.Helper()

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }

	opener, err := Dial(Config{
		Target:      "passthrough:///bufnet",
		DialTimeout: time.Second,
		DialOptions: []googlegrpc.DialOption{googlegrpc.WithContextDialer(dialer)},
	})
	require.NoError(t, err)

	return opener
}

// TestOpenSurvivesCancellationOfItsOwnContext guards against the regression
// where Open tied the returned stream's lifetime to its ctx argument: a
// caller like critlog.Logger.flush builds ctx with a deferred cancel that
// fires the instant Open returns, so a stream that dies with ctx would
// never survive past the flush that opened it.
func TestOpenSurvivesCancellationOfItsOwnContext(t *testing.T) {
	echoed := make(chan struct{})

	lis, stop := startTestServer(t, func(stream googlegrpc.ServerStream) error {
		var req wire.Request
		if err := stream.RecvMsg(&req); err != nil {
			return err
		}

		close(echoed)

		return stream.SendMsg(&wire.Response{ID: req.ID, Status: wire.StatusAck})
	})
	defer stop()

	opener := dialTestOpener(t, lis)
	defer opener.Close()

	openCtx, cancel := context.WithTimeout(context.Background(), time.Second)

	s, err := opener.Open(openCtx)
	require.NoError(t, err)

	cancel()

	require.NoError(t, s.Send(wire.Request{ID: 7}))

	select {
	case <-echoed:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the message; stream died with the caller's canceled context")
	}

	resp, err := s.Recv()
	require.NoError(t, err)
	require.Equal(t, uint32(7), resp.ID)
	require.Equal(t, wire.StatusAck, resp.Status)
}

func TestOpenRejectsAlreadyCanceledContext(t *testing.T) {
	lis, stop := startTestServer(t, func(googlegrpc.ServerStream) error { return nil })
	defer stop()

	opener := dialTestOpener(t, lis)
	defer opener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := opener.Open(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDialTimesOutWhenCollectorNeverBecomesReady(t *testing.T) {
	dialer := func(context.Context, string) (net.Conn, error) {
		return nil, context.DeadlineExceeded
	}

	_, err := Dial(Config{
		Target:      "unreachable",
		DialTimeout: 50 * time.Millisecond,
		DialOptions: []googlegrpc.DialOption{googlegrpc.WithContextDialer(dialer)},
	})
	require.Error(t, err)
}
