// Package grpc is the default transport.Opener: it dials a collector once
// and opens a new bidirectional stream per Absent->Open transition,
// carrying wire.Request/wire.Response envelopes JSON-encoded over gRPC.
package grpc

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hyp3rd/ewrap"
	googlegrpc "google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hyp3rd/critlog/internal/wire"
	"github.com/hyp3rd/critlog/pkg/transport"
)

// method is the full gRPC method name the collector must implement.
const method = "/critlog.v1.CriticalAccessLogService/StreamCriticalLogs"

// defaultWatermarkSendLatency is how long a single SendMsg call may take
// before it is treated as evidence the peer has stopped draining gRPC's
// flow-control window.
const defaultWatermarkSendLatency = 200 * time.Millisecond

// defaultDialTimeout bounds Dial's wait for the initial connection when the
// caller does not set Config.DialTimeout.
const defaultDialTimeout = 10 * time.Second

// Config configures Dial.
type Config struct {
	// Target is the collector address, e.g. "collector.internal:9001".
	Target string
	// DialTimeout bounds how long Dial waits for the initial connection
	// attempt.
	DialTimeout time.Duration
	// DialOptions are appended after the package's only default, insecure
	// transport credentials; an interceptor such as
	// grpcmw.OutgoingStreamInterceptor is added by passing it here.
	DialOptions []googlegrpc.DialOption
	// WatermarkSendLatency is how long a single SendMsg call is allowed to
	// take before AboveHighWatermark reports true. google.golang.org/grpc
	// does not expose its internal flow-control window, but SendMsg itself
	// blocks once that window is exhausted, so a send that takes
	// unusually long is the client-visible signal of the backpressure the
	// specification calls the high watermark.
	WatermarkSendLatency time.Duration
}

// Opener dials once and opens a fresh stream per call to Open.
type Opener struct {
	conn                 *googlegrpc.ClientConn
	watermarkSendLatency time.Duration

	// streamCtx is passed to every NewStream call. It is scoped to the
	// Opener's own lifetime, not to any single Open call or the flush that
	// triggered it, so a stream survives past the caller's per-flush
	// context long after Open returns. It is canceled only by Close.
	streamCtx    context.Context
	streamCancel context.CancelFunc
}

// Dial connects to cfg.Target and returns an Opener. The connection itself
// is shared across every stream generation; only the stream is reopened on
// Absent->Open transitions. Dial blocks until the connection reports Ready
// or DialTimeout elapses.
func Dial(cfg Config) (*Opener, error) {
	dialOpts := append([]googlegrpc.DialOption{
		googlegrpc.WithTransportCredentials(insecure.NewCredentials()),
	}, cfg.DialOptions...)

	conn, err := googlegrpc.NewClient(cfg.Target, dialOpts...)
	if err != nil {
		return nil, ewrap.Wrap(err, "dialing critical log collector")
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer waitCancel()

	conn.Connect()

	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			break
		}

		if !conn.WaitForStateChange(waitCtx, state) {
			_ = conn.Close()

			return nil, ewrap.New("dialing critical log collector: timed out waiting for a ready connection")
		}
	}

	watermarkSendLatency := cfg.WatermarkSendLatency
	if watermarkSendLatency <= 0 {
		watermarkSendLatency = defaultWatermarkSendLatency
	}

	streamCtx, streamCancel := context.WithCancel(context.Background())

	return &Opener{
		conn:                 conn,
		watermarkSendLatency: watermarkSendLatency,
		streamCtx:            streamCtx,
		streamCancel:         streamCancel,
	}, nil
}

// Open implements transport.Opener. ctx bounds only the attempt to open the
// stream; a cancellation of ctx after Open returns has no effect on the
// stream it handed back, since the stream itself runs under the Opener's
// own long-lived context.
func (o *Opener) Open(ctx context.Context) (transport.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cs, err := o.conn.NewStream(o.streamCtx, &googlegrpc.StreamDesc{
		StreamName:    "StreamCriticalLogs",
		ClientStreams: true,
		ServerStreams: true,
	}, method, googlegrpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, ewrap.Wrap(err, "opening critical log stream")
	}

	return &stream{cs: cs, watermarkSendLatency: o.watermarkSendLatency}, nil
}

// Close releases the underlying connection and cancels every stream opened
// through this Opener.
func (o *Opener) Close() error {
	o.streamCancel()

	return o.conn.Close()
}

type stream struct {
	cs                   googlegrpc.ClientStream
	lastSendNanos        atomic.Int64
	watermarkSendLatency time.Duration
}

func (s *stream) Send(req wire.Request) error {
	r := req

	start := time.Now()
	err := s.cs.SendMsg(&r)
	s.lastSendNanos.Store(int64(time.Since(start)))

	return err
}

func (s *stream) Recv() (wire.Response, error) {
	var resp wire.Response

	err := s.cs.RecvMsg(&resp)

	return resp, err
}

func (s *stream) AboveHighWatermark() bool {
	return time.Duration(s.lastSendNanos.Load()) >= s.watermarkSendLatency
}

func (s *stream) Close() error {
	return s.cs.CloseSend()
}

var _ transport.Stream = (*stream)(nil)
var _ transport.Opener = (*Opener)(nil)
