package grpcmw

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type (
	traceIDKeyType   struct{}
	requestIDKeyType struct{}
)

// TraceIDKey and RequestIDKey are the context keys OutgoingStreamInterceptor
// reads from the context a stream is opened with. Values attached to the
// context passed to critlog's Logger.Log do not reach it: pkg/transport/grpc
// opens every stream under its Opener's own context.
var (
	TraceIDKey   = traceIDKeyType{}
	RequestIDKey = requestIDKeyType{}
)

// OutgoingStreamInterceptor returns a grpc.StreamClientInterceptor that
// copies TraceIDKey/RequestIDKey values from ctx onto the outgoing gRPC
// metadata before opening the critical-log stream, so a collector-side
// interceptor or the access log itself can correlate the stream with the
// request that produced it.
func OutgoingStreamInterceptor(opts ...Option) grpc.StreamClientInterceptor {
	cfg := resolveOptions(opts...)

	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		callOpts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		pairs := make([]string, 0, 4)

		if v, ok := ctx.Value(TraceIDKey).(string); ok && v != "" {
			pairs = append(pairs, cfg.traceKey, v)
		}

		if v, ok := ctx.Value(RequestIDKey).(string); ok && v != "" {
			pairs = append(pairs, cfg.requestKey, v)
		}

		if len(pairs) > 0 {
			ctx = metadata.AppendToOutgoingContext(ctx, pairs...)
		}

		return streamer(ctx, desc, cc, method, callOpts...)
	}
}
