// Package transport defines the boundary between the critical-log client
// and the collaborator that actually owns bytes on the wire. Per the
// specification this boundary is deliberately narrow: the client only
// needs to open a stream, send/receive envelopes on it, and observe
// backpressure. Everything else (retries on connect failure, multiplexing,
// TLS, auth) belongs to the concrete Opener implementation.
package transport

import (
	"context"

	"github.com/hyp3rd/critlog/internal/wire"
)

// Stream is a single open bidirectional stream to the collector.
type Stream interface {
	// Send writes req to the stream. It must not block past the point
	// where AboveHighWatermark would report true.
	Send(req wire.Request) error
	// Recv blocks until the next response arrives, the stream is closed
	// remotely, or the stream errors. It returns a non-nil error exactly
	// once, on the terminal read.
	Recv() (wire.Response, error)
	// AboveHighWatermark reports whether the writable side has
	// accumulated bytes above a safe threshold. The streaming client
	// checks this before sending each flush batch.
	AboveHighWatermark() bool
	// Close releases the stream's resources. It is safe to call more
	// than once.
	Close() error
}

// Opener lazily creates streams. The streaming client calls Open at most
// once per Absent->Open transition. ctx bounds only the attempt to open a
// stream; it is typically a short-lived context the caller cancels the
// instant the call returns. Implementations must not tie the returned
// Stream's own lifetime to ctx: the stream must keep working after Open
// returns and ctx is canceled, until the caller explicitly calls Close on
// it.
type Opener interface {
	Open(ctx context.Context) (Stream, error)
}

// OpenerFunc adapts a function to an Opener.
type OpenerFunc func(ctx context.Context) (Stream, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context) (Stream, error) {
	return f(ctx)
}
