package obslog

import "github.com/hyp3rd/ewrap"

// Sentinel errors for the async writer.
var (
	// ErrWriterClosed is returned when attempting to write to a closed writer.
	ErrWriterClosed = ewrap.New("obslog: writer is closed")

	// ErrBufferFull is returned when the async writer's buffer is full and
	// the overflow strategy does not admit the entry.
	ErrBufferFull = ewrap.New("obslog: write buffer is full")

	// ErrFlushTimeout is returned when a flush operation times out.
	ErrFlushTimeout = ewrap.New("obslog: flush timed out")
)
