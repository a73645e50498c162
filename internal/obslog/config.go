package obslog

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Format selects how a Logger renders each line.
type Format int

const (
	// FormatConsole is a human-readable, level-colorized line. It is the
	// zero value, and DefaultConfig picks it when stderr is a terminal.
	FormatConsole Format = iota
	// FormatJSON is a single-line JSON object per record.
	FormatJSON
)

// Config configures a Logger.
type Config struct {
	// Level is the minimum level that is not filtered out.
	Level Level
	// Output is the sink lines are written to. Defaults to os.Stderr.
	Output io.Writer
	// Format selects the encoding. New uses it as given, so an unset Format
	// means FormatConsole; only DefaultConfig chooses between FormatConsole
	// and FormatJSON by checking whether stderr is a terminal.
	Format Format
	// Async, when true (the default), routes writes through an asyncWriter
	// instead of writing to Output synchronously.
	Async bool
	// AsyncBufferSize sizes the async writer's channel.
	AsyncBufferSize int
	// AsyncOverflowStrategy controls what happens when that channel is full.
	AsyncOverflowStrategy OverflowStrategy
	// DropHandler, if set, is invoked once per line the async writer
	// discards. Defaults to a private counter. The writer counts drops
	// itself either way, and that count is what Adapter.Metrics reports.
	DropHandler DropHandler
	// RetryEnabled, when true, makes the async writer retry a failed write
	// to Output with exponential backoff instead of dropping the line on
	// the first error.
	RetryEnabled bool
	// MaxRetries caps the number of retry attempts once RetryEnabled is set.
	MaxRetries int
	// RetryBackoff is the delay before the first retry attempt.
	RetryBackoff time.Duration
	// RetryBackoffMultiplier scales RetryBackoff after each failed attempt.
	RetryBackoffMultiplier float64
	// RetryMaxBackoff caps the delay growth from RetryBackoffMultiplier.
	RetryMaxBackoff time.Duration
}

// DefaultConfig returns a Config writing colorized console lines to
// os.Stderr at InfoLevel when stderr is a terminal, and JSON otherwise.
func DefaultConfig() Config {
	format := FormatJSON
	if isatty.IsTerminal(os.Stderr.Fd()) {
		format = FormatConsole
	}

	return Config{
		Level:                  InfoLevel,
		Output:                 os.Stderr,
		Format:                 format,
		Async:                  true,
		RetryEnabled:           true,
		MaxRetries:             3,
		RetryBackoff:           defaultRetryBackoff,
		RetryBackoffMultiplier: 2,
		RetryMaxBackoff:        200 * time.Millisecond,
	}
}

const flushWaitTimeout = 5 * time.Second
