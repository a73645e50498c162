// Package obslog is critlog's own operational logger: the logger facade
// uses it to report its own lifecycle events (remote stream close, flushed
// batch, failure to encode a composite). It is deliberately small — one sink, two
// encodings — unlike a general-purpose logging library, because critlog is
// a client embedded in a host process, not a service with its own
// operator-facing log stream.
package obslog

import (
	"context"
	"time"
)

// Level is the severity of an operational log line.
type Level uint8

const (
	// TraceLevel is the most verbose level.
	TraceLevel Level = iota
	// DebugLevel is for diagnostic detail.
	DebugLevel
	// InfoLevel is for routine lifecycle events.
	InfoLevel
	// WarnLevel is for recoverable anomalies.
	WarnLevel
	// ErrorLevel is for failures that affect delivery.
	ErrorLevel
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "TRACE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Field is a single structured key-value pair.
type Field struct {
	Key   string
	Value any
}

// Str creates a string Field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int Field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Uint32 creates a uint32 Field.
func Uint32(key string, value uint32) Field { return Field{Key: key, Value: value} }

// Err creates an error Field. A nil error yields a Field with a nil value,
// which encoders must skip.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Any creates a Field with an arbitrary value.
func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// Duration creates a time.Duration Field.
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Bool creates a bool Field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Logger is the interface critlog's internal components depend on. Keeping
// it as an interface (rather than depending on *Adapter directly) lets
// tests inject a no-op or recording logger.
type Logger interface {
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
	SetLevel(level Level)
	GetLevel() Level
	Sync() error
}

// ContextLogger optionally extracts a trace/request id from ctx to attach
// as a field. Adapter implements it; callers that don't care can ignore it.
type ContextLogger interface {
	WithContext(ctx context.Context) Logger
}
