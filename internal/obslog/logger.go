package obslog

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type ctxKey struct{}

// TraceKey is the context key WithContext looks up to attach a trace field
// automatically. Callers set it with context.WithValue(ctx, obslog.TraceKey, id).
var TraceKey ctxKey

// Adapter is the concrete Logger. It is safe for concurrent use: callers
// across goroutines (the dispatcher, the stream receive loop, the ack
// tracker's own goroutine if any) may all log through the same Adapter.
type Adapter struct {
	level  atomic.Int32
	writer sinkCloser
	format Format
	fields []Field

	bufPool sync.Pool
}

// sinkCloser mirrors the subset of io.WriteCloser plus Sync that both
// asyncWriter and a plain io.Writer wrapper satisfy.
type sinkCloser interface {
	Write(p []byte) (int, error)
	Sync() error
	Close() error
}

// criticalWriter is implemented by asyncWriter. A sink that satisfies it
// gets ErrorLevel lines synchronously, bypassing the async channel, so an
// error logged right before a process exit is not lost with the queue.
type criticalWriter interface {
	WriteCritical(p []byte) (int, error)
}

// New builds an Adapter from cfg.
func New(cfg Config) *Adapter {
	if cfg.Output == nil {
		cfg = DefaultConfig()
	}

	a := &Adapter{format: cfg.Format}
	a.level.Store(int32(cfg.Level))

	if cfg.Async {
		a.writer = newAsyncWriter(cfg.Output, WriterConfig{
			BufferSize:             cfg.AsyncBufferSize,
			WaitTimeout:            flushWaitTimeout,
			OverflowStrategy:       cfg.AsyncOverflowStrategy,
			DropHandler:            cfg.DropHandler,
			RetryEnabled:           cfg.RetryEnabled,
			MaxRetries:             cfg.MaxRetries,
			RetryBackoff:           cfg.RetryBackoff,
			RetryBackoffMultiplier: cfg.RetryBackoffMultiplier,
			RetryMaxBackoff:        cfg.RetryMaxBackoff,
		})
	} else {
		a.writer = syncWriter{cfg.Output}
	}

	a.bufPool.New = func() any { return new(bytes.Buffer) }

	return a
}

var _ Logger = (*Adapter)(nil)
var _ ContextLogger = (*Adapter)(nil)

func (a *Adapter) log(level Level, msg string, fields []Field) {
	if Level(a.level.Load()) > level {
		return
	}

	all := fields
	if len(a.fields) > 0 {
		all = make([]Field, 0, len(a.fields)+len(fields))
		all = append(all, a.fields...)
		all = append(all, fields...)
	}

	r := record{time: nowFunc(), level: level, msg: msg, fields: all}

	buf, _ := a.bufPool.Get().(*bytes.Buffer)
	defer a.bufPool.Put(buf)

	var line []byte
	if a.format == FormatJSON {
		line = encodeJSON(r, buf)
	} else {
		line = encodeConsole(r, buf, true)
	}

	if level == ErrorLevel {
		if cw, ok := a.writer.(criticalWriter); ok {
			_, _ = cw.WriteCritical(line)

			return
		}
	}

	_, _ = a.writer.Write(line)
}

// Trace implements Logger.
func (a *Adapter) Trace(msg string, fields ...Field) { a.log(TraceLevel, msg, fields) }

// Debug implements Logger.
func (a *Adapter) Debug(msg string, fields ...Field) { a.log(DebugLevel, msg, fields) }

// Info implements Logger.
func (a *Adapter) Info(msg string, fields ...Field) { a.log(InfoLevel, msg, fields) }

// Warn implements Logger.
func (a *Adapter) Warn(msg string, fields ...Field) { a.log(WarnLevel, msg, fields) }

// Error implements Logger.
func (a *Adapter) Error(msg string, fields ...Field) { a.log(ErrorLevel, msg, fields) }

// WithFields returns a new Adapter sharing the same writer, whose logged
// lines carry fields in addition to any inherited from an earlier
// WithFields call.
func (a *Adapter) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(a.fields)+len(fields))
	merged = append(merged, a.fields...)
	merged = append(merged, fields...)

	clone := &Adapter{writer: a.writer, format: a.format, fields: merged}
	clone.level.Store(a.level.Load())
	clone.bufPool.New = func() any { return new(bytes.Buffer) }

	return clone
}

// WithContext attaches a trace field extracted from ctx, if present.
func (a *Adapter) WithContext(ctx context.Context) Logger {
	id, ok := ctx.Value(TraceKey).(string)
	if !ok || id == "" {
		return a
	}

	return a.WithFields(Str("trace_id", id))
}

// SetLevel implements Logger.
func (a *Adapter) SetLevel(level Level) { a.level.Store(int32(level)) }

// GetLevel implements Logger.
func (a *Adapter) GetLevel() Level { return Level(a.level.Load()) }

// Sync implements Logger.
func (a *Adapter) Sync() error { return a.writer.Sync() }

// Close releases the underlying writer. Not part of the Logger interface:
// only the component that constructed the Adapter should close it.
func (a *Adapter) Close() error { return a.writer.Close() }

var nowFunc = time.Now

type syncWriter struct {
	out interface {
		Write(p []byte) (int, error)
	}
}

func (s syncWriter) Write(p []byte) (int, error) { return s.out.Write(p) }
func (syncWriter) Sync() error                   { return nil }
func (syncWriter) Close() error                  { return nil }
