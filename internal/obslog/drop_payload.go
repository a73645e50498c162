package obslog

import "sync/atomic"

// DropPayload represents a log line the async writer discarded, handed to a
// DropHandler with ownership semantics so the caller can inspect or retain
// the underlying buffer without forcing an extra allocation on the common
// path where the handler only counts drops.
type DropPayload interface {
	Bytes() []byte
	Size() int
}

// DropHandler is invoked once per discarded line. The default handler
// (installed by newAsyncWriter when none is configured) only keeps a count
// of its own; the writer increments its own dropped-line counter
// independently of the handler, and that counter is what
// Adapter.Metrics/HealthExporter surface. The handler is deliberately not
// wired into pkg/metrics: that registry carries spec.md's domain metrics,
// and counting an obslog drop there too would double-count the same event
// under two different metrics systems.
type DropHandler func(DropPayload)

type dropPayload struct {
	data []byte
}

func (p *dropPayload) Bytes() []byte { return p.data }
func (p *dropPayload) Size() int     { return len(p.data) }

var _ DropPayload = (*dropPayload)(nil)

// dropCounter is the trivial default DropHandler installed when none is
// configured; it only keeps count, mirroring the writer's own atomic
// droppedCount. Its count is not read by anything in this package.
type dropCounter struct {
	n atomic.Uint64
}

func (c *dropCounter) handle(DropPayload) { c.n.Add(1) }

func (c *dropCounter) count() uint64 { return c.n.Load() }
