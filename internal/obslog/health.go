package obslog

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

// Metrics returns a snapshot of the async writer's own health counters.
// Callers writing synchronously get a zero value.
func (a *Adapter) Metrics() WriterMetrics {
	aw, ok := a.writer.(*asyncWriter)
	if !ok {
		return WriterMetrics{}
	}

	return aw.Metrics()
}

// HealthExporter renders an Adapter's WriterMetrics in Prometheus exposition
// format, for operators who want to scrape critlog's own operational
// logger health separately from the domain metrics in pkg/metrics.
type HealthExporter struct {
	enqueued   atomic.Uint64
	processed  atomic.Uint64
	dropped    atomic.Uint64
	writeError atomic.Uint64
	retried    atomic.Uint64
	bypassed   atomic.Uint64
	queueDepth atomic.Int64
}

// NewHealthExporter creates an exporter. Call Observe periodically (or from
// a ticker) with Adapter.Metrics before scraping ServeHTTP.
func NewHealthExporter() *HealthExporter { return &HealthExporter{} }

// Observe records the latest snapshot.
func (e *HealthExporter) Observe(m WriterMetrics) {
	e.enqueued.Store(m.Enqueued)
	e.processed.Store(m.Processed)
	e.dropped.Store(m.Dropped)
	e.writeError.Store(m.WriteError)
	e.retried.Store(m.Retried)
	e.bypassed.Store(m.Bypassed)
	e.queueDepth.Store(int64(m.QueueDepth))
}

// ServeHTTP implements http.Handler.
func (e *HealthExporter) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintln(w, "# HELP critlog_obslog_enqueued_total Operational log lines enqueued")
	fmt.Fprintln(w, "# TYPE critlog_obslog_enqueued_total counter")
	fmt.Fprintf(w, "critlog_obslog_enqueued_total %d\n", e.enqueued.Load())

	fmt.Fprintln(w, "# HELP critlog_obslog_processed_total Operational log lines written")
	fmt.Fprintln(w, "# TYPE critlog_obslog_processed_total counter")
	fmt.Fprintf(w, "critlog_obslog_processed_total %d\n", e.processed.Load())

	fmt.Fprintln(w, "# HELP critlog_obslog_dropped_total Operational log lines dropped")
	fmt.Fprintln(w, "# TYPE critlog_obslog_dropped_total counter")
	fmt.Fprintf(w, "critlog_obslog_dropped_total %d\n", e.dropped.Load())

	fmt.Fprintln(w, "# HELP critlog_obslog_write_errors_total Operational log write errors")
	fmt.Fprintln(w, "# TYPE critlog_obslog_write_errors_total counter")
	fmt.Fprintf(w, "critlog_obslog_write_errors_total %d\n", e.writeError.Load())

	fmt.Fprintln(w, "# HELP critlog_obslog_retried_total Operational log write retries")
	fmt.Fprintln(w, "# TYPE critlog_obslog_retried_total counter")
	fmt.Fprintf(w, "critlog_obslog_retried_total %d\n", e.retried.Load())

	fmt.Fprintln(w, "# HELP critlog_obslog_bypassed_total Operational log lines written synchronously")
	fmt.Fprintln(w, "# TYPE critlog_obslog_bypassed_total counter")
	fmt.Fprintf(w, "critlog_obslog_bypassed_total %d\n", e.bypassed.Load())

	fmt.Fprintln(w, "# HELP critlog_obslog_queue_depth Current operational log queue depth")
	fmt.Fprintln(w, "# TYPE critlog_obslog_queue_depth gauge")
	fmt.Fprintf(w, "critlog_obslog_queue_depth %d\n", e.queueDepth.Load())
}
