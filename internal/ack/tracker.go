// Package ack implements the per-message acknowledgement deadline tracker
// described as Component C: it records in-flight fingerprints against a
// deadline and, on expiry, returns unacknowledged messages to the buffer
// for retry.
//
// Deadlines are kept in a score-sorted set (fingerprint -> deadline
// instant) rather than a hand-rolled tree, mirroring the ordered-map used
// by the source's InflightMessageTtlManager while reusing a real
// ordered-set library.
package ack

import (
	"strconv"
	"time"

	"github.com/wangjia184/sortedset"
)

// Rebufferer is the capability the tracker needs from the message buffer:
// return a timed-out or spuriously-timed-out message to the Buffered state.
type Rebufferer interface {
	Rebuffer(id uint32)
}

// Metrics receives a notification for each fingerprint that times out
// without an acknowledgement.
type Metrics interface {
	IncMessageTimeout()
}

// Tracker is the Component C ack/timeout tracker.
//
// Tracker is not safe for concurrent use; like Buffer, all mutation is
// expected to happen on the owning logger's dispatcher goroutine.
type Tracker struct {
	deadlines *sortedset.SortedSet
	received  map[uint32]struct{}
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{
		deadlines: sortedset.New(),
		received:  make(map[uint32]struct{}),
	}
}

func key(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Track inserts a deadline cohort: every id in ids expires at deadline. A
// fingerprint may appear under more than one deadline (e.g. it was
// rebuffered and resent before its earlier deadline fired). A Received
// marker suppresses only the first expired cohort that sees the id: Tick
// consumes the marker there, so a later cohort for the same id is
// rebuffered (harmless, since rebuffering an acknowledged id is a no-op).
func (t *Tracker) Track(ids []uint32, deadline time.Time) {
	// Scored in milliseconds, not nanoseconds: SCORE loses precision past
	// 2^53 and a millisecond-resolution deadline is more than sufficient
	// for a multi-second ack timeout.
	millis := deadline.UnixMilli()
	score := sortedset.SCORE(millis)

	for _, id := range ids {
		nodeKey := key(id) + "@" + strconv.FormatInt(millis, 10)
		t.deadlines.AddOrUpdate(nodeKey, score, id)
	}
}

// Received records id as acknowledged, so that any deadline cohort for it
// which fires later is ignored instead of triggering a rebuffer.
func (t *Tracker) Received(id uint32) {
	t.received[id] = struct{}{}
}

// Tick scans every deadline cohort whose instant has passed as of now. For
// each id in an expired cohort: if it was already Received, the received
// marker is consumed (purged) and the id is skipped; otherwise rebufferer
// is asked to rebuffer it and metrics.IncMessageTimeout is called. Expired
// cohorts are removed. Amortized cost is O(entries expired this tick).
func (t *Tracker) Tick(now time.Time, rebufferer Rebufferer, metrics Metrics) {
	maxScore := sortedset.SCORE(now.UnixMilli())

	expired := t.deadlines.GetByScoreRange(sortedset.SCORE(0), maxScore, nil)
	if len(expired) == 0 {
		return
	}

	for _, node := range expired {
		id, ok := node.Value.(uint32)
		if !ok {
			continue
		}

		t.deadlines.Remove(node.Key())

		if _, wasReceived := t.received[id]; wasReceived {
			delete(t.received, id)

			continue
		}

		rebufferer.Rebuffer(id)
		metrics.IncMessageTimeout()
	}
}

// Len reports the number of outstanding deadline entries, for tests.
func (t *Tracker) Len() int {
	return t.deadlines.GetCount()
}
