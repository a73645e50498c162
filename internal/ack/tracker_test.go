package ack_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/critlog/internal/ack"
)

type recordingRebufferer struct {
	rebuffered []uint32
}

func (r *recordingRebufferer) Rebuffer(id uint32) {
	r.rebuffered = append(r.rebuffered, id)
}

type countingMetrics struct {
	timeouts int
}

func (m *countingMetrics) IncMessageTimeout() { m.timeouts++ }

func TestTickRebuffersExpiredUnacknowledged(t *testing.T) {
	tracker := ack.New()
	now := time.Now()

	tracker.Track([]uint32{1, 2}, now.Add(-time.Millisecond))

	reb := &recordingRebufferer{}
	metrics := &countingMetrics{}
	tracker.Tick(now, reb, metrics)

	require.ElementsMatch(t, []uint32{1, 2}, reb.rebuffered)
	require.Equal(t, 2, metrics.timeouts)
	require.Equal(t, 0, tracker.Len())
}

func TestTickIgnoresNotYetExpired(t *testing.T) {
	tracker := ack.New()
	now := time.Now()

	tracker.Track([]uint32{1}, now.Add(time.Hour))

	reb := &recordingRebufferer{}
	metrics := &countingMetrics{}
	tracker.Tick(now, reb, metrics)

	require.Empty(t, reb.rebuffered)
	require.Equal(t, 1, tracker.Len())
}

func TestReceivedSuppressesTimeout(t *testing.T) {
	tracker := ack.New()
	now := time.Now()

	tracker.Track([]uint32{1}, now.Add(-time.Millisecond))
	tracker.Received(1)

	reb := &recordingRebufferer{}
	metrics := &countingMetrics{}
	tracker.Tick(now, reb, metrics)

	require.Empty(t, reb.rebuffered)
	require.Equal(t, 0, metrics.timeouts)
}

func TestReceivedBeforeSecondCohortDoesNotLeakAcrossRebuffers(t *testing.T) {
	tracker := ack.New()
	now := time.Now()

	tracker.Track([]uint32{1}, now.Add(-time.Millisecond))
	tracker.Received(1)

	reb := &recordingRebufferer{}
	metrics := &countingMetrics{}
	tracker.Tick(now, reb, metrics)
	require.Empty(t, reb.rebuffered)

	tracker.Track([]uint32{1}, now.Add(-time.Millisecond))
	tracker.Tick(now, reb, metrics)
	require.Equal(t, []uint32{1}, reb.rebuffered, "received marker was consumed by the first cohort")
}
