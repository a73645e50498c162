// Package critlog implements a client for streaming critical access log
// entries to a remote collector with at-least-once delivery: entries are
// buffered by content fingerprint, sent over a long-lived stream, and
// retried on negative acknowledgement, ack timeout, or stream loss.
package critlog

import "github.com/hyp3rd/ewrap"

// Sentinel errors returned by the Logger facade.
var (
	// ErrClosed is returned by Log after Close has been called.
	ErrClosed = ewrap.New("critlog: logger is closed")

	// ErrNilEntry is returned by Log when the entry argument is nil.
	ErrNilEntry = ewrap.New("critlog: entry is nil")

	// ErrMissingOpener is returned by New when Config.Opener is nil.
	ErrMissingOpener = ewrap.New("critlog: config is missing a transport.Opener")

	// ErrMissingMaxBufferBytes is returned by New when Config.MaxBufferBytes
	// is not set. Unlike the other tunables it has no default: the source
	// configuration surface marks it required.
	ErrMissingMaxBufferBytes = ewrap.New("critlog: config is missing MaxBufferBytes")
)
