// Package grpcmw stamps outgoing gRPC metadata on the critical-log stream
// from values carried on the request context — the inverse of a typical
// server-side metadata-extraction interceptor: critlog is a client, so it
// writes trace/request identifiers onto outgoing metadata instead of
// reading them off incoming metadata.
package grpcmw

// Option configures the interceptor's metadata key names.
type Option func(*options)

type options struct {
	traceKey   string
	requestKey string
}

// WithTraceKey customizes the metadata key the trace identifier is written
// under. Defaults to "x-trace-id".
func WithTraceKey(name string) Option {
	return func(o *options) {
		if o == nil || name == "" {
			return
		}

		o.traceKey = name
	}
}

// WithRequestKey customizes the metadata key the request identifier is
// written under. Defaults to "x-request-id".
func WithRequestKey(name string) Option {
	return func(o *options) {
		if o == nil || name == "" {
			return
		}

		o.requestKey = name
	}
}

func resolveOptions(opts ...Option) options {
	cfg := options{traceKey: "x-trace-id", requestKey: "x-request-id"}
	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}
