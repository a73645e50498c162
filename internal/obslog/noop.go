package obslog

import "context"

// noop discards every log line. Used as the default Logger when a caller
// constructs a component without wiring an obslog.Logger explicitly.
type noop struct{ level Level }

// NewNoop returns a Logger that discards everything.
func NewNoop() Logger { return &noop{level: InfoLevel} }

var (
	_ Logger        = (*noop)(nil)
	_ ContextLogger = (*noop)(nil)
)

func (*noop) Trace(string, ...Field) {}
func (*noop) Debug(string, ...Field) {}
func (*noop) Info(string, ...Field)  {}
func (*noop) Warn(string, ...Field)  {}
func (*noop) Error(string, ...Field) {}

func (n *noop) WithFields(...Field) Logger          { return n }
func (n *noop) WithContext(context.Context) Logger  { return n }
func (n *noop) SetLevel(level Level)                { n.level = level }
func (n *noop) GetLevel() Level                     { return n.level }
func (*noop) Sync() error                           { return nil }
