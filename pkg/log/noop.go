package log

// Noop implements Logger by discarding all messages. Useful in tests and as
// the default when no logger is configured.
type Noop struct{}

// NewNoop creates a new no-op logger.
func NewNoop() *Noop {
	return &Noop{}
}

// Debug discards the message.
func (Noop) Debug(msg string, fields ...Field) {}

// Info discards the message.
func (Noop) Info(msg string, fields ...Field) {}

// Warn discards the message.
func (Noop) Warn(msg string, fields ...Field) {}

// Error discards the message.
func (Noop) Error(msg string, fields ...Field) {}
