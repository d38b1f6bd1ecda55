package logger

// NoOpLogger discards everything. Used by tests and by components constructed
// without a logger.
type NoOpLogger struct{}

// NewNop returns a logger that drops all entries.
func NewNop() Logger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) Debug(string, ...Field) {}
func (n *NoOpLogger) Info(string, ...Field)  {}
func (n *NoOpLogger) Warn(string, ...Field)  {}
func (n *NoOpLogger) Error(string, ...Field) {}
func (n *NoOpLogger) With(...Field) Logger   { return n }
func (n *NoOpLogger) Sync() error            { return nil }
