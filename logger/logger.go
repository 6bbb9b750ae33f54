package logger

// Logger is the minimal structured logging contract the engine depends on.
// Implementations take alternating key/value pairs; odd trailing arguments
// are ignored. Keeping the interface this small makes it trivial to mock.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// TraceIDFunc generates a correlation id per decision. Implementations must
// be cheap and safe for concurrent use.
type TraceIDFunc func() string
