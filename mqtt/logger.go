package mqtt

import (
	"io"
	"log"
	"os"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	// LogLevelDebug is the debug log level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the info log level.
	LogLevelInfo
	// LogLevelWarn is the warn log level.
	LogLevelWarn
	// LogLevelError is the error log level.
	LogLevelError
	// LogLevelNone disables all logging.
	LogLevelNone
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// Fields represents key-value pairs for structured logging.
type Fields map[string]any

// Logger defines the interface the client logs through. Implementations
// must be safe for use from multiple goroutines.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, fields Fields)

	// Info logs an info message.
	Info(msg string, fields Fields)

	// Warn logs a warning message.
	Warn(msg string, fields Fields)

	// Error logs an error message.
	Error(msg string, fields Fields)

	// WithFields returns a new logger with the given fields added.
	WithFields(fields Fields) Logger
}

// NoOpLogger is a logger that does nothing. It is the default.
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-op logger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Debug does nothing.
func (n *NoOpLogger) Debug(_ string, _ Fields) {}

// Info does nothing.
func (n *NoOpLogger) Info(_ string, _ Fields) {}

// Warn does nothing.
func (n *NoOpLogger) Warn(_ string, _ Fields) {}

// Error does nothing.
func (n *NoOpLogger) Error(_ string, _ Fields) {}

// WithFields returns the same logger.
func (n *NoOpLogger) WithFields(_ Fields) Logger {
	return n
}

// StdLogger is a simple logger on top of the standard library log package.
type StdLogger struct {
	logger *log.Logger
	level  LogLevel
	fields Fields
}

// NewStdLogger creates a new standard library based logger.
func NewStdLogger(w io.Writer, level LogLevel) *StdLogger {
	if w == nil {
		w = os.Stderr
	}
	return &StdLogger{
		logger: log.New(w, "", log.LstdFlags),
		level:  level,
	}
}

// Debug logs a debug message.
func (s *StdLogger) Debug(msg string, fields Fields) {
	if s.level <= LogLevelDebug {
		s.log("DEBUG", msg, fields)
	}
}

// Info logs an info message.
func (s *StdLogger) Info(msg string, fields Fields) {
	if s.level <= LogLevelInfo {
		s.log("INFO", msg, fields)
	}
}

// Warn logs a warning message.
func (s *StdLogger) Warn(msg string, fields Fields) {
	if s.level <= LogLevelWarn {
		s.log("WARN", msg, fields)
	}
}

// Error logs an error message.
func (s *StdLogger) Error(msg string, fields Fields) {
	if s.level <= LogLevelError {
		s.log("ERROR", msg, fields)
	}
}

// WithFields returns a new logger with the given fields added.
func (s *StdLogger) WithFields(fields Fields) Logger {
	return &StdLogger{
		logger: s.logger,
		level:  s.level,
		fields: mergeFields(s.fields, fields),
	}
}

func (s *StdLogger) log(level, msg string, fields Fields) {
	all := mergeFields(s.fields, fields)
	if len(all) == 0 {
		s.logger.Printf("[%s] %s", level, msg)
		return
	}
	s.logger.Printf("[%s] %s %v", level, msg, all)
}

func mergeFields(base, extra Fields) Fields {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make(Fields, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// Standard field names used by the client.
const (
	// LogFieldClientID is the client ID field.
	LogFieldClientID = "client_id"

	// LogFieldBroker is the broker address field.
	LogFieldBroker = "broker"

	// LogFieldTopic is the topic field.
	LogFieldTopic = "topic"

	// LogFieldQoS is the QoS field.
	LogFieldQoS = "qos"

	// LogFieldReturnCode is the CONNACK return code field.
	LogFieldReturnCode = "return_code"

	// LogFieldError is the error field.
	LogFieldError = "error"

	// LogFieldBytes is the bytes field.
	LogFieldBytes = "bytes"
)
