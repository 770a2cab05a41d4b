// Package logging configures the process-wide zerolog logger and adapts it
// to the client logger interface.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oidbs/oidbs/mqtt"
)

// Init configures the global console logger and returns it. Verbose enables
// debug level output.
func Init(app string, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// MQTTAdapter exposes a zerolog logger through the mqtt.Logger interface so
// client internals log into the same stream as the rest of the process.
type MQTTAdapter struct {
	logger zerolog.Logger
}

// NewMQTTAdapter wraps a zerolog logger.
func NewMQTTAdapter(logger zerolog.Logger) *MQTTAdapter {
	return &MQTTAdapter{logger: logger}
}

// Debug logs a debug message.
func (a *MQTTAdapter) Debug(msg string, fields mqtt.Fields) {
	a.emit(a.logger.Debug(), msg, fields)
}

// Info logs an info message.
func (a *MQTTAdapter) Info(msg string, fields mqtt.Fields) {
	a.emit(a.logger.Info(), msg, fields)
}

// Warn logs a warning message.
func (a *MQTTAdapter) Warn(msg string, fields mqtt.Fields) {
	a.emit(a.logger.Warn(), msg, fields)
}

// Error logs an error message.
func (a *MQTTAdapter) Error(msg string, fields mqtt.Fields) {
	a.emit(a.logger.Error(), msg, fields)
}

// WithFields returns a new adapter with the fields attached to every event.
func (a *MQTTAdapter) WithFields(fields mqtt.Fields) mqtt.Logger {
	ctx := a.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &MQTTAdapter{logger: ctx.Logger()}
}

func (a *MQTTAdapter) emit(event *zerolog.Event, msg string, fields mqtt.Fields) {
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
