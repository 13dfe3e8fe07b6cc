package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// New creates a new logger with the specified configuration that
// writes to output. A nil output writes to stdout
func New(config *Config, output io.Writer) Logger {
	props := LogrusLoggerProperties{
		Level:  logrus.InfoLevel,
		Output: output,
	}

	switch config.Level {
	case "debug":
		props.Level = logrus.DebugLevel
	case "info":
		props.Level = logrus.InfoLevel
	case "warn":
		props.Level = logrus.WarnLevel
	case "error":
		props.Level = logrus.ErrorLevel
	}

	if config.Format == "text" {
		props.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	}

	return NewLogrus(props)
}

// Discard returns a logger that drops every entry
func Discard() Logger {
	return NewLogrus(LogrusLoggerProperties{
		Level:  logrus.PanicLevel,
		Output: io.Discard,
	})
}
