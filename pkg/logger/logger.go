// Package logger carries a logrus entry through context.Context so that
// every layer of a run logs with the same run and step fields.
package logger

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// FormatText is the human readable key=value format
	FormatText = "fmt"
	// FormatJSON emits one JSON object per line
	FormatJSON = "json"
)

var (
	// G is shorthand for GetLogger
	G = GetLogger
	// L is the process-wide entry used when the context carries none
	L = logrus.NewEntry(newLogger())
)

type loggerKey struct{}

// WithLogger returns a context carrying entry
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, entry.WithContext(ctx))
}

// GetLogger returns the entry stored in ctx, or L
func GetLogger(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return entry
	}
	return L.WithContext(ctx)
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.Formatter, _ = NewFormatter(FormatText)
	return l
}

// NewFormatter returns the formatter for a format name. "text" is accepted
// as an alias of FormatText.
func NewFormatter(format string) (logrus.Formatter, error) {
	switch format {
	case FormatJSON:
		return &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "logLevel",
				logrus.FieldKeyMsg:   "message",
			},
			TimestampFormat: time.RFC3339Nano,
		}, nil
	case FormatText, "text", "":
		return &logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		}, nil
	default:
		return nil, errors.Errorf("unknown log format %q, expected %s or %s", format, FormatText, FormatJSON)
	}
}

// Configure applies a level and format to the global logger
func Configure(level, format string) error {
	return ConfigureLogger(L.Logger, level, format)
}

// ConfigureLogger applies a level and format to l
func ConfigureLogger(l *logrus.Logger, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	formatter, err := NewFormatter(format)
	if err != nil {
		return err
	}
	l.SetLevel(lvl)
	l.SetFormatter(formatter)
	return nil
}

// SetOutput redirects the global logger
func SetOutput(w io.Writer) {
	L.Logger.SetOutput(w)
}
