package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	l := newLogger()

	formatter, ok := l.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.Equal(t, time.RFC3339Nano, formatter.TimestampFormat)
	assert.True(t, formatter.FullTimestamp)
}

func TestGetLogger(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, L.Logger, G(ctx).Logger)

	entry := logrus.NewEntry(logrus.New()).WithField("run_id", "r1")
	ctx = WithLogger(ctx, entry)

	got := G(ctx)
	assert.Equal(t, "r1", got.Data["run_id"])
	assert.Same(t, entry.Logger, got.Logger)
}

func TestWithLoggerNesting(t *testing.T) {
	ctx := WithLogger(context.Background(), L.WithField("skill", "commit"))
	ctx = WithLogger(ctx, G(ctx).WithField("step", "gen"))

	got := G(ctx)
	assert.Equal(t, "commit", got.Data["skill"])
	assert.Equal(t, "gen", got.Data["step"])
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format   string
		expected logrus.Formatter
	}{
		{format: "fmt", expected: &logrus.TextFormatter{}},
		{format: "text", expected: &logrus.TextFormatter{}},
		{format: "", expected: &logrus.TextFormatter{}},
		{format: "json", expected: &logrus.JSONFormatter{}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f, err := NewFormatter(tt.format)
			require.NoError(t, err)
			assert.IsType(t, tt.expected, f)
		})
	}

	_, err := NewFormatter("xml")
	assert.ErrorContains(t, err, `unknown log format "xml"`)
}

func TestConfigureLogger(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)

	require.NoError(t, ConfigureLogger(l, "debug", FormatJSON))
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	l.WithField("step", "build").Debug("step running")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "step running", line["message"])
	assert.Equal(t, "debug", line["logLevel"])
	assert.Equal(t, "build", line["step"])
	assert.Contains(t, line, "timestamp")

	assert.Error(t, ConfigureLogger(l, "loud", FormatJSON))
	assert.Error(t, ConfigureLogger(l, "info", "xml"))
	assert.Equal(t, logrus.DebugLevel, l.GetLevel(), "failed configuration leaves the logger untouched")
}

func TestConfigure(t *testing.T) {
	level := L.Logger.GetLevel()
	formatter := L.Logger.Formatter
	defer func() {
		L.Logger.SetLevel(level)
		L.Logger.SetFormatter(formatter)
	}()

	require.NoError(t, Configure("warn", FormatText))
	assert.Equal(t, logrus.WarnLevel, L.Logger.GetLevel())

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(logrus.StandardLogger().Out)

	G(context.Background()).Info("hidden")
	G(context.Background()).Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
