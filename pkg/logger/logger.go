// Package logger provides the structured logger shared by every component.
// It wraps logrus so callers get WithField/WithError chaining plus a
// component field stamped on every entry.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingConfig selects level and output format.
type LoggingConfig struct {
	Level     string
	Format    string
	Component string
	Output    io.Writer
}

// Logger is a logrus logger bound to a component name.
type Logger struct {
	*logrus.Logger
}

// New builds a logger from configuration. Unknown levels fall back to info.
func New(cfg LoggingConfig) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}

	if cfg.Output != nil {
		base.SetOutput(cfg.Output)
	} else {
		base.SetOutput(os.Stdout)
	}

	l := &Logger{Logger: base}
	if cfg.Component != "" {
		base.AddHook(componentHook{component: cfg.Component})
	}
	return l
}

// NewDefault returns an info-level text logger for the named component.
func NewDefault(component string) *Logger {
	return New(LoggingConfig{Level: "info", Format: "text", Component: component})
}

// LogRequest records a completed HTTP request, tagged with the trace id from ctx.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	entry := l.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}

	switch {
	case status >= 500:
		entry.Error("http request")
	case status >= 400:
		entry.Warn("http request")
	default:
		entry.Info("http request")
	}
}

type componentHook struct {
	component string
}

func (h componentHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h componentHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["component"]; !ok {
		entry.Data["component"] = h.component
	}
	return nil
}
