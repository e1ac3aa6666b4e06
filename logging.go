package ogrenewt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// DefaultLogger writes text records through log/slog
type DefaultLogger struct {
	level  *slog.LevelVar
	prefix string
	out    *slog.Logger
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return NewWriterLogger(os.Stderr, prefix, debug)
}

// NewWriterLogger is NewDefaultLogger writing to w
func NewWriterLogger(w io.Writer, prefix string, debug bool) *DefaultLogger {
	level := new(slog.LevelVar)
	l := &DefaultLogger{
		level:  level,
		prefix: prefix,
		out:    slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})),
	}
	l.SetDebug(debug)
	return l
}

func (l *DefaultLogger) DebugEnabled() bool {
	return l.level.Level() <= slog.LevelDebug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	if enabled {
		l.level.Set(slog.LevelDebug)
	} else {
		l.level.Set(slog.LevelInfo)
	}
}

func (l *DefaultLogger) log(level slog.Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		l.out.Log(context.Background(), level, msg, "component", l.prefix)
		return
	}
	l.out.Log(context.Background(), level, msg)
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.log(slog.LevelDebug, format, args...)
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.log(slog.LevelInfo, format, args...)
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.log(slog.LevelWarn, format, args...)
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

type nopLogger struct{}

func NewNopLogger() Logger { return &nopLogger{} }

func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}
