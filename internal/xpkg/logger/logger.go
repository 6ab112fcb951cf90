package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// Logger is the structured logger shared by every service mode.
// Entries are JSON objects carrying service, action, hostname and request_id.
type Logger interface {
	Action(action string) Logger
	With(args ...any) Logger
	WithGroup(name string) Logger
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, err error, args ...any)
}

type logger struct {
	l *slog.Logger
}

// New creates a JSON logger writing to stdout at the given level
// (DEBUG, INFO, WARN, ERROR).
func New(level string) (Logger, error) {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string) (Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
				a.Value = slog.StringValue(a.Value.Time().UTC().Format("2006-01-02T15:04:05.000Z07:00"))
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	})

	hostname, _ := os.Hostname()
	return &logger{l: slog.New(handler).With("hostname", hostname)}, nil
}

// Nop discards everything. Used by tests and optional collaborators.
func Nop() Logger {
	return &logger{l: slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))}
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}

func (lg *logger) Action(action string) Logger {
	return &logger{l: lg.l.With("action", action)}
}

func (lg *logger) With(args ...any) Logger {
	return &logger{l: lg.l.With(args...)}
}

func (lg *logger) WithGroup(name string) Logger {
	return &logger{l: lg.l.WithGroup(name)}
}

func (lg *logger) Debug(msg string, args ...any) {
	lg.l.Debug(msg, args...)
}

func (lg *logger) Info(msg string, args ...any) {
	lg.l.Info(msg, args...)
}

func (lg *logger) Warn(msg string, args ...any) {
	lg.l.Warn(msg, args...)
}

func (lg *logger) Error(msg string, err error, args ...any) {
	if err != nil {
		buf := make([]byte, 1024)
		n := runtime.Stack(buf, false)
		args = append(args, slog.Group("error",
			slog.String("msg", err.Error()),
			slog.String("stack", string(buf[:n])),
		))
	}
	lg.l.Error(msg, args...)
}
