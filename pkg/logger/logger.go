package logger

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

// ErrorObject for structured error logging
type ErrorObject struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

// Logger holds service name and hostname
type Logger struct {
	service  string
	hostname string
	base     *slog.Logger
}

// NewLogger initializes a JSON logger writing to stdout at INFO.
func NewLogger(service string) *Logger {
	return New(service, os.Stdout, slog.LevelInfo)
}

func New(service string, w io.Writer, level slog.Level) *Logger {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = getFallbackHostname()
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	})
	return &Logger{
		service:  service,
		hostname: hostname,
		base:     slog.New(handler).With("service", service, "hostname", hostname),
	}
}

// ParseLevel maps a config string to a slog level, defaulting to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Service returns the service name the logger was created for.
func (l *Logger) Service() string { return l.service }

// Slog exposes the underlying logger for libraries that take *slog.Logger.
func (l *Logger) Slog() *slog.Logger { return l.base }

// Info logs an INFO message
func (l *Logger) Info(requestID, action, message string, extra map[string]interface{}) {
	l.log(slog.LevelInfo, action, message, requestID, nil, extra)
}

// Debug logs a DEBUG message
func (l *Logger) Debug(requestID, action, message string, extra map[string]interface{}) {
	l.log(slog.LevelDebug, action, message, requestID, nil, extra)
}

// Warn logs a WARN message
func (l *Logger) Warn(requestID, action, message string, extra map[string]interface{}) {
	l.log(slog.LevelWarn, action, message, requestID, nil, extra)
}

// Error logs an ERROR message with error object
func (l *Logger) Error(requestID, action, message string, err error, extra map[string]interface{}) {
	var errorObj *ErrorObject
	if err != nil {
		errorObj = &ErrorObject{
			Msg:   err.Error(),
			Stack: string(debug.Stack()),
		}
	}
	l.log(slog.LevelError, action, message, requestID, errorObj, extra)
}

func (l *Logger) log(level slog.Level, action, message, requestID string, errObj *ErrorObject, extra map[string]interface{}) {
	ctx := context.Background()
	if !l.base.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, 4)
	if requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	attrs = append(attrs, slog.String("action", action))
	if errObj != nil {
		attrs = append(attrs, slog.Group("error", slog.String("msg", errObj.Msg), slog.String("stack", errObj.Stack)))
	}
	if len(extra) > 0 {
		attrs = append(attrs, slog.Any("extra", extra))
	}
	l.base.LogAttrs(ctx, level, message, attrs...)
}

// replaceAttr renames the top-level time and msg keys to timestamp and message.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		return slog.String("timestamp", a.Value.Time().UTC().Format(time.RFC3339Nano))
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

// Fallback if os.Hostname() fails
func getFallbackHostname() string {
	addrs, _ := net.InterfaceAddrs()
	if len(addrs) > 0 {
		return addrs[0].String()
	}
	return "unknown-host"
}
