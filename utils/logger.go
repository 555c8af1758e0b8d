package utils

import (
	"fmt"
	"io"
	"os"

	"github.com/phuslu/log"
)

// Logger provides leveled, printf-style logging throughout the application.
type Logger struct {
	base log.Logger
}

// NewLogger creates a Logger writing to stdout at the given level ("debug", "info", "warn", "error").
func NewLogger(level string) *Logger {
	var w log.Writer
	if log.IsTerminal(os.Stdout.Fd()) {
		w = &log.ConsoleWriter{ColorOutput: true, Writer: os.Stdout}
	} else {
		w = &log.ConsoleWriter{Writer: os.Stdout}
	}
	return newLogger(w, level)
}

// NewLoggerTo creates a Logger writing plain console lines to w.
func NewLoggerTo(w io.Writer, level string) *Logger {
	return newLogger(&log.ConsoleWriter{Writer: w}, level)
}

func newLogger(w log.Writer, level string) *Logger {
	if level == "" {
		level = "info"
	}
	return &Logger{base: log.Logger{
		Level:      log.ParseLevel(level),
		TimeFormat: "2006-01-02 15:04:05",
		Writer:     w,
	}}
}

func (l *Logger) Info(format string, args ...any) {
	l.base.Info().Msgf(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.base.Warn().Msgf(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.base.Error().Msgf(format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.base.Debug().Msgf(format, args...)
}

// CronLogger adapts Logger to the cron scheduler's logging interface.
type CronLogger struct {
	Logger *Logger
}

func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.Logger.Debug("[cron] %s%s", msg, formatKV(keysAndValues))
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.Logger.Error("[cron] %s: %v%s", msg, err, formatKV(keysAndValues))
}

func formatKV(kv []interface{}) string {
	s := ""
	for i := 0; i+1 < len(kv); i += 2 {
		s += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	return s
}
