package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

var level = new(slog.LevelVar)

func init() {
	slog.SetDefault(slog.New(newHandler(os.Stdout)))

	env := os.Getenv("LOG_LEVEL")
	if env == "" {
		return
	}

	lvl, err := ParseLevel(env)
	if err != nil {
		fmt.Printf("Unknown log level: %s != [ERROR,WARN,INFO,DEBUG]\n", env)
		return
	}
	SetLevel(lvl)
}

// newHandler picks the output format for the process logger. Terminals get
// colorized text, everything else gets JSON.
func newHandler(w *os.File) slog.Handler {
	if isatty.IsTerminal(w.Fd()) {
		return tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: timeFormat})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// ParseLevel maps a level name, case-insensitively, to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return slog.LevelError, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

func SetLevel(l slog.Level) {
	level.Set(l)
}

// Logger returns the current default slog logger.
func Logger() *slog.Logger {
	return slog.Default()
}

func IsDebug() bool { return slog.Default().Enabled(context.Background(), slog.LevelDebug) }
func IsInfo() bool  { return slog.Default().Enabled(context.Background(), slog.LevelInfo) }
func IsWarn() bool  { return slog.Default().Enabled(context.Background(), slog.LevelWarn) }

func Debug(msg string, args ...any) { slog.Debug(msg, args...) }
func Info(msg string, args ...any)  { slog.Info(msg, args...) }
func Warn(msg string, args ...any)  { slog.Warn(msg, args...) }
func Error(msg string, args ...any) { slog.Error(msg, args...) }

func Debugf(format string, args ...any) {
	if !IsDebug() {
		return
	}
	slog.Debug(fmt.Sprintf(format, args...))
}

func Infof(format string, args ...any) {
	slog.Info(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
}

// Fatalf logs at error level and exits.
func Fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
