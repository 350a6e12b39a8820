/**
 * @description
 * Process-wide structured logger. Log is a no-op until Initialize is called so
 * that packages and tests can log unconditionally.
 *
 * @dependencies
 * - go.uber.org/zap: structured, leveled logging.
 */
package logger

import (
	"log"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the shared logger instance.
var Log = zap.NewNop()

// Initialize builds a production JSON logger at the given level ("debug",
// "info", "warn", "error") and installs it as Log.
func Initialize(level string) error {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = zl
	return nil
}

// StdLogger adapts Log to the standard library logger for components that
// only accept a *log.Logger.
func StdLogger() *log.Logger {
	return zap.NewStdLog(Log)
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Log.Sync()
}

func String(key, value string) zap.Field {
	return zap.String(key, value)
}

func Int(key string, value int) zap.Field {
	return zap.Int(key, value)
}

func Bool(key string, value bool) zap.Field {
	return zap.Bool(key, value)
}

func Any(key string, value interface{}) zap.Field {
	return zap.Any(key, value)
}

func Stringer(key string, value interface{ String() string }) zap.Field {
	return zap.Stringer(key, value)
}

func Error(err error) zap.Field {
	return zap.Error(err)
}
