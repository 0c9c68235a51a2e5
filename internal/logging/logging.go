// Package logging wraps zap: level parsed from a string, built from zap's
// production config.
package logging

import (
	"strings"

	"go.uber.org/zap"
)

// Logger is a thin wrapper over *zap.Logger.
type Logger struct {
	*zap.Logger
}

// New builds a Logger at the given level ("debug", "info", "warn", "error",
// "fatal"; unrecognized or empty defaults to "info").
func New(level string) (*Logger, error) {
	zapLevel := zap.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zap.DebugLevel
	case "info":
		zapLevel = zap.InfoLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	case "fatal":
		zapLevel = zap.FatalLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: z}, nil
}

var noop = &Logger{Logger: zap.NewNop()}

// NoOp returns a Logger that discards everything, used as the Engine's
// default when no logger is configured.
func NoOp() *Logger {
	return noop
}
