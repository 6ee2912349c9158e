// Package logging provides the process-wide zap logger for plgn.
// Components grab named sub-loggers so log lines carry their origin.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Init configures the global logger. Verbose enables debug level.
// Safe to call more than once; the last call wins.
func Init(verbose bool) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	l, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

// L returns the global logger. Before Init it is a nop logger,
// so library code can log unconditionally.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Named returns a sugared logger tagged with the component name.
func Named(component string) *zap.SugaredLogger {
	return L().Named(component).Sugar()
}

// Sync flushes buffered log entries. Called on process exit.
func Sync() {
	_ = L().Sync()
}
