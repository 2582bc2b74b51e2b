// Package log holds the process-wide zap logger. Long-lived components take
// a child from Named; the package-level helpers are for main and startup code.
package log

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every entry so rig logs can be told apart in a
// shared collector
const ServiceName = "motorwatch"

var (
	mu    sync.RWMutex
	base  *zap.Logger
	sugar *zap.SugaredLogger
)

var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Init builds the package logger. Debug mode switches to the console encoder
// and lowers the level so per-window scoring output is visible.
func Init(debug bool) error {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
	cfg.Level = level
	cfg.InitialFields = map[string]interface{}{"service": ServiceName}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("building zap logger: %w", err)
	}
	replace(l)
	return nil
}

// InitNop discards everything. Tests use it to keep output quiet.
func InitNop() {
	replace(zap.NewNop())
}

func replace(l *zap.Logger) {
	mu.Lock()
	base, sugar = l, l.Sugar()
	mu.Unlock()
}

// current returns the package logger, falling back to a production logger
// when Init was never called
func current() (*zap.Logger, *zap.SugaredLogger) {
	mu.RLock()
	b, s := base, sugar
	mu.RUnlock()
	if b != nil {
		return b, s
	}

	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		l, err := zap.NewProduction(zap.AddCallerSkip(1), zap.Fields(zap.String("service", ServiceName)))
		if err != nil {
			l = zap.NewNop()
		}
		base, sugar = l, l.Sugar()
	}
	return base, sugar
}

// GetZapLogger returns the structured logger, e.g. for GORM
func GetZapLogger() *zap.Logger {
	b, _ := current()
	return b
}

// GetSugaredLogger returns the package logger for components that want to
// hold their own reference
func GetSugaredLogger() *zap.SugaredLogger {
	_, s := current()
	return s
}

// Named returns a child logger for one component. The caller skip added for
// the package helpers is undone so callers report their own line.
func Named(component string) *zap.SugaredLogger {
	return GetSugaredLogger().Desugar().WithOptions(zap.AddCallerSkip(-1)).Sugar().Named(component)
}

// Sync flushes buffered entries; call it before exit
func Sync() {
	b, _ := current()
	_ = b.Sync()
}

func Info(args ...interface{}) {
	GetSugaredLogger().Info(args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Infow(msg, keysAndValues...)
}

func Warn(args ...interface{}) {
	GetSugaredLogger().Warn(args...)
}

func Errorf(template string, args ...interface{}) {
	GetSugaredLogger().Errorf(template, args...)
}

// Fatal and Fatalf log then exit with status 1
func Fatal(args ...interface{}) {
	GetSugaredLogger().Fatal(args...)
}

func Fatalf(template string, args ...interface{}) {
	GetSugaredLogger().Fatalf(template, args...)
}
