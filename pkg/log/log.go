// Package log is the package-level logger every other package calls into:
// a global log.Print / log.Errorf instead of threading a logger through
// every constructor. Lines are structured via go.uber.org/zap, so fields
// like job id or coder id survive as searchable attributes instead of
// being interpolated into the message.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger *zap.SugaredLogger
)

func init() {
	logger = build(false).Sugar()
}

func build(debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fall back to a bare stderr writer; logging must never block startup.
		return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(cfg.EncoderConfig), zapcore.Lock(os.Stderr), cfg.Level))
	}
	return l
}

// Init reconfigures the global logger's level. Called once from main after
// config is loaded.
func Init(debug bool) {
	mu.Lock()
	defer mu.Unlock()
	logger = build(debug).Sugar()
}

func With(fields ...interface{}) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.With(fields...)
}

func Print(args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	logger.Info(args...)
}

func Printf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	logger.Infof(format, args...)
}

func Debugf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	logger.Debugf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	logger.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	logger.Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	mu.RLock()
	logger.Fatalf(format, args...)
	mu.RUnlock()
	os.Exit(1)
}
