// Package logger builds the zap loggers used by the CLI. Logs go to stderr
// so that tables and summaries on stdout stay clean.
package logger

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a zap logger. Development mode logs at debug level to a
// colored console; otherwise JSON at info level.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config

	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		// every "Backtests: n / total" line is kept
		cfg.Sampling = nil
	}
	cfg.OutputPaths = []string{"stderr"}

	return cfg.Build(zap.Fields(zap.String("app", "btsweep")))
}

// Must creates a logger or panics
func Must(development bool) *zap.Logger {
	log, err := New(development)
	if err != nil {
		panic(err)
	}
	return log
}
