package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the sugared zap logger shared by every module.
// Debug mode switches to the human readable development encoder.
func NewLogger(debug bool) *zap.SugaredLogger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	base, err := cfg.Build()
	if err != nil {
		base = zap.NewNop()
	}
	return base.Sugar()
}

// Nop returns a logger that discards everything, used when callers pass nil.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return Nop()
	}
	return l
}
