package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerConfig struct {
	Debug bool

	// Component is attached to every entry when set, e.g. "run" or "replay".
	Component string
}

func NewLogger(cfg *LoggerConfig, options ...zap.Option) (*zap.Logger, error) {
	mergedOptions := append([]zap.Option{zap.WithCaller(true)}, options...)
	if cfg.Component != "" {
		mergedOptions = append(mergedOptions, zap.Fields(zap.String("component", cfg.Component)))
	}

	c := zap.NewProductionConfig()
	c.EncoderConfig = zap.NewProductionEncoderConfig()
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if cfg.Debug {
		c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	return c.Build(mergedOptions...)
}
