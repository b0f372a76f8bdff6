// Package logging builds zap loggers for wizard runners and commands.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production logger writing JSON to the given file path.
// When path is empty or the file cannot be opened, it falls back to a
// console logger on stderr so a bad log path never stops a run.
func New(path string) *zap.Logger {
	if path == "" {
		return Console()
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}

	logger, err := cfg.Build()
	if err != nil {
		return Console()
	}
	return logger
}

// Console returns a development logger on stderr.
func Console() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
