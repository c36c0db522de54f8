// Package logger builds the process-wide zap logger.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFileName is the file written inside the configured log directory.
const LogFileName = "darp.log"

// Config controls the level, encoding and optional file sink of the logger.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is "console" or "json".
	Format string
	// Dir, when set, receives a copy of every log line in LogFileName.
	Dir string
}

// New builds a logger writing to stderr, and to Dir when configured.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(orDefault(cfg.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level '%s': %w", cfg.Level, err)
	}

	var zcfg zap.Config
	switch orDefault(cfg.Format, "console") {
	case "console":
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Development = false
	case "json":
		zcfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format '%s', valid values are 'console' and 'json'", cfg.Format)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		zcfg.OutputPaths = append(zcfg.OutputPaths, filepath.Join(cfg.Dir, LogFileName))
	}

	return zcfg.Build()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
