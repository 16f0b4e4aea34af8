// Package logging builds the zap loggers used by siptool.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// LevelDebug logs everything
	LevelDebug = "debug"

	// LevelInfo is the default level
	LevelInfo = "info"

	// LevelNone disables logging
	LevelNone = "none"

	// FormatJSON writes one JSON object per line
	FormatJSON = "json"

	// FormatConsole writes human readable lines
	FormatConsole = "console"
)

// New returns a logger writing to stderr at the given level and in the
// given format.
func New(level, format string) (*zap.Logger, error) {
	if level == LevelNone {
		return zap.NewNop(), nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	var cfg zap.Config
	switch format {
	case FormatJSON:
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Development = false
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
