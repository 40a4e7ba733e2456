// Package logging builds the structured loggers used by the commands.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds a production zap logger at the named level (debug, info, warn,
// error).
func New(level string) (*zap.SugaredLogger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
