// Package logger собирает zap-логгер приложения.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// New создает production-логгер (JSON) с указанным уровнем
func New(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("zap.ParseAtomicLevel: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("cfg.Build: %w", err)
	}

	return log, nil
}
