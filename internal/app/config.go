package app

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/kernlib/internal/arch"
	"github.com/specialistvlad/kernlib/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Build config.Build

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg, resolves the requested architectures into
// Build.Targets and returns it, or an error listing every problem.
func NewConfig(cfg Config) (*Config, error) {
	var errs []error
	if err := cfg.Build.Validate(); err != nil {
		errs = append(errs, err)
	}
	targets, err := arch.Select(cfg.Build.Architectures)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Build.Targets = targets
	switch cfg.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat))
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}
