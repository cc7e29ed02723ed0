package app

import (
	"io"
	"log/slog"

	"github.com/specialistvlad/kernlib/internal/generator"
	"github.com/specialistvlad/kernlib/internal/progress"
	"github.com/specialistvlad/kernlib/internal/toolchain"
)

// App encapsulates the build's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	generator generator.Generator
	runner    toolchain.Runner
	reporter  progress.Reporter
}

// Option customizes an App.
type Option func(*App)

// WithGenerator replaces the built-in template generator.
func WithGenerator(g generator.Generator) Option {
	return func(a *App) { a.generator = g }
}

// WithRunner replaces the os/exec command runner used for compilation.
func WithRunner(r toolchain.Runner) Option {
	return func(a *App) { a.runner = r }
}

// WithReporter replaces progress reporting. The reporter is not closed by
// the App.
func WithReporter(r progress.Reporter) Option {
	return func(a *App) { a.reporter = r }
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger.
func NewApp(outW io.Writer, cfg *Config, opts ...Option) *App {
	a := &App{
		outW:      outW,
		logger:    newLogger(cfg.LogLevel, cfg.LogFormat, outW),
		config:    cfg,
		generator: generator.NewTemplate(),
		runner:    toolchain.ExecRunner,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger.Debug("Logger configured successfully.")
	return a
}
