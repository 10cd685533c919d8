package texbook

import (
	"io"
	"log/slog"
	"time"

	"github.com/alnah/go-texbook/internal/pipeline"
	"github.com/alnah/go-texbook/internal/process"
)

// Default timeout for a single math evaluation in the browser.
const defaultTimeout = 30 * time.Second

// CommandRunner runs external programs. The LaTeX compiler and the katex
// CLI are started through it.
type CommandRunner = process.Runner

// Command describes one external invocation.
type Command = process.Command

// MathRenderer typesets one TeX math source into HTML.
type MathRenderer = pipeline.MathRenderer

// MathOptions controls how one math region is typeset.
type MathOptions = pipeline.MathOptions

// Option configures a Builder.
type Option func(*Builder)

// builderConfig holds settings that are not part of Config.
type builderConfig struct {
	timeout time.Duration
}

// WithConfig replaces DefaultConfig. The configuration is validated by
// NewBuilder.
func WithConfig(cfg *Config) Option {
	return func(b *Builder) {
		if cfg != nil {
			b.cfg = cfg
		}
	}
}

// WithLogger sets the logger for progress and warnings. By default nothing
// is logged.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRunner replaces the runner used for the LaTeX compiler and the katex
// CLI.
func WithRunner(r CommandRunner) Option {
	return func(b *Builder) {
		b.runner = r
	}
}

// WithMathRenderer replaces the configured math engine.
func WithMathRenderer(r MathRenderer) Option {
	return func(b *Builder) {
		b.math = r
	}
}

// WithTimeout bounds each math evaluation in the browser engine.
// Panics if d is not positive.
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("texbook: WithTimeout duration must be positive")
	}
	return func(b *Builder) {
		b.opts.timeout = d
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
