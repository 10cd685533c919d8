package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	texbook "github.com/alnah/go-texbook"
	"github.com/alnah/go-texbook/internal/config"
	"github.com/alnah/go-texbook/internal/hints"
)

// CLI errors.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("invalid usage")
	ErrDanglingRefs   = errors.New("references to undeclared labels")
)

func errUnexpectedArgs(args []string) error {
	return fmt.Errorf("%w: unexpected arguments %s (the book is located with --book and --root)", ErrUsage, strings.Join(args, " "))
}

// runMain dispatches args (including the program name) and returns the
// process exit code. With no command, build runs.
func runMain(ctx context.Context, args []string, env *Environment) int {
	warnUnknownEnvVars(env.Stderr)

	cmd, rest := "build", args[1:]
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		cmd, rest = rest[0], rest[1:]
	}

	var err error
	switch cmd {
	case "build", "html", "pdf":
		return runBuildCmd(ctx, cmd, rest, env)
	case "watch":
		err = runWatchCmd(ctx, rest, env)
	case "serve":
		err = runServeCmd(ctx, rest, env)
	case "doctor":
		return runDoctorCmd(rest, env)
	case "completion":
		err = runCompletion(rest, env)
	case "version":
		fmt.Fprintf(env.Stdout, "texbook %s\n", Version)
	case "help":
		err = runHelp(rest, env)
	default:
		err = fmt.Errorf("%w: %q (run 'texbook help')", ErrUnknownCommand, cmd)
	}
	return reportError(env.Stderr, err, hintContext{})
}

// runBuildCmd runs build, html or pdf once.
func runBuildCmd(ctx context.Context, name string, args []string, env *Environment) int {
	f, err := parseBuildFlags(name, args, env.Stderr)
	if err != nil {
		return reportError(env.Stderr, err, hintContext{})
	}

	envCfg := loadEnvConfig()
	hc := hintContext{configName: configName(f, envCfg)}
	cfg, err := resolveConfig(name, f, envCfg)
	if err != nil {
		return reportError(env.Stderr, err, hc)
	}
	hc.cfg = cfg

	b, err := newBuilder(cfg, newLogger(env.Stderr, f.common), env)
	if err != nil {
		return reportError(env.Stderr, err, hc)
	}
	defer func() { _ = b.Close() }()

	ctx, cancel := withTimeout(ctx, resolveTimeout(f.timeout, envCfg))
	defer cancel()

	res, err := b.Build(ctx)
	return reportBuild(env, f, hc, res, err)
}

// configName is the config requested by flag or environment, if any.
func configName(f *buildFlags, envCfg *envConfig) string {
	if f.common.config != "" {
		return f.common.config
	}
	return envCfg.ConfigPath
}

// resolveConfig builds the effective configuration for command name:
// defaults, then the config file, then the environment, then flags.
func resolveConfig(name string, f *buildFlags, envCfg *envConfig) (*texbook.Config, error) {
	cfg := texbook.DefaultConfig()
	if n := configName(f, envCfg); n != "" {
		loaded, err := texbook.LoadConfig(n)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvConfig(envCfg, cfg)
	mergeFlags(f, cfg)

	switch name {
	case "html":
		cfg.PDF.Enabled = false
	case "pdf":
		cfg.HTML.Enabled = false
	}
	return cfg, cfg.Validate()
}

// mergeFlags applies explicitly set flags over cfg.
func mergeFlags(f *buildFlags, cfg *texbook.Config) {
	if f.paths.book != "" {
		cfg.Book.Dir = f.paths.book
	}
	if f.paths.root != "" {
		cfg.Book.Root = f.paths.root
	}
	if f.paths.htmlOut != "" {
		cfg.Output.HTML = f.paths.htmlOut
	}
	if f.paths.pdfOut != "" {
		cfg.Output.PDF = f.paths.pdfOut
	}
	if f.paths.scratch != "" {
		cfg.Output.Scratch = f.paths.scratch
	}

	a := f.artifacts
	if a.noPDF {
		cfg.PDF.Enabled = false
	}
	if a.noHTML {
		cfg.HTML.Enabled = false
	}
	if a.mathEngine != "" {
		cfg.Math.Engine = a.mathEngine
	}
	if a.toc {
		cfg.HTML.TOC = true
	}
	if a.checkRefs || f.strict {
		cfg.HTML.CheckRefs = true
	}
	if a.assetPath != "" {
		cfg.Assets.BasePath = a.assetPath
	}
}

// resolveTimeout returns the flag value if set, else TEXBOOK_TIMEOUT.
// Zero means no limit.
func resolveTimeout(flagTimeout time.Duration, envCfg *envConfig) time.Duration {
	if flagTimeout > 0 {
		return flagTimeout
	}
	return envCfg.Timeout
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// newLogger writes warnings to w; -v lowers the level to info and -q
// raises it to error.
func newLogger(w io.Writer, f commonFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case f.quiet:
		level = slog.LevelError
	case f.verbose:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newBuilder(cfg *texbook.Config, logger *slog.Logger, env *Environment) (*texbook.Builder, error) {
	opts := []texbook.Option{texbook.WithConfig(cfg), texbook.WithLogger(logger)}
	return texbook.NewBuilder(append(opts, env.Options...)...)
}

// reportBuild prints the outcome of one build and returns the exit code.
// A LaTeX failure prints the compiler diagnostic on stdout; it only fails
// the process under --strict.
func reportBuild(env *Environment, f *buildFlags, hc hintContext, res *texbook.BuildResult, err error) int {
	var cerr *texbook.CompileError
	if errors.As(err, &cerr) {
		printCompileError(env.Stdout, cerr, hc)
		if f.strict {
			return reportError(env.Stderr, err, hc)
		}
		return ExitSuccess
	}
	if err != nil {
		return reportError(env.Stderr, err, hc)
	}

	if !f.common.quiet {
		printResult(env.Stdout, res)
	}
	if f.strict && res.HTML != nil && len(res.HTML.DanglingRefs) > 0 {
		err := fmt.Errorf("%w: %s", ErrDanglingRefs, strings.Join(res.HTML.DanglingRefs, ", "))
		return reportError(env.Stderr, err, hc)
	}
	return ExitSuccess
}

// printCompileError prints the failure and the full compiler output.
func printCompileError(w io.Writer, cerr *texbook.CompileError, hc hintContext) {
	fmt.Fprintf(w, "PDF build failed: %v\n", cerr)
	if out := strings.TrimRight(cerr.Output, "\n"); out != "" {
		fmt.Fprintln(w, out)
	}
	if h := hintFor(cerr, hc); h != "" {
		fmt.Fprintln(w, strings.TrimPrefix(h, "\n"))
	}
}

func printResult(w io.Writer, res *texbook.BuildResult) {
	if res == nil {
		return
	}
	if res.PDF != nil {
		fmt.Fprintf(w, "PDF:  %s (%d pages)\n", res.PDF.Path, res.PDF.Pages)
	}
	if res.HTML != nil {
		fmt.Fprintf(w, "HTML: %s (%d files, %d labels, %d references)\n",
			res.HTML.Path, len(res.HTML.Files), res.HTML.Labels, res.HTML.References)
	}
}

// hintContext carries what hintFor needs to name paths and programs.
type hintContext struct {
	cfg        *texbook.Config
	configName string
}

// reportError prints err with a hint and returns its exit code.
// flag.ErrHelp means usage was already printed on request.
func reportError(w io.Writer, err error, hc hintContext) int {
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}
	fmt.Fprintf(w, "error: %v%s\n", err, hintFor(err, hc))
	return exitCodeFor(err)
}

// hintFor returns an actionable hint for err, or "".
func hintFor(err error, hc hintContext) string {
	cfg := hc.cfg
	if cfg == nil {
		cfg = texbook.DefaultConfig()
	}

	var cerr *texbook.CompileError
	switch {
	case errors.As(err, &cerr) && errors.Is(err, exec.ErrNotFound):
		return hints.ForCompilerMissing(cfg.PDF.Compiler)
	case errors.Is(err, texbook.ErrBrowserConnect), errors.Is(err, texbook.ErrPageCreate):
		return hints.ForBrowserConnect(hints.CurrentHost())
	case errors.Is(err, texbook.ErrKatexScript):
		return hints.ForKatexScript(cfg.Math.KatexScript)
	case errors.Is(err, exec.ErrNotFound):
		return hints.ForKatexMissing(cfg.Math.KatexBin)
	case errors.Is(err, texbook.ErrIncludeNotFound):
		return hints.ForIncludeNotFound(cfg.Book.Dir)
	case errors.Is(err, texbook.ErrParse):
		return hints.ForParse()
	case errors.Is(err, context.DeadlineExceeded):
		return hints.ForTimeout()
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(configSearchPaths(hc.configName))
	case errors.Is(err, texbook.ErrWriteOutput):
		return hints.ForOutputDirectory()
	}
	return ""
}

// configSearchPaths lists where a config called name is looked up.
func configSearchPaths(name string) []string {
	if name == "" {
		return nil
	}
	paths := []string{name + ".yaml", name + ".yml"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "texbook", name+".yaml"))
	}
	return paths
}
