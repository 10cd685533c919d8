package main

import (
	"errors"
	"os"
	"os/exec"

	texbook "github.com/alnah/go-texbook"
	"github.com/alnah/go-texbook/internal/config"
)

// Exit codes for the texbook CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Build finished, or the PDF failed without --strict
	ExitGeneral = 1 // Parse, render, math or unexpected errors
	ExitUsage   = 2 // Invalid flags, config, or include structure
	ExitIO      = 3 // Missing sources, unwritable outputs
	ExitBrowser = 4 // Browser or math engine startup errors
	ExitCompile = 5 // LaTeX compilation failed under --strict
)

// exitCodeFor returns the exit code for err. It uses errors.Is, so callers
// must wrap with %w.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var cerr *texbook.CompileError
	if errors.As(err, &cerr) {
		return ExitCompile
	}

	// Browser and math engine (exit 4)
	if errors.Is(err, texbook.ErrBrowserConnect) ||
		errors.Is(err, texbook.ErrPageCreate) ||
		errors.Is(err, texbook.ErrKatexScript) ||
		errors.Is(err, exec.ErrNotFound) {
		return ExitBrowser
	}

	// Usage, config and source structure (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrConfigInvalid) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, texbook.ErrInvalidAssetPath) ||
		errors.Is(err, texbook.ErrIncludeCycle) ||
		errors.Is(err, texbook.ErrIncludeDepth) ||
		errors.Is(err, ErrUnknownCommand) ||
		errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrUnsupportedShell) {
		return ExitUsage
	}

	// I/O (exit 3)
	if errors.Is(err, texbook.ErrIncludeNotFound) ||
		errors.Is(err, texbook.ErrWriteOutput) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) {
		return ExitIO
	}

	return ExitGeneral
}
