package main

// Notes:
// - exitCodeFor: one row per sentinel the CLI maps, plus wrapped forms to
//   check that errors.Is/As see through %w chains.

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"testing"

	texbook "github.com/alnah/go-texbook"
	"github.com/alnah/go-texbook/internal/config"
)

// ---------------------------------------------------------------------------
// TestExitCodeFor - Error to exit code mapping
// ---------------------------------------------------------------------------

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	compileErr := &texbook.CompileError{Pass: 2, Command: "pdflatex", Err: errors.New("exit status 1")}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"compile error", compileErr, ExitCompile},
		{"wrapped compile error", fmt.Errorf("building: %w", compileErr), ExitCompile},
		{"compiler missing", &texbook.CompileError{Pass: 1, Err: exec.ErrNotFound}, ExitCompile},
		{"browser connect", texbook.ErrBrowserConnect, ExitBrowser},
		{"math render wrapping browser", fmt.Errorf("%w: %w", texbook.ErrMathRender, texbook.ErrBrowserConnect), ExitBrowser},
		{"page create", texbook.ErrPageCreate, ExitBrowser},
		{"katex script", texbook.ErrKatexScript, ExitBrowser},
		{"katex cli missing", fmt.Errorf("starting katex: %w", exec.ErrNotFound), ExitBrowser},
		{"config not found", config.ErrConfigNotFound, ExitUsage},
		{"empty config name", config.ErrEmptyConfigName, ExitUsage},
		{"config parse", config.ErrConfigParse, ExitUsage},
		{"config invalid", fmt.Errorf("%w: math.engine", config.ErrConfigInvalid), ExitUsage},
		{"field too long", config.ErrFieldTooLong, ExitUsage},
		{"invalid asset path", texbook.ErrInvalidAssetPath, ExitUsage},
		{"include cycle", texbook.ErrIncludeCycle, ExitUsage},
		{"include depth", texbook.ErrIncludeDepth, ExitUsage},
		{"unknown command", ErrUnknownCommand, ExitUsage},
		{"usage", errUnexpectedArgs([]string{"x"}), ExitUsage},
		{"unsupported shell", ErrUnsupportedShell, ExitUsage},
		{"include not found", fmt.Errorf("assembling source: %w", texbook.ErrIncludeNotFound), ExitIO},
		{"write output", texbook.ErrWriteOutput, ExitIO},
		{"not exist", fmt.Errorf("watching: %w", os.ErrNotExist), ExitIO},
		{"permission", os.ErrPermission, ExitIO},
		{"parse", texbook.ErrParse, ExitGeneral},
		{"render", texbook.ErrRender, ExitGeneral},
		{"math render", texbook.ErrMathRender, ExitGeneral},
		{"dangling refs", ErrDanglingRefs, ExitGeneral},
		{"unknown", errors.New("boom"), ExitGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
