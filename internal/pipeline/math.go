package pipeline

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/alnah/go-texbook/internal/process"
)

// ErrMathRender indicates a math region could not be typeset.
var ErrMathRender = errors.New("math rendering failed")

// MathOptions are the KaTeX options for one region.
type MathOptions struct {
	Display bool
	Fleqn   bool
	Macros  map[string]string
}

// MathRenderer typesets a math source to markup.
type MathRenderer interface {
	RenderMath(ctx context.Context, source string, opts MathOptions) (string, error)
}

// KatexCLI renders math by piping each region through the katex command
// line tool.
type KatexCLI struct {
	Runner process.Runner
	Bin    string
}

// Compile-time interface check.
var _ MathRenderer = (*KatexCLI)(nil)

// Args returns the katex arguments for opts. Macros are passed in sorted
// order so identical input yields identical invocations.
func (k *KatexCLI) Args(opts MathOptions) []string {
	var args []string
	if opts.Display {
		args = append(args, "--display-mode")
	}
	if opts.Fleqn {
		args = append(args, "--fleqn")
	}
	for _, name := range slices.Sorted(maps.Keys(opts.Macros)) {
		args = append(args, "--macro", name+":"+opts.Macros[name])
	}
	return args
}

// RenderMath runs katex with source on stdin and returns its output.
func (k *KatexCLI) RenderMath(ctx context.Context, source string, opts MathOptions) (string, error) {
	bin := k.Bin
	if bin == "" {
		bin = "katex"
	}
	cmd := process.Command{Name: bin, Args: k.Args(opts), Stdin: source}

	stdout, stderr, err := k.Runner.Run(ctx, cmd)
	if err != nil {
		if msg := strings.TrimSpace(stderr); msg != "" {
			return "", fmt.Errorf("%w: %s", err, firstLine(msg))
		}
		return "", err
	}
	return strings.TrimRight(stdout, "\n"), nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
