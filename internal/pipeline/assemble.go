package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Sentinel errors for source assembly.
var (
	ErrIncludeNotFound = errors.New("included file not found")
	ErrIncludeCycle    = errors.New("include cycle")
	ErrIncludeDepth    = errors.New("includes nested too deeply")
)

// DefaultMaxIncludeDepth bounds \include nesting.
const DefaultMaxIncludeDepth = 16

// includeRe matches \include{path} and \input{path}, also written with a
// doubled backslash (\\input{path}) as some sources do.
var includeRe = regexp.MustCompile(`\\{1,2}(include|input)\{([^{}]*)\}`)

var crlfOrCR = regexp.MustCompile(`\r\n?`)

// Flattened is the root document with every include directive expanded.
type Flattened struct {
	Source string
	Files  []string // files read, in expansion order, root first
}

// Assembler inlines \include and \input directives.
type Assembler struct {
	// BookDir is the directory include paths are resolved against.
	BookDir string

	// Preamble is the file name of the \input{...} directive removed from
	// the root document. Empty disables removal.
	Preamble string

	// MaxDepth bounds nesting; zero means DefaultMaxIncludeDepth.
	MaxDepth int

	// ReadFile defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

// Assemble reads root (relative to BookDir), drops the preamble directive
// and expands includes recursively. Text is normalised to NFC with \n line
// endings.
func (a *Assembler) Assemble(ctx context.Context, root string) (*Flattened, error) {
	rootPath := filepath.Join(a.BookDir, root)
	text, err := a.read(rootPath)
	if err != nil {
		return nil, fmt.Errorf("reading root document: %w", err)
	}

	if a.Preamble != "" {
		text = strings.Replace(text, `\input{`+a.Preamble+`}`, "", 1)
	}

	out := &Flattened{Files: []string{rootPath}}
	out.Source, err = a.expand(ctx, text, []string{rootPath}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Assembler) read(path string) (string, error) {
	readFile := a.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	data, err := readFile(path) // #nosec G304 -- paths come from the book sources
	if err != nil {
		return "", err
	}
	return crlfOrCR.ReplaceAllString(norm.NFC.String(string(data)), "\n"), nil
}

func (a *Assembler) expand(ctx context.Context, text string, stack []string, out *Flattened) (string, error) {
	maxDepth := a.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxIncludeDepth
	}

	var b strings.Builder
	b.Grow(len(text))

	for _, line := range strings.SplitAfter(text, "\n") {
		code := line[:commentStart(line)]
		last := 0
		for _, m := range includeRe.FindAllStringSubmatchIndex(code, -1) {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			name := strings.TrimSpace(code[m[4]:m[5]])
			path := includePath(a.BookDir, name)

			if slices.Contains(stack, path) {
				return "", fmt.Errorf("%w: %s", ErrIncludeCycle, strings.Join(append(stack, path), " -> "))
			}
			if len(stack) > maxDepth {
				return "", fmt.Errorf("%w: %s (max %d)", ErrIncludeDepth, path, maxDepth)
			}

			content, err := a.read(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return "", fmt.Errorf("%w: %s (from %s)", ErrIncludeNotFound, path, stack[len(stack)-1])
				}
				return "", fmt.Errorf("reading %s: %w", path, err)
			}
			out.Files = append(out.Files, path)

			expanded, err := a.expand(ctx, content, append(slices.Clip(stack), path), out)
			if err != nil {
				return "", err
			}

			b.WriteString(line[last:m[0]])
			b.WriteString(expanded)
			last = m[1]
		}
		b.WriteString(line[last:])
	}
	return b.String(), nil
}

// includePath resolves an include argument against the book directory,
// appending .tex when the name has no extension.
func includePath(bookDir, name string) string {
	if filepath.Ext(name) == "" {
		name += ".tex"
	}
	return filepath.Join(bookDir, filepath.FromSlash(name))
}

// commentStart returns the index of the first unescaped % in line, or
// len(line).
func commentStart(line string) int {
	for i := 0; i < len(line); i++ {
		if line[i] != '%' {
			continue
		}
		backslashes := 0
		for j := i - 1; j >= 0 && line[j] == '\\'; j-- {
			backslashes++
		}
		if backslashes%2 == 0 {
			return i
		}
	}
	return len(line)
}
