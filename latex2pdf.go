package texbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/alnah/go-texbook/internal/fileutil"
)

// diagnosticLines bounds the compiler output kept by Diagnostic.
const diagnosticLines = 40

// PDFResult describes the copied PDF.
type PDFResult struct {
	Path  string
	Pages int
}

// CompileError reports a failed PDF build together with everything the
// compiler printed. Err wraps ErrCompile, ErrPDFMissing or ErrPDFInvalid.
type CompileError struct {
	Pass    int // 1-based compiler pass that failed
	Command string
	Output  string // compiler stdout followed by stderr
	Err     error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("pass %d: %s: %v", e.Pass, e.Command, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Diagnostic returns the part of the compiler output that explains the
// failure. With a TeX error line ("! ...") it is that line and what
// follows, capped at diagnosticLines; otherwise the last diagnosticLines
// lines.
func (e *CompileError) Diagnostic() string {
	lines := strings.Split(strings.TrimRight(e.Output, "\n"), "\n")
	if i := slices.IndexFunc(lines, func(l string) bool { return strings.HasPrefix(l, "!") }); i >= 0 {
		lines = lines[i:min(len(lines), i+diagnosticLines)]
	} else if len(lines) > diagnosticLines {
		lines = lines[len(lines)-diagnosticLines:]
	}
	return strings.Join(lines, "\n")
}

// BuildPDF copies the book into the scratch directory, runs the compiler
// there and copies the result to the PDF output. Any failure leaves the
// previous PDF untouched. Compiler failures are returned as *CompileError.
func (b *Builder) BuildPDF(ctx context.Context) (*PDFResult, error) {
	cfg := b.cfg
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := fileutil.CopyTree(cfg.Book.Dir, cfg.Output.Scratch); err != nil {
		return nil, fmt.Errorf("%w: copying %s to %s: %v", ErrWriteOutput, cfg.Book.Dir, cfg.Output.Scratch, err)
	}

	produced := filepath.Join(cfg.Output.Scratch, pdfName(cfg.Book.Root))
	if err := os.Remove(produced); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: removing stale %s: %v", ErrWriteOutput, produced, err)
	}

	cmd := Command{
		Name: cfg.PDF.Compiler,
		Args: append(slices.Clone(cfg.PDF.Args), cfg.Book.Root),
		Dir:  cfg.Output.Scratch,
	}

	var output string
	for pass := 1; pass <= cfg.PDF.Passes; pass++ {
		b.logger.Info("compiling PDF", "pass", pass, "command", cmd.String())

		stdout, stderr, err := b.runner.Run(ctx, cmd)
		output = stdout + stderr
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &CompileError{
				Pass:    pass,
				Command: cmd.String(),
				Output:  output,
				Err:     fmt.Errorf("%w: %w", ErrCompile, err),
			}
		}
	}

	pages, err := b.countPages(produced)
	if err != nil {
		return nil, &CompileError{Pass: cfg.PDF.Passes, Command: cmd.String(), Output: output, Err: err}
	}

	if err := fileutil.CopyFileAtomic(produced, cfg.Output.PDF); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	b.logger.Info("wrote PDF", "path", cfg.Output.PDF, "pages", pages)

	return &PDFResult{Path: cfg.Output.PDF, Pages: pages}, nil
}

// pdfName is the file the compiler writes for root: same base name, .pdf.
func pdfName(root string) string {
	base := filepath.Base(root)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".pdf"
}

// countPages opens the compiled PDF and returns its page count. The PDF
// reader panics on some malformed files; that is reported as ErrPDFInvalid.
func countPages(path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%w: %v", ErrPDFInvalid, r)
		}
	}()

	if !fileutil.FileExists(path) {
		return 0, fmt.Errorf("%w: %s", ErrPDFMissing, path)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPDFInvalid, err)
	}
	defer func() { _ = f.Close() }()

	n = r.NumPage()
	if n < 1 {
		return 0, fmt.Errorf("%w: %s has no pages", ErrPDFInvalid, path)
	}
	return n, nil
}
