package texbook

import (
	"errors"

	"github.com/alnah/go-texbook/internal/pipeline"
)

// Sentinel errors for library operations.
var (
	ErrParse            = errors.New("failed to parse LaTeX")
	ErrRender           = errors.New("HTML rendering failed")
	ErrWriteOutput      = errors.New("failed to write output")
	ErrInvalidAssetPath = errors.New("invalid asset path")

	// Math engine errors.
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrKatexScript    = errors.New("failed to load katex script")

	// PDF production errors. They reach callers wrapped in a *CompileError.
	ErrCompile    = errors.New("LaTeX compilation failed")
	ErrPDFMissing = errors.New("compiler produced no PDF")
	ErrPDFInvalid = errors.New("compiled PDF is unreadable")

	// Source assembly and math errors raised by the pipeline.
	ErrIncludeNotFound = pipeline.ErrIncludeNotFound
	ErrIncludeCycle    = pipeline.ErrIncludeCycle
	ErrIncludeDepth    = pipeline.ErrIncludeDepth
	ErrMathRender      = pipeline.ErrMathRender
)
