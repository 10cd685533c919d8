package texbook

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/alnah/go-texbook/internal/assets"
	"github.com/alnah/go-texbook/internal/fileutil"
	"github.com/alnah/go-texbook/internal/latex"
	"github.com/alnah/go-texbook/internal/pipeline"
	"github.com/alnah/go-texbook/internal/process"
)

// bookMacros are always known to the parser. Their single argument is
// kept with its braces and stripped after post-processing.
var bookMacros = map[string]latex.Signature{
	"label":          "m",
	"HTMLclassTitle": "m",
	"newthought":     "m",
}

// Builder turns a LaTeX book into a PDF and an HTML page.
// Create with NewBuilder, call Build (or BuildPDF / BuildHTML), then Close.
// A Builder is not safe for concurrent use.
type Builder struct {
	cfg    *Config
	opts   builderConfig
	logger *slog.Logger
	runner CommandRunner
	math   MathRenderer

	table       latex.Table
	highlighter *pipeline.Highlighter
	composer    *pipeline.Composer
	markdown    *pipeline.MarkdownRenderer
	countPages  func(path string) (int, error)
}

// BuildResult reports what Build produced. A nil field means the artifact
// was disabled or not reached.
type BuildResult struct {
	PDF  *PDFResult
	HTML *HTMLResult
}

// HTMLResult describes the written page.
type HTMLResult struct {
	Path         string
	Files        []string // LaTeX files read, root first
	Labels       int
	References   int
	DanglingRefs []string // references to labels the book never declares
}

// NewBuilder creates a Builder with DefaultConfig unless WithConfig is given.
// Returns an error if the configuration is invalid or the page template
// cannot be loaded.
func NewBuilder(opts ...Option) (*Builder, error) {
	b := &Builder{
		cfg:        DefaultConfig(),
		opts:       builderConfig{timeout: defaultTimeout},
		logger:     discardLogger(),
		runner:     &process.ExecRunner{},
		countPages: countPages,
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	sigs, err := latex.ParseTable(b.cfg.LaTeX.Macros)
	if err != nil {
		return nil, err
	}
	b.table = latex.DefaultTable().WithMacros(bookMacros).WithMacros(sigs)

	resolver, err := assets.NewResolver(b.cfg.Assets.BasePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssetPath, err)
	}
	if dir := resolver.ThemeDir(); dir != "" {
		b.logger.Info("using theme directory", "dir", dir)
	}
	tmpl, err := resolver.Template(assets.PageTemplate)
	if err != nil {
		return nil, fmt.Errorf("loading page template: %w", err)
	}
	if b.composer, err = pipeline.NewComposer(tmpl); err != nil {
		return nil, err
	}

	b.highlighter = pipeline.NewHighlighter(pipeline.DefaultHighlightStyle)
	b.markdown = pipeline.NewMarkdownRenderer()

	if b.math == nil {
		b.math = newMathEngine(b.cfg.Math, b.runner, b.opts.timeout)
	}
	return b, nil
}

// Config returns the configuration the Builder runs with.
func (b *Builder) Config() *Config {
	return b.cfg
}

// Build produces the PDF and then the HTML page, skipping whichever the
// configuration disables. A PDF failure stops the run before any HTML is
// written.
func (b *Builder) Build(ctx context.Context) (*BuildResult, error) {
	res := &BuildResult{}

	if b.cfg.PDF.Enabled {
		pdf, err := b.BuildPDF(ctx)
		if err != nil {
			return res, err
		}
		res.PDF = pdf
	}

	if b.cfg.HTML.Enabled {
		page, err := b.BuildHTML(ctx)
		if err != nil {
			return res, err
		}
		res.HTML = page
	}
	return res, nil
}

// BuildHTML assembles the book, renders it and writes the page. The
// previous page is replaced only when every stage succeeds.
// Recovers from internal panics to prevent crashes from propagating to callers.
func (b *Builder) BuildHTML(ctx context.Context) (result *HTMLResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	asm := &pipeline.Assembler{BookDir: b.cfg.Book.Dir, Preamble: b.cfg.Book.Preamble}
	flat, err := asm.Assemble(ctx, b.cfg.Book.Root)
	if err != nil {
		return nil, fmt.Errorf("assembling source: %w", err)
	}
	b.logger.Info("assembled source", "files", len(flat.Files), "bytes", len(flat.Source))

	root, err := latex.Parse(flat.Source, b.table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	renderer := &pipeline.Renderer{Highlighter: b.highlighter}
	markup, err := renderer.Render(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	body, err := b.postprocess(ctx, markup)
	if err != nil {
		return nil, err
	}

	fragment, err := body.HTML()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	page, err := b.compose(ctx, fragment)
	if err != nil {
		return nil, err
	}

	if err := fileutil.WriteFileAtomic(b.cfg.Output.HTML, []byte(page), 0o644); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	b.logger.Info("wrote HTML", "path", b.cfg.Output.HTML)

	return &HTMLResult{
		Path:         b.cfg.Output.HTML,
		Files:        flat.Files,
		Labels:       len(body.Labels()),
		References:   len(body.Refs()),
		DanglingRefs: body.DanglingRefs(),
	}, nil
}

// postprocess runs the markup passes in order: math, labels, references,
// braces, then the layout passes.
func (b *Builder) postprocess(ctx context.Context, markup string) (*pipeline.Body, error) {
	m, err := pipeline.ParseMarkup(markup)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	rendered, err := m.RenderMath(ctx, b.math, b.cfg.Math.Macros)
	if err != nil {
		return nil, err
	}

	body := rendered.AnchorLabels().LinkReferences().StripBraces()
	body = body.RebaseAssets(assetPrefix(b.cfg.Output.HTML, b.cfg.Book.Dir))
	if b.cfg.HTML.TOC {
		body = body.WithTOC(b.cfg.HTML.TOCTitle)
	}

	if b.cfg.HTML.CheckRefs {
		for _, id := range body.DanglingRefs() {
			b.logger.Warn("reference to undeclared label", "label", id)
		}
	}
	return body, nil
}

// compose wraps the body in the page shell.
func (b *Builder) compose(ctx context.Context, fragment string) (string, error) {
	css, err := b.highlighter.CSS()
	if err != nil {
		return "", err
	}

	var description template.HTML
	if md := b.cfg.HTML.Header.Description; md != "" {
		out, err := b.markdown.Render(ctx, md)
		if err != nil {
			return "", fmt.Errorf("rendering header description: %w", err)
		}
		description = template.HTML(out) // #nosec G203 -- goldmark output, raw HTML disabled
	}

	h := b.cfg.HTML
	return b.composer.Compose(ctx, pipeline.PageData{
		Lang:        h.Lang,
		Title:       h.Title,
		Stylesheets: h.Stylesheets,
		InlineCSS:   template.CSS(css), // #nosec G203 -- generated by chroma
		Header: pipeline.PageHeader{
			Title:       h.Header.Title,
			Subtitle:    h.Header.Subtitle,
			Author:      h.Header.Author,
			Description: description,
		},
		Body: template.HTML(fragment), // #nosec G203 -- produced by the renderer
	})
}

// assetPrefix is the book directory as seen from the page, in URL form.
func assetPrefix(htmlPath, bookDir string) string {
	from, err := filepath.Abs(filepath.Dir(htmlPath))
	if err != nil {
		return filepath.ToSlash(bookDir)
	}
	to, err := filepath.Abs(bookDir)
	if err != nil {
		return filepath.ToSlash(bookDir)
	}
	rel, err := filepath.Rel(from, to)
	if err != nil {
		return filepath.ToSlash(bookDir)
	}
	return filepath.ToSlash(rel)
}

// Close releases the math engine. Safe to call more than once.
func (b *Builder) Close() error {
	if c, ok := b.math.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
