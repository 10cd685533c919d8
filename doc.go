// Package texbook builds a LaTeX book into a PDF and a single HTML page.
//
// # Quick Start
//
// Create a builder, build, and close when done:
//
//	b, err := texbook.NewBuilder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	res, err := b.Build(ctx)
//	var cerr *texbook.CompileError
//	if errors.As(err, &cerr) {
//	    fmt.Println(cerr.Diagnostic())
//	}
//
// With DefaultConfig the book is read from book/main.tex, the PDF is
// written to output/main.pdf and the page to index.html.
//
// # Build Pipeline
//
// The PDF is produced first:
//
//  1. The book directory is copied into a scratch directory
//  2. The LaTeX compiler runs there (pdflatex, two passes by default)
//  3. The result is checked and copied to the output path
//
// The HTML page follows:
//
//  1. Source assembly (\include and \input expanded, preamble removed)
//  2. LaTeX parsing with a macro signature table
//  3. Rendering to markup (headings, lists, tables, highlighted listings)
//  4. Post-processing: KaTeX math, label anchors, reference links, brace
//     stripping, asset paths and an optional table of contents
//  5. Composition into the page shell
//
// # Configuration
//
// Use functional options to customize the builder:
//
//	cfg, err := texbook.LoadConfig("book.yaml")
//	...
//	b, err := texbook.NewBuilder(
//	    texbook.WithConfig(cfg),
//	    texbook.WithLogger(slog.Default()),
//	)
//
// # Math Engines
//
// Math is typeset by KaTeX, either inside headless Chrome (the default,
// loading katex.min.js from MathConfig.KatexScript) or by the katex CLI.
// WithMathRenderer plugs in any other MathRenderer.
//
// # Environment Variables
//
//   - ROD_BROWSER_BIN: path to a Chrome/Chromium binary
//   - ROD_NO_SANDBOX=1: disable the Chrome sandbox (containers)
//   - CI=true: same as ROD_NO_SANDBOX=1
package texbook
