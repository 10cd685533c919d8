// Package pipeline implements the LaTeX-to-HTML stages of a book build:
//   - Source assembly (preamble removal, recursive \include and \input)
//   - Rendering a parsed document tree to HTML markup
//   - Post-processing: math typesetting, label anchors, reference links,
//     brace stripping, image path rebasing and an optional TOC
//   - Composing the final page from the shell template
//
// Parsing lives in internal/latex. PDF compilation is handled by the root
// texbook package, which shells out to the LaTeX compiler.
package pipeline
