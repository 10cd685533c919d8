// Package latex parses LaTeX source into a document tree.
//
// The parser is deliberately shallow: it knows how to bound macro arguments,
// environments, groups, comments and math regions, but it does not expand
// macros or interpret TeX primitives. How many arguments a macro consumes is
// declared in a signature table (see Table), using the xparse letters:
//
//	m   mandatory argument in braces
//	o   optional argument in brackets
//	s   optional star
//
// Macros missing from the table consume no arguments; any braces that follow
// them stay in the tree as groups.
//
// Math regions ($...$, \(...\), $$...$$, \[...\] and the math environments)
// and code listings (verbatim, lstlisting, minted) are kept as raw source.
package latex
