// Package process runs external tools (the LaTeX compiler, the katex CLI)
// and cleans up after them.
package process
