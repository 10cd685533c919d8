package main

// Notes:
// - Shared fakes for the command tests. fakeCompiler always fails like a
//   pdflatex run that hit an undefined macro; fakeMath echoes its input.
// - writeBook lays out a minimal book in a temp dir and returns the flags
//   that point every path of a build at it.

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	texbook "github.com/alnah/go-texbook"
)

type fakeMath struct{}

func (fakeMath) RenderMath(_ context.Context, src string, opts texbook.MathOptions) (string, error) {
	mode := "inline"
	if opts.Display {
		mode = "display"
	}
	return `<span class="katex">` + mode + ":" + src + `</span>`, nil
}

type fakeCompiler struct {
	mu    sync.Mutex
	calls int
}

func (c *fakeCompiler) Run(_ context.Context, _ texbook.Command) (string, string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return "This is pdfTeX\n! Undefined control sequence.\nl.7 \\foo\n", "", errors.New("exit status 1")
}

const testMainTex = `\documentclass{book}
\input{preamble.tex}
\begin{document}
\include{cap1}
\end{document}
`

const testChapterTex = `\chapter{Uno}\label{cap:uno}
Ver \ref{cap:uno} y $x^2$.
`

// testBook is a book on disk plus the flags that build it.
type testBook struct {
	dir  string
	html string
	pdf  string
	args []string
}

func writeBook(t *testing.T, chapter string) *testBook {
	t.Helper()

	dir := t.TempDir()
	book := filepath.Join(dir, "book")
	if err := os.MkdirAll(book, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"main.tex":     testMainTex,
		"preamble.tex": `\usepackage{amsmath}` + "\n",
		"cap1.tex":     chapter,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(book, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tb := &testBook{
		dir:  dir,
		html: filepath.Join(dir, "index.html"),
		pdf:  filepath.Join(dir, "output", "main.pdf"),
	}
	tb.args = []string{
		"--book", book,
		"--html-out", tb.html,
		"--pdf-out", tb.pdf,
		"--scratch", filepath.Join(dir, "tmp"),
	}
	return tb
}

// testEnv returns an Environment writing to buffers, with the fakes
// installed.
func testEnv(stdout, stderr *strings.Builder, compiler *fakeCompiler) *Environment {
	if compiler == nil {
		compiler = &fakeCompiler{}
	}
	return &Environment{
		Stdout: stdout,
		Stderr: stderr,
		Options: []texbook.Option{
			texbook.WithRunner(compiler),
			texbook.WithMathRenderer(fakeMath{}),
		},
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
