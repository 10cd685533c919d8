package main

// Notes:
// - runMain: black-box tests through the dispatcher with the fakes from
//   helpers_test.go. The compiler fake always fails, which exercises the
//   exit policy for LaTeX errors; successful PDF builds are covered in the
//   library tests.
// - mergeFlags / resolveConfig: flag precedence and command restrictions.
// - Environment variables are read but never set here; env_config_test.go
//   covers them without t.Parallel.

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	texbook "github.com/alnah/go-texbook"
)

func runArgs(t *testing.T, env *Environment, args ...string) int {
	t.Helper()
	return runMain(context.Background(), append([]string{"texbook"}, args...), env)
}

// ---------------------------------------------------------------------------
// TestRunMain_Dispatch - Commands without a book
// ---------------------------------------------------------------------------

func TestRunMain_Dispatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{"version", []string{"version"}, ExitSuccess, "texbook dev", ""},
		{"help", []string{"help"}, ExitSuccess, "Usage: texbook [command]", ""},
		{"help build", []string{"help", "build"}, ExitSuccess, "--strict", ""},
		{"help serve", []string{"help", "serve"}, ExitSuccess, "--addr", ""},
		{"help unknown", []string{"help", "nope"}, ExitUsage, "", "unknown command"},
		{"unknown command", []string{"compile"}, ExitUsage, "", `unknown command: "compile"`},
		{"positional args", []string{"build", "book/main.tex"}, ExitUsage, "", "unexpected arguments book/main.tex"},
		{"unknown flag", []string{"html", "--nope"}, ExitUsage, "", "invalid usage"},
		{"flag help", []string{"pdf", "--help"}, ExitSuccess, "", "Usage: texbook pdf"},
		{"completion", []string{"completion", "bash"}, ExitSuccess, "complete -F _texbook_completions texbook", ""},
		{"completion unknown shell", []string{"completion", "tcsh"}, ExitUsage, "", "unsupported shell"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr strings.Builder
			code := runArgs(t, testEnv(&stdout, &stderr, nil), tt.args...)

			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.wantCode, stderr.String())
			}
			if !strings.Contains(stdout.String(), tt.wantStdout) {
				t.Errorf("stdout = %q, want it to contain %q", stdout.String(), tt.wantStdout)
			}
			if !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestRunMain_HTML - Successful page build
// ---------------------------------------------------------------------------

func TestRunMain_HTML(t *testing.T) {
	t.Parallel()

	book := writeBook(t, testChapterTex)
	var stdout, stderr strings.Builder
	compiler := &fakeCompiler{}

	code := runArgs(t, testEnv(&stdout, &stderr, compiler), append([]string{"html"}, book.args...)...)

	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if compiler.calls != 0 {
		t.Errorf("html ran the compiler %d times", compiler.calls)
	}
	page := readFile(t, book.html)
	if !strings.Contains(page, `<span class="katex">inline:x^2</span>`) {
		t.Errorf("page misses rendered math:\n%s", page)
	}
	if !strings.Contains(stdout.String(), "HTML: "+book.html+" (2 files, 1 labels, 1 references)") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRunMain_Quiet(t *testing.T) {
	t.Parallel()

	book := writeBook(t, testChapterTex)
	var stdout, stderr strings.Builder

	code := runArgs(t, testEnv(&stdout, &stderr, nil), append([]string{"html", "-q"}, book.args...)...)

	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if stdout.Len() != 0 || stderr.Len() != 0 {
		t.Errorf("quiet build printed stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
}

// ---------------------------------------------------------------------------
// TestRunMain_CompileFailure - Exit policy for LaTeX errors
// ---------------------------------------------------------------------------

func TestRunMain_CompileFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		extra    []string
		wantCode int
	}{
		{"default policy", nil, ExitSuccess},
		{"strict", []string{"--strict"}, ExitCompile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			book := writeBook(t, testChapterTex)
			var stdout, stderr strings.Builder
			args := append(append([]string{"build"}, book.args...), tt.extra...)

			code := runArgs(t, testEnv(&stdout, &stderr, nil), args...)

			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", code, tt.wantCode)
			}
			out := stdout.String()
			if !strings.Contains(out, "PDF build failed: pass 1") {
				t.Errorf("stdout misses failure line: %q", out)
			}
			if !strings.Contains(out, "This is pdfTeX\n! Undefined control sequence.\nl.7 \\foo") {
				t.Errorf("stdout misses the compiler output: %q", out)
			}
			if _, err := os.Stat(book.html); !os.IsNotExist(err) {
				t.Error("HTML written after the PDF failed")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestRunMain_Errors - Fatal HTML errors and their exit codes
// ---------------------------------------------------------------------------

func TestRunMain_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		chapter    string
		extra      []string
		wantCode   int
		wantStderr string
	}{
		{"missing include", `\input{nada}`, nil, ExitIO, "hint: include paths are resolved against"},
		{"unbalanced braces", `texto}`, nil, ExitGeneral, "hint: check braces"},
		{"invalid math engine", testChapterTex, []string{"--math-engine", "mathjax"}, ExitUsage, "math.engine"},
		{"dangling reference under strict", `Ver \ref{nada}.`, []string{"--strict"}, ExitGeneral, "references to undeclared labels: nada"},
		{"missing config", testChapterTex, []string{"-c", "/nonexistent/texbook.yaml"}, ExitUsage, "config file not found"},
		{"missing asset path", testChapterTex, []string{"--asset-path", "/nonexistent/assets"}, ExitUsage, "invalid asset path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			book := writeBook(t, tt.chapter)
			var stdout, stderr strings.Builder
			args := append(append([]string{"html"}, book.args...), tt.extra...)

			code := runArgs(t, testEnv(&stdout, &stderr, nil), args...)

			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.wantCode, stderr.String())
			}
			if !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestRunMain_CheckRefsWarns(t *testing.T) {
	t.Parallel()

	book := writeBook(t, `Ver \ref{nada}.`)
	var stdout, stderr strings.Builder
	args := append([]string{"html", "--check-refs"}, book.args...)

	if code := runArgs(t, testEnv(&stdout, &stderr, nil), args...); code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "label=nada") {
		t.Errorf("stderr = %q, want a warning naming the label", stderr.String())
	}
}

// ---------------------------------------------------------------------------
// TestMergeFlags - Flag precedence
// ---------------------------------------------------------------------------

func TestMergeFlags(t *testing.T) {
	t.Parallel()

	cfg := texbook.DefaultConfig()
	f := &buildFlags{
		paths: pathFlags{book: "libro", root: "notas.tex", htmlOut: "site/index.html"},
		artifacts: artifactFlags{
			noPDF:      true,
			mathEngine: texbook.MathEngineKatex,
			toc:        true,
		},
		strict: true,
	}

	mergeFlags(f, cfg)

	if cfg.Book.Dir != "libro" || cfg.Book.Root != "notas.tex" || cfg.Output.HTML != "site/index.html" {
		t.Errorf("paths = %+v %+v", cfg.Book, cfg.Output)
	}
	if cfg.Output.PDF != texbook.DefaultConfig().Output.PDF {
		t.Errorf("unset --pdf-out changed output.pdf to %q", cfg.Output.PDF)
	}
	if cfg.PDF.Enabled || !cfg.HTML.Enabled {
		t.Errorf("enabled: pdf=%v html=%v", cfg.PDF.Enabled, cfg.HTML.Enabled)
	}
	if cfg.Math.Engine != texbook.MathEngineKatex || !cfg.HTML.TOC {
		t.Errorf("math engine %q, toc %v", cfg.Math.Engine, cfg.HTML.TOC)
	}
	if !cfg.HTML.CheckRefs {
		t.Error("--strict should turn on reference checking")
	}
}

func TestResolveConfig_CommandRestrictsArtifacts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		command  string
		wantPDF  bool
		wantHTML bool
	}{
		{"build", true, true},
		{"html", false, true},
		{"pdf", true, false},
		{"watch", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			t.Parallel()
			cfg, err := resolveConfig(tt.command, &buildFlags{}, &envConfig{})
			if err != nil {
				t.Fatalf("resolveConfig() error: %v", err)
			}
			if cfg.PDF.Enabled != tt.wantPDF || cfg.HTML.Enabled != tt.wantHTML {
				t.Errorf("pdf=%v html=%v, want pdf=%v html=%v", cfg.PDF.Enabled, cfg.HTML.Enabled, tt.wantPDF, tt.wantHTML)
			}
		})
	}
}

func TestResolveTimeout(t *testing.T) {
	t.Parallel()

	env := &envConfig{Timeout: time.Minute}
	if got := resolveTimeout(0, env); got != time.Minute {
		t.Errorf("without flag = %v, want the environment value", got)
	}
	if got := resolveTimeout(5*time.Second, env); got != 5*time.Second {
		t.Errorf("with flag = %v, want the flag value", got)
	}
	if got := resolveTimeout(0, &envConfig{}); got != 0 {
		t.Errorf("unset = %v, want 0", got)
	}
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := withTimeout(context.Background(), 0)
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Error("zero timeout should not set a deadline")
	}

	ctx2, cancel2 := withTimeout(context.Background(), time.Hour)
	defer cancel2()
	if _, ok := ctx2.Deadline(); !ok {
		t.Error("positive timeout should set a deadline")
	}
}
