package main

// Notes:
// - shouldIgnoreEvent / outputFilter: table tests on paths only.
// - debouncer and startRebuildWorker: timing tests with short delays and
//   generous deadlines.
// - session.watch: one end-to-end run on a real fsnotify watcher with the
//   HTML build only; it waits for the rebuild a file write triggers.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	texbook "github.com/alnah/go-texbook"
)

// syncBuffer is a strings.Builder safe for the watcher goroutines.
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// ---------------------------------------------------------------------------
// TestShouldIgnoreEvent - Paths that never trigger a rebuild
// ---------------------------------------------------------------------------

func TestShouldIgnoreEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"book/cap1.tex", false},
		{"book/img/fig.png", false},
		{"book/img/diagram.pdf", false},
		{"book/.cap1.tex.swp", true},
		{"book/cap1.tex.swp", true},
		{"book/cap1.tex~", true},
		{"book/#cap1.tex#", true},
		{"book/.git", true},
		{"book/4913", true},
		{"book/Thumbs.db", true},
		{"tmp/main.aux", true},
		{"tmp/main.log", true},
		{"tmp/main.synctex.gz", true},
		{"tmp/main.fdb_latexmk", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			if got := shouldIgnoreEvent(tt.path); got != tt.want {
				t.Errorf("shouldIgnoreEvent(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestOutputFilter(t *testing.T) {
	t.Parallel()

	cfg := texbook.DefaultConfig()
	cfg.Output.HTML = "book/index.html"
	cfg.Output.PDF = "book/main.pdf"
	cfg.Output.Scratch = "book/tmp"
	ignore := outputFilter(cfg)

	tests := []struct {
		path string
		want bool
	}{
		{"book/index.html", true},
		{"book/main.pdf", true},
		{"book/tmp", true},
		{"book/tmp/cap1.tex", true},
		{"book/tmpfile.tex", false},
		{"book/cap1.tex", false},
	}
	for _, tt := range tests {
		if got := ignore(tt.path); got != tt.want {
			t.Errorf("ignore(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}

	abs, err := filepath.Abs("book/index.html")
	if err != nil {
		t.Fatal(err)
	}
	if !ignore(abs) {
		t.Errorf("ignore(%q) = false for the absolute HTML path", abs)
	}
}

// ---------------------------------------------------------------------------
// TestDebouncer - Burst coalescing
// ---------------------------------------------------------------------------

func TestDebouncer_CoalescesBurst(t *testing.T) {
	t.Parallel()

	d := newDebouncer(30 * time.Millisecond)
	defer d.Stop()

	for range 5 {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-d.C:
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never fired")
	}
	select {
	case <-d.C:
		t.Error("burst produced more than one request")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncer_Stop(t *testing.T) {
	t.Parallel()

	d := newDebouncer(30 * time.Millisecond)
	d.Trigger()
	d.Stop()

	select {
	case <-d.C:
		t.Error("stopped debouncer fired")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestStartRebuildWorker(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	requests := make(chan struct{}, 1)
	var calls atomic.Int32

	done := startRebuildWorker(ctx, requests, func(context.Context) { calls.Add(1) })

	requests <- struct{}{}
	waitFor(t, 2*time.Second, func() bool { return calls.Load() == 1 })
	requests <- struct{}{}
	waitFor(t, 2*time.Second, func() bool { return calls.Load() == 2 })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after cancel")
	}
}

// ---------------------------------------------------------------------------
// TestBuildStatus - Outcome bookkeeping
// ---------------------------------------------------------------------------

func TestBuildStatus(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var bs buildStatus

	if s := bs.snapshot(); s.Builds != 0 || !s.OK || s.HasGood {
		t.Errorf("zero snapshot = %+v", s)
	}

	bs.setError(errors.New("pass 1: exit status 1"), at)
	s := bs.snapshot()
	if s.Builds != 1 || s.OK || s.Error != "pass 1: exit status 1" || s.HasGood {
		t.Errorf("after error = %+v", s)
	}

	bs.setSuccess(at.Add(time.Minute))
	s = bs.snapshot()
	if s.Builds != 2 || !s.OK || s.Error != "" || !s.HasGood || !s.LastBuild.Equal(at.Add(time.Minute)) {
		t.Errorf("after success = %+v", s)
	}

	bs.setError(errors.New("again"), at)
	if s := bs.snapshot(); !s.HasGood || s.OK {
		t.Errorf("a later failure must keep HasGood and clear OK: %+v", s)
	}
}

func TestBuildStatus_CompilerDiagnostic(t *testing.T) {
	t.Parallel()

	var bs buildStatus
	cerr := &texbook.CompileError{
		Pass:    1,
		Command: "pdflatex main.tex",
		Output:  "This is pdfTeX\n! Missing $ inserted.\nl.3 x^2\n",
		Err:     texbook.ErrCompile,
	}
	bs.setError(fmt.Errorf("build: %w", cerr), time.Now())

	if got := bs.snapshot().Compiler; got != "! Missing $ inserted.\nl.3 x^2" {
		t.Errorf("Compiler = %q, want the output from the error line", got)
	}
}

// ---------------------------------------------------------------------------
// TestSessionRebuild - Outcomes of one build
// ---------------------------------------------------------------------------

func newTestSession(t *testing.T, name string, book *testBook, out *syncBuffer, extra ...string) *session {
	t.Helper()
	f, err := parseBuildFlags(name, append(book.args, extra...), out)
	if err != nil {
		t.Fatal(err)
	}
	env := &Environment{
		Stdout: out,
		Stderr: out,
		Options: []texbook.Option{
			texbook.WithRunner(&fakeCompiler{}),
			texbook.WithMathRenderer(fakeMath{}),
		},
	}
	s, err := newSession(name, f, env)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.close)
	return s
}

func TestSessionRebuild(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		var out syncBuffer
		s := newTestSession(t, "watch", writeBook(t, testChapterTex), &out, "--no-pdf")

		s.rebuild(context.Background())

		if st := s.status.snapshot(); st.Builds != 1 || !st.OK || !st.HasGood {
			t.Errorf("status = %+v", st)
		}
		if !strings.Contains(out.String(), "HTML: ") {
			t.Errorf("output = %q", out.String())
		}
	})

	t.Run("compile failure", func(t *testing.T) {
		t.Parallel()
		var out syncBuffer
		s := newTestSession(t, "watch", writeBook(t, testChapterTex), &out)

		s.rebuild(context.Background())

		st := s.status.snapshot()
		if st.OK || st.HasGood || !strings.Contains(st.Error, "pass 1") {
			t.Errorf("status = %+v", st)
		}
		if !strings.Contains(out.String(), "PDF build failed") {
			t.Errorf("output = %q", out.String())
		}
	})
}

// ---------------------------------------------------------------------------
// TestSessionWatch - Rebuild after a change
// ---------------------------------------------------------------------------

func TestSessionWatch(t *testing.T) {
	t.Parallel()

	book := writeBook(t, testChapterTex)
	var out syncBuffer
	s := newTestSession(t, "watch", book, &out, "--no-pdf")

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.watch(ctx) }()

	waitFor(t, 5*time.Second, func() bool { return strings.Contains(out.String(), "watching ") })
	if st := s.status.snapshot(); st.Builds != 1 {
		t.Fatalf("builds after start = %d, want 1", st.Builds)
	}

	chapter := filepath.Join(book.dir, "book", "cap1.tex")
	if err := os.WriteFile(chapter, []byte(`\chapter{Dos}\label{cap:dos}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 5*time.Second, func() bool { return s.status.snapshot().Builds >= 2 })

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("watch() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return after cancel")
	}

	if page := readFile(t, book.html); !strings.Contains(page, "Dos") {
		t.Errorf("page was not rebuilt:\n%s", page)
	}
}

func TestSessionWatch_MissingBook(t *testing.T) {
	t.Parallel()

	book := writeBook(t, testChapterTex)
	var out syncBuffer
	s := newTestSession(t, "watch", book, &out, "--no-pdf")
	s.cfg.Book.Dir = filepath.Join(book.dir, "nada")

	err := s.watch(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("watch() error = %v, want os.ErrNotExist", err)
	}
}
