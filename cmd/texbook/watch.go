package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	texbook "github.com/alnah/go-texbook"
)

// debounceDelay groups the burst of events a single editor save produces.
const debounceDelay = 300 * time.Millisecond

// texArtifacts are files the LaTeX compiler writes next to its input.
var texArtifacts = []string{".aux", ".log", ".out", ".toc", ".lof", ".lot", ".fls", ".fdb_latexmk", ".synctex.gz"}

// buildStatus is the outcome of the latest build.
type buildStatus struct {
	mu        sync.RWMutex
	builds    int
	lastError error
	lastBuild time.Time
	hasGood   bool // at least one build succeeded
}

func (bs *buildStatus) setError(err error, at time.Time) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.builds++
	bs.lastError = err
	bs.lastBuild = at
}

func (bs *buildStatus) setSuccess(at time.Time) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.builds++
	bs.lastError = nil
	bs.lastBuild = at
	bs.hasGood = true
}

// statusSnapshot is the JSON form of buildStatus.
type statusSnapshot struct {
	Builds    int       `json:"builds"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	Compiler  string    `json:"compiler_diagnostic,omitempty"`
	LastBuild time.Time `json:"last_build,omitzero"`
	HasGood   bool      `json:"has_good_build"`
}

func (bs *buildStatus) snapshot() statusSnapshot {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	s := statusSnapshot{
		Builds:    bs.builds,
		OK:        bs.lastError == nil,
		LastBuild: bs.lastBuild,
		HasGood:   bs.hasGood,
	}
	if bs.lastError != nil {
		s.Error = bs.lastError.Error()
		var cerr *texbook.CompileError
		if errors.As(bs.lastError, &cerr) {
			s.Compiler = cerr.Diagnostic()
		}
	}
	return s
}

// session is a long-lived Builder plus what watch and serve report into.
// Builds never overlap: only the rebuild worker calls rebuild after the
// first build.
type session struct {
	cfg     *texbook.Config
	builder *texbook.Builder
	logger  *slog.Logger
	timeout time.Duration
	quiet   bool
	out     io.Writer
	now     func() time.Time
	status  *buildStatus
}

func newSession(name string, f *buildFlags, env *Environment) (*session, error) {
	envCfg := loadEnvConfig()
	cfg, err := resolveConfig(name, f, envCfg)
	if err != nil {
		return nil, err
	}

	logger := newLogger(env.Stderr, f.common)
	b, err := newBuilder(cfg, logger, env)
	if err != nil {
		return nil, err
	}

	now := env.Now
	if now == nil {
		now = time.Now
	}
	return &session{
		cfg:     cfg,
		builder: b,
		logger:  logger,
		timeout: resolveTimeout(f.timeout, envCfg),
		quiet:   f.common.quiet,
		out:     env.Stdout,
		now:     now,
		status:  &buildStatus{},
	}, nil
}

func (s *session) close() {
	_ = s.builder.Close()
}

// rebuild runs one build and records its outcome. Failures are reported
// and recorded, never returned: watching goes on.
func (s *session) rebuild(ctx context.Context) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.builder.Build(ctx)

	var cerr *texbook.CompileError
	switch {
	case errors.As(err, &cerr):
		printCompileError(s.out, cerr, hintContext{cfg: s.cfg})
		s.status.setError(err, s.now())
	case err != nil:
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("build failed", "error", err)
		s.status.setError(err, s.now())
	default:
		if !s.quiet {
			printResult(s.out, res)
		}
		s.status.setSuccess(s.now())
	}
}

// watch builds once, then rebuilds after every relevant change under the
// book directory until ctx is canceled.
func (s *session) watch(ctx context.Context) error {
	absBook, err := filepath.Abs(s.cfg.Book.Dir)
	if err != nil {
		return err
	}
	if fi, err := os.Stat(absBook); err != nil || !fi.IsDir() {
		return fmt.Errorf("%w: book directory %s", os.ErrNotExist, s.cfg.Book.Dir)
	}

	ignore := outputFilter(s.cfg)
	w, err := setupFileWatcher(absBook, ignore, s.logger)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.rebuild(ctx)

	deb := newDebouncer(debounceDelay)
	defer deb.Stop()
	done := startRebuildWorker(ctx, deb.C, s.rebuild)

	if !s.quiet {
		fmt.Fprintf(s.out, "watching %s for changes (Ctrl+C to stop)\n", s.cfg.Book.Dir)
	}
	err = runWatchLoop(ctx, w, deb.Trigger, ignore, s.logger)

	cancel()
	<-done
	return err
}

// runWatchCmd implements the watch command.
func runWatchCmd(ctx context.Context, args []string, env *Environment) error {
	f, err := parseBuildFlags("watch", args, env.Stderr)
	if err != nil {
		return err
	}
	s, err := newSession("watch", f, env)
	if err != nil {
		return err
	}
	defer s.close()
	return s.watch(ctx)
}

// setupFileWatcher watches root and every directory below it, except
// ignored ones.
func setupFileWatcher(root string, ignore func(string) bool, logger *slog.Logger) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if err := addDirsRecursive(w, root, ignore, logger); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

func addDirsRecursive(w *fsnotify.Watcher, root string, ignore func(string) bool, logger *slog.Logger) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && (shouldIgnoreEvent(path) || ignore(path)) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			logger.Warn("watch add failed", "dir", path, "error", err)
		}
		return nil
	})
}

// runWatchLoop forwards relevant events to onChange until ctx ends or the
// watcher closes.
func runWatchLoop(ctx context.Context, w *fsnotify.Watcher, onChange func(), ignore func(string) bool, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			handleFileEvent(w, ev, onChange, ignore, logger)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}

func handleFileEvent(w *fsnotify.Watcher, ev fsnotify.Event, onChange func(), ignore func(string) bool, logger *slog.Logger) {
	if ev.Op == fsnotify.Chmod || shouldIgnoreEvent(ev.Name) || ignore(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = addDirsRecursive(w, ev.Name, ignore, logger)
		}
	}
	logger.Debug("file change detected", "path", ev.Name, "op", ev.Op.String())
	onChange()
}

// shouldIgnoreEvent reports paths that never trigger a rebuild: hidden
// files, editor swap and backup files, OS metadata and compiler byproducts.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	if base == "Thumbs.db" || base == "4913" {
		return true
	}
	for _, ext := range texArtifacts {
		if strings.HasSuffix(base, ext) {
			return true
		}
	}
	return false
}

// outputFilter matches the build's own outputs, so a book directory that
// contains them does not rebuild itself forever.
func outputFilter(cfg *texbook.Config) func(string) bool {
	abs := func(p string) string {
		a, err := filepath.Abs(p)
		if err != nil {
			return filepath.Clean(p)
		}
		return a
	}
	html, pdf, scratch := abs(cfg.Output.HTML), abs(cfg.Output.PDF), abs(cfg.Output.Scratch)

	return func(path string) bool {
		p := abs(path)
		return p == html || p == pdf || p == scratch ||
			strings.HasPrefix(p, scratch+string(filepath.Separator))
	}
}

// debouncer turns a burst of Trigger calls into one send on C, delay after
// the last call. C holds at most one pending request.
type debouncer struct {
	C chan struct{}

	mu    sync.Mutex
	timer *time.Timer
	delay time.Duration
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{C: make(chan struct{}, 1), delay: delay}
}

func (d *debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *debouncer) fire() {
	select {
	case d.C <- struct{}{}:
	default:
	}
}

// Stop cancels a pending send.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// startRebuildWorker calls rebuild once per request until ctx ends. The
// returned channel closes when the worker has exited.
func startRebuildWorker(ctx context.Context, requests <-chan struct{}, rebuild func(context.Context)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-requests:
				rebuild(ctx)
			}
		}
	}()
	return done
}
