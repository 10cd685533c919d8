package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 5 * time.Second

// previewServer serves the page, the files next to it and the build status.
type previewServer struct {
	page   string // path of the HTML page
	root   string // directory served as /
	status *buildStatus
	log    *slog.Logger
}

func newPreviewServer(s *session) *previewServer {
	return &previewServer{
		page:   s.cfg.Output.HTML,
		root:   filepath.Dir(s.cfg.Output.HTML),
		status: s.status,
		log:    s.logger,
	}
}

func (p *previewServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(p.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	r.Get("/healthz", p.handleHealth)
	r.Get("/status", p.handleStatus)
	r.Get("/", p.handlePage)
	r.Handle("/*", http.FileServer(http.Dir(p.root)))
	return r
}

func (p *previewServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (p *previewServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p.status.snapshot())
}

// handlePage serves the last good page. Until one exists it answers 503
// with the latest error.
func (p *previewServer) handlePage(w http.ResponseWriter, r *http.Request) {
	snap := p.status.snapshot()
	if !snap.HasGood {
		msg := "no successful build yet"
		if snap.Error != "" {
			msg += ": " + snap.Error
		}
		http.Error(w, msg, http.StatusServiceUnavailable)
		return
	}
	http.ServeFile(w, r, p.page)
}

// requestLogger logs one line per request at info level.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// runServeCmd implements the serve command: watch plus an HTTP server
// that stops with it.
func runServeCmd(ctx context.Context, args []string, env *Environment) error {
	f, err := parseServeFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	s, err := newSession("serve", &f.build, env)
	if err != nil {
		return err
	}
	defer s.close()

	ln, err := net.Listen("tcp", f.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", f.addr, err)
	}
	srv := &http.Server{
		Handler:           newPreviewServer(s).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", "error", err)
		}
	}()
	if !s.quiet {
		fmt.Fprintf(env.Stdout, "serving %s at http://%s/\n", s.cfg.Output.HTML, ln.Addr())
	}

	err = s.watch(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		s.logger.Warn("HTTP server shutdown error", "error", serr)
	}
	return err
}
