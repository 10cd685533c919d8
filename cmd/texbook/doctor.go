package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"

	texbook "github.com/alnah/go-texbook"
	"github.com/alnah/go-texbook/internal/fileutil"
)

// Report statuses, worst last.
const (
	statusReady    = "ready"
	statusWarnings = "warnings"
	statusErrors   = "errors"
)

// doctorResult is the environment report, printed as text or JSON.
type doctorResult struct {
	Status   string     `json:"status"`
	Book     bookInfo   `json:"book"`
	Compiler toolInfo   `json:"compiler"`
	Math     mathInfo   `json:"math"`
	Chrome   chromeInfo `json:"chrome"`
	Platform string     `json:"platform"`
	CI       bool       `json:"ci"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`

	sections []doctorSection
}

type bookInfo struct {
	Dir             string `json:"dir"`
	RootFound       bool   `json:"root_found"`
	Scratch         string `json:"scratch"`
	ScratchWritable bool   `json:"scratch_writable"`
}

type toolInfo struct {
	Name    string `json:"name"`
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
}

type mathInfo struct {
	Engine      string    `json:"engine"`
	Script      string    `json:"script,omitempty"`
	ScriptFound bool      `json:"script_found"`
	CLI         *toolInfo `json:"cli,omitempty"`
}

type chromeInfo struct {
	Needed  bool   `json:"needed"`
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

// doctorSection is one titled block of the text report.
type doctorSection struct {
	title string
	lines []string
}

func (r *doctorResult) section(title string) *doctorSection {
	r.sections = append(r.sections, doctorSection{title: title})
	return &r.sections[len(r.sections)-1]
}

func (s *doctorSection) ok(format string, args ...any) {
	s.lines = append(s.lines, "[OK] "+fmt.Sprintf(format, args...))
}

func (s *doctorSection) warn(format string, args ...any) {
	s.lines = append(s.lines, "[WARN] "+fmt.Sprintf(format, args...))
}

func (s *doctorSection) fail(format string, args ...any) {
	s.lines = append(s.lines, "[ERROR] "+fmt.Sprintf(format, args...))
}

// runDoctorCmd checks the tools a build with the resolved configuration
// needs. Exit codes: 0 ready (warnings included), 1 errors, 2 usage.
func runDoctorCmd(args []string, env *Environment) int {
	var jsonOutput bool
	var configPath string
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	fs.Usage = func() { printDoctorUsage(env.Stderr) }
	fs.BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	fs.StringVarP(&configPath, "config", "c", "", "config file path or name")
	if err := fs.Parse(args); err != nil {
		return reportError(env.Stderr, usageError(err), hintContext{})
	}

	cfg := texbook.DefaultConfig()
	if configPath == "" {
		configPath = os.Getenv("TEXBOOK_CONFIG")
	}
	if configPath != "" {
		loaded, err := texbook.LoadConfig(configPath)
		if err != nil {
			return reportError(env.Stderr, err, hintContext{configName: configPath})
		}
		cfg = loaded
	}
	applyEnvConfig(loadEnvConfig(), cfg)

	result := runDoctor(cfg)
	if jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == statusErrors {
		return ExitGeneral
	}
	return ExitSuccess
}

func runDoctor(cfg *texbook.Config) *doctorResult {
	r := &doctorResult{Platform: runtime.GOOS + "/" + runtime.GOARCH}

	checkBook(r, cfg)
	checkCompiler(r, cfg)
	checkMath(r, cfg)
	checkChrome(r, cfg)

	switch {
	case len(r.Errors) > 0:
		r.Status = statusErrors
	case len(r.Warnings) > 0:
		r.Status = statusWarnings
	default:
		r.Status = statusReady
	}
	return r
}

func (r *doctorResult) addError(s *doctorSection, msg string) {
	r.Errors = append(r.Errors, msg)
	s.fail("%s", msg)
}

func (r *doctorResult) addWarning(s *doctorSection, msg string) {
	r.Warnings = append(r.Warnings, msg)
	s.warn("%s", msg)
}

// checkBook looks for the root document and probes the scratch parent.
// A missing book is only a warning: doctor may run outside the project.
func checkBook(r *doctorResult, cfg *texbook.Config) {
	s := r.section("Book")
	r.Book.Dir = cfg.Book.Dir
	root := filepath.Join(cfg.Book.Dir, cfg.Book.Root)
	if fileutil.FileExists(root) {
		r.Book.RootFound = true
		s.ok("Root document: %s", root)
	} else {
		r.addWarning(s, fmt.Sprintf("Root document %s not found (run doctor from the project directory)", root))
	}

	r.Book.Scratch = cfg.Output.Scratch
	parent := filepath.Dir(filepath.Clean(cfg.Output.Scratch))
	if !cfg.PDF.Enabled {
		return
	}
	probe, err := os.CreateTemp(parent, ".texbook-doctor-*")
	if err != nil && os.IsNotExist(err) {
		probe, err = os.CreateTemp("", ".texbook-doctor-*")
		parent = os.TempDir()
	}
	if err != nil {
		r.addError(s, fmt.Sprintf("Scratch directory not writable: %s", parent))
		return
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	r.Book.ScratchWritable = true
	s.ok("Scratch: %s (writable)", cfg.Output.Scratch)
}

// lookupTool finds name on PATH and keeps the first line of --version.
func lookupTool(name string) (toolInfo, bool) {
	info := toolInfo{Name: name}
	path, err := exec.LookPath(name)
	if err != nil {
		return info, false
	}
	info.Found, info.Path = true, path
	if out, err := exec.Command(path, "--version").Output(); err == nil { // #nosec G204 -- path comes from LookPath
		info.Version, _, _ = strings.Cut(strings.TrimSpace(string(out)), "\n")
	}
	return info, true
}

func checkCompiler(r *doctorResult, cfg *texbook.Config) {
	s := r.section("LaTeX compiler")
	r.Compiler.Name = cfg.PDF.Compiler
	if !cfg.PDF.Enabled {
		s.ok("PDF disabled")
		return
	}
	info, found := lookupTool(cfg.PDF.Compiler)
	r.Compiler = info
	if !found {
		r.addError(s, fmt.Sprintf("%s not found on PATH. Install TeX Live or MiKTeX, or disable the PDF", cfg.PDF.Compiler))
		return
	}
	s.ok("%s at %s", info.Name, info.Path)
	if info.Version != "" {
		s.ok("Version: %s", info.Version)
	}
}

// checkMath verifies what the engine needs: the katex executable, or the
// KaTeX script the browser loads.
func checkMath(r *doctorResult, cfg *texbook.Config) {
	s := r.section(fmt.Sprintf("Math engine (%s)", cfg.Math.Engine))
	r.Math.Engine = cfg.Math.Engine
	if !cfg.HTML.Enabled {
		s.ok("HTML disabled")
		return
	}

	if cfg.Math.Engine == texbook.MathEngineKatex {
		info, found := lookupTool(cfg.Math.KatexBin)
		r.Math.CLI = &info
		if !found {
			r.addError(s, fmt.Sprintf("%s not found on PATH. Install it with npm install -g katex", cfg.Math.KatexBin))
			return
		}
		s.ok("%s at %s", info.Name, info.Path)
		return
	}

	r.Math.Script = cfg.Math.KatexScript
	r.Math.ScriptFound = fileutil.FileExists(cfg.Math.KatexScript)
	if r.Math.ScriptFound {
		s.ok("Script: %s", cfg.Math.KatexScript)
		return
	}
	r.addError(s, "KaTeX script not found at "+cfg.Math.KatexScript)
}

// checkChrome runs only for the chrome engine.
func checkChrome(r *doctorResult, cfg *texbook.Config) {
	if !cfg.HTML.Enabled || cfg.Math.Engine != texbook.MathEngineChrome {
		return
	}
	s := r.section("Chrome/Chromium")
	r.Chrome.Needed = true

	bin := os.Getenv("ROD_BROWSER_BIN")
	if bin == "" {
		var found bool
		if bin, found = launcher.LookPath(); !found {
			r.addError(s, "Chrome/Chromium not found. Install Chrome, set ROD_BROWSER_BIN, or use math.engine: katex")
			return
		}
	}
	if _, err := os.Stat(bin); err != nil {
		r.addError(s, "Chrome not found at "+bin)
		return
	}
	r.Chrome.Found, r.Chrome.Path = true, bin
	s.ok("Found at %s", bin)
	if out, err := exec.Command(bin, "--version").Output(); err == nil { // #nosec G204 -- user-selected browser
		r.Chrome.Version = strings.TrimSpace(string(out))
		s.ok("Version: %s", r.Chrome.Version)
	}

	r.Chrome.Sandbox = os.Getenv("ROD_NO_SANDBOX") != "1"
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI"} {
		r.CI = r.CI || os.Getenv(v) != ""
	}
	if r.Chrome.Sandbox && r.CI {
		r.addWarning(s, "CI detected but ROD_NO_SANDBOX not set. Set ROD_NO_SANDBOX=1 if Chrome fails to start")
	}
}

func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintf(w, "texbook doctor (%s)\n\n", r.Platform)
	for _, s := range r.sections {
		fmt.Fprintln(w, s.title)
		for _, line := range s.lines {
			fmt.Fprintln(w, "  "+line)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case statusReady:
		fmt.Fprintln(w, "Status: Ready to build")
	case statusWarnings:
		fmt.Fprintln(w, "Status: Ready with warnings")
	default:
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
