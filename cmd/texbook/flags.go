package main

import (
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// pathFlags override the book and output locations.
type pathFlags struct {
	book    string
	root    string
	htmlOut string
	pdfOut  string
	scratch string
}

// artifactFlags select and tune the artifacts.
type artifactFlags struct {
	noPDF      bool
	noHTML     bool
	mathEngine string
	toc        bool
	checkRefs  bool
	assetPath  string
}

// buildFlags holds every flag of build, html, pdf and watch.
type buildFlags struct {
	common    commonFlags
	paths     pathFlags
	artifacts artifactFlags
	strict    bool
	timeout   time.Duration
}

// serveFlags adds the listen address to buildFlags.
type serveFlags struct {
	build buildFlags
	addr  string
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file path or name")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only print errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "print progress")
}

func addPathFlags(fs *flag.FlagSet, f *pathFlags) {
	fs.StringVar(&f.book, "book", "", "book directory (default book)")
	fs.StringVar(&f.root, "root", "", "root document inside the book (default main.tex)")
	fs.StringVar(&f.htmlOut, "html-out", "", "HTML page path (default index.html)")
	fs.StringVar(&f.pdfOut, "pdf-out", "", "PDF path (default output/main.pdf)")
	fs.StringVar(&f.scratch, "scratch", "", "compiler working directory (default tmp)")
}

func addArtifactFlags(fs *flag.FlagSet, f *artifactFlags) {
	fs.BoolVar(&f.noPDF, "no-pdf", false, "skip the PDF")
	fs.BoolVar(&f.noHTML, "no-html", false, "skip the HTML page")
	fs.StringVar(&f.mathEngine, "math-engine", "", "math engine: chrome, katex")
	fs.BoolVar(&f.toc, "toc", false, "add a table of contents to the page")
	fs.BoolVar(&f.checkRefs, "check-refs", false, "warn about references to undeclared labels")
	fs.StringVar(&f.assetPath, "asset-path", "", "directory overriding the embedded page template")
}

// newBuildFlagSet registers the build flags on a new FlagSet named name.
func newBuildFlagSet(name string, f *buildFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	addCommonFlags(fs, &f.common)
	addPathFlags(fs, &f.paths)
	addArtifactFlags(fs, &f.artifacts)
	fs.BoolVar(&f.strict, "strict", false, "fail on LaTeX errors and dangling references")
	fs.DurationVar(&f.timeout, "timeout", 0, "abort the build after this long (e.g. 2m; 0 = no limit)")
	return fs
}

// newServeFlagSet adds --addr to the build flags.
func newServeFlagSet(f *serveFlags) *flag.FlagSet {
	fs := newBuildFlagSet("serve", &f.build)
	fs.StringVar(&f.addr, "addr", "localhost:8080", "listen address")
	return fs
}

// parseBuildFlags parses args for a build-like command. Positional
// arguments are rejected: the book is located by flags and config.
func parseBuildFlags(name string, args []string, stderr io.Writer) (*buildFlags, error) {
	f := &buildFlags{}
	fs := newBuildFlagSet(name, f)
	fs.SetOutput(stderr)
	fs.Usage = func() { printCommandUsage(stderr, name) }
	if err := fs.Parse(args); err != nil {
		return nil, usageError(err)
	}
	if fs.NArg() > 0 {
		return nil, errUnexpectedArgs(fs.Args())
	}
	return f, nil
}

// parseServeFlags parses args for the serve command.
func parseServeFlags(args []string, stderr io.Writer) (*serveFlags, error) {
	f := &serveFlags{}
	fs := newServeFlagSet(f)
	fs.SetOutput(stderr)
	fs.Usage = func() { printCommandUsage(stderr, "serve") }
	if err := fs.Parse(args); err != nil {
		return nil, usageError(err)
	}
	if fs.NArg() > 0 {
		return nil, errUnexpectedArgs(fs.Args())
	}
	return f, nil
}

// usageError marks a flag parsing error as a usage error. flag.ErrHelp
// stays detectable with errors.Is.
func usageError(err error) error {
	return fmt.Errorf("%w: %w", ErrUsage, err)
}

// hasVerboseFlag reports whether -v or --verbose appears before "--".
// main uses it before any FlagSet exists.
func hasVerboseFlag(args []string) bool {
	for _, a := range args {
		switch a {
		case "--":
			return false
		case "-v", "--verbose":
			return true
		}
	}
	return false
}
