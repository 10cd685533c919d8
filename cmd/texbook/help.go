package main

import (
	"fmt"
	"io"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: texbook [command] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Build a LaTeX book into a PDF and a single HTML page.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  build       Build the PDF, then the HTML page (default)")
	fmt.Fprintln(w, "  html        Build only the HTML page")
	fmt.Fprintln(w, "  pdf         Build only the PDF")
	fmt.Fprintln(w, "  watch       Rebuild whenever the book changes")
	fmt.Fprintln(w, "  serve       Watch and serve the page over HTTP")
	fmt.Fprintln(w, "  doctor      Check the compiler, browser and KaTeX setup")
	fmt.Fprintln(w, "  completion  Generate shell completion script")
	fmt.Fprintln(w, "  version     Show version information")
	fmt.Fprintln(w, "  help        Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'texbook help <command>' for details.")
}

// printCommandUsage prints the flags of a build-like command.
func printCommandUsage(w io.Writer, name string) {
	fmt.Fprintf(w, "Usage: texbook %s [flags]\n", name)
	fmt.Fprintln(w)
	switch name {
	case "html":
		fmt.Fprintln(w, "Assemble book/main.tex, render it and write index.html.")
	case "pdf":
		fmt.Fprintln(w, "Copy the book to tmp/, run pdflatex twice and copy the PDF to output/.")
	case "watch":
		fmt.Fprintln(w, "Build once, then rebuild after every change under the book directory.")
	case "serve":
		fmt.Fprintln(w, "Like watch, and serve the page and its assets over HTTP.")
	default:
		fmt.Fprintln(w, "Build the PDF, then the HTML page. A LaTeX error prints the compiler")
		fmt.Fprintln(w, "diagnostic and stops the build; the exit code is 0 unless --strict.")
	}
	fmt.Fprintln(w)

	var f serveFlags
	fs := newBuildFlagSet(name, &f.build)
	if name == "serve" {
		fs = newServeFlagSet(&f)
	}
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, fs.FlagUsages())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  TEXBOOK_CONFIG       config file used when -c is not given")
	fmt.Fprintln(w, "  TEXBOOK_MATH_ENGINE  chrome or katex")
	fmt.Fprintln(w, "  TEXBOOK_KATEX_BIN    katex CLI executable")
	fmt.Fprintln(w, "  TEXBOOK_BOOK_DIR     book directory")
	fmt.Fprintln(w, "  TEXBOOK_TIMEOUT      build timeout used when --timeout is not given")
	fmt.Fprintln(w, "  ROD_BROWSER_BIN      Chrome binary for the chrome math engine")
	fmt.Fprintln(w, "  ROD_NO_SANDBOX=1     disable the Chrome sandbox (Docker/CI)")
}

func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: texbook doctor [--json]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Report whether pdflatex, Chrome, the katex CLI and katex.min.js are")
	fmt.Fprintln(w, "available. Exits 1 when the default build cannot run.")
}

// runHelp prints help for the command named in args, or the overview.
func runHelp(args []string, env *Environment) error {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return nil
	}

	switch args[0] {
	case "build", "html", "pdf", "watch", "serve":
		printCommandUsage(env.Stdout, args[0])
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "completion":
		printCompletionUsage(env.Stdout)
	case "version", "help":
		printUsage(env.Stdout)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, args[0])
	}
	return nil
}
