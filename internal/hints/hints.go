// Package hints turns known failures into one actionable line, rendered as
// "\n  hint: <text>" so callers can append it to the error message.
package hints

import (
	"os"
	"strings"

	"github.com/alnah/go-texbook/internal/fileutil"
)

// Host is the part of the process environment the browser hint looks at.
type Host struct {
	Getenv    func(string) string
	Container func() bool
}

// CurrentHost reads the real environment.
func CurrentHost() Host {
	return Host{
		Getenv: os.Getenv,
		Container: func() bool {
			return os.Getenv("container") != "" || fileutil.FileExists("/.dockerenv")
		},
	}
}

func (h Host) ci() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"} {
		if h.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// ForBrowserConnect covers a headless Chrome that would not start. The
// katex CLI engine is always offered as the way out.
func ForBrowserConnect(h Host) string {
	var parts []string
	if (h.ci() || h.Container()) && h.Getenv("ROD_NO_SANDBOX") != "1" {
		parts = append(parts, "set ROD_NO_SANDBOX=1 for Docker/CI")
	}
	if h.Getenv("ROD_BROWSER_BIN") == "" {
		parts = append(parts, "set ROD_BROWSER_BIN to use custom Chrome")
	}
	parts = append(parts, "or use --math-engine katex with the katex CLI installed")
	return hint(parts...)
}

func ForKatexScript(path string) string {
	return hint("download KaTeX and place katex.min.js at " + path + " or set math.katexScript")
}

func ForCompilerMissing(name string) string {
	return hint("install a TeX distribution providing " + name + " (TeX Live, MiKTeX) or use --no-pdf")
}

func ForKatexMissing(name string) string {
	return hint("install it with `npm install -g katex` or make " + name + " available on PATH")
}

// ForIncludeNotFound is for a \include or \input target missing on disk.
func ForIncludeNotFound(bookDir string) string {
	return hint("include paths are resolved against " + bookDir + "; .tex is appended when no extension is given")
}

func ForParse() string {
	return hint("check braces, math delimiters and \\begin/\\end pairs; declare custom macros under latex.macros")
}

func ForTimeout() string {
	return hint("for large books, use --timeout flag")
}

// ForConfigNotFound points at --config, and at the user config directory
// when it is among the searched paths.
func ForConfigNotFound(searched []string) string {
	text := "use --config /path/to/file.yaml"
	sep := "texbook" + string(os.PathSeparator)
	for _, p := range searched {
		if strings.Contains(p, sep) {
			return hint(text + " or create " + p)
		}
	}
	return hint(text)
}

func ForOutputDirectory() string {
	return hint("check parent directory exists and is writable")
}

// hint joins parts with "; ". No parts, no hint.
func hint(parts ...string) string {
	text := strings.Join(parts, "; ")
	if text == "" {
		return ""
	}
	return "\n  hint: " + text
}
