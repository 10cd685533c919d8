package hints

// Notes:
// - ForBrowserConnect gets a stubbed Host, so no test touches the process
//   environment and all of them run in parallel.

import (
	"path/filepath"
	"strings"
	"testing"
)

func stubHost(vars map[string]string, container bool) Host {
	return Host{
		Getenv:    func(k string) string { return vars[k] },
		Container: func() bool { return container },
	}
}

// ---------------------------------------------------------------------------
// TestForBrowserConnect - Environment detection
// ---------------------------------------------------------------------------

func TestForBrowserConnect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		host    Host
		want    []string
		notWant []string
	}{
		{
			name: "ci",
			host: stubHost(map[string]string{"CI": "true"}, false),
			want: []string{"hint:", "ROD_NO_SANDBOX", "ROD_BROWSER_BIN", "--math-engine katex"},
		},
		{
			name: "container",
			host: stubHost(nil, true),
			want: []string{"ROD_NO_SANDBOX=1"},
		},
		{
			name:    "workstation",
			host:    stubHost(nil, false),
			want:    []string{"ROD_BROWSER_BIN"},
			notWant: []string{"ROD_NO_SANDBOX"},
		},
		{
			name:    "all configured",
			host:    stubHost(map[string]string{"CI": "1", "ROD_NO_SANDBOX": "1", "ROD_BROWSER_BIN": "/usr/bin/chrome"}, true),
			want:    []string{"katex"},
			notWant: []string{"ROD_"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ForBrowserConnect(tt.host)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("hint %q missing %q", got, w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(got, w) {
					t.Errorf("hint %q should not mention %q", got, w)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestFor* - Static hints
// ---------------------------------------------------------------------------

func TestStaticHints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		hint     string
		contains string
	}{
		{"timeout", ForTimeout(), "--timeout"},
		{"output directory", ForOutputDirectory(), "parent directory"},
		{"compiler missing", ForCompilerMissing("pdflatex"), "pdflatex"},
		{"compiler missing suggests skip", ForCompilerMissing("pdflatex"), "--no-pdf"},
		{"katex missing", ForKatexMissing("katex"), "npm install -g katex"},
		{"katex script", ForKatexScript("output/katex/katex.min.js"), "output/katex/katex.min.js"},
		{"include not found", ForIncludeNotFound("book"), ".tex is appended"},
		{"parse", ForParse(), "latex.macros"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if !strings.HasPrefix(tt.hint, "\n  hint: ") {
				t.Errorf("hint format inconsistent: %q", tt.hint)
			}
			if !strings.Contains(tt.hint, tt.contains) {
				t.Errorf("hint %q missing %q", tt.hint, tt.contains)
			}
		})
	}
}

func TestForConfigNotFound(t *testing.T) {
	t.Parallel()

	userPath := filepath.Join("home", ".config", "texbook", "notas.yaml")
	tests := []struct {
		name     string
		paths    []string
		contains string
	}{
		{"empty paths", nil, "--config"},
		{"suggests user config path", []string{"notas.yaml", userPath}, "create " + userPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hint := ForConfigNotFound(tt.paths)
			if !strings.Contains(hint, tt.contains) {
				t.Errorf("ForConfigNotFound() = %q, want to contain %q", hint, tt.contains)
			}
		})
	}
}

func TestHint(t *testing.T) {
	t.Parallel()

	if got := hint(); got != "" {
		t.Errorf("hint() = %q, want empty", got)
	}
	if got := hint("a", "b"); got != "\n  hint: a; b" {
		t.Errorf("hint(a, b) = %q", got)
	}
}
