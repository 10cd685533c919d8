package main

// Notes:
// - loadEnvConfig: every TEXBOOK_* variable, plus invalid and non-positive
//   timeouts, which are ignored rather than reported.
// - loadEnvFiles: godotenv writes into the process environment, so each
//   test uses a variable name no other test reads and unsets it afterwards.
// - Tests use t.Setenv() which prevents t.Parallel() at parent level.

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	texbook "github.com/alnah/go-texbook"
)

// ---------------------------------------------------------------------------
// TestLoadEnvConfig - Environment variable loading
// ---------------------------------------------------------------------------

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("TEXBOOK_CONFIG", "/path/to/texbook.yaml")
	t.Setenv("TEXBOOK_MATH_ENGINE", "katex")
	t.Setenv("TEXBOOK_KATEX_BIN", "/opt/katex/bin/katex")
	t.Setenv("TEXBOOK_BOOK_DIR", "libro")
	t.Setenv("TEXBOOK_TIMEOUT", "90s")

	cfg := loadEnvConfig()

	if cfg.ConfigPath != "/path/to/texbook.yaml" {
		t.Errorf("ConfigPath = %q", cfg.ConfigPath)
	}
	if cfg.MathEngine != "katex" {
		t.Errorf("MathEngine = %q, want katex", cfg.MathEngine)
	}
	if cfg.KatexBin != "/opt/katex/bin/katex" {
		t.Errorf("KatexBin = %q", cfg.KatexBin)
	}
	if cfg.BookDir != "libro" {
		t.Errorf("BookDir = %q, want libro", cfg.BookDir)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", cfg.Timeout)
	}
}

func TestLoadEnvConfig_InvalidTimeout(t *testing.T) {
	for _, value := range []string{"soon", "-1m", "0s"} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("TEXBOOK_TIMEOUT", value)
			if got := loadEnvConfig().Timeout; got != 0 {
				t.Errorf("Timeout = %v, want 0 for %q", got, value)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestWarnUnknownEnvVars - Typo detection
// ---------------------------------------------------------------------------

func TestWarnUnknownEnvVars(t *testing.T) {
	t.Setenv("TEXBOOK_MATH_ENGNE", "katex")
	t.Setenv("TEXBOOK_BOOK_DIR", "libro")

	var buf strings.Builder
	warnUnknownEnvVars(&buf)

	out := buf.String()
	if !strings.Contains(out, "unknown environment variable TEXBOOK_MATH_ENGNE") {
		t.Errorf("missing warning for the typo: %q", out)
	}
	if strings.Contains(out, "TEXBOOK_BOOK_DIR") {
		t.Errorf("known variable reported: %q", out)
	}
}

// ---------------------------------------------------------------------------
// TestApplyEnvConfig - Environment over config file
// ---------------------------------------------------------------------------

func TestApplyEnvConfig(t *testing.T) {
	t.Parallel()

	t.Run("overrides set values", func(t *testing.T) {
		t.Parallel()
		cfg := texbook.DefaultConfig()
		applyEnvConfig(&envConfig{MathEngine: "katex", KatexBin: "katex-cli", BookDir: "libro"}, cfg)

		if cfg.Math.Engine != "katex" || cfg.Math.KatexBin != "katex-cli" || cfg.Book.Dir != "libro" {
			t.Errorf("got engine=%q bin=%q dir=%q", cfg.Math.Engine, cfg.Math.KatexBin, cfg.Book.Dir)
		}
	})

	t.Run("empty values keep the config", func(t *testing.T) {
		t.Parallel()
		cfg := texbook.DefaultConfig()
		cfg.Book.Dir = "mi-libro"
		applyEnvConfig(&envConfig{}, cfg)

		if cfg.Book.Dir != "mi-libro" {
			t.Errorf("Book.Dir = %q, want mi-libro", cfg.Book.Dir)
		}
		if cfg.Math.Engine != texbook.DefaultConfig().Math.Engine {
			t.Errorf("Math.Engine = %q, want the default", cfg.Math.Engine)
		}
	})
}

// ---------------------------------------------------------------------------
// TestLoadEnvFiles - .env loading
// ---------------------------------------------------------------------------

func TestLoadEnvFiles(t *testing.T) {
	const probe = "DOTENV_PROBE_TEXBOOK"
	t.Cleanup(func() { _ = os.Unsetenv(probe) })

	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	shared := filepath.Join(dir, ".env")
	if err := os.WriteFile(local, []byte(probe+"=local\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(shared, []byte(probe+"=shared\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded := loadEnvFiles(local, filepath.Join(dir, "missing.env"), shared)

	if len(loaded) != 2 || loaded[0] != local || loaded[1] != shared {
		t.Errorf("loaded = %v, want [%s %s]", loaded, local, shared)
	}
	if got := os.Getenv(probe); got != "local" {
		t.Errorf("%s = %q, want the first file to win", probe, got)
	}
}

func TestLoadEnvFiles_NoFiles(t *testing.T) {
	if loaded := loadEnvFiles(filepath.Join(t.TempDir(), ".env")); len(loaded) != 0 {
		t.Errorf("loaded = %v, want none", loaded)
	}
}
