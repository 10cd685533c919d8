package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	texbook "github.com/alnah/go-texbook"
	"github.com/alnah/go-texbook/internal/fileutil"
)

// envConfig holds configuration from environment variables.
type envConfig struct {
	ConfigPath string        // TEXBOOK_CONFIG: config file path or name
	MathEngine string        // TEXBOOK_MATH_ENGINE: chrome or katex
	KatexBin   string        // TEXBOOK_KATEX_BIN: katex CLI executable
	BookDir    string        // TEXBOOK_BOOK_DIR: book directory
	Timeout    time.Duration // TEXBOOK_TIMEOUT: whole-build timeout
}

// knownEnvVars lists valid TEXBOOK_* environment variables.
var knownEnvVars = map[string]bool{
	"TEXBOOK_CONFIG":      true,
	"TEXBOOK_MATH_ENGINE": true,
	"TEXBOOK_KATEX_BIN":   true,
	"TEXBOOK_BOOK_DIR":    true,
	"TEXBOOK_TIMEOUT":     true,
	"TEXBOOK_CONTAINER":   true,
}

// loadEnvConfig reads the TEXBOOK_* variables. Invalid or non-positive
// durations are ignored.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath: os.Getenv("TEXBOOK_CONFIG"),
		MathEngine: os.Getenv("TEXBOOK_MATH_ENGINE"),
		KatexBin:   os.Getenv("TEXBOOK_KATEX_BIN"),
		BookDir:    os.Getenv("TEXBOOK_BOOK_DIR"),
	}
	if timeout := os.Getenv("TEXBOOK_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}

// loadEnvFiles loads each existing file in paths into the process
// environment and returns the ones it loaded. Variables that are already
// set are never overwritten, so earlier paths win over later ones.
func loadEnvFiles(paths ...string) []string {
	var loaded []string
	for _, p := range paths {
		if !fileutil.FileExists(p) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", p, err)
			continue
		}
		loaded = append(loaded, p)
	}
	return loaded
}

// warnUnknownEnvVars prints a warning for every TEXBOOK_* variable that is
// not in knownEnvVars.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "TEXBOOK_") {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig overrides config file values with the environment.
// Flags are applied afterwards by mergeFlags, so the order is
// flags > env > config file > defaults.
func applyEnvConfig(env *envConfig, cfg *texbook.Config) {
	if env.MathEngine != "" {
		cfg.Math.Engine = env.MathEngine
	}
	if env.KatexBin != "" {
		cfg.Math.KatexBin = env.KatexBin
	}
	if env.BookDir != "" {
		cfg.Book.Dir = env.BookDir
	}
}
