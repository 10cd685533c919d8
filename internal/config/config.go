package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alnah/go-texbook/internal/fileutil"
	"github.com/alnah/go-texbook/internal/latex"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrConfigInvalid   = errors.New("invalid config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
)

// Field length limits.
const (
	MaxPathLength        = 4096
	MaxTitleLength       = 200
	MaxNameLength        = 100
	MaxDescriptionLength = 2000
	MaxLangLength        = 35 // BCP 47
	MaxPasses            = 5
)

// Math engine names.
const (
	EngineChrome = "chrome"
	EngineKatex  = "katex"
)

// Config holds all configuration for a book build.
type Config struct {
	Book   BookConfig   `yaml:"book"`
	Output OutputConfig `yaml:"output"`
	PDF    PDFConfig    `yaml:"pdf"`
	HTML   HTMLConfig   `yaml:"html"`
	Math   MathConfig   `yaml:"math"`
	LaTeX  LaTeXConfig  `yaml:"latex"`
	Assets AssetsConfig `yaml:"assets"`
}

// BookConfig locates the LaTeX sources.
type BookConfig struct {
	Dir      string `yaml:"dir"`      // book directory, includes resolve against it
	Root     string `yaml:"root"`     // root document, relative to Dir
	Preamble string `yaml:"preamble"` // name in the \input{...} directive removed from the HTML source
}

// OutputConfig defines where artifacts land.
type OutputConfig struct {
	HTML    string `yaml:"html"`
	PDF     string `yaml:"pdf"`
	Scratch string `yaml:"scratch"` // working copy for the LaTeX compiler
}

// PDFConfig defines the LaTeX compiler invocation.
type PDFConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Compiler string   `yaml:"compiler"`
	Args     []string `yaml:"args"` // flags placed before the root file name
	Passes   int      `yaml:"passes"`
}

// HTMLConfig defines the page shell.
type HTMLConfig struct {
	Enabled     bool         `yaml:"enabled"`
	Lang        string       `yaml:"lang"`
	Title       string       `yaml:"title"`
	Stylesheets []string     `yaml:"stylesheets"`
	Header      HeaderConfig `yaml:"header"`
	TOC         bool         `yaml:"toc"`
	TOCTitle    string       `yaml:"tocTitle"`
	CheckRefs   bool         `yaml:"checkRefs"` // warn about references to undeclared labels
}

// HeaderConfig is the static header block of the page.
type HeaderConfig struct {
	Title       string `yaml:"title"`
	Subtitle    string `yaml:"subtitle"`
	Author      string `yaml:"author"`
	Description string `yaml:"description"` // Markdown
}

// MathConfig selects and configures the KaTeX engine.
type MathConfig struct {
	Engine      string            `yaml:"engine"`      // "chrome" or "katex"
	KatexScript string            `yaml:"katexScript"` // katex.min.js loaded into the browser
	KatexBin    string            `yaml:"katexBin"`    // katex CLI executable
	Macros      map[string]string `yaml:"macros"`      // KaTeX macro table, e.g. "\\R": "\\mathbb{R}"
}

// LaTeXConfig declares custom macro signatures for the parser.
type LaTeXConfig struct {
	Macros map[string]string `yaml:"macros"` // name -> xparse letters ("m", "o m")
}

// AssetsConfig defines asset loading options.
type AssetsConfig struct {
	BasePath string `yaml:"basePath"` // Empty = use embedded assets
}

// DefaultConfig returns the configuration that reproduces the fixed layout:
// book/main.tex in, index.html and output/main.pdf out.
func DefaultConfig() *Config {
	return &Config{
		Book: BookConfig{
			Dir:      "book",
			Root:     "main.tex",
			Preamble: "preamble.tex",
		},
		Output: OutputConfig{
			HTML:    "index.html",
			PDF:     filepath.Join("output", "main.pdf"),
			Scratch: "tmp",
		},
		PDF: PDFConfig{
			Enabled:  true,
			Compiler: "pdflatex",
			Args:     []string{"-interaction=nonstopmode", "-halt-on-error"},
			Passes:   2,
		},
		HTML: HTMLConfig{
			Enabled: true,
			Lang:    "es",
			Title:   "Notas",
			Stylesheets: []string{
				"output/css/base.css",
				"output/katex/katex.min.css",
			},
			Header: HeaderConfig{
				Title:    "Matemáticas",
				Subtitle: "Notas para una licenciatura",
				Author:   "José Julián Villalba Vásquez",
			},
			TOCTitle: "Contenido",
		},
		Math: MathConfig{
			Engine:      EngineChrome,
			KatexScript: filepath.Join("output", "katex", "katex.min.js"),
			KatexBin:    "katex",
		},
		LaTeX: LaTeXConfig{
			Macros: map[string]string{
				"label":          "m",
				"HTMLclassTitle": "m",
				"newthought":     "m",
			},
		},
	}
}

// Validate checks the configuration for values the build cannot use.
// Called automatically by LoadConfig, but available for callers who build
// a Config by hand or override fields from flags.
func (c *Config) Validate() error {
	paths := []struct{ name, value string }{
		{"book.dir", c.Book.Dir},
		{"book.root", c.Book.Root},
		{"output.html", c.Output.HTML},
		{"output.pdf", c.Output.PDF},
		{"output.scratch", c.Output.Scratch},
	}
	for _, p := range paths {
		if strings.TrimSpace(p.value) == "" {
			return fmt.Errorf("%w: %s: required", ErrConfigInvalid, p.name)
		}
		if err := validateFieldLength(p.name, p.value, MaxPathLength); err != nil {
			return err
		}
	}

	if filepath.Clean(c.Output.Scratch) == filepath.Clean(c.Book.Dir) {
		return fmt.Errorf("%w: output.scratch must differ from book.dir", ErrConfigInvalid)
	}

	if c.PDF.Enabled {
		if strings.TrimSpace(c.PDF.Compiler) == "" {
			return fmt.Errorf("%w: pdf.compiler: required when pdf is enabled", ErrConfigInvalid)
		}
		if c.PDF.Passes < 1 || c.PDF.Passes > MaxPasses {
			return fmt.Errorf("%w: pdf.passes: must be between 1 and %d, got %d", ErrConfigInvalid, MaxPasses, c.PDF.Passes)
		}
	}

	if err := validateFieldLength("html.lang", c.HTML.Lang, MaxLangLength); err != nil {
		return err
	}
	if err := validateFieldLength("html.title", c.HTML.Title, MaxTitleLength); err != nil {
		return err
	}
	if err := validateFieldLength("html.tocTitle", c.HTML.TOCTitle, MaxTitleLength); err != nil {
		return err
	}
	if err := validateFieldLength("html.header.title", c.HTML.Header.Title, MaxTitleLength); err != nil {
		return err
	}
	if err := validateFieldLength("html.header.subtitle", c.HTML.Header.Subtitle, MaxTitleLength); err != nil {
		return err
	}
	if err := validateFieldLength("html.header.author", c.HTML.Header.Author, MaxNameLength); err != nil {
		return err
	}
	if err := validateFieldLength("html.header.description", c.HTML.Header.Description, MaxDescriptionLength); err != nil {
		return err
	}

	if !slices.Contains([]string{EngineChrome, EngineKatex}, c.Math.Engine) {
		return fmt.Errorf("%w: math.engine: invalid value %q (must be %s or %s)", ErrConfigInvalid, c.Math.Engine, EngineChrome, EngineKatex)
	}
	for name := range c.Math.Macros {
		if !strings.HasPrefix(name, `\`) {
			return fmt.Errorf("%w: math.macros: %q must start with a backslash", ErrConfigInvalid, name)
		}
	}

	if _, err := latex.ParseTable(c.LaTeX.Macros); err != nil {
		return fmt.Errorf("%w: latex.macros: %v", ErrConfigInvalid, err)
	}

	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Fields missing from the file keep their DefaultConfig values.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := decodeStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, <user config dir>/texbook/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, "texbook", name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}
