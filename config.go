package texbook

import (
	"github.com/alnah/go-texbook/internal/config"
)

// Config describes one book build: where the sources live, where the
// artifacts go and how each of them is produced.
type Config = config.Config

// Sections of Config.
type (
	BookConfig   = config.BookConfig
	OutputConfig = config.OutputConfig
	PDFConfig    = config.PDFConfig
	HTMLConfig   = config.HTMLConfig
	HeaderConfig = config.HeaderConfig
	MathConfig   = config.MathConfig
	LaTeXConfig  = config.LaTeXConfig
	AssetsConfig = config.AssetsConfig
)

// Math engines accepted by MathConfig.Engine.
const (
	MathEngineChrome = config.EngineChrome
	MathEngineKatex  = config.EngineKatex
)

// DefaultConfig returns the fixed layout: book/main.tex in, index.html and
// output/main.pdf out, tmp/ as the compiler's working copy.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// LoadConfig reads a YAML configuration by path or by name. Keys missing
// from the file keep their DefaultConfig values.
func LoadConfig(nameOrPath string) (*Config, error) {
	return config.LoadConfig(nameOrPath)
}
