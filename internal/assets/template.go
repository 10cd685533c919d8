package assets

import (
	"errors"
	"fmt"
	"strings"
)

// PageTemplate is the template the page composer renders.
const PageTemplate = "page"

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidName      = errors.New("invalid template name")
	ErrInvalidDir       = errors.New("invalid theme directory")
	ErrTemplateRead     = errors.New("reading template")
)

// Loader returns the source of a template by name, without extension.
type Loader interface {
	Template(name string) (string, error)
}

// ValidateName rejects empty names and names that could address another
// file: separators and dots are not allowed.
func ValidateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\.`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func fileName(name string) string {
	return "templates/" + name + ".html"
}
