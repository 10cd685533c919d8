package assets

import (
	"embed"
	"fmt"
)

//go:embed templates/*.html
var builtinFS embed.FS

// Builtin serves the templates compiled into the binary.
type Builtin struct{}

func (Builtin) Template(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	data, err := builtinFS.ReadFile(fileName(name))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	return string(data), nil
}

// Template returns a built-in template.
func Template(name string) (string, error) {
	return Builtin{}.Template(name)
}
