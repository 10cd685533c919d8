package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Dir serves templates from a theme directory on disk.
type Dir struct {
	path string
}

// OpenDir checks that path is a readable directory.
func OpenDir(path string) (*Dir, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidDir)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDir, err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDir, err)
	}
	defer func() { _ = root.Close() }()
	if _, err := fs.ReadDir(root.FS(), "."); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDir, err)
	}
	return &Dir{path: abs}, nil
}

// Path returns the absolute theme directory.
func (d *Dir) Path() string { return d.path }

// Template reads {dir}/templates/{name}.html. Paths resolving outside the
// directory fail with ErrTemplateRead.
func (d *Dir) Template(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	root, err := os.OpenRoot(d.path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRead, err)
	}
	defer func() { _ = root.Close() }()

	data, err := root.ReadFile(fileName(name))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%w: %q in %s", ErrTemplateNotFound, name, d.path)
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrTemplateRead, err)
	}
	return string(data), nil
}
