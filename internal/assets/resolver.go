package assets

import "errors"

// Resolver tries the theme directory first, then the built-in templates.
// Only a missing template falls back; other theme errors are returned.
type Resolver struct {
	theme *Dir // nil without a theme directory
}

// NewResolver opens themeDir, or uses the built-ins alone when it is empty.
func NewResolver(themeDir string) (*Resolver, error) {
	if themeDir == "" {
		return &Resolver{}, nil
	}
	d, err := OpenDir(themeDir)
	if err != nil {
		return nil, err
	}
	return &Resolver{theme: d}, nil
}

func (r *Resolver) Template(name string) (string, error) {
	if r.theme != nil {
		src, err := r.theme.Template(name)
		if !errors.Is(err, ErrTemplateNotFound) {
			return src, err
		}
	}
	return Builtin{}.Template(name)
}

// ThemeDir returns the absolute theme directory, or "" for the built-ins.
func (r *Resolver) ThemeDir() string {
	if r.theme == nil {
		return ""
	}
	return r.theme.Path()
}

var (
	_ Loader = Builtin{}
	_ Loader = (*Dir)(nil)
	_ Loader = (*Resolver)(nil)
)
