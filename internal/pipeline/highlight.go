package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// ErrHighlight indicates a code listing could not be highlighted.
var ErrHighlight = errors.New("highlighting code failed")

// DefaultHighlightStyle is the chroma style used for listing CSS.
const DefaultHighlightStyle = "github"

// Highlighter renders code listings with chroma using CSS classes, so the
// page carries one stylesheet instead of inline colours.
type Highlighter struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

// NewHighlighter returns a Highlighter for the named chroma style. Unknown
// names fall back to chroma's default style.
func NewHighlighter(style string) *Highlighter {
	return &Highlighter{
		style:     styles.Get(style),
		formatter: chromahtml.New(chromahtml.WithClasses(true)),
	}
}

// Highlight returns the listing as a highlighted <pre> block. Languages
// chroma does not know are rendered as plain text.
func (h *Highlighter) Highlight(code, lang string) (string, error) {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrHighlight, lang, err)
	}

	var b strings.Builder
	if err := h.formatter.Format(&b, h.style, iterator); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrHighlight, lang, err)
	}
	return b.String(), nil
}

// CSS returns the stylesheet for the classes Highlight emits.
func (h *Highlighter) CSS() (string, error) {
	var b strings.Builder
	if err := h.formatter.WriteCSS(&b, h.style); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHighlight, err)
	}
	return b.String(), nil
}
