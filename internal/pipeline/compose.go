package pipeline

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"strconv"
	"strings"

	"github.com/yosssi/gohtml"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrCompose indicates the page shell could not be built.
var ErrCompose = errors.New("composing page failed")

// PageHeader is the static header block of the page.
type PageHeader struct {
	Title       string
	Subtitle    string
	Author      string
	Description template.HTML // rendered Markdown, may be empty
}

// PageData holds the values for the page template.
type PageData struct {
	Lang        string
	Title       string
	Stylesheets []string
	InlineCSS   template.CSS
	Header      PageHeader
	Body        template.HTML
}

// Composer wraps a body fragment in the page shell.
type Composer struct {
	tmpl *template.Template
}

// NewComposer parses the page template.
func NewComposer(tmplContent string) (*Composer, error) {
	tmpl, err := template.New("page").Parse(tmplContent)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing template: %v", ErrCompose, err)
	}
	return &Composer{tmpl: tmpl}, nil
}

// Private Use Area markers wrap the index of an element held out of pretty
// printing; they never occur in rendered markup.
const (
	keepStart = "\uE000"
	keepEnd   = "\uE001"
)

var keepToken = regexp.MustCompile(keepStart + `(\d+)` + keepEnd)

// blockElements are reindented when every child is itself a block.
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Caption: true, atom.Dd: true, atom.Details: true, atom.Div: true,
	atom.Dl: true, atom.Dt: true, atom.Figcaption: true, atom.Figure: true,
	atom.Footer: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Header: true,
	atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true, atom.Summary: true,
	atom.Table: true, atom.Tbody: true, atom.Td: true, atom.Tfoot: true,
	atom.Th: true, atom.Thead: true, atom.Tr: true, atom.Ul: true,
}

// blockOnly reports whether nodes hold no text and no inline element, so
// line breaks between them cannot be seen.
func blockOnly(nodes []*nethtml.Node) bool {
	for _, n := range nodes {
		switch n.Type {
		case nethtml.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				return false
			}
		case nethtml.CommentNode:
		case nethtml.ElementNode:
			if !blockElements[n.DataAtom] {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func children(n *nethtml.Node) []*nethtml.Node {
	var out []*nethtml.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// masker copies a tree, replacing every element that carries running text
// with a placeholder. Only block boundaries are left for the formatter.
type masker struct {
	kept []string
}

func (m *masker) keep(n *nethtml.Node) (string, error) {
	var buf strings.Builder
	if err := nethtml.Render(&buf, n); err != nil {
		return "", err
	}
	m.kept = append(m.kept, buf.String())
	return keepStart + strconv.Itoa(len(m.kept)-1) + keepEnd, nil
}

// fill appends the masked copies of src to dst.
func (m *masker) fill(dst *nethtml.Node, src []*nethtml.Node) error {
	for _, n := range src {
		switch {
		case n.Type == nethtml.TextNode:
			// whitespace between blocks
		case n.Type == nethtml.CommentNode:
			dst.AppendChild(&nethtml.Node{Type: nethtml.CommentNode, Data: n.Data})
		case n.DataAtom != atom.Pre && blockElements[n.DataAtom] && blockOnly(children(n)):
			cp := &nethtml.Node{Type: n.Type, DataAtom: n.DataAtom, Data: n.Data, Namespace: n.Namespace, Attr: n.Attr}
			if err := m.fill(cp, children(n)); err != nil {
				return err
			}
			dst.AppendChild(cp)
		default:
			tok, err := m.keep(n)
			if err != nil {
				return err
			}
			// one placeholder per line
			if last := dst.LastChild; last != nil && last.Type == nethtml.TextNode {
				last.Data += "\n" + tok
				continue
			}
			dst.AppendChild(&nethtml.Node{Type: nethtml.TextNode, Data: tok})
		}
	}
	return nil
}

// PrettyPrint indents a markup fragment at block boundaries. Elements that
// hold text or inline markup (paragraphs, headings, list items, math,
// preformatted blocks) are kept byte for byte, so the visible text never
// changes. A fragment with text at its top level is returned as is.
func PrettyPrint(fragment string) string {
	ctx := &nethtml.Node{Type: nethtml.ElementNode, DataAtom: atom.Body, Data: "body"}
	nodes, err := nethtml.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil || !blockOnly(nodes) {
		return fragment
	}

	m := &masker{}
	root := &nethtml.Node{Type: nethtml.ElementNode, DataAtom: atom.Body, Data: "body"}
	if err := m.fill(root, nodes); err != nil {
		return fragment
	}
	var masked strings.Builder
	for _, n := range children(root) {
		if err := nethtml.Render(&masked, n); err != nil {
			return fragment
		}
	}

	out := gohtml.Format(masked.String())
	return keepToken.ReplaceAllStringFunc(out, func(tok string) string {
		i, err := strconv.Atoi(strings.Trim(tok, keepStart+keepEnd))
		if err != nil || i >= len(m.kept) {
			return tok
		}
		return m.kept[i]
	})
}

// Compose renders the page. data.Body is pretty printed before it is
// embedded.
func (c *Composer) Compose(ctx context.Context, data PageData) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data.Body = template.HTML(PrettyPrint(string(data.Body))) // #nosec G203 -- body is generated markup

	var buf strings.Builder
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompose, err)
	}
	return buf.String(), nil
}
