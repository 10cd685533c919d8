package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"

	"github.com/alnah/go-texbook/internal/latex"
)

// ErrRender indicates the document tree could not be turned into markup.
var ErrRender = errors.New("rendering markup failed")

// Renderer converts a document tree to HTML markup. Macros without an HTML
// mapping become <span class="macro macro-NAME"> holding their arguments
// with the source delimiters, and environments become
// <div class="environment NAME">.
type Renderer struct {
	// Highlighter renders code listings. Nil leaves them as plain <pre>.
	Highlighter *Highlighter
}

// Render renders the body of the document environment (or the whole tree
// when there is none) and serializes it.
func (r *Renderer) Render(root *latex.Node) (string, error) {
	nodes := root.Children
	if doc := root.Find(func(n *latex.Node) bool {
		return n.Kind == latex.KindEnvironment && n.Name == "document"
	}); doc != nil {
		nodes = doc.Children
	}

	container := &html.Node{Type: html.DocumentNode}
	if err := r.flow(container, nodes); err != nil {
		return "", err
	}

	var buf strings.Builder
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("%w: %v", ErrRender, err)
		}
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

// headingTags maps sectioning commands to heading elements.
var headingTags = map[string]atom.Atom{
	"part":          atom.H1,
	"chapter":       atom.H2,
	"section":       atom.H3,
	"subsection":    atom.H4,
	"subsubsection": atom.H5,
	"paragraph":     atom.H6,
	"subparagraph":  atom.H6,
}

// inlineTags maps font commands to elements wrapping their argument.
var inlineTags = map[string]atom.Atom{
	"textbf":    atom.B,
	"textit":    atom.I,
	"textsl":    atom.I,
	"emph":      atom.Em,
	"texttt":    atom.Code,
	"underline": atom.U,
}

// transparent macros render their argument without a wrapper.
var transparent = map[string]bool{
	"textrm": true, "textsf": true, "textup": true, "textmd": true,
	"mbox": true, "text": true, "textnormal": true,
}

// symbols maps argument-less macros to literal text.
var symbols = map[string]string{
	"%": "%", "&": "&", "$": "$", "#": "#", "_": "_", "{": "{", "}": "}",
	" ": " ", ",": "\u2009", ";": "\u2005", ":": "\u2005", "!": "",
	"-": "\u00AD", "/": "", "@": "",
	"quad": "\u2003", "qquad": "\u2003\u2003", "enspace": "\u2002",
	"ldots": "…", "dots": "…", "textellipsis": "…",
	"textbackslash": `\`, "textasciitilde": "~", "textasciicircum": "^",
	"textendash": "–", "textemdash": "—", "textbullet": "•",
	"S": "§", "P": "¶", "copyright": "©", "textregistered": "®", "dag": "†",
	"LaTeX": "LaTeX", "TeX": "TeX", "i": "ı", "j": "ȷ",
	"ss": "ß", "ae": "æ", "AE": "Æ", "oe": "œ", "OE": "Œ", "o": "ø", "O": "Ø",
	"aa": "å", "AA": "Å", "l": "ł", "L": "Ł",
	"guillemotleft": "«", "guillemotright": "»",
	"textexclamdown": "¡", "textquestiondown": "¿",
}

// accents maps accent commands to combining characters.
var accents = map[string]string{
	"'": "\u0301", "`": "\u0300", "^": "\u0302", `"`: "\u0308", "~": "\u0303",
	"=": "\u0304", ".": "\u0307", "u": "\u0306", "v": "\u030C", "H": "\u030B",
	"c": "\u0327", "k": "\u0328",
}

// ignored macros produce no output. Their arguments, if the signature
// table declares any, are dropped with them.
var ignored = map[string]bool{
	"maketitle": true, "tableofcontents": true, "listoffigures": true, "listoftables": true,
	"newpage": true, "clearpage": true, "cleardoublepage": true, "pagebreak": true,
	"noindent": true, "indent": true, "centering": true, "raggedright": true, "raggedleft": true,
	"smallskip": true, "medskip": true, "bigskip": true, "vspace": true, "hspace": true,
	"vfill": true, "hfill": true, "documentclass": true, "usepackage": true,
	"title": true, "author": true, "date": true, "today": true, "thanks": true,
	"frontmatter": true, "mainmatter": true, "backmatter": true, "appendix": true,
	"normalsize": true, "small": true, "footnotesize": true, "scriptsize": true, "tiny": true,
	"large": true, "Large": true, "LARGE": true, "huge": true, "Huge": true,
	"bfseries": true, "itshape": true, "ttfamily": true, "rmfamily": true, "sffamily": true,
	"mdseries": true, "upshape": true, "scshape": true, "normalfont": true,
	"par": true, "protect": true, "relax": true, "hline": true, "toprule": true, "midrule": true,
	"bottomrule": true, "cline": true, "nopagebreak": true, "sloppy": true,
}

// typography applies the TeX input ligatures.
var typography = strings.NewReplacer(
	"---", "—",
	"--", "–",
	"!`", "¡",
	"?`", "¿",
	"``", "“",
	"''", "”",
	"`", "‘",
	"'", "’",
	"~", "\u00A0",
)

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// isBlock reports whether n starts its own block instead of joining the
// current paragraph.
func isBlock(n *latex.Node) bool {
	switch n.Kind {
	case latex.KindDisplayMath, latex.KindEnvironment:
		return true
	case latex.KindVerbatim:
		return n.Name != "verb"
	case latex.KindMacro:
		_, heading := headingTags[n.Name]
		return heading
	}
	return false
}

// flow renders block content: inline runs are grouped into paragraphs
// split at blank lines and block nodes.
func (r *Renderer) flow(parent *html.Node, nodes []*latex.Node) error {
	var p *html.Node
	closeParagraph := func() {
		if p == nil {
			return
		}
		for p.LastChild != nil && p.LastChild.Type == html.TextNode && strings.TrimSpace(p.LastChild.Data) == "" {
			p.RemoveChild(p.LastChild)
		}
		if p.FirstChild == nil {
			parent.RemoveChild(p)
		}
		p = nil
	}

	for _, n := range nodes {
		switch {
		case n.Kind == latex.KindParbreak || (n.Kind == latex.KindMacro && n.Name == "par"):
			closeParagraph()
		case n.Kind == latex.KindComment:
		case isBlock(n):
			closeParagraph()
			if err := r.block(parent, n); err != nil {
				return err
			}
		case n.Kind == latex.KindWhitespace && p == nil:
		case n.Kind == latex.KindMacro && ignored[n.Name] && p == nil:
		default:
			if p == nil {
				p = element(atom.P)
				parent.AppendChild(p)
			}
			if err := r.inline(p, n); err != nil {
				return err
			}
		}
	}
	closeParagraph()
	return nil
}

// flowCompact renders block content and unwraps a lone paragraph, so list
// items and table cells hold their text directly.
func (r *Renderer) flowCompact(parent *html.Node, nodes []*latex.Node) error {
	if err := r.flow(parent, nodes); err != nil {
		return err
	}
	if only := parent.FirstChild; only != nil && only.NextSibling == nil && only.DataAtom == atom.P {
		parent.RemoveChild(only)
		for c := only.FirstChild; c != nil; {
			next := c.NextSibling
			only.RemoveChild(c)
			parent.AppendChild(c)
			c = next
		}
	}
	return nil
}

func (r *Renderer) inlineAll(parent *html.Node, nodes []*latex.Node) error {
	for _, n := range nodes {
		if err := r.inline(parent, n); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) block(parent *html.Node, n *latex.Node) error {
	switch n.Kind {
	case latex.KindDisplayMath:
		parent.AppendChild(mathElement(atom.Div, "display-math", n))
		return nil
	case latex.KindVerbatim:
		return r.listing(parent, n)
	case latex.KindMacro:
		h := element(headingTags[n.Name])
		if n.Star {
			h.Attr = append(h.Attr, html.Attribute{Key: "class", Val: "unnumbered"})
		}
		parent.AppendChild(h)
		return r.inlineAll(h, argNodes(n.Mandatory(0)))
	}
	return r.environment(parent, n)
}

func mathElement(a atom.Atom, class string, n *latex.Node) *html.Node {
	el := element(a, "class", class, "data-line", strconv.Itoa(n.Line))
	el.AppendChild(textNode(mathSource(n)))
	return el
}

// mathSource returns the KaTeX input for a math node. Environments other
// than the plain display ones keep their \begin/\end so KaTeX lays out the
// alignment; eqnarray is expressed as an array.
func mathSource(n *latex.Node) string {
	switch n.Name {
	case "", "equation", "equation*", "displaymath":
		return n.Text
	case "eqnarray", "eqnarray*":
		return `\begin{array}{rcl}` + n.Text + `\end{array}`
	}
	return `\begin{` + n.Name + `}` + n.Text + `\end{` + n.Name + `}`
}

func (r *Renderer) listing(parent *html.Node, n *latex.Node) error {
	code := strings.TrimPrefix(strings.TrimPrefix(n.Text, "\r"), "\n")
	if r.Highlighter != nil && n.Lang != "" {
		out, err := r.Highlighter.Highlight(code, n.Lang)
		if err != nil {
			return err
		}
		parent.AppendChild(&html.Node{Type: html.RawNode, Data: out})
		return nil
	}
	pre := element(atom.Pre, "class", "verbatim")
	c := element(atom.Code)
	c.AppendChild(textNode(code))
	pre.AppendChild(c)
	parent.AppendChild(pre)
	return nil
}

func (r *Renderer) environment(parent *html.Node, n *latex.Node) error {
	switch n.Name {
	case "document":
		return r.flow(parent, n.Children)
	case "itemize", "enumerate":
		tag := atom.Ul
		if n.Name == "enumerate" {
			tag = atom.Ol
		}
		list := element(tag)
		parent.AppendChild(list)
		for _, item := range splitItems(n.Children) {
			li := element(atom.Li)
			list.AppendChild(li)
			if err := r.flowCompact(li, item.body); err != nil {
				return err
			}
		}
		return nil
	case "description":
		list := element(atom.Dl)
		parent.AppendChild(list)
		for _, item := range splitItems(n.Children) {
			dt := element(atom.Dt)
			list.AppendChild(dt)
			if item.label != nil {
				if err := r.inlineAll(dt, item.label.Children); err != nil {
					return err
				}
			}
			dd := element(atom.Dd)
			list.AppendChild(dd)
			if err := r.flowCompact(dd, item.body); err != nil {
				return err
			}
		}
		return nil
	case "tabular", "tabular*", "tabularx", "longtable":
		return r.table(parent, n)
	case "quote", "quotation", "verse":
		bq := element(atom.Blockquote, "class", n.Name)
		parent.AppendChild(bq)
		return r.flow(bq, n.Children)
	}

	div := element(atom.Div, "class", "environment "+n.Name)
	parent.AppendChild(div)
	if opt := n.Optional(0); opt != nil {
		title := element(atom.Span, "class", "environment-argument")
		div.AppendChild(title)
		if err := r.inlineAll(title, opt.Children); err != nil {
			return err
		}
	}
	return r.flow(div, n.Children)
}

type listItem struct {
	label *latex.Arg
	body  []*latex.Node
}

// splitItems cuts list content at each \item. Content before the first
// item is dropped.
func splitItems(nodes []*latex.Node) []listItem {
	var items []listItem
	for _, n := range nodes {
		if n.Kind == latex.KindMacro && n.Name == "item" {
			items = append(items, listItem{label: n.Optional(0)})
			continue
		}
		if len(items) > 0 {
			items[len(items)-1].body = append(items[len(items)-1].body, n)
		}
	}
	return items
}

func (r *Renderer) table(parent *html.Node, n *latex.Node) error {
	table := element(atom.Table, "class", "environment "+n.Name)
	parent.AppendChild(table)
	tbody := element(atom.Tbody)
	table.AppendChild(tbody)

	var rows [][][]*latex.Node
	row := [][]*latex.Node{nil}
	for _, c := range n.Children {
		switch {
		case c.Kind == latex.KindMacro && c.Name == `\`:
			rows = append(rows, row)
			row = [][]*latex.Node{nil}
		case c.Kind == latex.KindText && c.Text == "&":
			row = append(row, nil)
		default:
			row[len(row)-1] = append(row[len(row)-1], c)
		}
	}
	if !blankRow(row) {
		rows = append(rows, row)
	}

	for _, cells := range rows {
		tr := element(atom.Tr)
		tbody.AppendChild(tr)
		for _, cell := range cells {
			td := element(atom.Td)
			tr.AppendChild(td)
			if err := r.flowCompact(td, cell); err != nil {
				return err
			}
		}
	}
	return nil
}

func blankRow(row [][]*latex.Node) bool {
	if len(row) > 1 {
		return false
	}
	for _, n := range row[0] {
		switch n.Kind {
		case latex.KindWhitespace, latex.KindParbreak, latex.KindComment:
		case latex.KindMacro:
			if !ignored[n.Name] {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (r *Renderer) inline(parent *html.Node, n *latex.Node) error {
	switch n.Kind {
	case latex.KindText:
		parent.AppendChild(textNode(typography.Replace(n.Text)))
	case latex.KindWhitespace, latex.KindParbreak:
		parent.AppendChild(textNode(" "))
	case latex.KindComment:
	case latex.KindGroup:
		return r.inlineAll(parent, n.Children)
	case latex.KindInlineMath:
		parent.AppendChild(mathElement(atom.Span, "inline-math", n))
	case latex.KindDisplayMath:
		parent.AppendChild(mathElement(atom.Span, "display-math", n))
	case latex.KindVerbatim:
		if n.Name != "verb" {
			return r.listing(parent, n)
		}
		c := element(atom.Code)
		c.AppendChild(textNode(n.Text))
		parent.AppendChild(c)
	case latex.KindEnvironment:
		return r.environment(parent, n)
	case latex.KindMacro:
		return r.macro(parent, n)
	}
	return nil
}

func (r *Renderer) macro(parent *html.Node, n *latex.Node) error {
	if ignored[n.Name] {
		return nil
	}
	if s, ok := symbols[n.Name]; ok {
		parent.AppendChild(textNode(s))
		return nil
	}
	if mark, ok := accents[n.Name]; ok {
		base := n.Mandatory(0).Source()
		parent.AppendChild(textNode(accent(base, mark)))
		return nil
	}
	if tag, ok := inlineTags[n.Name]; ok {
		el := element(tag)
		parent.AppendChild(el)
		return r.inlineAll(el, argNodes(n.Mandatory(0)))
	}
	if transparent[n.Name] {
		return r.inlineAll(parent, argNodes(n.Mandatory(0)))
	}
	if _, ok := headingTags[n.Name]; ok {
		return r.block(parent, n)
	}

	switch n.Name {
	case `\`, "newline", "linebreak":
		parent.AppendChild(element(atom.Br))
		return nil
	case "textsc":
		return r.wrapped(parent, element(atom.Span, "class", "smallcaps"), n.Mandatory(0))
	case "href":
		a := element(atom.A, "href", n.Mandatory(0).Source())
		return r.wrapped(parent, a, n.Mandatory(1))
	case "url":
		u := n.Mandatory(0).Source()
		a := element(atom.A, "href", u)
		a.AppendChild(textNode(u))
		parent.AppendChild(a)
		return nil
	case "includegraphics":
		parent.AppendChild(element(atom.Img, "src", n.Mandatory(0).Source(), "alt", ""))
		return nil
	case "footnote":
		return r.wrapped(parent, element(atom.Span, "class", "footnote"), n.Mandatory(0))
	case "caption":
		return r.wrapped(parent, element(atom.Span, "class", "caption"), n.Mandatory(0))
	case "textcolor":
		span := element(atom.Span, "style", "color: "+n.Mandatory(0).Source())
		return r.wrapped(parent, span, n.Mandatory(1))
	}

	if len(n.Name) > 0 && !isLetterName(n.Name) {
		// unknown control symbol: keep the character
		parent.AppendChild(textNode(n.Name))
		return nil
	}

	span := element(atom.Span, "class", "macro macro-"+n.Name)
	parent.AppendChild(span)
	for _, a := range n.Args {
		if !a.Present() {
			continue
		}
		if a.Open != "" {
			span.AppendChild(textNode(a.Open))
		}
		if err := r.inlineAll(span, a.Children); err != nil {
			return err
		}
		if a.Close != "" {
			span.AppendChild(textNode(a.Close))
		}
	}
	return nil
}

func (r *Renderer) wrapped(parent, el *html.Node, arg *latex.Arg) error {
	parent.AppendChild(el)
	if arg == nil {
		return nil
	}
	return r.inlineAll(el, arg.Children)
}

func argNodes(a *latex.Arg) []*latex.Node {
	if a == nil {
		return nil
	}
	return a.Children
}

func isLetterName(name string) bool {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !('a' <= c && c <= 'z') && !('A' <= c && c <= 'Z') && c != '@' {
			return false
		}
	}
	return true
}

// accent puts the combining mark after the first character of base and
// composes the result.
func accent(base, mark string) string {
	if base == "" {
		return norm.NFC.String(mark)
	}
	switch base {
	case `\i`, "ı":
		base = "i"
	case `\j`, "ȷ":
		base = "j"
	}
	first := []rune(base)[0]
	rest := string([]rune(base)[1:])
	return norm.NFC.String(string(first)+mark) + rest
}
