package latex

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrSyntax is wrapped by every error Parse returns.
var ErrSyntax = errors.New("latex syntax error")

// SyntaxError reports where the parser gave up.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Col, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// stopMode tells parseNodes what closes the current list.
type stopMode int

const (
	stopEOF stopMode = iota
	stopBrace
	stopBracket
	stopEnd
)

type parser struct {
	src   string
	pos   int
	table Table
	lines []int // byte offset of each line start
}

// Parse parses src into a document tree. Macro and environment arguments
// are bounded according to table.
func Parse(src string, table Table) (*Node, error) {
	p := &parser{src: src, table: table, lines: []int{0}}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			p.lines = append(p.lines, i+1)
		}
	}

	children, err := p.parseNodes(stopEOF, "")
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KindRoot, Children: children, Line: 1}, nil
}

// errorf builds a SyntaxError positioned at byte offset at.
func (p *parser) errorf(at int, format string, args ...any) error {
	line := p.line(at)
	col := utf8.RuneCountInString(p.src[p.lines[line-1]:min(at, len(p.src))]) + 1
	return &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) line(at int) int {
	return sort.Search(len(p.lines), func(i int) bool { return p.lines[i] > at })
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) parseNodes(mode stopMode, env string) ([]*Node, error) {
	var nodes []*Node
	start := p.pos

	for {
		if p.eof() {
			switch mode {
			case stopBrace:
				return nil, p.errorf(start-1, "unbalanced braces: missing }")
			case stopBracket:
				return nil, p.errorf(start-1, "unterminated optional argument: missing ]")
			case stopEnd:
				return nil, p.errorf(start, `\begin{%s} is never closed`, env)
			}
			return nodes, nil
		}

		c := p.src[p.pos]
		switch {
		case c == '}':
			if mode == stopBrace {
				p.pos++
				return nodes, nil
			}
			return nil, p.errorf(p.pos, "unbalanced braces: unexpected }")

		case c == ']' && mode == stopBracket:
			p.pos++
			return nodes, nil

		case c == '{':
			n := &Node{Kind: KindGroup, Line: p.line(p.pos)}
			p.pos++
			children, err := p.parseNodes(stopBrace, "")
			if err != nil {
				return nil, err
			}
			n.Children = children
			nodes = append(nodes, n)

		case c == '%':
			nodes = append(nodes, p.parseComment())

		case c == '$':
			n, err := p.parseDollarMath()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)

		case c == '&':
			nodes = append(nodes, &Node{Kind: KindText, Text: "&", Line: p.line(p.pos)})
			p.pos++

		case isSpace(c):
			nodes = append(nodes, p.parseWhitespace())

		case c == '\\':
			at := p.pos
			name, err := p.controlSequence()
			if err != nil {
				return nil, err
			}
			if name == "end" {
				envName, err := p.groupName()
				if err != nil {
					return nil, err
				}
				if mode == stopEnd && envName == env {
					return nodes, nil
				}
				if mode == stopEnd {
					return nil, p.errorf(at, `\end{%s} does not match \begin{%s}`, envName, env)
				}
				return nil, p.errorf(at, `\end{%s} without matching \begin`, envName)
			}
			n, err := p.parseControl(name, at)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)

		default:
			nodes = append(nodes, p.parseText(mode))
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '@'
}

func (p *parser) parseText(mode stopMode) *Node {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c == '\\' || c == '{' || c == '}' || c == '%' || c == '$' || c == '&' || isSpace(c) {
			break
		}
		if c == ']' && mode == stopBracket {
			break
		}
		p.pos++
	}
	return &Node{Kind: KindText, Text: p.src[start:p.pos], Line: p.line(start)}
}

// parseWhitespace collapses a whitespace run. Two or more line breaks make
// a paragraph break.
func (p *parser) parseWhitespace() *Node {
	start := p.pos
	newlines := 0
	for !p.eof() && isSpace(p.src[p.pos]) {
		if p.src[p.pos] == '\n' {
			newlines++
		}
		p.pos++
	}
	kind := KindWhitespace
	if newlines >= 2 {
		kind = KindParbreak
	}
	return &Node{Kind: kind, Text: p.src[start:p.pos], Line: p.line(start)}
}

// parseComment consumes a comment, its line break and the indentation of
// the next line.
func (p *parser) parseComment() *Node {
	start := p.pos
	end := strings.IndexByte(p.src[start:], '\n')
	n := &Node{Kind: KindComment, Line: p.line(start)}
	if end < 0 {
		n.Text = p.src[start+1:]
		p.pos = len(p.src)
		return n
	}
	n.Text = p.src[start+1 : start+end]
	p.pos = start + end + 1
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
	return n
}

// controlSequence reads the name after a backslash: a run of letters, or a
// single other character.
func (p *parser) controlSequence() (string, error) {
	at := p.pos
	p.pos++ // backslash
	if p.eof() {
		return "", p.errorf(at, "incomplete control sequence at end of input")
	}
	if !isLetter(p.src[p.pos]) {
		_, size := utf8.DecodeRuneInString(p.src[p.pos:])
		name := p.src[p.pos : p.pos+size]
		p.pos += size
		return name, nil
	}
	start := p.pos
	for !p.eof() && isLetter(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos], nil
}

// groupName reads a brace-delimited plain name, as in \begin{name}.
func (p *parser) groupName() (string, error) {
	p.skipInlineSpace()
	if p.eof() || p.src[p.pos] != '{' {
		return "", p.errorf(p.pos, "expected { after \\begin or \\end")
	}
	end := strings.IndexByte(p.src[p.pos:], '}')
	if end < 0 {
		return "", p.errorf(p.pos, "unbalanced braces: missing }")
	}
	name := strings.TrimSpace(p.src[p.pos+1 : p.pos+end])
	p.pos += end + 1
	if name == "" {
		return "", p.errorf(p.pos, "empty environment name")
	}
	return name, nil
}

func (p *parser) skipInlineSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

// skipArgSpace skips whitespace before an argument, stopping short of a
// paragraph break. It reports whether the whitespace was skipped.
func (p *parser) skipArgSpace() bool {
	i := p.pos
	newlines := 0
	for i < len(p.src) && isSpace(p.src[i]) {
		if p.src[i] == '\n' {
			newlines++
		}
		i++
	}
	if newlines >= 2 {
		return false
	}
	p.pos = i
	return true
}

func (p *parser) parseControl(name string, at int) (*Node, error) {
	switch name {
	case "begin":
		return p.parseEnvironment(at)
	case "[":
		body, err := p.scanUntil(`\]`, at, "display math")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindDisplayMath, Text: body, Line: p.line(at)}, nil
	case "(":
		body, err := p.scanUntil(`\)`, at, "inline math")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindInlineMath, Text: body, Line: p.line(at)}, nil
	case "]", ")":
		return nil, p.errorf(at, `unexpected \%s outside math`, name)
	case "verb":
		return p.parseVerb(at)
	}

	n := &Node{Kind: KindMacro, Name: name, Line: p.line(at)}
	sig, ok := p.table.Macros[name]
	if !ok {
		return n, nil
	}
	if err := p.parseArgs(n, sig); err != nil {
		return nil, err
	}
	return n, nil
}

// parseArgs consumes the arguments declared by sig into n.
func (p *parser) parseArgs(n *Node, sig Signature) error {
	for _, letter := range sig.letters() {
		switch letter {
		case 's':
			if !p.eof() && p.src[p.pos] == '*' {
				n.Star = true
				p.pos++
			}
		case 'o':
			save := p.pos
			if p.skipArgSpace() && !p.eof() && p.src[p.pos] == '[' {
				p.pos++
				children, err := p.parseNodes(stopBracket, "")
				if err != nil {
					return err
				}
				n.Args = append(n.Args, &Arg{Optional: true, Open: "[", Close: "]", Children: children})
				continue
			}
			p.pos = save
			n.Args = append(n.Args, &Arg{Optional: true})
		case 'm':
			arg, err := p.mandatoryArg(n.Name)
			if err != nil {
				return err
			}
			n.Args = append(n.Args, arg)
		}
	}
	return nil
}

// mandatoryArg reads a braced group, or a single token when no brace
// follows (\textbf x).
func (p *parser) mandatoryArg(macro string) (*Arg, error) {
	at := p.pos
	if !p.skipArgSpace() || p.eof() {
		return nil, p.errorf(at, `missing argument for \%s`, macro)
	}
	switch c := p.src[p.pos]; {
	case c == '{':
		p.pos++
		children, err := p.parseNodes(stopBrace, "")
		if err != nil {
			return nil, err
		}
		return &Arg{Open: "{", Close: "}", Children: children}, nil
	case c == '}' || c == '%':
		return nil, p.errorf(p.pos, `missing argument for \%s`, macro)
	case c == '\\':
		tokAt := p.pos
		name, err := p.controlSequence()
		if err != nil {
			return nil, err
		}
		return &Arg{Children: []*Node{{Kind: KindMacro, Name: name, Line: p.line(tokAt)}}}, nil
	default:
		_, size := utf8.DecodeRuneInString(p.src[p.pos:])
		tok := &Node{Kind: KindText, Text: p.src[p.pos : p.pos+size], Line: p.line(p.pos)}
		p.pos += size
		return &Arg{Children: []*Node{tok}}, nil
	}
}

// scanUntil returns the raw source up to close, skipping escaped
// characters, and moves past close.
func (p *parser) scanUntil(close string, at int, what string) (string, error) {
	start := p.pos
	for p.pos < len(p.src) {
		if strings.HasPrefix(p.src[p.pos:], close) {
			body := p.src[start:p.pos]
			p.pos += len(close)
			return body, nil
		}
		if p.src[p.pos] == '\\' {
			p.pos += 2
			continue
		}
		p.pos++
	}
	return "", p.errorf(at, "unterminated %s", what)
}

func (p *parser) parseDollarMath() (*Node, error) {
	at := p.pos
	if strings.HasPrefix(p.src[p.pos:], "$$") {
		p.pos += 2
		body, err := p.scanUntil("$$", at, "display math")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindDisplayMath, Text: body, Line: p.line(at)}, nil
	}
	p.pos++
	body, err := p.scanUntil("$", at, "inline math")
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KindInlineMath, Text: body, Line: p.line(at)}, nil
}

// parseVerb reads \verb<d>...<d>; the delimiter must close on the same line.
func (p *parser) parseVerb(at int) (*Node, error) {
	n := &Node{Kind: KindVerbatim, Name: "verb", Line: p.line(at)}
	if !p.eof() && p.src[p.pos] == '*' {
		n.Star = true
		p.pos++
	}
	if p.eof() {
		return nil, p.errorf(at, `\verb without delimiter`)
	}
	d := p.src[p.pos]
	p.pos++
	end := strings.IndexByte(p.src[p.pos:], d)
	nl := strings.IndexByte(p.src[p.pos:], '\n')
	if end < 0 || (nl >= 0 && nl < end) {
		return nil, p.errorf(at, `unterminated \verb`)
	}
	n.Text = p.src[p.pos : p.pos+end]
	p.pos += end + 1
	return n, nil
}

func (p *parser) parseEnvironment(at int) (*Node, error) {
	name, err := p.groupName()
	if err != nil {
		return nil, err
	}
	end := `\end{` + name + `}`

	switch {
	case name == "math":
		body, err := p.scanUntil(end, at, "math environment")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindInlineMath, Text: body, Line: p.line(at)}, nil

	case mathEnvironments[name]:
		i := strings.Index(p.src[p.pos:], end)
		if i < 0 {
			return nil, p.errorf(at, `\begin{%s} is never closed`, name)
		}
		n := &Node{Kind: KindDisplayMath, Name: name, Text: p.src[p.pos : p.pos+i], Line: p.line(at)}
		p.pos += i + len(end)
		return n, nil

	case verbatimEnvironments[name]:
		n := &Node{Kind: KindVerbatim, Name: name, Line: p.line(at)}
		if err := p.listingOptions(n); err != nil {
			return nil, err
		}
		i := strings.Index(p.src[p.pos:], end)
		if i < 0 {
			return nil, p.errorf(at, `\begin{%s} is never closed`, name)
		}
		n.Text = p.src[p.pos : p.pos+i]
		p.pos += i + len(end)
		return n, nil
	}

	n := &Node{Kind: KindEnvironment, Name: name, Line: p.line(at)}
	if sig, ok := p.table.Environments[name]; ok {
		if err := p.parseArgs(n, sig); err != nil {
			return nil, err
		}
	}
	children, err := p.parseNodes(stopEnd, name)
	if err != nil {
		return nil, err
	}
	n.Children = children
	return n, nil
}

// listingOptions reads the raw option block of lstlisting ([language=Go])
// and minted ([opts]{go}) and records the language.
func (p *parser) listingOptions(n *Node) error {
	if n.Name != "lstlisting" && n.Name != "minted" {
		return nil
	}
	if !p.eof() && p.src[p.pos] == '[' {
		i := strings.IndexByte(p.src[p.pos:], ']')
		if i < 0 {
			return p.errorf(p.pos, "unterminated optional argument: missing ]")
		}
		raw := p.src[p.pos+1 : p.pos+i]
		p.pos += i + 1
		n.Args = append(n.Args, &Arg{Optional: true, Open: "[", Close: "]",
			Children: []*Node{{Kind: KindText, Text: raw, Line: n.Line}}})
		for _, opt := range strings.Split(raw, ",") {
			key, value, ok := strings.Cut(opt, "=")
			if ok && strings.TrimSpace(key) == "language" {
				n.Lang = strings.TrimSpace(value)
			}
		}
	}
	if n.Name == "minted" {
		if p.eof() || p.src[p.pos] != '{' {
			return p.errorf(p.pos, `missing language for \begin{minted}`)
		}
		i := strings.IndexByte(p.src[p.pos:], '}')
		if i < 0 {
			return p.errorf(p.pos, "unbalanced braces: missing }")
		}
		n.Lang = strings.TrimSpace(p.src[p.pos+1 : p.pos+i])
		p.pos += i + 1
		n.Args = append(n.Args, &Arg{Open: "{", Close: "}",
			Children: []*Node{{Kind: KindText, Text: n.Lang, Line: n.Line}}})
	}
	return nil
}
