package latex

import (
	"strconv"
	"strings"
)

// Kind enumerates the node types of a document tree.
type Kind int

// Node kinds produced by Parse.
const (
	KindRoot Kind = iota
	KindText
	KindWhitespace
	KindParbreak
	KindComment
	KindGroup
	KindMacro
	KindEnvironment
	KindInlineMath
	KindDisplayMath
	KindVerbatim
)

var kindNames = [...]string{
	KindRoot:        "root",
	KindText:        "text",
	KindWhitespace:  "whitespace",
	KindParbreak:    "parbreak",
	KindComment:     "comment",
	KindGroup:       "group",
	KindMacro:       "macro",
	KindEnvironment: "environment",
	KindInlineMath:  "inline-math",
	KindDisplayMath: "display-math",
	KindVerbatim:    "verbatim",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Node is a single element of the document tree.
type Node struct {
	Kind Kind

	// Name is the macro or environment name without the leading
	// backslash. For display math written as an environment it holds the
	// environment name; for $$ and \[ it is empty.
	Name string

	// Text holds the content of text, whitespace and comment nodes, and
	// the raw source of math and verbatim nodes.
	Text string

	// Star is set for starred macros (\section*).
	Star bool

	// Lang is the language of a code listing, if one was given.
	Lang string

	// Args are the macro or environment arguments, in signature order.
	Args []*Arg

	// Children holds the content of root, group and environment nodes.
	Children []*Node

	// Line is the 1-based source line the node starts on.
	Line int
}

// Arg is one argument of a macro or environment.
type Arg struct {
	// Optional marks arguments declared with the "o" signature letter.
	Optional bool

	// Open and Close are the delimiters as written in the source ("{" and
	// "}", or "[" and "]"). Both are empty for an absent optional argument
	// and for an undelimited single-token mandatory argument.
	Open  string
	Close string

	Children []*Node
}

// Present reports whether the argument was given in the source.
func (a *Arg) Present() bool {
	return a != nil && (a.Open != "" || len(a.Children) > 0)
}

// Source reconstructs the LaTeX source of the argument content, without
// its delimiters.
func (a *Arg) Source() string {
	if a == nil {
		return ""
	}
	return Source(a.Children)
}

// Mandatory returns the i-th mandatory argument of n, or nil.
func (n *Node) Mandatory(i int) *Arg {
	for _, a := range n.Args {
		if a.Optional {
			continue
		}
		if i == 0 {
			return a
		}
		i--
	}
	return nil
}

// Optional returns the i-th optional argument of n if it was given.
func (n *Node) Optional(i int) *Arg {
	for _, a := range n.Args {
		if !a.Optional || !a.Present() {
			continue
		}
		if i == 0 {
			return a
		}
		i--
	}
	return nil
}

// Find returns the first node in the tree rooted at n matching pred, in
// document order.
func (n *Node) Find(pred func(*Node) bool) *Node {
	if pred(n) {
		return n
	}
	for _, c := range n.Children {
		if m := c.Find(pred); m != nil {
			return m
		}
	}
	for _, a := range n.Args {
		for _, c := range a.Children {
			if m := c.Find(pred); m != nil {
				return m
			}
		}
	}
	return nil
}

// Source reconstructs LaTeX source for a node list. The result parses back
// to an equivalent tree; whitespace inside the original is normalised only
// where the parser already discarded it.
func Source(nodes []*Node) string {
	var b strings.Builder
	for _, n := range nodes {
		writeSource(&b, n)
	}
	return b.String()
}

func writeSource(b *strings.Builder, n *Node) {
	switch n.Kind {
	case KindRoot:
		for _, c := range n.Children {
			writeSource(b, c)
		}
	case KindText, KindWhitespace:
		b.WriteString(n.Text)
	case KindParbreak:
		b.WriteString("\n\n")
	case KindComment:
		b.WriteString("%")
		b.WriteString(n.Text)
		b.WriteString("\n")
	case KindGroup:
		b.WriteString("{")
		for _, c := range n.Children {
			writeSource(b, c)
		}
		b.WriteString("}")
	case KindMacro:
		b.WriteString(`\`)
		b.WriteString(n.Name)
		if n.Star {
			b.WriteString("*")
		}
		writeArgs(b, n.Args)
	case KindEnvironment:
		b.WriteString(`\begin{` + n.Name + `}`)
		writeArgs(b, n.Args)
		for _, c := range n.Children {
			writeSource(b, c)
		}
		b.WriteString(`\end{` + n.Name + `}`)
	case KindInlineMath:
		b.WriteString("$" + n.Text + "$")
	case KindDisplayMath:
		if n.Name == "" {
			b.WriteString(`\[` + n.Text + `\]`)
		} else {
			b.WriteString(`\begin{` + n.Name + `}` + n.Text + `\end{` + n.Name + `}`)
		}
	case KindVerbatim:
		if n.Name == "verb" {
			d := verbDelimiter(n.Text)
			b.WriteString(`\verb`)
			if n.Star {
				b.WriteString("*")
			}
			b.WriteString(d + n.Text + d)
		} else {
			b.WriteString(`\begin{` + n.Name + `}`)
			writeArgs(b, n.Args)
			b.WriteString(n.Text + `\end{` + n.Name + `}`)
		}
	}
}

func writeArgs(b *strings.Builder, args []*Arg) {
	for _, a := range args {
		if !a.Present() {
			continue
		}
		if a.Open == "" {
			// undelimited token: keep it apart from the macro name
			b.WriteString(" ")
		}
		b.WriteString(a.Open)
		for _, c := range a.Children {
			writeSource(b, c)
		}
		b.WriteString(a.Close)
	}
}

func verbDelimiter(text string) string {
	for _, d := range []string{"|", "!", "+", "/", "#", "@"} {
		if !strings.Contains(text, d) {
			return d
		}
	}
	return "|"
}
