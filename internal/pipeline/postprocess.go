package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrMarkup indicates serialized markup could not be parsed or rendered.
var ErrMarkup = errors.New("invalid markup")

// Selectors for the post-processing passes.
const (
	mathSelector      = ".display-math, .inline-math"
	labelSelector     = ".macro-label"
	referenceSelector = ".macro-ref, .macro-eqref"
	braceSelector     = ".macro-label, .macro-HTMLclassTitle, .macro-newthought"
)

// The post-processor is a chain of stages. Each stage owns its own copy of
// the tree and can only produce the next stage, so the pass order is fixed
// by the types:
//
//	Markup -> MathRendered -> LabelsAnchored -> ReferencesLinked -> Body

// Markup is parsed renderer output, before any pass ran.
type Markup struct {
	doc *goquery.Document
}

// MathRendered holds markup whose math regions contain typeset output.
type MathRendered struct {
	doc *goquery.Document
}

// LabelsAnchored holds markup whose label macros carry element ids.
type LabelsAnchored struct {
	doc    *goquery.Document
	labels []string
}

// ReferencesLinked holds markup whose reference macros are links.
type ReferencesLinked struct {
	doc    *goquery.Document
	labels []string
	refs   []string
}

// Body is the final body fragment, ready for the page shell.
type Body struct {
	doc    *goquery.Document
	labels []string
	refs   []string
}

// ParseMarkup parses a serialized body fragment.
func ParseMarkup(fragment string) (*Markup, error) {
	body := &nethtml.Node{Type: nethtml.ElementNode, DataAtom: atom.Body, Data: "body"}
	nodes, err := nethtml.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarkup, err)
	}
	root := &nethtml.Node{Type: nethtml.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return &Markup{doc: goquery.NewDocumentFromNode(root)}, nil
}

// clone returns an independent copy of doc.
func clone(doc *goquery.Document) *goquery.Document {
	return goquery.NewDocumentFromNode(doc.Selection.Clone().Get(0))
}

// ampArtifact matches the escaping leftovers found in math sources taken
// from serialized markup.
var ampArtifact = regexp.MustCompile(`amp;|&&`)

// normalizeAmpersands rewrites amp; and && to & until none remain.
func normalizeAmpersands(src string) string {
	for ampArtifact.MatchString(src) {
		src = ampArtifact.ReplaceAllString(src, "&")
	}
	return src
}

// RenderMath typesets every math region with r. Display regions use
// display mode with left-aligned equations. The first failure aborts the
// pass.
func (m *Markup) RenderMath(ctx context.Context, r MathRenderer, macros map[string]string) (*MathRendered, error) {
	doc := clone(m.doc)

	var err error
	doc.Find(mathSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if err = ctx.Err(); err != nil {
			return false
		}

		display := s.HasClass("display-math")
		opts := MathOptions{Display: display, Fleqn: display, Macros: macros}
		src := normalizeAmpersands(s.Text())

		var out string
		out, err = r.RenderMath(ctx, src, opts)
		if err != nil {
			line, _ := s.Attr("data-line")
			err = fmt.Errorf("%w: line %s: %q: %w", ErrMathRender, line, src, err)
			return false
		}
		s.SetHtml(out)
		s.RemoveAttr("data-line")
		return true
	})
	if err != nil {
		return nil, err
	}
	return &MathRendered{doc: doc}, nil
}

// delimited returns s without its first and last character.
func delimited(s string) string {
	r := []rune(s)
	if len(r) < 2 {
		return ""
	}
	return string(r[1 : len(r)-1])
}

// AnchorLabels gives every label macro the id named by its argument.
func (m *MathRendered) AnchorLabels() *LabelsAnchored {
	doc := clone(m.doc)
	var labels []string
	doc.Find(labelSelector).Each(func(_ int, s *goquery.Selection) {
		id := delimited(s.Text())
		if id == "" {
			return
		}
		s.SetAttr("id", id)
		labels = append(labels, id)
	})
	return &LabelsAnchored{doc: doc, labels: labels}
}

// refLink builds <a href="#id">ref</a>. The node is built directly rather
// than parsed, so references at the top level of a fragment work too.
func refLink(id string) *nethtml.Node {
	a := &nethtml.Node{
		Type:     nethtml.ElementNode,
		DataAtom: atom.A,
		Data:     "a",
		Attr:     []nethtml.Attribute{{Key: "href", Val: "#" + id}},
	}
	a.AppendChild(&nethtml.Node{Type: nethtml.TextNode, Data: "ref"})
	return a
}

// LinkReferences replaces every reference macro with a link to the id
// named by its argument. Targets are not checked.
func (l *LabelsAnchored) LinkReferences() *ReferencesLinked {
	doc := clone(l.doc)
	var refs []string
	doc.Find(referenceSelector).Each(func(_ int, s *goquery.Selection) {
		id := delimited(s.Text())
		refs = append(refs, id)
		s.ReplaceWithNodes(refLink(id))
	})
	return &ReferencesLinked{doc: doc, labels: l.labels, refs: refs}
}

// StripBraces removes the argument braces left in label, title and
// new-thought macros. Content is only stripped when it still starts with
// "{" and ends with "}", so no node loses more than one pair.
func (r *ReferencesLinked) StripBraces() *Body {
	doc := clone(r.doc)
	doc.Find(braceSelector).Each(func(_ int, s *goquery.Selection) {
		inner, err := s.Html()
		if err != nil {
			return
		}
		if len(inner) >= 2 && strings.HasPrefix(inner, "{") && strings.HasSuffix(inner, "}") {
			s.SetHtml(inner[1 : len(inner)-1])
		}
	})
	return &Body{doc: doc, labels: r.labels, refs: r.refs}
}

// Labels returns the declared label ids in document order.
func (b *Body) Labels() []string { return slices.Clone(b.labels) }

// Refs returns the referenced ids in document order.
func (b *Body) Refs() []string { return slices.Clone(b.refs) }

// DanglingRefs returns the sorted, distinct reference targets that no label
// declares.
func (b *Body) DanglingRefs() []string {
	var out []string
	for _, ref := range b.refs {
		if !slices.Contains(b.labels, ref) && !slices.Contains(out, ref) {
			out = append(out, ref)
		}
	}
	slices.Sort(out)
	return out
}

// HTML serializes the body fragment.
func (b *Body) HTML() (string, error) {
	var buf strings.Builder
	for c := b.doc.Get(0).FirstChild; c != nil; c = c.NextSibling {
		if err := nethtml.Render(&buf, c); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMarkup, err)
		}
	}
	return buf.String(), nil
}

func (b *Body) with(doc *goquery.Document) *Body {
	return &Body{doc: doc, labels: b.labels, refs: b.refs}
}
