package pipeline

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

const headingSelector = "h1, h2, h3, h4, h5, h6"

// numberingState tracks hierarchical numbering for TOC entries.
// The first heading seen sets level 1; skipped levels nest one step deeper.
type numberingState struct {
	counters     [6]int
	minLevelSeen int
	lastLevel    int
}

// next returns the number string ("1.2.") and effective depth for a
// heading of the given level.
func (n *numberingState) next(level int) (string, int) {
	if n.minLevelSeen == 0 {
		n.minLevelSeen = level
	}

	depth := max(level-n.minLevelSeen+1, 1)
	if n.lastLevel > 0 && depth > n.lastLevel+1 {
		depth = n.lastLevel + 1
	}

	for i := depth; i < len(n.counters); i++ {
		n.counters[i] = 0
	}
	n.counters[depth-1]++
	n.lastLevel = depth

	parts := make([]string, depth)
	for i := range depth {
		parts[i] = strconv.Itoa(n.counters[i])
	}
	return strings.Join(parts, ".") + ".", depth
}

// slugify turns heading text into an id: accents dropped, lowercase,
// runs of other characters collapsed to "-".
func slugify(text string) string {
	var b strings.Builder
	dash := false
	for _, r := range norm.NFD.String(text) {
		switch {
		case unicode.Is(unicode.Mn, r):
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(unicode.ToLower(r))
		default:
			dash = true
		}
	}
	if b.Len() == 0 {
		return "section"
	}
	return b.String()
}

// WithTOC gives headings without an id a slug id and prepends a numbered
// table of contents. Unnumbered headings (starred sectioning) are anchored
// but left out of the table. Bodies without headings are returned as is.
func (b *Body) WithTOC(title string) *Body {
	doc := clone(b.doc)
	headings := doc.Find(headingSelector)
	if headings.Length() == 0 {
		return b
	}

	used := map[string]int{}
	doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		used[id]++
	})

	var toc strings.Builder
	toc.WriteString(`<nav class="toc">`)
	if title != "" {
		toc.WriteString(`<h2 class="toc-title">` + html.EscapeString(title) + `</h2>`)
	}
	toc.WriteString(`<div class="toc-list">`)

	numbering := &numberingState{}
	headings.Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Clone().Find(labelSelector).Remove().End().Text())
		id, ok := s.Attr("id")
		if !ok {
			base := slugify(text)
			id = base
			for n := 2; used[id] > 0; n++ {
				id = base + "-" + strconv.Itoa(n)
			}
			used[id]++
			s.SetAttr("id", id)
		}
		if s.HasClass("unnumbered") {
			return
		}

		level := int(goquery.NodeName(s)[1] - '0')
		num, depth := numbering.next(level)
		toc.WriteString(`<div class="toc-item"`)
		if depth > 1 {
			fmt.Fprintf(&toc, ` style="padding-left:%.1fem"`, float64(depth-1)*1.5)
		}
		toc.WriteString(`><a href="#` + html.EscapeString(id) + `">` + num + ` ` + html.EscapeString(text) + `</a></div>`)
	})
	toc.WriteString(`</div></nav>`)

	nav, err := ParseMarkup(toc.String())
	if err != nil {
		return b.with(doc)
	}
	root := doc.Get(0)
	first := root.FirstChild
	for n := nav.doc.Get(0).FirstChild; n != nil; {
		next := n.NextSibling
		nav.doc.Get(0).RemoveChild(n)
		root.InsertBefore(n, first)
		n = next
	}
	return b.with(doc)
}
