package pipeline

// Notes:
// - Compose runs against the embedded page template so template and data
//   stay in sync
// - The pretty printer's exact indentation is not asserted; only the text
//   of inline content and the preservation of <pre> blocks are

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"

	"github.com/alnah/go-texbook/internal/assets"
)

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	tmpl, err := assets.Template(assets.PageTemplate)
	if err != nil {
		t.Fatalf("LoadTemplate() unexpected error: %v", err)
	}
	c, err := NewComposer(tmpl)
	if err != nil {
		t.Fatalf("NewComposer() unexpected error: %v", err)
	}
	return c
}

// ---------------------------------------------------------------------------
// TestCompose - Page shell
// ---------------------------------------------------------------------------

func TestCompose(t *testing.T) {
	t.Parallel()

	data := PageData{
		Lang:        "es",
		Title:       "Notas",
		Stylesheets: []string{"output/css/base.css", "output/katex/katex.min.css"},
		Header: PageHeader{
			Title:    "Matemáticas",
			Subtitle: "Notas para una licenciatura",
			Author:   "José Julián Villalba Vásquez",
		},
		Body: template.HTML(`<h3>Intro</h3><p>Hola</p>`),
	}

	got, err := newTestComposer(t).Compose(context.Background(), data)
	if err != nil {
		t.Fatalf("Compose() unexpected error: %v", err)
	}

	for _, want := range []string{
		"<!DOCTYPE html>",
		`<html lang="es">`,
		`<meta charset="UTF-8">`,
		`<meta name="viewport" content="width=device-width, initial-scale=1.0">`,
		`<link type="text/css" rel="stylesheet" href="output/css/base.css">`,
		`<link type="text/css" rel="stylesheet" href="output/katex/katex.min.css">`,
		"<title>Notas</title>",
		"<h1>Matemáticas</h1>",
		"<h3>Notas para una licenciatura</h3>",
		"<h2>José Julián Villalba Vásquez</h2>",
		"<main>",
		"Intro",
		"Hola",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("page should contain %q\ngot:\n%s", want, got)
		}
	}
	if strings.Contains(got, `class="description"`) {
		t.Error("empty description should not render its block")
	}
	if strings.Contains(got, "<style>") {
		t.Error("empty inline CSS should not render a style element")
	}
}

func TestCompose_EscapesHeader(t *testing.T) {
	t.Parallel()

	data := PageData{
		Title:  "<script>x</script>",
		Header: PageHeader{Author: "A & B", Description: template.HTML("<p>hecho</p>")},
	}
	got, err := newTestComposer(t).Compose(context.Background(), data)
	if err != nil {
		t.Fatalf("Compose() unexpected error: %v", err)
	}
	if strings.Contains(got, "<script>x</script>") {
		t.Error("title must be escaped")
	}
	if !strings.Contains(got, "A &amp; B") {
		t.Error("author must be escaped")
	}
	if !strings.Contains(got, "<p>hecho</p>") {
		t.Error("description is trusted markup")
	}
}

func TestCompose_Deterministic(t *testing.T) {
	t.Parallel()

	c := newTestComposer(t)
	data := PageData{Lang: "es", Title: "Notas", Body: template.HTML(`<ul><li>a</li><li>b</li></ul>`)}

	first, err := c.Compose(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Compose(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("composing the same data twice should give identical pages")
	}
}

func TestCompose_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestComposer(t).Compose(ctx, PageData{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Compose() error = %v, want context.Canceled", err)
	}
}

func TestNewComposer_InvalidTemplate(t *testing.T) {
	t.Parallel()

	if _, err := NewComposer("{{.Body"); !errors.Is(err, ErrCompose) {
		t.Errorf("NewComposer() error = %v, want ErrCompose", err)
	}
}

// ---------------------------------------------------------------------------
// TestPrettyPrint - Preformatted blocks
// ---------------------------------------------------------------------------

func TestPrettyPrint_KeepsPreformatted(t *testing.T) {
	t.Parallel()

	pre := "<pre class=\"verbatim\"><code>func main() {\n\tfmt.Println(1)\n}\n</code></pre>"
	got := PrettyPrint("<div><p>a</p>" + pre + "<p>b</p></div>")

	if !strings.Contains(got, pre) {
		t.Errorf("preformatted block altered:\n%s", got)
	}
	if strings.ContainsAny(got, keepStart+keepEnd) {
		t.Errorf("placeholder left in output:\n%s", got)
	}
	if !strings.Contains(got, "\n") {
		t.Errorf("output should be indented over several lines:\n%s", got)
	}
}

// TestPrettyPrint_KeepsText checks that indentation only lands between
// blocks: the text of every paragraph, heading, list item and math span
// reads the same before and after.
func TestPrettyPrint_KeepsText(t *testing.T) {
	t.Parallel()

	katex := `<span class="inline-math"><span class="katex"><span class="mord">x</span><span class="mord">y</span></span></span>`
	tests := []struct {
		name     string
		fragment string
	}{
		{"paragraph with link and math", `<p>Ver <a href="#x">ref</a>. Sea ` + katex + `, fin.</p>`},
		{"nested blocks", `<div class="theorem"><h3>Uno<span class="macro macro-label" id="a">a</span></h3><p>Sea ` + katex + `.</p></div>`},
		{"list", `<ul><li>uno <em>dos</em></li><li><p>tres</p><ul><li>cuatro</li></ul></li></ul>`},
		{"table", `<table><tbody><tr><td>a <b>b</b></td><td>c</td></tr></tbody></table>`},
		{"top-level text", `texto <a href="#a">ref</a> suelto`},
	}
	selectors := "p, h1, h2, h3, h4, h5, h6, li, td, .katex"
	// elements holding blocks gain whitespace between them; compare leaves
	leaves := func(doc *goquery.Document) []string {
		return doc.Find(selectors).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find("p, div, ul, ol, table, pre, h1, h2, h3, h4, h5, h6").Length() == 0
		}).Map(func(_ int, s *goquery.Selection) string { return s.Text() })
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := PrettyPrint(tt.fragment)

			before, err := goquery.NewDocumentFromReader(strings.NewReader(tt.fragment))
			if err != nil {
				t.Fatal(err)
			}
			after, err := goquery.NewDocumentFromReader(strings.NewReader(got))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(leaves(before), leaves(after)); diff != "" {
				t.Errorf("text changed (-want +got):\n%s\noutput:\n%s", diff, got)
			}
			if strings.TrimSpace(before.Text()) == "" {
				t.Fatal("fragment without text")
			}
			if tt.name == "top-level text" && got != tt.fragment {
				t.Errorf("fragment with top-level text should be returned as is, got %q", got)
			}
		})
	}
}

func TestPrettyPrint_KeepsInlineParagraph(t *testing.T) {
	t.Parallel()

	p := `<p>Ver <a href="#x">ref</a>. Sea <span class="inline-math"><span class="katex"><span class="mord">x</span><span class="mord">y</span></span></span>, fin.</p>`

	if got := strings.TrimSpace(PrettyPrint(p)); got != p {
		t.Errorf("PrettyPrint() = %q, want the paragraph unchanged", got)
	}
}

// ---------------------------------------------------------------------------
// TestMarkdownRenderer - Header description
// ---------------------------------------------------------------------------

func TestMarkdownRenderer(t *testing.T) {
	t.Parallel()

	got, err := NewMarkdownRenderer().Render(context.Background(), "Apuntes de **álgebra** y [análisis](https://example.com).")
	if err != nil {
		t.Fatalf("Render() unexpected error: %v", err)
	}
	for _, want := range []string{"<strong>álgebra</strong>", `<a href="https://example.com">análisis</a>`} {
		if !strings.Contains(got, want) {
			t.Errorf("output should contain %q, got %s", want, got)
		}
	}
}

func TestMarkdownRenderer_RawHTMLOmitted(t *testing.T) {
	t.Parallel()

	got, err := NewMarkdownRenderer().Render(context.Background(), "<script>alert(1)</script>")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("raw HTML should be omitted, got %s", got)
	}
}

func TestMarkdownRenderer_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMarkdownRenderer().Render(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("Render() error = %v, want context.Canceled", err)
	}
}
