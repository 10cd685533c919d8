package latex

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

// ErrInvalidSignature indicates a signature string with unknown letters.
var ErrInvalidSignature = errors.New("invalid macro signature")

// Signature describes the arguments a macro or environment consumes, as a
// sequence of xparse letters ("m", "o m", "s o m"). Spaces are ignored.
type Signature string

// ParseSignature validates spec and returns it in canonical form (letters
// separated by single spaces).
func ParseSignature(spec string) (Signature, error) {
	var letters []string
	for _, r := range spec {
		switch r {
		case ' ', '\t':
			continue
		case 'm', 'o', 's':
			letters = append(letters, string(r))
		default:
			return "", fmt.Errorf("%w: %q (unknown letter %q)", ErrInvalidSignature, spec, r)
		}
	}
	return Signature(strings.Join(letters, " ")), nil
}

// letters returns the signature letters in order.
func (s Signature) letters() []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' {
			out = append(out, s[i])
		}
	}
	return out
}

// Table maps macro and environment names (without backslash) to their
// signatures.
type Table struct {
	Macros       map[string]Signature
	Environments map[string]Signature
}

// DefaultTable returns the signatures of the standard LaTeX commands the
// renderer understands.
func DefaultTable() Table {
	t := Table{
		Macros:       make(map[string]Signature),
		Environments: make(map[string]Signature),
	}

	for _, name := range []string{"part", "chapter", "section", "subsection",
		"subsubsection", "paragraph", "subparagraph"} {
		t.Macros[name] = "s o m"
	}
	for _, name := range []string{"textbf", "textit", "textsl", "textsc",
		"texttt", "textrm", "textsf", "textup", "textmd", "emph", "underline",
		"mbox", "text", "label", "ref", "eqref", "pageref", "url", "title",
		"author", "date", "include", "input", "thanks"} {
		t.Macros[name] = "m"
	}
	t.Macros["cite"] = "o m"
	t.Macros["href"] = "m m"
	t.Macros["includegraphics"] = "o m"
	t.Macros["footnote"] = "o m"
	t.Macros["caption"] = "o m"
	t.Macros["item"] = "o"
	t.Macros["textcolor"] = "m m"
	t.Macros["hspace"] = "s m"
	t.Macros["vspace"] = "s m"
	t.Macros["documentclass"] = "o m"
	t.Macros["usepackage"] = "o m"
	t.Macros["\\"] = "s o"
	for _, accent := range []string{"'", "`", "^", "\"", "~", "=", ".", "u", "v", "H", "c", "k"} {
		t.Macros[accent] = "m"
	}

	t.Environments["tabular"] = "m"
	t.Environments["array"] = "m"
	t.Environments["minipage"] = "o m"
	for _, name := range []string{"figure", "table", "itemize", "enumerate",
		"description", "theorem", "lemma", "proposition", "corollary",
		"definition", "example", "exercise", "remark", "proof", "note"} {
		t.Environments[name] = "o"
	}
	return t
}

// WithMacros returns a copy of t with the given macro signatures added or
// replaced.
func (t Table) WithMacros(sigs map[string]Signature) Table {
	out := Table{
		Macros:       maps.Clone(t.Macros),
		Environments: maps.Clone(t.Environments),
	}
	if out.Macros == nil {
		out.Macros = make(map[string]Signature, len(sigs))
	}
	maps.Copy(out.Macros, sigs)
	return out
}

// ParseTable converts a name -> spec map (as found in configuration) into
// validated signatures.
func ParseTable(specs map[string]string) (map[string]Signature, error) {
	out := make(map[string]Signature, len(specs))
	for name, spec := range specs {
		if name == "" || strings.HasPrefix(name, `\`) {
			return nil, fmt.Errorf("%w: macro name %q must not be empty or start with a backslash", ErrInvalidSignature, name)
		}
		sig, err := ParseSignature(spec)
		if err != nil {
			return nil, fmt.Errorf("macro %q: %w", name, err)
		}
		out[name] = sig
	}
	return out, nil
}

// mathEnvironments are kept as raw display math.
var mathEnvironments = map[string]bool{
	"equation": true, "equation*": true,
	"align": true, "align*": true,
	"alignat": true, "alignat*": true,
	"flalign": true, "flalign*": true,
	"gather": true, "gather*": true,
	"multline": true, "multline*": true,
	"eqnarray": true, "eqnarray*": true,
	"displaymath": true,
}

// verbatimEnvironments are kept as raw code.
var verbatimEnvironments = map[string]bool{
	"verbatim":   true,
	"verbatim*":  true,
	"lstlisting": true,
	"minted":     true,
}

// IsMathEnvironment reports whether name is typeset as display math.
func IsMathEnvironment(name string) bool {
	return mathEnvironments[name]
}
