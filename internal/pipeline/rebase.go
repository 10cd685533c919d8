package pipeline

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RebaseAssets prefixes relative image sources with prefix, the book
// directory as seen from the page location. Sources that would leave the
// book directory are kept as written.
//
// Does NOT rewrite:
//   - URLs, anchors and absolute paths
//   - srcset attributes
//   - CSS url() references
func (b *Body) RebaseAssets(prefix string) *Body {
	prefix = filepath.ToSlash(prefix)
	if prefix == "" || prefix == "." {
		return b
	}

	doc := clone(b.doc)
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if !isRelativePath(src) {
			return
		}
		cleaned := path.Clean(src)
		if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
			return
		}
		s.SetAttr("src", path.Join(prefix, cleaned))
	})
	return b.with(doc)
}

// isRelativePath reports whether p is a relative file path.
func isRelativePath(p string) bool {
	if p == "" {
		return false
	}

	if strings.HasPrefix(p, "http://") ||
		strings.HasPrefix(p, "https://") ||
		strings.HasPrefix(p, "file://") ||
		strings.HasPrefix(p, "data:") ||
		strings.HasPrefix(p, "//") {
		return false
	}

	if strings.HasPrefix(p, "#") {
		return false
	}

	return !filepath.IsAbs(p) && !strings.HasPrefix(p, "/")
}
