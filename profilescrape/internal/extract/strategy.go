package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy reads one raw value from a parsed page. An empty string means the
// strategy found nothing; strategies never fail.
type Strategy func(doc *goquery.Document, base *url.URL) string

// Normalizer turns a raw value into the field's final form. An empty result
// makes the strategy count as failed.
type Normalizer func(raw string, base *url.URL) string

// FieldSpec resolves one field through an ordered list of strategies.
type FieldSpec struct {
	Name       string
	Strategies []Strategy
	Normalize  Normalizer
}

// Resolve returns the first non-empty normalized strategy result, or "".
func (f FieldSpec) Resolve(doc *goquery.Document, base *url.URL) string {
	norm := f.Normalize
	if norm == nil {
		norm = NormalizeText
	}
	for _, s := range f.Strategies {
		if v := norm(s(doc, base), base); v != "" {
			return v
		}
	}
	return ""
}

// Text reads the text of the first element matching any of selectors,
// tried in order.
func Text(selectors ...string) Strategy {
	return func(doc *goquery.Document, _ *url.URL) string {
		for _, sel := range selectors {
			if v := strings.TrimSpace(doc.Find(sel).First().Text()); v != "" {
				return v
			}
		}
		return ""
	}
}

// DefaultImageAttrs is the attribute chain for lazily loaded images.
var DefaultImageAttrs = []string{"src", "data-delayed-url", "data-src"}

// Attr reads the first non-empty attribute of attrs from the first element
// matching any of selectors. Elements matched by a selector are visited in
// document order until one carries a value. Inline data: placeholders do
// not count as a value.
func Attr(selectors []string, attrs ...string) Strategy {
	if len(attrs) == 0 {
		attrs = DefaultImageAttrs
	}
	return func(doc *goquery.Document, _ *url.URL) string {
		for _, sel := range selectors {
			var found string
			doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				found = firstAttr(s, attrs)
				return found == ""
			})
			if found != "" {
				return found
			}
		}
		return ""
	}
}

// firstAttr skips inline data: URIs, which lazy loaders put in src as a
// placeholder until the real image URL is swapped in.
func firstAttr(s *goquery.Selection, attrs []string) string {
	for _, a := range attrs {
		v, ok := s.Attr(a)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" || isDataURI(v) {
			continue
		}
		return v
	}
	return ""
}

func isDataURI(v string) bool {
	return len(v) >= 5 && strings.EqualFold(v[:5], "data:")
}

// Block finds anchor, then visits the anchor's parent and each following
// sibling of that parent in turn. The first visited node containing a block
// element wins, and sub is read inside that block: its text, or attr when
// attr is set.
func Block(anchor, block, sub, attr string) Strategy {
	return func(doc *goquery.Document, _ *url.URL) string {
		a := doc.Find(anchor).First()
		if a.Length() == 0 {
			return ""
		}
		for node := a.Parent(); node.Length() > 0; node = node.Next() {
			entity := node.Find(block).First()
			if entity.Length() == 0 {
				continue
			}
			target := entity.Find(sub).First()
			if attr != "" {
				return firstAttr(target, []string{attr})
			}
			return strings.TrimSpace(target.Text())
		}
		return ""
	}
}
