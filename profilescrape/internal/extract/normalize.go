package extract

import (
	"net/url"
	"strings"
)

// DefaultSeparator joins a role or employer with its qualifier
// ("Acme Corp · Full-time").
const DefaultSeparator = "·"

// NormalizeText collapses whitespace runs to one space and trims.
func NormalizeText(raw string, _ *url.URL) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Compound keeps the segment before the first sep, whitespace-normalized.
func Compound(sep string) Normalizer {
	if sep == "" {
		sep = DefaultSeparator
	}
	return func(raw string, base *url.URL) string {
		head, _, _ := strings.Cut(raw, sep)
		return NormalizeText(head, base)
	}
}

// NormalizeURL resolves raw against base and keeps only http(s) results.
// Inline data: images and placeholders are rejected.
func NormalizeURL(raw string, base *url.URL) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}

// SplitName splits a full name on its first whitespace run. The remainder,
// whitespace-normalized, is the last name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
