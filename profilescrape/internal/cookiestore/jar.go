// Package cookiestore persists the session cookie jar between scrape calls.
//
// Two backends share the Store contract: FileStore writes a JSON array to a
// single file (the historical cookies.json format) and SQLiteStore keeps the
// same JSON payload in a row. Load never fails on a missing or corrupt jar;
// it returns an empty one. Save replaces the whole jar atomically.
package cookiestore

import (
	"context"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/hazyhaar/linkscrape/profilescrape/internal/browser"
)

// Store loads and saves one cookie jar.
type Store interface {
	// Load returns the persisted jar, or an empty jar when nothing usable is
	// stored. Only context errors are returned.
	Load(ctx context.Context) (Jar, error)
	// Save overwrites the persisted jar. Failures carry fault.ErrIO.
	Save(ctx context.Context, jar Jar) error
}

// Jar is an ordered cookie set, unique by (name, domain, path).
type Jar []browser.Cookie

// Empty reports whether the jar holds no cookie.
func (j Jar) Empty() bool { return len(j) == 0 }

// Dedupe returns the jar with later duplicates of (name, domain, path)
// replacing earlier ones in place.
func (j Jar) Dedupe() Jar {
	type key struct{ name, domain, path string }
	idx := make(map[key]int, len(j))
	out := make(Jar, 0, len(j))
	for _, c := range j {
		k := key{c.Name, strings.ToLower(c.Domain), c.Path}
		if i, ok := idx[k]; ok {
			out[i] = c
			continue
		}
		idx[k] = len(out)
		out = append(out, c)
	}
	return out
}

// Live drops cookies expired at now.
func (j Jar) Live(now time.Time) Jar {
	out := make(Jar, 0, len(j))
	for _, c := range j {
		if !c.Expired(now) {
			out = append(out, c)
		}
	}
	return out
}

// ForDomain keeps cookies whose registrable domain equals the registrable
// domain of host ("www.linkedin.com" and ".linkedin.com" both match
// "linkedin.com").
func (j Jar) ForDomain(host string) Jar {
	want := registrable(host)
	if want == "" {
		return j
	}
	out := make(Jar, 0, len(j))
	for _, c := range j {
		if registrable(c.Domain) == want {
			out = append(out, c)
		}
	}
	return out
}

func registrable(host string) string {
	host = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(host), "."))
	if host == "" {
		return ""
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}
