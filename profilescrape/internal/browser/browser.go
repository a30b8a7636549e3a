// Package browser abstracts the controllable browser the scrape engine drives.
//
// The engine only sees three interfaces: an Opener hands out isolated
// browsing contexts, a Context owns cookies and pages, and a Page navigates,
// types, clicks and reads its DOM. Manager implements Opener on top of a
// Chromium process driven through go-rod; browsertest implements it in memory.
package browser

import (
	"context"
	"time"
)

// PageInfo is what the page reports after a navigation.
type PageInfo struct {
	URL   string
	Title string
}

// Page is one tab inside a browsing context. A Page is not safe for
// concurrent use: DOM state and navigation are sequential.
type Page interface {
	// Navigate loads url and waits for the document to be ready or ctx to end.
	Navigate(ctx context.Context, url string) error
	// Info reports the current URL and title. An error means the handle is
	// no longer usable (tab closed or detached).
	Info(ctx context.Context) (PageInfo, error)
	// WaitElement blocks until selector matches or ctx ends.
	WaitElement(ctx context.Context, selector string) error
	// Type focuses selector and types text one rune at a time, sleeping
	// keyDelay between runes.
	Type(ctx context.Context, selector, text string, keyDelay time.Duration) error
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// ExpectNavigation arms a navigation waiter. The returned func blocks
	// until a load event fires or ctx ends; it returns ctx's error in the
	// latter case.
	ExpectNavigation(ctx context.Context) func() error
	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)
	// ScrollBy scrolls the viewport by dy pixels and reports whether the
	// bottom of the document has been reached.
	ScrollBy(ctx context.Context, dy int) (bool, error)
	Close() error
}

// Context is an isolated browsing context (own cookie store, own pages).
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	// Close releases the context and every page opened in it.
	Close() error
}

// Opener hands out fresh browsing contexts.
type Opener interface {
	Open(ctx context.Context) (Context, error)
}

// Cookie is one browser cookie. JSON names follow the devtools cookie shape
// so jars written by other browser tooling load unchanged.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // seconds since epoch, <= 0 for session cookies
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	Session  bool    `json:"session,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Expired reports whether the cookie's expiry is at or before now. Session
// cookies never expire by time.
func (c Cookie) Expired(now time.Time) bool {
	if c.Session || c.Expires <= 0 {
		return false
	}
	return c.Expires <= float64(now.UnixNano())/1e9
}
