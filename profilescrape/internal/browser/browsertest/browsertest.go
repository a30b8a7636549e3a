// Package browsertest provides an in-memory browser.Opener for engine tests.
//
// A Site serves fixed HTML per URL, redirects protected routes to its login
// URL when the browsing context lacks the session cookie, runs a Login hook
// when the login form is submitted, and counts every context, page and
// navigation so tests can assert on resource release and call counts.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/linkscrape/profilescrape/internal/browser"
)

// LoginFormHTML is a minimal login page matching the default form selectors.
const LoginFormHTML = `<html><head><title>LinkedIn Login, Sign in | LinkedIn</title></head><body>
<form><input id="username" name="session_key"><input id="password" type="password" name="session_password">
<button type="submit">Sign in</button></form></body></html>`

// ErrDetached is returned by every call on a page whose tab went away.
var ErrDetached = errors.New("browsertest: page detached")

// Route is one page served by the Site.
type Route struct {
	Title string
	HTML  string
	// RequireCookie sends the visitor to Site.LoginURL unless the context
	// holds a live cookie of that name.
	RequireCookie string
}

// Site is a fake web site plus the browser that visits it.
type Site struct {
	LoginURL string
	Routes   map[string]Route

	// Login runs when the login form is submitted. It receives the typed
	// values keyed by selector and returns the cookies to set and the URL
	// to land on (empty stays on the login page without navigating).
	Login func(form map[string]string) (cookies []browser.Cookie, next string)

	// FailNavigate injects navigation errors. n counts navigations to url so
	// far, starting at 1.
	FailNavigate func(url string, n int) error
	// DetachOnFailure makes a failed navigation detach the page.
	DetachOnFailure bool

	// ScrollSteps is how many ScrollBy calls reach the bottom. Default 1.
	ScrollSteps int

	// OpenErr fails every Open.
	OpenErr error

	mu           sync.Mutex
	opened       int
	openCtx      int
	openPages    int
	pagesCreated int
	navs         map[string]int
	navOrder     []string
	logins       int
	cookieSets   int
}

// Open implements browser.Opener.
func (s *Site) Open(ctx context.Context) (browser.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	s.mu.Lock()
	s.opened++
	s.openCtx++
	s.mu.Unlock()
	return &Context{site: s}, nil
}

// ContextsOpened is the total number of contexts handed out.
func (s *Site) ContextsOpened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// OpenContexts is the number of contexts not yet closed.
func (s *Site) OpenContexts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openCtx
}

// OpenPages is the number of pages not yet closed (directly or through
// their context).
func (s *Site) OpenPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openPages
}

// PagesCreated is the total number of pages created.
func (s *Site) PagesCreated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagesCreated
}

// Navigations returns how many times url was requested.
func (s *Site) Navigations(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navs[url]
}

// NavigationLog returns every requested URL in order.
func (s *Site) NavigationLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navOrder...)
}

// Logins is the number of login form submissions.
func (s *Site) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// CookieSets is the number of SetCookies calls with a non-empty jar.
func (s *Site) CookieSets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cookieSets
}

func (s *Site) route(url string) Route {
	if r, ok := s.Routes[url]; ok {
		return r
	}
	if s.LoginURL != "" && url == s.LoginURL {
		return Route{Title: "LinkedIn Login, Sign in | LinkedIn", HTML: LoginFormHTML}
	}
	return Route{Title: "Page not found", HTML: "<html><body></body></html>"}
}

func (s *Site) recordNav(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.navs == nil {
		s.navs = make(map[string]int)
	}
	s.navs[url]++
	s.navOrder = append(s.navOrder, url)
	return s.navs[url]
}

// Context is a fake browsing context.
type Context struct {
	site    *Site
	mu      sync.Mutex
	cookies []browser.Cookie
	pages   []*Page
	closed  bool
}

func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("browsertest: context closed")
	}
	p := &Page{ctx: c, url: "about:blank"}
	c.pages = append(c.pages, p)
	c.site.mu.Lock()
	c.site.openPages++
	c.site.pagesCreated++
	c.site.mu.Unlock()
	return p, nil
}

func (c *Context) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]browser.Cookie(nil), c.cookies...), nil
}

func (c *Context) SetCookies(ctx context.Context, cookies []browser.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	c.mu.Lock()
	c.cookies = mergeCookies(c.cookies, cookies)
	c.mu.Unlock()
	c.site.mu.Lock()
	c.site.cookieSets++
	c.site.mu.Unlock()
	return nil
}

func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pages := c.pages
	c.mu.Unlock()

	for _, p := range pages {
		p.Close()
	}
	c.site.mu.Lock()
	c.site.openCtx--
	c.site.mu.Unlock()
	return nil
}

func (c *Context) hasLiveCookie(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for _, ck := range c.cookies {
		if ck.Name == name && !ck.Expired(now) {
			return true
		}
	}
	return false
}

func mergeCookies(dst, src []browser.Cookie) []browser.Cookie {
	for _, c := range src {
		replaced := false
		for i := range dst {
			if dst[i].Name == c.Name && dst[i].Domain == c.Domain && dst[i].Path == c.Path {
				dst[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			dst = append(dst, c)
		}
	}
	return dst
}

// Page is a fake tab.
type Page struct {
	ctx      *Context
	mu       sync.Mutex
	url      string
	route    Route
	form     map[string]string
	navCount int
	scrolls  int
	detached bool
	closed   bool
}

func (p *Page) usable() error {
	if p.closed || p.detached {
		return ErrDetached
	}
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(); err != nil {
		return err
	}

	site := p.ctx.site
	n := site.recordNav(url)
	if site.FailNavigate != nil {
		if err := site.FailNavigate(url, n); err != nil {
			if site.DetachOnFailure {
				p.detached = true
			}
			return err
		}
	}
	p.loadLocked(url)
	return nil
}

func (p *Page) loadLocked(url string) {
	site := p.ctx.site
	r := site.route(url)
	if r.RequireCookie != "" && site.LoginURL != "" && !p.ctx.hasLiveCookie(r.RequireCookie) {
		url = site.LoginURL + "?session_redirect=" + url
		r = site.route(site.LoginURL)
	}
	p.url, p.route = url, r
	p.form = nil
	p.scrolls = 0
	p.navCount++
}

func (p *Page) Info(ctx context.Context) (browser.PageInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(); err != nil {
		return browser.PageInfo{}, err
	}
	return browser.PageInfo{URL: p.url, Title: p.route.Title}, nil
}

func (p *Page) doc() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(p.route.HTML))
}

func (p *Page) WaitElement(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.findLocked(selector)
}

func (p *Page) findLocked(selector string) error {
	if err := p.usable(); err != nil {
		return err
	}
	doc, err := p.doc()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("browsertest: %s not found on %s", selector, p.url)
	}
	return nil
}

func (p *Page) Type(ctx context.Context, selector, text string, keyDelay time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.findLocked(selector); err != nil {
		return err
	}
	if p.form == nil {
		p.form = make(map[string]string)
	}
	p.form[selector] += text
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.findLocked(selector); err != nil {
		return err
	}
	site := p.ctx.site
	if site.Login == nil || !strings.HasPrefix(p.url, site.LoginURL) {
		return nil
	}

	site.mu.Lock()
	site.logins++
	site.mu.Unlock()

	cookies, next := site.Login(p.form)
	if len(cookies) > 0 {
		p.ctx.mu.Lock()
		p.ctx.cookies = mergeCookies(p.ctx.cookies, cookies)
		p.ctx.mu.Unlock()
	}
	if next != "" {
		site.recordNav(next)
		p.loadLocked(next)
	}
	return nil
}

func (p *Page) ExpectNavigation(ctx context.Context) func() error {
	p.mu.Lock()
	armed := p.navCount
	p.mu.Unlock()
	return func() error {
		p.mu.Lock()
		moved := p.navCount > armed
		p.mu.Unlock()
		if moved {
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	}
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(); err != nil {
		return "", err
	}
	return p.route.HTML, nil
}

func (p *Page) ScrollBy(ctx context.Context, dy int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(); err != nil {
		return false, err
	}
	steps := p.ctx.site.ScrollSteps
	if steps <= 0 {
		steps = 1
	}
	p.scrolls++
	return p.scrolls >= steps, nil
}

// Detach simulates the tab going away underneath the engine.
func (p *Page) Detach() {
	p.mu.Lock()
	p.detached = true
	p.mu.Unlock()
}

func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	site := p.ctx.site
	site.mu.Lock()
	site.openPages--
	site.mu.Unlock()
	return nil
}
