// Package session decides whether a browsing context is authenticated and
// escalates to a full login when it is not.
//
// Ensure tries stored cookies first and logs in only on evidence that they
// do not work (a challenge surface after navigation, or no live cookie at
// all). After a login it re-navigates and re-evaluates exactly once, so a
// single call never runs more than one login.
package session

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/linkscrape/profilescrape/internal/browser"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/cookiestore"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/fault"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/navigator"
)

// State is the observed authentication state of a browsing context.
type State int

const (
	Unknown State = iota
	Authenticated
	Expired
	Challenged
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	case Challenged:
		return "challenged"
	default:
		return "unknown"
	}
}

// MarshalText makes states log and encode by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Config lists what marks a challenge surface.
type Config struct {
	LoginPaths     []string // default /login, /uas/login
	ChallengePaths []string // default /checkpoint, /authwall, /signup
	TitleMarkers   []string // whole words, case-insensitive; default "sign in", "log in", "join"
}

func (c *Config) defaults() {
	if c.LoginPaths == nil {
		c.LoginPaths = []string{"/login", "/uas/login"}
	}
	if c.ChallengePaths == nil {
		c.ChallengePaths = []string{"/checkpoint", "/authwall", "/signup"}
	}
	if c.TitleMarkers == nil {
		c.TitleMarkers = []string{"sign in", "log in", "join"}
	}
}

// Authenticator is the login step the guard escalates to.
type Authenticator interface {
	Authenticate(ctx context.Context, bc browser.Context, page browser.Page) (browser.Page, cookiestore.Jar, error)
}

// Guard runs the session state machine.
type Guard struct {
	cfg    Config
	store  cookiestore.Store
	auth   Authenticator
	nav    *navigator.Navigator
	logger *slog.Logger
	now    func() time.Time

	// loginMu serializes authenticate+save across concurrent scrapes.
	loginMu sync.Mutex
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock overrides time.Now for cookie expiry checks.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// NewGuard creates a Guard.
func NewGuard(cfg Config, store cookiestore.Store, auth Authenticator, nav *navigator.Navigator, logger *slog.Logger, opts ...Option) *Guard {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guard{cfg: cfg, store: store, auth: auth, nav: nav, logger: logger, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Classify maps a post-navigation page to a state.
func (g *Guard) Classify(info browser.PageInfo) State {
	path := info.URL
	if u, err := url.Parse(info.URL); err == nil {
		path = u.Path
	}
	path = strings.ToLower(path)
	for _, p := range g.cfg.LoginPaths {
		if strings.HasPrefix(path, p) {
			return Challenged
		}
	}
	for _, p := range g.cfg.ChallengePaths {
		if strings.HasPrefix(path, p) {
			return Challenged
		}
	}
	if MatchMarker(info.Title, g.cfg.TitleMarkers) != "" {
		return Challenged
	}
	return Authenticated
}

// Ensure leaves page authenticated and positioned at target. With force it
// skips the stored cookies and logs in first. It returns the page handle to
// keep using, which may differ from the one passed in.
func (g *Guard) Ensure(ctx context.Context, bc browser.Context, page browser.Page, target string, force bool) (browser.Page, State, error) {
	stored, err := g.store.Load(ctx)
	if err != nil {
		return page, Unknown, err
	}
	live := stored.Live(g.now())

	state := Unknown
	switch {
	case force:
		g.logger.Info("session: forced re-authentication", "url", target)
	case live.Empty() && !stored.Empty():
		state = Expired
		g.logger.Info("session: stored cookies expired", "stored", len(stored))
	case live.Empty():
		g.logger.Info("session: no stored cookies")
	default:
		if err := bc.SetCookies(ctx, live); err != nil {
			return page, Unknown, err
		}
		page, state, err = g.visit(ctx, bc, page, target)
		if err != nil {
			return page, state, err
		}
		if state == Authenticated {
			return page, state, nil
		}
	}

	page, err = g.login(ctx, bc, page)
	if err != nil {
		return page, state, err
	}

	page, state, err = g.visit(ctx, bc, page, target)
	if err != nil {
		return page, state, err
	}
	if state != Authenticated {
		return page, state, fault.Newf(fault.ErrAuthenticationExhausted, "session.ensure", "still challenged after login at %s", target)
	}
	return page, state, nil
}

func (g *Guard) visit(ctx context.Context, bc browser.Context, page browser.Page, target string) (browser.Page, State, error) {
	page, out, err := g.nav.Goto(ctx, bc, page, target)
	if err != nil {
		return page, Unknown, err
	}
	state := g.Classify(browser.PageInfo{URL: out.FinalURL, Title: out.Title})
	g.logger.Info("session: evaluated", "url", target, "final_url", out.FinalURL, "state", state, "attempts", out.Attempts)
	return page, state, nil
}

func (g *Guard) login(ctx context.Context, bc browser.Context, page browser.Page) (browser.Page, error) {
	g.loginMu.Lock()
	defer g.loginMu.Unlock()

	page, jar, err := g.auth.Authenticate(ctx, bc, page)
	if err != nil {
		return page, err
	}
	// The context already holds these cookies from the login itself; setting
	// them again keeps the context consistent with what was persisted.
	if err := bc.SetCookies(ctx, jar); err != nil {
		return page, err
	}
	return page, nil
}
