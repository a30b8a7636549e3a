// Package authn drives the login form and harvests the resulting session
// cookies into the cookie store.
//
// The Authenticator never judges whether the login worked. It submits the
// form, waits for things to settle, and saves whatever cookies the browsing
// context then holds for the authentication domain. Deciding whether the
// session is usable is the session guard's job.
package authn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/linkscrape/profilescrape/internal/browser"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/cookiestore"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/fault"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/navigator"
)

// Credentials are the login identifier and secret.
type Credentials struct {
	Identifier string
	Secret     string
}

// Present reports whether both values are set.
func (c Credentials) Present() bool {
	return strings.TrimSpace(c.Identifier) != "" && c.Secret != ""
}

// String never reveals the secret.
func (c Credentials) String() string {
	return "Credentials{" + redact(c.Identifier) + ", ****}"
}

// LogValue keeps credentials out of structured logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("identifier", redact(c.Identifier)),
		slog.Bool("secret_set", c.Secret != ""),
	)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	return string(r[0]) + "***"
}

// Config drives the login form.
type Config struct {
	LoginURL              string        // default https://www.linkedin.com/login
	IdentifierSelector    string        // default #username
	SecretSelector        string        // default #password
	SubmitSelector        string        // default button[type="submit"]
	FormTimeout           time.Duration // default 15s
	KeyDelay              time.Duration // default 50ms, negative disables
	SettleTimeout         time.Duration // default 60s
	SettleSelector        string        // default #global-nav
	SettleSelectorTimeout time.Duration // default 15s
	// MinInterval spaces consecutive logins. Zero disables throttling.
	MinInterval time.Duration
}

// DefaultLoginURL is the login page of the professional network.
const DefaultLoginURL = "https://www.linkedin.com/login"

// DefaultSettleSelector is the top navigation bar shown once logged in.
const DefaultSettleSelector = "#global-nav"

func (c *Config) defaults() {
	if c.LoginURL == "" {
		c.LoginURL = DefaultLoginURL
	}
	if c.IdentifierSelector == "" {
		c.IdentifierSelector = "#username"
	}
	if c.SecretSelector == "" {
		c.SecretSelector = "#password"
	}
	if c.SubmitSelector == "" {
		c.SubmitSelector = `button[type="submit"]`
	}
	if c.FormTimeout <= 0 {
		c.FormTimeout = 15 * time.Second
	}
	if c.KeyDelay == 0 {
		c.KeyDelay = 50 * time.Millisecond
	} else if c.KeyDelay < 0 {
		c.KeyDelay = 0
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = 60 * time.Second
	}
	if c.SettleSelector == "" {
		c.SettleSelector = DefaultSettleSelector
	}
	if c.SettleSelectorTimeout <= 0 {
		c.SettleSelectorTimeout = 15 * time.Second
	}
}

// Authenticator logs in through the browser.
type Authenticator struct {
	cfg     Config
	creds   Credentials
	nav     *navigator.Navigator
	store   cookiestore.Store
	limiter *rate.Limiter
	domain  string
	logger  *slog.Logger
}

// New creates an Authenticator.
func New(cfg Config, creds Credentials, nav *navigator.Navigator, store cookiestore.Store, logger *slog.Logger) *Authenticator {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	a := &Authenticator{cfg: cfg, creds: creds, nav: nav, store: store, logger: logger}
	if u, err := url.Parse(cfg.LoginURL); err == nil {
		a.domain = u.Hostname()
	}
	if cfg.MinInterval > 0 {
		a.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return a
}

// LoginURL returns the configured login page.
func (a *Authenticator) LoginURL() string { return a.cfg.LoginURL }

// Authenticate submits the login form on page and persists the harvested
// jar. It returns the page handle to keep using (the navigator may have
// replaced it) and the saved jar.
func (a *Authenticator) Authenticate(ctx context.Context, bc browser.Context, page browser.Page) (browser.Page, cookiestore.Jar, error) {
	const op = "authn.authenticate"
	if !a.creds.Present() {
		return page, nil, fault.New(fault.ErrMissingCredentials, op, nil)
	}
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return page, nil, fmt.Errorf("%s: throttle: %w", op, err)
		}
	}

	a.logger.Info("authn: logging in", "login_url", a.cfg.LoginURL, "credentials", a.creds)

	page, _, err := a.nav.Goto(ctx, bc, page, a.cfg.LoginURL)
	if err != nil {
		return page, nil, err
	}

	if err := a.waitForm(ctx, page); err != nil {
		return page, nil, err
	}

	if err := page.Type(ctx, a.cfg.IdentifierSelector, a.creds.Identifier, a.cfg.KeyDelay); err != nil {
		return page, nil, fault.New(fault.ErrFormNotFound, op, err)
	}
	if err := page.Type(ctx, a.cfg.SecretSelector, a.creds.Secret, a.cfg.KeyDelay); err != nil {
		return page, nil, fault.New(fault.ErrFormNotFound, op, err)
	}

	a.submit(ctx, page)
	a.settle(ctx, page)
	if err := ctx.Err(); err != nil {
		return page, nil, fmt.Errorf("%s: %w", op, err)
	}

	raw, err := bc.Cookies(ctx)
	if err != nil {
		return page, nil, fmt.Errorf("%s: harvest cookies: %w", op, err)
	}
	jar := cookiestore.Jar(raw).ForDomain(a.domain).Dedupe()

	if err := a.store.Save(ctx, jar); err != nil {
		return page, nil, err
	}
	a.logger.Info("authn: cookies saved", "cookies", len(jar))
	return page, jar, nil
}

func (a *Authenticator) waitForm(ctx context.Context, page browser.Page) error {
	fctx, cancel := context.WithTimeout(ctx, a.cfg.FormTimeout)
	defer cancel()
	if err := page.WaitElement(fctx, a.cfg.IdentifierSelector); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("authn.authenticate: %w", ctx.Err())
		}
		return fault.New(fault.ErrFormNotFound, "authn.authenticate", err)
	}
	return nil
}

// submit clicks the submit control and waits for the resulting navigation.
// A navigation that never fires is tolerated: some logins complete
// client-side.
func (a *Authenticator) submit(ctx context.Context, page browser.Page) {
	sctx, cancel := context.WithTimeout(ctx, a.cfg.SettleTimeout)
	defer cancel()

	wait := page.ExpectNavigation(sctx)
	if err := page.Click(sctx, a.cfg.SubmitSelector); err != nil {
		a.logger.Warn("authn: submit click failed", "selector", a.cfg.SubmitSelector, "error", err)
		return
	}
	if err := wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		a.logger.Debug("authn: navigation wait ended", "error", err)
	} else if err != nil {
		a.logger.Info("authn: no navigation after submit, continuing")
	}
}

func (a *Authenticator) settle(ctx context.Context, page browser.Page) {
	sctx, cancel := context.WithTimeout(ctx, a.cfg.SettleSelectorTimeout)
	defer cancel()
	if err := page.WaitElement(sctx, a.cfg.SettleSelector); err != nil {
		a.logger.Debug("authn: settle selector not seen", "selector", a.cfg.SettleSelector)
	}
}
