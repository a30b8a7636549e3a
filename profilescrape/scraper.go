// Package profilescrape scrapes public-facing profile pages of a professional
// network behind its login wall.
//
// A Scraper opens one isolated browsing context per call, makes sure the
// context carries a valid session (reusing the persisted cookie jar, logging
// in when the site challenges it), then reads a Record from the rendered page.
//
// Usage:
//
//	mgr := profilescrape.NewBrowser(cfg.Browser, logger)
//	defer mgr.Close()
//	s, err := profilescrape.New(cfg, mgr, logger)
//	rec, err := s.Scrape(ctx, "https://www.linkedin.com/in/jane-doe/")
package profilescrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hazyhaar/linkscrape/horosafe"
	"github.com/hazyhaar/linkscrape/idgen"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/authn"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/browser"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/cookiestore"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/extract"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/fault"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/navigator"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/session"
)

// Scraper runs scrape calls. It is safe for concurrent use.
type Scraper struct {
	cfg       Config
	opener    browser.Opener
	store     cookiestore.Store
	ownStore  func() error
	guard     *session.Guard
	extractor *extract.Extractor
	sem       *semaphore.Weighted
	newID     idgen.Generator
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithClock sets the time source used for cookie expiry and capture stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.now = now }
}

// WithIDGenerator sets the generator for scrape IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Scraper) { s.newID = gen }
}

// WithStore replaces the cookie store built from cfg.Cookies.
func WithStore(store CookieStore) Option {
	return func(s *Scraper) { s.store = store }
}

// NewBrowser creates the Chromium manager. Chromium launches lazily on the
// first Open unless Start is called.
func NewBrowser(cfg BrowserConfig, logger *slog.Logger) *BrowserManager {
	bc := cfg.manager()
	bc.Logger = logger
	return browser.NewManager(bc)
}

// OpenStore builds the cookie store cfg selects. The returned close func
// releases the backing database, if any.
func OpenStore(cfg CookieConfig, logger *slog.Logger) (CookieStore, func() error, error) {
	switch cfg.Backend {
	case "sqlite":
		st, err := cookiestore.OpenSQLiteStore(cfg.Path, cfg.JarName, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "", "file":
		return cookiestore.NewFileStore(cfg.Path, logger), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("profilescrape: unknown cookie backend %q", cfg.Backend)
	}
}

// New wires a Scraper. opener provides browsing contexts, normally a
// BrowserManager.
func New(cfg Config, opener Opener, logger *slog.Logger, opts ...Option) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scraper{
		cfg:    cfg,
		opener: opener,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		newID:  idgen.Prefixed("scr_", idgen.Default),
		now:    time.Now,
		logger: logger,
	}
	for _, o := range opts {
		o(s)
	}

	specs, err := cfg.Extract.fields()
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		st, closeFn, err := OpenStore(cfg.Cookies, logger)
		if err != nil {
			return nil, err
		}
		s.store, s.ownStore = st, closeFn
	}

	nav := navigator.New(cfg.Navigation.navigator(), logger)
	auth := authn.New(cfg.Login.authn(), cfg.Credentials, nav, s.store, logger)
	s.guard = session.NewGuard(cfg.Session.guard(), s.store, auth, nav, logger, session.WithClock(s.now))
	s.extractor = extract.New(cfg.Extract.extractor(), specs, logger, extract.WithClock(s.now))
	return s, nil
}

// Close releases the cookie store when New opened it.
func (s *Scraper) Close() error {
	if s.ownStore != nil {
		return s.ownStore()
	}
	return nil
}

// Scrape returns the profile at targetURL. The browsing context opened for
// the call is released on every path, including cancellation.
func (s *Scraper) Scrape(ctx context.Context, targetURL string) (*Record, error) {
	const op = "profilescrape.scrape"

	target := strings.TrimSpace(targetURL)
	if err := s.checkTarget(ctx, target); err != nil {
		return nil, err
	}

	// The call timeout covers the wait for a slot too.
	if s.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("profilescrape: scrape: wait for slot: %w", err)
	}
	defer s.sem.Release(1)

	id := s.newID()
	log := s.logger.With("scrape_id", id, "url", target)
	start := time.Now()
	log.Info("profilescrape: scrape started")

	bc, err := s.opener.Open(ctx)
	if err != nil {
		return nil, fault.New(fault.ErrNavigation, op, fmt.Errorf("open context: %w", err))
	}
	defer func() {
		if err := bc.Close(); err != nil {
			log.Warn("profilescrape: release context", "error", err)
		}
	}()

	page, err := bc.NewPage(ctx)
	if err != nil {
		return nil, fault.New(fault.ErrNavigation, op, fmt.Errorf("new page: %w", err))
	}
	defer func() {
		if page != nil {
			page.Close()
		}
	}()

	page, state, err := s.guard.Ensure(ctx, bc, page, target, false)
	if err != nil {
		log.Warn("profilescrape: session", "error", err, "duration", time.Since(start))
		return nil, err
	}
	rec, err := s.extract(ctx, page)
	if err != nil {
		return nil, err
	}

	if marker := s.nameMarker(rec.FullName()); marker != "" {
		log.Warn("profilescrape: placeholder name, re-authenticating", "marker", marker)
		page, state, err = s.guard.Ensure(ctx, bc, page, target, true)
		if err != nil {
			return nil, err
		}
		if rec, err = s.extract(ctx, page); err != nil {
			return nil, err
		}
	}

	log.Info("profilescrape: scrape done",
		"state", state,
		"empty_fields", emptyFields(rec),
		"duration", time.Since(start),
	)
	return &rec, nil
}

// checkTarget validates the URL before any browser work.
func (s *Scraper) checkTarget(ctx context.Context, target string) error {
	const op = "profilescrape.scrape"
	if target == "" {
		return fault.New(fault.ErrInvalidTarget, op, errors.New("empty url"))
	}
	u, err := horosafe.CheckScheme(target)
	if err != nil {
		return fault.New(fault.ErrInvalidTarget, op, err)
	}
	if !horosafe.HostAllowed(u.Hostname(), s.cfg.AllowedHosts) {
		return fault.New(fault.ErrInvalidTarget, op, fmt.Errorf("%w: %s", horosafe.ErrHostNotAllowed, u.Hostname()))
	}
	if s.cfg.BlockPrivate {
		if err := horosafe.ValidateURL(ctx, target); err != nil {
			return fault.New(fault.ErrInvalidTarget, op, err)
		}
	}
	return nil
}

func (s *Scraper) extract(ctx context.Context, page browser.Page) (Record, error) {
	rec, err := s.extractor.Extract(ctx, page)
	if err != nil {
		return Record{}, fault.New(fault.ErrNavigation, "profilescrape.extract", err)
	}
	return rec, nil
}

// nameMarker returns the first configured marker found in name as a whole word.
func (s *Scraper) nameMarker(name string) string {
	return session.MatchMarker(name, s.cfg.Session.NameMarkers)
}

func emptyFields(r Record) int {
	n := 0
	for _, v := range []string{r.FirstName, r.LastName, r.PhotoURL, r.JobTitle, r.Company} {
		if v == "" {
			n++
		}
	}
	return n
}
