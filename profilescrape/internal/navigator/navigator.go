// Package navigator loads a URL with bounded retries, a fixed backoff and
// replacement of page handles that went away between attempts.
package navigator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/linkscrape/profilescrape/internal/browser"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/fault"
)

// Config bounds navigation.
type Config struct {
	MaxAttempts int           // default 3
	Timeout     time.Duration // per attempt, default 60s
	Backoff     time.Duration // between attempts, default 2s
}

func (c *Config) defaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Backoff < 0 {
		c.Backoff = 0
	} else if c.Backoff == 0 {
		c.Backoff = 2 * time.Second
	}
}

// Outcome describes a completed navigation.
type Outcome struct {
	FinalURL string
	Title    string
	Attempts int
}

// Navigator performs resilient navigations.
type Navigator struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Navigator. A negative Backoff disables waiting between
// attempts.
func New(cfg Config, logger *slog.Logger) *Navigator {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{cfg: cfg, logger: logger}
}

// Goto navigates page to url. It returns the page that finally loaded url,
// which differs from the page passed in when the original handle had to be
// replaced; the replaced handle is closed. On failure the returned page is
// the last usable handle (possibly nil if none could be opened) and err
// carries fault.ErrNavigation.
func (n *Navigator) Goto(ctx context.Context, bc browser.Context, page browser.Page, url string) (browser.Page, Outcome, error) {
	var lastErr error
	for attempt := 1; attempt <= n.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, n.cfg.Backoff); err != nil {
				return page, Outcome{}, fault.New(fault.ErrNavigation, "navigator.goto", errors.Join(lastErr, err))
			}
			fresh, err := n.ensureUsable(ctx, bc, page)
			if err != nil {
				return page, Outcome{}, fault.New(fault.ErrNavigation, "navigator.goto", errors.Join(lastErr, err))
			}
			page = fresh
		}

		info, err := n.attempt(ctx, page, url)
		if err == nil {
			n.logger.Debug("navigator: loaded", "url", url, "final_url", info.URL, "attempt", attempt)
			return page, Outcome{FinalURL: info.URL, Title: info.Title, Attempts: attempt}, nil
		}
		lastErr = err
		n.logger.Warn("navigator: attempt failed", "url", url, "attempt", attempt, "max_attempts", n.cfg.MaxAttempts, "error", err)

		if ctx.Err() != nil {
			return page, Outcome{}, fault.New(fault.ErrNavigation, "navigator.goto", errors.Join(lastErr, ctx.Err()))
		}
	}
	return page, Outcome{}, fault.New(fault.ErrNavigation, "navigator.goto", lastErr)
}

func (n *Navigator) attempt(ctx context.Context, page browser.Page, url string) (browser.PageInfo, error) {
	actx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	if err := page.Navigate(actx, url); err != nil {
		return browser.PageInfo{}, err
	}
	return page.Info(actx)
}

// ensureUsable returns page if it still answers, otherwise a fresh page on
// bc. The dead handle is closed best-effort.
func (n *Navigator) ensureUsable(ctx context.Context, bc browser.Context, page browser.Page) (browser.Page, error) {
	if page != nil {
		if _, err := page.Info(ctx); err == nil {
			return page, nil
		}
	}
	fresh, err := bc.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	if page != nil {
		if err := page.Close(); err != nil {
			n.logger.Debug("navigator: close detached page", "error", err)
		}
	}
	n.logger.Info("navigator: replaced detached page")
	return fresh, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
