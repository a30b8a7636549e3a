package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// rodContext is an incognito browser context. Closing it disposes the
// context in Chromium, which closes every page opened in it.
type rodContext struct {
	mgr  *Manager
	b    *rod.Browser
	once sync.Once
}

func (c *rodContext) NewPage(ctx context.Context) (Page, error) {
	var (
		p   *rod.Page
		err error
	)
	if c.mgr.cfg.Stealth {
		p, err = stealth.Page(c.b)
	} else {
		p, err = c.b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	rp := &rodPage{p: p}
	if len(c.mgr.cfg.ResourceBlocking) > 0 {
		router, err := applyResourceBlocking(p, c.mgr.cfg.ResourceBlocking)
		if err != nil {
			c.mgr.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
		rp.router = router
	}
	return rp, nil
}

func (c *rodContext) Cookies(ctx context.Context) ([]Cookie, error) {
	raw, err := c.b.Context(ctx).GetCookies()
	if err != nil {
		return nil, fmt.Errorf("browser: get cookies: %w", err)
	}
	return fromNetworkCookies(raw), nil
}

func (c *rodContext) SetCookies(ctx context.Context, cookies []Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	if err := c.b.Context(ctx).SetCookies(toCookieParams(cookies)); err != nil {
		return fmt.Errorf("browser: set cookies: %w", err)
	}
	return nil
}

func (c *rodContext) Close() error {
	var err error
	c.once.Do(func() {
		err = c.b.Close()
		c.mgr.release()
	})
	return err
}

type rodPage struct {
	p      *rod.Page
	router *rod.HijackRouter
}

func (r *rodPage) Navigate(ctx context.Context, url string) error {
	p := r.p.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	// A load event that never fires is not a failure: long-polling requests
	// keep some pages from ever reaching it.
	if err := p.WaitLoad(); err != nil && ctx.Err() != nil {
		return fmt.Errorf("browser: wait load %s: %w", url, ctx.Err())
	}
	return nil
}

func (r *rodPage) Info(ctx context.Context) (PageInfo, error) {
	info, err := r.p.Context(ctx).Info()
	if err != nil {
		return PageInfo{}, fmt.Errorf("browser: page info: %w", err)
	}
	return PageInfo{URL: info.URL, Title: info.Title}, nil
}

func (r *rodPage) WaitElement(ctx context.Context, selector string) error {
	if _, err := r.p.Context(ctx).Element(selector); err != nil {
		return fmt.Errorf("browser: wait %s: %w", selector, err)
	}
	return nil
}

func (r *rodPage) Type(ctx context.Context, selector, text string, keyDelay time.Duration) error {
	el, err := r.p.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("browser: type %s: %w", selector, err)
	}
	for _, ch := range text {
		if err := el.Input(string(ch)); err != nil {
			return fmt.Errorf("browser: type %s: %w", selector, err)
		}
		if keyDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(keyDelay):
			}
		}
	}
	return nil
}

func (r *rodPage) Click(ctx context.Context, selector string) error {
	el, err := r.p.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("browser: click %s: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %s: %w", selector, err)
	}
	return nil
}

func (r *rodPage) ExpectNavigation(ctx context.Context) func() error {
	wait := r.p.Context(ctx).WaitNavigation(proto.PageLifecycleEventNameLoad)
	return func() error {
		wait()
		return ctx.Err()
	}
}

func (r *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := r.p.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: html: %w", err)
	}
	return html, nil
}

const scrollJS = `(dy) => {
	window.scrollBy(0, dy);
	return window.innerHeight + window.scrollY >= document.body.scrollHeight - 2;
}`

func (r *rodPage) ScrollBy(ctx context.Context, dy int) (bool, error) {
	res, err := r.p.Context(ctx).Eval(scrollJS, dy)
	if err != nil {
		return false, fmt.Errorf("browser: scroll: %w", err)
	}
	return res.Value.Bool(), nil
}

func (r *rodPage) Close() error {
	if r.router != nil {
		_ = r.router.Stop()
		r.router = nil
	}
	return r.p.Close()
}

func fromNetworkCookies(raw []*proto.NetworkCookie) []Cookie {
	out := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			Session:  c.Session,
			SameSite: string(c.SameSite),
		})
	}
	return out
}

func toCookieParams(cookies []Cookie) []*proto.NetworkCookieParam {
	out := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		}
		if !c.Session && c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		out = append(out, p)
	}
	return out
}
