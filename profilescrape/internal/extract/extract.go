// Package extract turns a rendered profile page into a Record.
//
// Each field is resolved by an ordered list of strategies over the parsed
// DOM. The first strategy whose normalized output is non-empty wins; a field
// no strategy can fill is left empty. Partial records are normal results.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/linkscrape/profilescrape/internal/browser"
)

// Record is the extracted profile.
type Record struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	PhotoURL   string `json:"photoUrl"`
	JobTitle   string `json:"jobTitle"`
	Company    string `json:"company"`
	CapturedAt string `json:"capturedAt"`
}

// FullName joins first and last name.
func (r Record) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Config tunes the page preparation done before reading the DOM.
type Config struct {
	MaxScrolls  int           // default 10, negative disables scrolling
	ScrollStep  int           // pixels, default 800
	ScrollPause time.Duration // default 400ms
	WaitFor     []string      // selectors awaited best-effort, default #experience
	WaitTimeout time.Duration // default 15s, shared by all WaitFor selectors
}

func (c *Config) defaults() {
	if c.MaxScrolls == 0 {
		c.MaxScrolls = 10
	}
	if c.ScrollStep <= 0 {
		c.ScrollStep = 800
	}
	if c.ScrollPause <= 0 {
		c.ScrollPause = 400 * time.Millisecond
	}
	if c.WaitFor == nil {
		c.WaitFor = []string{experienceAnchor}
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 15 * time.Second
	}
}

// Extractor reads Records from pages.
type Extractor struct {
	cfg    Config
	fields []FieldSpec
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock sets the clock used for CapturedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// New creates an Extractor over fields.
func New(cfg Config, fields []FieldSpec, logger *slog.Logger, opts ...Option) *Extractor {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{cfg: cfg, fields: fields, now: time.Now, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract prepares page (scroll, waits) and reads a Record from its DOM.
// The only error is failing to read the page.
func (e *Extractor) Extract(ctx context.Context, page browser.Page) (Record, error) {
	e.scroll(ctx, page)
	e.wait(ctx, page)

	html, err := page.HTML(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("extract: %w", err)
	}
	pageURL := ""
	if info, err := page.Info(ctx); err == nil {
		pageURL = info.URL
	}
	return e.FromHTML(html, pageURL)
}

// FromHTML reads a Record from serialized HTML. pageURL resolves relative
// links and may be empty.
func (e *Extractor) FromHTML(html, pageURL string) (Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Record{}, fmt.Errorf("extract: parse: %w", err)
	}
	var base *url.URL
	if pageURL != "" {
		base, _ = url.Parse(pageURL)
	}

	values := make(map[string]string, len(e.fields))
	for _, f := range e.fields {
		values[f.Name] = f.Resolve(doc, base)
		if values[f.Name] == "" {
			e.logger.Debug("extract: field empty", "field", f.Name)
		}
	}

	first, last := SplitName(values[FieldName])
	return Record{
		FirstName:  first,
		LastName:   last,
		PhotoURL:   values[FieldPhoto],
		JobTitle:   values[FieldHeadline],
		Company:    values[FieldEmployer],
		CapturedAt: e.now().UTC().Format(time.RFC3339),
	}, nil
}

// scroll pages down until the bottom is reached, to trigger lazily loaded
// sections. Errors stop scrolling and are otherwise ignored.
func (e *Extractor) scroll(ctx context.Context, page browser.Page) {
	for i := 0; i < e.cfg.MaxScrolls; i++ {
		bottom, err := page.ScrollBy(ctx, e.cfg.ScrollStep)
		if err != nil {
			e.logger.Debug("extract: scroll stopped", "error", err)
			return
		}
		if bottom {
			return
		}
		t := time.NewTimer(e.cfg.ScrollPause)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (e *Extractor) wait(ctx context.Context, page browser.Page) {
	if len(e.cfg.WaitFor) == 0 {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, e.cfg.WaitTimeout)
	defer cancel()
	for _, sel := range e.cfg.WaitFor {
		if err := page.WaitElement(wctx, sel); err != nil {
			e.logger.Debug("extract: selector not seen", "selector", sel)
		}
	}
}
