package profilescrape

import (
	"github.com/hazyhaar/linkscrape/profilescrape/internal/browser"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/cookiestore"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/extract"
)

// Record is one scraped profile. Fields that could not be found are empty.
type Record = extract.Record

// Opener hands out isolated browsing contexts.
type Opener = browser.Opener

// CookieStore persists the authenticated cookie jar.
type CookieStore = cookiestore.Store

// BrowserManager owns the shared Chromium process.
type BrowserManager = browser.Manager
