package profilescrape

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/linkscrape/profilescrape/internal/browser/browsertest"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/cookiestore"
)

func serve(t *testing.T, h http.Handler, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func newHandler(t *testing.T, cfg Config, site *browsertest.Site) http.Handler {
	t.Helper()
	return newScraper(t, cfg, site, cookiestore.Jar{sessionCookie}).Handler()
}

func TestHTTP_RootAndHealth(t *testing.T) {
	h := newHandler(t, testConfig(t), newSite())

	rec := serve(t, h, "GET", "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "LinkedIn scraper is running", rec.Body.String())

	rec = serve(t, h, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decodeBody(t, rec))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
}

func TestHTTP_MissingURL(t *testing.T) {
	site := newSite()
	h := newHandler(t, testConfig(t), site)

	for _, rec := range []*httptest.ResponseRecorder{
		serve(t, h, "GET", "/scrape", ""),
		serve(t, h, "POST", "/scrape", `{}`),
		serve(t, h, "POST", "/scrape", ""),
	} {
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, missingURLMessage, decodeBody(t, rec)["error"])
	}
	assert.Equal(t, 0, site.ContextsOpened())
}

func TestHTTP_MalformedBody(t *testing.T) {
	h := newHandler(t, testConfig(t), newSite())

	rec := serve(t, h, "POST", "/scrape", `{"url":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["error"])
}

func TestHTTP_InvalidTarget(t *testing.T) {
	h := newHandler(t, testConfig(t), newSite())

	rec := serve(t, h, "GET", "/scrape?url="+url.QueryEscape("ftp://www.linkedin.com/in/x"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_target", decodeBody(t, rec)["kind"])
}

func TestHTTP_ScrapeFailure(t *testing.T) {
	site := newSite()
	site.FailNavigate = func(string, int) error { return errors.New("net::ERR_TIMED_OUT") }
	h := newHandler(t, testConfig(t), site)

	rec := serve(t, h, "GET", "/scrape?url="+url.QueryEscape(target), "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "navigation_failure", body["kind"])
	assert.Contains(t, body["error"], "ERR_TIMED_OUT")
	assert.Equal(t, 0, site.OpenContexts())
}

func TestHTTP_Scrape(t *testing.T) {
	h := newHandler(t, testConfig(t), newSite())

	for _, rec := range []*httptest.ResponseRecorder{
		serve(t, h, "GET", "/scrape?url="+url.QueryEscape(target), ""),
		serve(t, h, "POST", "/scrape", `{"url":"`+target+`"}`),
	} {
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, map[string]string{
			"firstName":  "Jane",
			"lastName":   "Doe",
			"photoUrl":   "https://x/y.jpg",
			"jobTitle":   "Engineer",
			"company":    "Acme Corp",
			"capturedAt": "2026-03-01T11:30:00Z",
		}, decodeBody(t, rec))
	}
}

func TestHTTP_BasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := testConfig(t)
	cfg.Server.BasicAuthUser = "ops"
	cfg.Server.BasicAuthHash = string(hash)
	h := newHandler(t, cfg, newSite())

	rec := serve(t, h, "GET", "/scrape", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	rec = serve(t, h, "GET", "/scrape", "", func(r *http.Request) { r.SetBasicAuth("ops", "wrong") })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(t, h, "GET", "/scrape", "", func(r *http.Request) { r.SetBasicAuth("ops", "s3cret") })
	assert.Equal(t, http.StatusBadRequest, rec.Code, "authenticated request reaches the handler")

	rec = serve(t, h, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")
}
