package navigator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hazyhaar/linkscrape/profilescrape/internal/browser/browsertest"
	"github.com/hazyhaar/linkscrape/profilescrape/internal/fault"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const target = "https://www.linkedin.com/in/jane-doe/"

var errFlaky = errors.New("net::ERR_CONNECTION_RESET")

func newSite() *browsertest.Site {
	return &browsertest.Site{
		Routes: map[string]browsertest.Route{
			target: {Title: "Jane Doe | LinkedIn", HTML: "<h1>Jane Doe</h1>"},
		},
	}
}

func open(t *testing.T, site *browsertest.Site) (*browsertest.Context, *browsertest.Page) {
	t.Helper()
	bc, err := site.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { bc.Close() })
	p, err := bc.NewPage(context.Background())
	require.NoError(t, err)
	return bc.(*browsertest.Context), p.(*browsertest.Page)
}

func TestGoto_FirstAttempt(t *testing.T) {
	site := newSite()
	bc, page := open(t, site)
	nav := New(Config{Backoff: -1}, nil)

	got, out, err := nav.Goto(context.Background(), bc, page, target)
	require.NoError(t, err)
	assert.Same(t, page, got)
	assert.Equal(t, Outcome{FinalURL: target, Title: "Jane Doe | LinkedIn", Attempts: 1}, out)
}

func TestGoto_RetriesThenSucceeds(t *testing.T) {
	site := newSite()
	site.FailNavigate = func(_ string, n int) error {
		if n < 3 {
			return errFlaky
		}
		return nil
	}
	bc, page := open(t, site)
	nav := New(Config{MaxAttempts: 3, Backoff: -1}, nil)

	got, out, err := nav.Goto(context.Background(), bc, page, target)
	require.NoError(t, err)
	assert.Same(t, page, got, "a live handle is reused")
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, site.Navigations(target))
	assert.Equal(t, 1, site.PagesCreated())
}

func TestGoto_ReplacesDetachedPage(t *testing.T) {
	site := newSite()
	site.DetachOnFailure = true
	site.FailNavigate = func(_ string, n int) error {
		if n == 1 {
			return errFlaky
		}
		return nil
	}
	bc, page := open(t, site)
	nav := New(Config{Backoff: -1}, nil)

	got, out, err := nav.Goto(context.Background(), bc, page, target)
	require.NoError(t, err)
	assert.NotSame(t, page, got, "detached handle must be substituted")
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, target, out.FinalURL)
	assert.Equal(t, 2, site.PagesCreated())
	assert.Equal(t, 1, site.OpenPages(), "the detached page is closed")
}

func TestGoto_Exhausted(t *testing.T) {
	site := newSite()
	site.FailNavigate = func(string, int) error { return errFlaky }
	bc, page := open(t, site)
	nav := New(Config{MaxAttempts: 2, Backoff: -1}, nil)

	_, _, err := nav.Goto(context.Background(), bc, page, target)
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrNavigation)
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 2, site.Navigations(target))
	for _, u := range site.NavigationLog() {
		assert.Equal(t, target, u, "never navigates elsewhere")
	}
}

func TestGoto_ContextCancelledDuringBackoff(t *testing.T) {
	site := newSite()
	site.FailNavigate = func(string, int) error { return errFlaky }
	bc, page := open(t, site)
	nav := New(Config{MaxAttempts: 5, Backoff: time.Hour}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := nav.Goto(ctx, bc, page, target)
	assert.ErrorIs(t, err, fault.ErrNavigation)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Minute)
	assert.Equal(t, 1, site.Navigations(target))
}
