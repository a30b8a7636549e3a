package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlockList(t *testing.T) {
	bl, err := parseBlockList([]string{"images", " Fonts ", "xhr", "stylesheet"})
	require.NoError(t, err)
	assert.Equal(t, blockList{
		proto.NetworkResourceTypeImage:      true,
		proto.NetworkResourceTypeFont:       true,
		proto.NetworkResourceTypeXHR:        true,
		proto.NetworkResourceTypeStylesheet: true,
	}, bl)
	assert.False(t, bl[proto.NetworkResourceTypeDocument])
	assert.False(t, bl[proto.NetworkResourceTypeScript])

	bl, err = parseBlockList(nil)
	require.NoError(t, err)
	assert.Empty(t, bl)

	_, err = parseBlockList([]string{"images", "gifs"})
	assert.ErrorContains(t, err, `unknown resource type "gifs"`)

	_, err = parseBlockList([]string{"Document"})
	assert.ErrorContains(t, err, "cannot be blocked")

	assert.NoError(t, ValidateResourceTypes([]string{"media", "scripts"}))
	assert.Error(t, ValidateResourceTypes([]string{""}))
}

func TestCookie_Expired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	assert.False(t, Cookie{Expires: -1}.Expired(now), "session cookie")
	assert.False(t, Cookie{Expires: 1, Session: true}.Expired(now), "session flag wins")
	assert.True(t, Cookie{Expires: 1_699_999_999}.Expired(now))
	assert.True(t, Cookie{Expires: 1_700_000_000}.Expired(now))
	assert.False(t, Cookie{Expires: 1_700_000_001.5}.Expired(now))
}

func TestCookieConversion(t *testing.T) {
	raw := []*proto.NetworkCookie{{
		Name:     "li_at",
		Value:    "token",
		Domain:   ".linkedin.com",
		Path:     "/",
		Expires:  1_800_000_000,
		HTTPOnly: true,
		Secure:   true,
		SameSite: proto.NetworkCookieSameSiteNone,
	}, {
		Name:    "lang",
		Value:   "v=2&lang=en-us",
		Domain:  ".linkedin.com",
		Path:    "/",
		Expires: -1,
		Session: true,
	}}

	cookies := fromNetworkCookies(raw)
	require.Len(t, cookies, 2)
	assert.Equal(t, "li_at", cookies[0].Name)
	assert.Equal(t, float64(1_800_000_000), cookies[0].Expires)
	assert.Equal(t, "None", cookies[0].SameSite)
	assert.True(t, cookies[1].Session)

	params := toCookieParams(cookies)
	require.Len(t, params, 2)
	assert.Equal(t, proto.TimeSinceEpoch(1_800_000_000), params[0].Expires)
	assert.True(t, params[0].HTTPOnly)
	assert.Equal(t, proto.TimeSinceEpoch(0), params[1].Expires, "session cookies carry no expiry")
}

func TestManager_OpenAfterClose(t *testing.T) {
	m := NewManager(Config{RemoteURL: "ws://127.0.0.1:1/devtools/browser/none"})
	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "close is idempotent")

	_, err := m.Open(context.Background())
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestManager_OpenCancelled(t *testing.T) {
	m := NewManager(Config{RemoteURL: "ws://127.0.0.1:1/devtools/browser/none"})
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Open(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
