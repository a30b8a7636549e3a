package extract

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hazyhaar/linkscrape/profilescrape/internal/browser/browsertest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const profileURL = "https://www.linkedin.com/in/jane-doe/"

const janeDoeHTML = `<html><head><title>Jane Doe | LinkedIn</title></head><body><main>
<section class="pv-top-card">
  <img class="pv-top-card-profile-picture__image--show" src="https://x/y.jpg" alt="Jane Doe">
  <h1>Jane Doe</h1>
  <div class="text-body-medium">Engineer at Acme</div>
</section>
<section>
  <div id="experience" class="pv-profile-card__anchor"></div>
  <div class="pvs-header">Experience</div>
  <div class="pvs-list__outer-container"><ul><li>
    <div data-view-name="profile-component-entity">
      <div class="t-bold"><span aria-hidden="true">Engineer</span><span class="visually-hidden">Engineer</span></div>
      <span class="t-normal"><span aria-hidden="true">Acme Corp · Full-time</span></span>
    </div>
  </li></ul></div>
</section>
</main></body></html>`

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600)) }

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	specs, err := Build(DefaultFields(), "")
	require.NoError(t, err)
	return New(Config{MaxScrolls: -1, WaitFor: []string{}}, specs, nil, WithClock(fixedNow))
}

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func TestFromHTML_JaneDoe(t *testing.T) {
	rec, err := newExtractor(t).FromHTML(janeDoeHTML, profileURL)
	require.NoError(t, err)

	assert.Equal(t, Record{
		FirstName:  "Jane",
		LastName:   "Doe",
		PhotoURL:   "https://x/y.jpg",
		JobTitle:   "Engineer",
		Company:    "Acme Corp",
		CapturedAt: "2026-03-01T11:30:00Z",
	}, rec)
}

func TestFromHTML_Idempotent(t *testing.T) {
	e := newExtractor(t)

	first, err := e.FromHTML(janeDoeHTML, profileURL)
	require.NoError(t, err)
	a, err := json.Marshal(first)
	require.NoError(t, err)

	for range 5 {
		again, err := e.FromHTML(janeDoeHTML, profileURL)
		require.NoError(t, err)
		b, err := json.Marshal(again)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	}
}

func TestResolve_FallsBackToSecondStrategy(t *testing.T) {
	html := `<div class="pv-text-details__left-panel"><div class="text-heading-xlarge">  Ada   Lovelace </div></div>`
	d := doc(t, html)

	second := Text(".pv-text-details__left-panel h1", ".text-heading-xlarge")
	spec := FieldSpec{Name: FieldName, Strategies: []Strategy{Text("h1"), second}, Normalize: NormalizeText}

	assert.Equal(t, NormalizeText(second(d, nil), nil), spec.Resolve(d, nil))
	assert.Equal(t, "Ada Lovelace", spec.Resolve(d, nil))
}

func TestResolve_EmptyWhenAllFail(t *testing.T) {
	d := doc(t, `<p>nothing here</p>`)
	specs, err := Build(DefaultFields(), "")
	require.NoError(t, err)
	for _, s := range specs {
		assert.Empty(t, s.Resolve(d, nil), s.Name)
	}
}

func TestResolve_NormalizedEmptyMovesOn(t *testing.T) {
	d := doc(t, `<img class="a" src="data:image/gif;base64,R0lGOD"><img class="b" src="/media/p.jpg">`)
	spec := FieldSpec{
		Name:       FieldPhoto,
		Strategies: []Strategy{Attr([]string{"img.a"}), Attr([]string{"img.b"})},
		Normalize:  NormalizeURL,
	}
	base, _ := url.Parse(profileURL)
	assert.Equal(t, "https://www.linkedin.com/media/p.jpg", spec.Resolve(d, base))
}

func TestCompound(t *testing.T) {
	norm := Compound(DefaultSeparator)
	assert.Equal(t, "Acme Corp", norm("Acme Corp · Full-time", nil))
	assert.Equal(t, "Acme Corp", norm("  Acme   Corp  ", nil))
	assert.Equal(t, "", norm(" · Full-time", nil))
	assert.Equal(t, "Globex", Compound("|")("Globex | Contract", nil))
}

func TestNormalizeURL(t *testing.T) {
	base, _ := url.Parse(profileURL)
	tests := []struct{ raw, want string }{
		{"https://media.licdn.com/a.jpg", "https://media.licdn.com/a.jpg"},
		{"//media.licdn.com/b.jpg", "https://media.licdn.com/b.jpg"},
		{"/c.jpg", "https://www.linkedin.com/c.jpg"},
		{"data:image/png;base64,AAAA", ""},
		{"javascript:void(0)", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.raw, base), tt.raw)
	}
	assert.Equal(t, "", NormalizeURL("/relative.jpg", nil), "no base, no host")
}

func TestSplitName(t *testing.T) {
	tests := []struct{ full, first, last string }{
		{"Jane Doe", "Jane", "Doe"},
		{"Mary Ann   Smith", "Mary", "Ann Smith"},
		{"Cher", "Cher", ""},
		{"  ", "", ""},
	}
	for _, tt := range tests {
		first, last := SplitName(tt.full)
		assert.Equal(t, tt.first, first, tt.full)
		assert.Equal(t, tt.last, last, tt.full)
	}
}

func TestAttr_LazyLoadChain(t *testing.T) {
	tests := []struct {
		name, html, want string
	}{
		{"empty src", `<img src="" data-delayed-url="https://media.licdn.com/lazy.jpg">`, "https://media.licdn.com/lazy.jpg"},
		{"gif placeholder", `<img src="data:image/gif;base64,R0lGODlhAQABAAAAACw=" data-delayed-url="https://media.licdn.com/lazy.jpg">`, "https://media.licdn.com/lazy.jpg"},
		{"uppercase scheme", `<img src="DATA:image/png;base64,AA" data-src="https://media.licdn.com/src.jpg">`, "https://media.licdn.com/src.jpg"},
		{"direct src wins", `<img src="https://media.licdn.com/direct.jpg" data-delayed-url="https://media.licdn.com/lazy.jpg">`, "https://media.licdn.com/direct.jpg"},
		{"placeholder only", `<img src="data:image/gif;base64,R0lGODlhAQABAAAAACw=">`, ""},
		{"next element", `<img src="data:image/gif;base64,AA"><img data-delayed-url="https://media.licdn.com/second.jpg">`, "https://media.licdn.com/second.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := doc(t, `<div class="pv-top-card">`+tt.html+`</div>`)
			assert.Equal(t, tt.want, Attr([]string{".pv-top-card img"})(d, nil))
		})
	}
}

func TestFromHTML_LazyPhotoPlaceholder(t *testing.T) {
	html := strings.Replace(janeDoeHTML,
		`<img class="pv-top-card-profile-picture__image--show" src="https://x/y.jpg" alt="Jane Doe">`,
		`<img class="pv-top-card-profile-picture__image" src="data:image/gif;base64,R0lGODlhAQABAAAAACw=" data-delayed-url="https://media.licdn.com/real.jpg" alt="Jane Doe">`, 1)
	require.NotEqual(t, janeDoeHTML, html)

	rec, err := newExtractor(t).FromHTML(html, profileURL)
	require.NoError(t, err)
	assert.Equal(t, "https://media.licdn.com/real.jpg", rec.PhotoURL)
	assert.Equal(t, "Jane", rec.FirstName)
}

func TestBlock_WalksParentSiblings(t *testing.T) {
	html := `<section>
  <div class="anchor-wrap"><div id="experience"></div></div>
  <div class="header">Experience</div>
  <div class="list"><div data-view-name="profile-component-entity">
    <div class="t-bold"><span aria-hidden="true">CTO</span></div>
  </div></div>
</section>
<section><div data-view-name="profile-component-entity">
  <div class="t-bold"><span aria-hidden="true">Volunteer</span></div>
</div></section>`
	d := doc(t, html)

	got := Block("#experience", entityBlock, `.t-bold span[aria-hidden="true"]`, "")(d, nil)
	assert.Equal(t, "CTO", got)

	assert.Empty(t, Block("#missing", entityBlock, ".t-bold", "")(d, nil))
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build([]FieldConfig{{Name: "x", Normalize: "upper"}}, "")
	assert.ErrorContains(t, err, "unknown normalize")

	_, err = Build([]FieldConfig{{Name: "x", Strategies: []StrategyConfig{{Kind: "xpath"}}}}, "")
	assert.ErrorContains(t, err, "unknown strategy kind")

	_, err = Build([]FieldConfig{{Name: "x", Strategies: []StrategyConfig{{Kind: "block", Anchor: "#a"}}}}, "")
	assert.ErrorContains(t, err, "needs anchor, block and sub")
}

func TestExtract_FromPage(t *testing.T) {
	site := &browsertest.Site{
		Routes:      map[string]browsertest.Route{profileURL: {Title: "Jane Doe | LinkedIn", HTML: janeDoeHTML}},
		ScrollSteps: 3,
	}
	bc, err := site.Open(context.Background())
	require.NoError(t, err)
	defer bc.Close()
	page, err := bc.NewPage(context.Background())
	require.NoError(t, err)
	require.NoError(t, page.Navigate(context.Background(), profileURL))

	specs, err := Build(DefaultFields(), "")
	require.NoError(t, err)
	e := New(Config{ScrollPause: time.Millisecond, WaitTimeout: 10 * time.Millisecond}, specs, nil, WithClock(fixedNow))

	rec, err := e.Extract(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "Jane", rec.FirstName)
	assert.Equal(t, "Acme Corp", rec.Company)
	assert.Equal(t, "Jane Doe", rec.FullName())
}

func TestExtract_DetachedPageFails(t *testing.T) {
	site := &browsertest.Site{}
	bc, err := site.Open(context.Background())
	require.NoError(t, err)
	defer bc.Close()
	page, err := bc.NewPage(context.Background())
	require.NoError(t, err)
	page.(*browsertest.Page).Detach()

	_, err = newExtractor(t).Extract(context.Background(), page)
	assert.ErrorIs(t, err, browsertest.ErrDetached)
}
