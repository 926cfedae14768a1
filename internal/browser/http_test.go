// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/patent-harvester/pkg/types"
)

const homePage = `<html><head><script>var hidden = "needle";</script><style>.x{}</style></head>
<body>
  <form action="/search"><input id="searchInput" name="q"></form>
  <ul>
    <li class="item"><a href="/patent/US1/en">First   patent</a></li>
    <li class="item"><a href="patent/US2/en">Second patent</a></li>
    <li class="item"><span>No link</span></li>
  </ul>
  <a id="next" href="/page2"><span class="icon">next</span></a>
  <p>needle in the visible text</p>
</body></html>`

func newSite(t *testing.T) (*httptest.Server, *string) {
	t.Helper()
	var lastQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, homePage)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		lastQuery = r.URL.Query().Get("q")
		io.WriteString(w, `<html><body><h1 id="title">results</h1></body></html>`)
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><h1 id="title">page two</h1></body></html>`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, &lastQuery
}

func openHTTP(t *testing.T, ts *httptest.Server) *HTTPSession {
	t.Helper()
	s := NewHTTPSession(ts.Client(), types.BrowserConfig{HTTPConfig: types.HTTPConfig{UserAgent: "test"}})
	require.NoError(t, s.Navigate(context.Background(), ts.URL+"/"))
	return s
}

func TestHTTPSession_FindAndAttributes(t *testing.T) {
	ts, _ := newSite(t)
	s := openHTTP(t, ts)
	ctx := context.Background()

	items := s.FindAll(ctx, CSS("li.item"))
	require.Len(t, items, 3)
	assert.Equal(t, "First patent", items[0].Text())
	assert.Equal(t, "li", items[0].Tag())

	href, ok := items[0].Href()
	require.True(t, ok)
	assert.Equal(t, ts.URL+"/patent/US1/en", href)

	href, ok = items[1].Href()
	require.True(t, ok)
	assert.Equal(t, ts.URL+"/patent/US2/en", href)

	_, ok = items[2].Href()
	assert.False(t, ok)

	_, ok = s.Find(ctx, CSS("div.absent"))
	assert.False(t, ok)
}

func TestHTTPSession_ContainsFilterKeepsDocumentIndex(t *testing.T) {
	ts, _ := newSite(t)
	s := openHTTP(t, ts)

	el, ok := s.Find(context.Background(), CSS("li.item").WithText("Second"))
	require.True(t, ok)
	assert.Equal(t, "Second patent", el.Text())
	assert.Equal(t, 1, el.index)
}

func TestHTTPSession_ClickFollowsAncestorLink(t *testing.T) {
	ts, _ := newSite(t)
	s := openHTTP(t, ts)
	ctx := context.Background()

	icon, ok := s.Find(ctx, CSS("#next .icon"))
	require.True(t, ok)
	require.NoError(t, s.Click(ctx, icon))

	title, ok := s.Find(ctx, CSS("#title"))
	require.True(t, ok)
	assert.Equal(t, "page two", title.Text())
	assert.Equal(t, ts.URL+"/page2", s.URL())
}

func TestHTTPSession_WaitClickable(t *testing.T) {
	ts, _ := newSite(t)
	s := openHTTP(t, ts)
	ctx := context.Background()

	el, err := s.WaitClickable(ctx, CSS("#next"), time.Second)
	require.NoError(t, err)
	assert.NotNil(t, el)

	_, err = s.WaitClickable(ctx, CSS("#missing"), time.Second)
	assert.ErrorIs(t, err, ErrTimeout)

	_, err = s.WaitClickable(ctx, CSS("li.item span"), time.Second)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestHTTPSession_WaitForReturnsFirstPresentSelector(t *testing.T) {
	ts, _ := newSite(t)
	s := openHTTP(t, ts)
	ctx := context.Background()

	i, err := s.WaitFor(ctx, time.Second, CSS("#missing"), CSS("form"), CSS("ul"))
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	s.Refresh()
	i, err = s.WaitFor(ctx, time.Second, CSS("#missing"), CSS(".absent"))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, -1, i)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
}

func TestHTTPSession_SubmitUsesFormAction(t *testing.T) {
	ts, lastQuery := newSite(t)
	s := openHTTP(t, ts)
	ctx := context.Background()

	require.NoError(t, s.Submit(ctx, CSS("#searchInput"), "((H04L9)) assignee:acme"))
	assert.Equal(t, "((H04L9)) assignee:acme", *lastQuery)

	title, ok := s.Find(ctx, CSS("#title"))
	require.True(t, ok)
	assert.Equal(t, "results", title.Text())

	err := s.Submit(ctx, CSS("#searchInput"), "again")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPSession_PageTextSkipsScripts(t *testing.T) {
	ts, _ := newSite(t)
	s := openHTTP(t, ts)
	ctx := context.Background()

	text, err := s.PageText(ctx)
	require.NoError(t, err)
	assert.Contains(t, text, "needle in the visible text")
	assert.NotContains(t, text, "var hidden")

	src, err := s.PageSource(ctx)
	require.NoError(t, err)
	assert.Contains(t, src, `id="searchInput"`)
}

func TestHTTPSession_NavigateErrors(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	s := NewHTTPSession(ts.Client(), types.BrowserConfig{})
	err := s.Navigate(context.Background(), ts.URL+"/nothing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")

	_, ok := s.Find(context.Background(), CSS("body"))
	assert.False(t, ok)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Navigate(context.Background(), ts.URL), ErrClosed)
}

func TestNewOpener(t *testing.T) {
	open, err := NewOpener(types.BrowserConfig{Driver: types.DriverHTTP}, http.DefaultClient)
	require.NoError(t, err)
	s, err := open(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &HTTPSession{}, s)

	_, err = NewOpener(types.BrowserConfig{Driver: "netscape"}, nil)
	assert.Error(t, err)
}

func TestThrottle(t *testing.T) {
	assert.Nil(t, NewThrottle(0))

	var nilThrottle *Throttle
	assert.NoError(t, nilThrottle.Wait(context.Background()))

	th := NewThrottle(1000)
	require.NotNil(t, th)
	assert.NoError(t, th.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, nilThrottle.Wait(ctx))
}

func TestSelectorString(t *testing.T) {
	assert.Equal(t, "h1#title", CSS("h1#title").String())
	assert.Equal(t, `div.event:contains("US1")`, CSS("div.event").WithText("US1").String())
}
