// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/patent-harvester/pkg/types"
)

const loadingPage = `<html><body><div id="spinner">loading</div></body></html>`

// fakeTab serves pages in order, one per DOM read, repeating the last.
type fakeTab struct {
	pages    []string
	loc      string
	domErr   error
	domCalls int

	clickOK   bool
	clicks    []string
	navigated []string
	keys      []string
	text      string
	closed    int
}

func (f *fakeTab) navigate(_ context.Context, rawURL string) error {
	f.navigated = append(f.navigated, rawURL)
	f.loc = rawURL
	return nil
}

func (f *fakeTab) dom(context.Context) (string, string, error) {
	if f.domErr != nil {
		return "", "", f.domErr
	}
	i := min(f.domCalls, len(f.pages)-1)
	f.domCalls++
	return f.pages[i], f.loc, nil
}

func (f *fakeTab) clickNth(_ context.Context, css string, index int) (bool, error) {
	f.clicks = append(f.clicks, fmt.Sprintf("%s[%d]", css, index))
	return f.clickOK, nil
}

func (f *fakeTab) sendKeys(_ context.Context, css, text string) error {
	f.keys = append(f.keys, css+"|"+text)
	return nil
}

func (f *fakeTab) innerText(context.Context) (string, error) { return f.text, nil }

func (f *fakeTab) close() { f.closed++ }

func newFakeChrome(tab *fakeTab) *ChromeSession {
	if tab.loc == "" {
		tab.loc = "https://patents.example/"
	}
	s := newChromeSession(tab, types.BrowserConfig{SettleDelay: time.Millisecond})
	s.poll = time.Millisecond
	return s
}

func TestChromeSession_SnapshotCachedUntilRefresh(t *testing.T) {
	tab := &fakeTab{pages: []string{
		`<html><body><h1 id="title">first</h1></body></html>`,
		`<html><body><h1 id="title">second</h1></body></html>`,
	}}
	s := newFakeChrome(tab)
	ctx := context.Background()

	el, ok := s.Find(ctx, CSS("#title"))
	require.True(t, ok)
	assert.Equal(t, "first", el.Text())

	el, _ = s.Find(ctx, CSS("#title"))
	assert.Equal(t, "first", el.Text())
	assert.Equal(t, 1, tab.domCalls, "lookups share one snapshot")

	s.Refresh()
	el, ok = s.Find(ctx, CSS("#title"))
	require.True(t, ok)
	assert.Equal(t, "second", el.Text())
	assert.Equal(t, 2, tab.domCalls)
}

func TestChromeSession_NavigateDropsSnapshot(t *testing.T) {
	tab := &fakeTab{pages: []string{homePage, `<html><body><h1 id="title">page two</h1></body></html>`}}
	s := newFakeChrome(tab)
	ctx := context.Background()

	_, ok := s.Find(ctx, CSS("#title"))
	assert.False(t, ok)

	require.NoError(t, s.Navigate(ctx, "https://patents.example/page2"))
	_, ok = s.Find(ctx, CSS("#title"))
	assert.True(t, ok)
	assert.Equal(t, "https://patents.example/page2", s.URL())
}

func TestChromeSession_ClickByDocumentIndex(t *testing.T) {
	tab := &fakeTab{pages: []string{homePage}, clickOK: true}
	s := newFakeChrome(tab)
	ctx := context.Background()

	el, ok := s.Find(ctx, CSS("li.item").WithText("Second"))
	require.True(t, ok)
	require.NoError(t, s.Click(ctx, el))

	assert.Equal(t, []string{"li.item[1]"}, tab.clicks)
	assert.Empty(t, tab.navigated)

	s.Find(ctx, CSS("li.item"))
	assert.Equal(t, 2, tab.domCalls, "a click drops the snapshot")
}

func TestChromeSession_ClickFallsBackToHref(t *testing.T) {
	tab := &fakeTab{pages: []string{homePage}}
	s := newFakeChrome(tab)
	ctx := context.Background()

	items := s.FindAll(ctx, CSS("li.item"))
	require.Len(t, items, 3)

	require.NoError(t, s.Click(ctx, items[0]))
	assert.Equal(t, []string{"li.item[0]"}, tab.clicks)
	assert.Equal(t, []string{"https://patents.example/patent/US1/en"}, tab.navigated)

	items = s.FindAll(ctx, CSS("li.item"))
	require.Len(t, items, 3)
	assert.ErrorIs(t, s.Click(ctx, items[2]), ErrNotClickable)
}

func TestChromeSession_WaitForPollsUntilRendered(t *testing.T) {
	results := `<html><body><article class="result"><a href="/patent/US1/en">x</a></article></body></html>`
	tab := &fakeTab{pages: []string{loadingPage, loadingPage, results}}
	s := newFakeChrome(tab)

	i, err := s.WaitFor(context.Background(), time.Second, CSS("#noResults"), CSS("article.result a"))
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	assert.Equal(t, 3, tab.domCalls)

	el, ok := s.Find(context.Background(), CSS("article.result a"))
	require.True(t, ok, "the snapshot WaitFor matched on stays current")
	href, _ := el.Href()
	assert.Equal(t, "https://patents.example/patent/US1/en", href)
}

func TestChromeSession_WaitForIgnoresStaleSnapshot(t *testing.T) {
	tab := &fakeTab{pages: []string{
		`<html><body><div id="noResults">none</div></body></html>`,
		`<html><body><article class="result">x</article></body></html>`,
	}}
	s := newFakeChrome(tab)
	ctx := context.Background()

	_, ok := s.Find(ctx, CSS("#noResults"))
	require.True(t, ok)

	i, err := s.WaitFor(ctx, time.Second, CSS("#noResults"), CSS("article.result"))
	require.NoError(t, err)
	assert.Equal(t, 1, i)
}

func TestChromeSession_WaitForTimesOut(t *testing.T) {
	tab := &fakeTab{pages: []string{loadingPage}}
	s := newFakeChrome(tab)

	i, err := s.WaitFor(context.Background(), 10*time.Millisecond, CSS("#title"))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, -1, i)
	assert.Greater(t, tab.domCalls, 1)

	tab.domErr = errors.New("target closed")
	_, err = s.WaitFor(context.Background(), 5*time.Millisecond, CSS("#title"))
	assert.ErrorIs(t, err, ErrTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.WaitFor(ctx, time.Second, CSS("#title"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChromeSession_WaitClickable(t *testing.T) {
	tab := &fakeTab{pages: []string{loadingPage, homePage}}
	s := newFakeChrome(tab)
	ctx := context.Background()

	el, err := s.WaitClickable(ctx, CSS("#next"), time.Second)
	require.NoError(t, err)
	href, ok := el.Href()
	require.True(t, ok)
	assert.Equal(t, "https://patents.example/page2", href)

	_, err = s.WaitClickable(ctx, CSS("#missing"), 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestChromeSession_SubmitSendsEnterAndDropsSnapshot(t *testing.T) {
	tab := &fakeTab{pages: []string{homePage, `<html><body><h1 id="title">results</h1></body></html>`}}
	s := newFakeChrome(tab)
	ctx := context.Background()

	_, ok := s.Find(ctx, CSS("#searchInput"))
	require.True(t, ok)

	require.NoError(t, s.Submit(ctx, CSS("#searchInput"), "((H04L9)) assignee:acme"))
	assert.Equal(t, []string{"#searchInput|((H04L9)) assignee:acme" + kb.Enter}, tab.keys)

	title, ok := s.Find(ctx, CSS("#title"))
	require.True(t, ok)
	assert.Equal(t, "results", title.Text())
}

func TestChromeSession_PageTextAndClose(t *testing.T) {
	tab := &fakeTab{pages: []string{homePage}, text: "needle \n\n in   the text"}
	s := newFakeChrome(tab)

	text, err := s.PageText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "needle in the text", text)

	src, err := s.PageSource(context.Background())
	require.NoError(t, err)
	assert.Contains(t, src, `id="searchInput"`)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, tab.closed)
}

func chromeBinary() string {
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

func TestChromeSession_Live(t *testing.T) {
	if testing.Short() {
		t.Skip("launches a browser")
	}
	if chromeBinary() == "" {
		t.Skip("no Chrome binary on PATH")
	}
	ts, _ := newSite(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s, err := NewChromeSession(ctx, types.BrowserConfig{Headless: true})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Navigate(ctx, ts.URL+"/"))
	require.Len(t, s.FindAll(ctx, CSS("li.item")), 3)

	next, err := s.WaitClickable(ctx, CSS("#next"), 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Click(ctx, next))
	_, err = s.WaitFor(ctx, 5*time.Second, CSS("#title").WithText("page two"))
	require.NoError(t, err)

	require.NoError(t, s.Navigate(ctx, ts.URL+"/"))
	require.NoError(t, s.Submit(ctx, CSS("#searchInput"), "acme"))
	_, err = s.WaitFor(ctx, 5*time.Second, CSS("#title").WithText("results"))
	require.NoError(t, err)
}
