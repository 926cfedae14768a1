// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdiddy/patent-harvester/internal/browser"
	"github.com/pdiddy/patent-harvester/internal/logger"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

// stubWaits replaces the package sleep and jitter with instant versions
// and returns the durations that would have been slept.
func stubWaits(t *testing.T) func() []time.Duration {
	t.Helper()
	origSleep, origJitter := sleep, jitter
	var (
		mu    sync.Mutex
		slept []time.Duration
	)
	sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
		return ctx.Err()
	}
	jitter = func(_, hi time.Duration) time.Duration { return hi }
	t.Cleanup(func() { sleep, jitter = origSleep, origJitter })
	return func() []time.Duration {
		mu.Lock()
		defer mu.Unlock()
		return append([]time.Duration(nil), slept...)
	}
}

// site serves fixture pages. Search pages are keyed "search" and
// "search#<page>", inventor searches "inventor:<name>", everything else by
// path.
type site struct {
	srv *httptest.Server

	mu    sync.Mutex
	pages map[string]string
	hits  map[string]int
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{pages: map[string]string{}, hits: map[string]int{}}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *site) set(key, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[key] = body
}

func (s *site) hitCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

func (s *site) url(path string) string {
	return s.srv.URL + path
}

func (s *site) base() string {
	return s.srv.URL + "/"
}

func routeKey(r *http.Request) string {
	q := r.URL.Query()
	suffix := ""
	if p := q.Get("page"); p != "" && p != "1" {
		suffix = "#" + p
	}
	switch {
	case r.URL.Path == "/" && q.Get("inventor") != "":
		return "inventor:" + q.Get("inventor") + suffix
	case r.URL.Path == "/search":
		return "search" + suffix
	}
	return r.URL.Path
}

func (s *site) serve(w http.ResponseWriter, r *http.Request) {
	key := routeKey(r)
	s.mu.Lock()
	s.hits[key]++
	body, ok := s.pages[key]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if strings.HasSuffix(r.URL.Path, ".pdf") {
		w.Header().Set("Content-Type", "application/pdf")
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	fmt.Fprint(w, body)
}

func (s *site) harvester(t *testing.T, timing types.TimingConfig) *Harvester {
	t.Helper()
	sess := browser.NewHTTPSession(s.srv.Client(), types.BrowserConfig{})
	t.Cleanup(func() { sess.Close() })
	return New(sess, Options{
		BaseURL:   s.base(),
		Selectors: DefaultSelectors(),
		Timing:    timing,
		Log:       logger.NewNop(),
	})
}

const searchForm = `<html><body><form action="/search"><input id="searchInput" name="q"></form></body></html>`

const noResultsPage = `<html><body><div id="noResultsMessage">Your search did not match any documents.</div></body></html>`

// resultsPage renders one page of search results. An empty count omits the
// counter; an empty next leaves the next control without a link.
func resultsPage(count string, refs []string, next string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if count != "" {
		fmt.Fprintf(&b, `<span id="numResultsLabel">About %s results</span>`, count)
	}
	b.WriteString(`<dropdown-menu id="resultsPerPage"><paper-item>10</paper-item><paper-item>100</paper-item></dropdown-menu>`)
	for _, ref := range refs {
		fmt.Fprintf(&b, `<search-result-item><article><state-modifier data-result=%q><a id="link">%s</a></state-modifier></article></search-result-item>`,
			ref, html.EscapeString(ref))
	}
	b.WriteString(`<search-paging><state-modifier><a href="#">Previous</a></state-modifier><state-modifier><span>1</span></state-modifier><state-modifier>`)
	if next != "" {
		fmt.Fprintf(&b, `<a href=%q>Next</a>`, next)
	}
	b.WriteString(`</state-modifier></search-paging></body></html>`)
	return b.String()
}

// patentPage describes a fixture patent detail page.
type patentPage struct {
	Code        string
	Title       string
	Country     string
	Priority    string
	Publication string
	Abstract    string
	Inventors   []string
	Assignees   []string
	Codes       []string
	PDF         string
	Body        string
}

func (p patentPage) html() string {
	var b strings.Builder
	b.WriteString("<html><head><script>var neural = 'not counted';</script></head><body><patent-result>")
	fmt.Fprintf(&b, `<h1 id="title">%s</h1>`, html.EscapeString(p.Title))
	b.WriteString("<section><header>")
	fmt.Fprintf(&b, `<h2 id="pubnum">%s</h2><p>%s</p><div>`, p.Code, html.EscapeString(p.Country))
	if p.PDF != "" {
		fmt.Fprintf(&b, `<a href=%q>Download PDF</a>`, p.PDF)
	}
	b.WriteString(`</div></header><dl class="important-people">`)
	if len(p.Inventors) > 0 {
		b.WriteString("<dt>Inventor</dt>")
	}
	for _, name := range p.Inventors {
		fmt.Fprintf(&b, `<dd><state-modifier><a id="link" act="{&quot;type&quot;:&quot;inventor&quot;}">%s</a></state-modifier></dd>`, html.EscapeString(name))
	}
	if len(p.Assignees) > 0 {
		b.WriteString("<dt>Current Assignee</dt>")
	}
	for _, name := range p.Assignees {
		fmt.Fprintf(&b, `<dd><state-modifier><a id="link" act="{&quot;type&quot;:&quot;assignee&quot;}">%s</a></state-modifier></dd>`, html.EscapeString(name))
	}
	b.WriteString(`<dt>Original Assignee</dt><dd>Legacy Holdings</dd></dl></section>`)

	b.WriteString(`<section id="classifications"><classification-tree>`)
	for _, c := range p.Codes {
		fmt.Fprintf(&b, `<state-modifier><a href="/?q=%s">%s</a></state-modifier>`, c, c)
	}
	b.WriteString(`</classification-tree></section>`)

	fmt.Fprintf(&b, `<section id="abstract"><abstract><div>%s</div></abstract></section>`, html.EscapeString(p.Abstract))

	b.WriteString("<application-timeline>")
	fmt.Fprintf(&b, `<div class="priority">%s Priority to US</div>`, p.Priority)
	b.WriteString(`<div class="event"><span>XX999</span><div class="publication">1999-01-01</div></div>`)
	fmt.Fprintf(&b, `<div class="event"><span>%s</span><div class="publication">%s</div></div>`, p.Code, p.Publication)
	b.WriteString("</application-timeline>")

	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(p.Body))
	b.WriteString("</patent-result></body></html>")
	return b.String()
}

func repeatWord(word string, n int) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}
