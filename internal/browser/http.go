// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/patent-harvester/internal/httputil"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

// HTTPSession serves pages with plain GET requests. The DOM is static, so
// clicks follow link targets and forms submit as GET queries.
type HTTPSession struct {
	client    *http.Client
	userAgent string
	throttle  *Throttle
	page      *page
	closed    bool
}

// NewHTTPSession returns a session that fetches pages with client.
func NewHTTPSession(client *http.Client, cfg types.BrowserConfig) *HTTPSession {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSession{
		client:    client,
		userAgent: cfg.UserAgent,
		throttle:  NewThrottle(cfg.RequestsPerSecond),
	}
}

func (s *HTTPSession) Navigate(ctx context.Context, rawURL string) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.throttle.Wait(ctx); err != nil {
		return err
	}

	resp, err := httputil.Get(ctx, s.client, rawURL, s.userAgent)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	p, err := parsePage(resp.Body, resp.Request.URL)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", rawURL, err)
	}
	s.page = p
	return nil
}

func (s *HTTPSession) URL() string {
	if s.page == nil || s.page.url == nil {
		return ""
	}
	return s.page.url.String()
}

func (s *HTTPSession) Find(_ context.Context, sel Selector) (*Element, bool) {
	if s.page == nil {
		return nil, false
	}
	return s.page.find(sel)
}

func (s *HTTPSession) FindAll(_ context.Context, sel Selector) []*Element {
	if s.page == nil {
		return nil
	}
	return s.page.findAll(sel)
}

// Click navigates to the element's link target.
func (s *HTTPSession) Click(ctx context.Context, el *Element) error {
	href, ok := el.Href()
	if !ok {
		return ErrNotClickable
	}
	return s.Navigate(ctx, href)
}

// WaitClickable does not poll: a static document never changes, so an
// absent or link-less element fails immediately with ErrTimeout.
func (s *HTTPSession) WaitClickable(ctx context.Context, sel Selector, _ time.Duration) (*Element, error) {
	el, ok := s.Find(ctx, sel)
	if !ok {
		return nil, fmt.Errorf("%s: %w", sel, ErrTimeout)
	}
	if _, ok := el.Href(); !ok {
		return nil, fmt.Errorf("%s: %w", sel, ErrTimeout)
	}
	return el, nil
}

// WaitFor checks sels once against the current document.
func (s *HTTPSession) WaitFor(ctx context.Context, _ time.Duration, sels ...Selector) (int, error) {
	for i, sel := range sels {
		if _, ok := s.Find(ctx, sel); ok {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%v: %w", sels, ErrTimeout)
}

// Refresh is a no-op: the fetched document is the whole page.
func (s *HTTPSession) Refresh() {}

// Submit sets the input's name (default "q") to text on the enclosing
// form's action URL and navigates there.
func (s *HTTPSession) Submit(ctx context.Context, sel Selector, text string) error {
	el, ok := s.Find(ctx, sel)
	if !ok {
		return fmt.Errorf("search input %s: %w", sel, ErrNotFound)
	}

	name, _ := el.Attr("name")
	if name == "" {
		name = "q"
	}
	action, _ := el.sel.Closest("form").Attr("action")
	target := s.URL()
	if strings.TrimSpace(action) != "" {
		target = resolve(s.page.url, strings.TrimSpace(action))
	}

	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parsing form action: %w", err)
	}
	q := u.Query()
	q.Set(name, text)
	u.RawQuery = q.Encode()
	return s.Navigate(ctx, u.String())
}

func (s *HTTPSession) PageSource(context.Context) (string, error) {
	if s.page == nil {
		return "", ErrNotFound
	}
	return s.page.source()
}

func (s *HTTPSession) PageText(context.Context) (string, error) {
	if s.page == nil {
		return "", ErrNotFound
	}
	return s.page.text(), nil
}

func (s *HTTPSession) Close() error {
	s.closed = true
	s.page = nil
	return nil
}
