// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/pdiddy/patent-harvester/pkg/types"
)

const (
	// opTimeout bounds a single DevTools round trip.
	opTimeout = 60 * time.Second

	pollInterval = 250 * time.Millisecond

	defaultSettleDelay = 500 * time.Millisecond
)

// devtools is the part of a browser tab a ChromeSession drives.
type devtools interface {
	navigate(ctx context.Context, rawURL string) error
	// dom returns the serialized document and its address.
	dom(ctx context.Context) (html, location string, err error)
	// clickNth clicks the index-th match of css and reports whether it existed.
	clickNth(ctx context.Context, css string, index int) (bool, error)
	sendKeys(ctx context.Context, css, text string) error
	innerText(ctx context.Context) (string, error)
	close()
}

// ChromeSession drives one Chrome tab over the DevTools protocol. Element
// lookups run against a goquery snapshot of the live DOM. The snapshot is
// dropped after every navigation, click, submit and Refresh, and WaitFor
// re-reads it until the awaited selector renders.
type ChromeSession struct {
	tab      devtools
	throttle *Throttle
	settle   time.Duration
	poll     time.Duration

	snap *page
	once sync.Once
}

// NewChromeSession launches a browser, or attaches to cfg.RemoteURL, and
// opens a tab. Cancelling ctx tears the browser down.
func NewChromeSession(ctx context.Context, cfg types.BrowserConfig) (*ChromeSession, error) {
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.WindowSize(1920, 1080),
		)
		if cfg.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
		}
		if cfg.ProxyURL != "" {
			opts = append(opts, chromedp.ProxyServer(cfg.ProxyURL))
		}
		// Chrome refuses to start sandboxed as root, as in most containers.
		if os.Geteuid() == 0 {
			opts = append(opts, chromedp.NoSandbox)
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, opts...)
	}

	tab, cancelTab := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(tab); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return newChromeSession(&chromeTab{ctx: tab, cancelTab: cancelTab, cancelAlloc: cancelAlloc}, cfg), nil
}

func newChromeSession(tab devtools, cfg types.BrowserConfig) *ChromeSession {
	settle := cfg.SettleDelay
	if settle <= 0 {
		settle = defaultSettleDelay
	}
	return &ChromeSession{
		tab:      tab,
		throttle: NewThrottle(cfg.RequestsPerSecond),
		settle:   settle,
		poll:     pollInterval,
	}
}

func (s *ChromeSession) Navigate(ctx context.Context, rawURL string) error {
	if err := s.throttle.Wait(ctx); err != nil {
		return err
	}
	s.snap = nil
	if err := s.tab.navigate(ctx, rawURL); err != nil {
		return fmt.Errorf("navigating to %s: %w", rawURL, err)
	}
	return nil
}

func (s *ChromeSession) snapshot(ctx context.Context) (*page, error) {
	if s.snap != nil {
		return s.snap, nil
	}
	html, loc, err := s.tab.dom(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading DOM: %w", err)
	}
	u, _ := url.Parse(loc)
	p, err := parsePage(strings.NewReader(html), u)
	if err != nil {
		return nil, err
	}
	s.snap = p
	return p, nil
}

func (s *ChromeSession) URL() string {
	p, err := s.snapshot(context.Background())
	if err != nil || p.url == nil {
		return ""
	}
	return p.url.String()
}

func (s *ChromeSession) Find(ctx context.Context, sel Selector) (*Element, bool) {
	p, err := s.snapshot(ctx)
	if err != nil {
		return nil, false
	}
	return p.find(sel)
}

func (s *ChromeSession) FindAll(ctx context.Context, sel Selector) []*Element {
	p, err := s.snapshot(ctx)
	if err != nil {
		return nil
	}
	return p.findAll(sel)
}

// Refresh drops the cached snapshot; the next lookup reads the live DOM.
func (s *ChromeSession) Refresh() {
	s.snap = nil
}

// Click dispatches a DOM click on the node at the element's selector
// position, falling back to following its link target.
func (s *ChromeSession) Click(ctx context.Context, el *Element) error {
	if el.index >= 0 && el.css != "" {
		clicked, err := s.tab.clickNth(ctx, el.css, el.index)
		if err != nil {
			return fmt.Errorf("clicking %s: %w", el.css, err)
		}
		if clicked {
			s.snap = nil
			return Sleep(ctx, s.settle)
		}
	}
	href, ok := el.Href()
	if !ok {
		return ErrNotClickable
	}
	return s.Navigate(ctx, href)
}

// WaitFor re-reads the DOM every poll interval until one of sels matches
// or timeout elapses. The DOM is read at least once.
func (s *ChromeSession) WaitFor(ctx context.Context, timeout time.Duration, sels ...Selector) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		s.snap = nil
		if p, err := s.snapshot(ctx); err == nil {
			for i, sel := range sels {
				if _, ok := p.find(sel); ok {
					return i, nil
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return -1, err
		}
		if !time.Now().Before(deadline) {
			return -1, fmt.Errorf("%v: %w", sels, ErrTimeout)
		}
		if err := Sleep(ctx, s.poll); err != nil {
			return -1, err
		}
	}
}

// WaitClickable re-reads the DOM until sel appears or timeout elapses.
func (s *ChromeSession) WaitClickable(ctx context.Context, sel Selector, timeout time.Duration) (*Element, error) {
	if _, err := s.WaitFor(ctx, timeout, sel); err != nil {
		return nil, err
	}
	el, ok := s.Find(ctx, sel)
	if !ok {
		return nil, fmt.Errorf("%s: %w", sel, ErrTimeout)
	}
	return el, nil
}

func (s *ChromeSession) Submit(ctx context.Context, sel Selector, text string) error {
	s.snap = nil
	if err := s.tab.sendKeys(ctx, sel.CSS, text+kb.Enter); err != nil {
		return fmt.Errorf("submitting %s: %w", sel, err)
	}
	return Sleep(ctx, s.settle)
}

func (s *ChromeSession) PageSource(ctx context.Context) (string, error) {
	p, err := s.snapshot(ctx)
	if err != nil {
		return "", err
	}
	return p.source()
}

// PageText returns the rendered innerText of the body.
func (s *ChromeSession) PageText(ctx context.Context) (string, error) {
	text, err := s.tab.innerText(ctx)
	if err != nil {
		return "", fmt.Errorf("reading page text: %w", err)
	}
	return normalizeSpace(text), nil
}

func (s *ChromeSession) Close() error {
	s.once.Do(func() {
		s.snap = nil
		s.tab.close()
	})
	return nil
}

// chromeTab implements devtools with chromedp.
type chromeTab struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// run executes actions in the tab, bounded by opTimeout and by ctx.
func (t *chromeTab) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(t.ctx, opTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(opCtx, actions...)
}

func (t *chromeTab) navigate(ctx context.Context, rawURL string) error {
	return t.run(ctx, chromedp.Navigate(rawURL), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (t *chromeTab) dom(ctx context.Context) (string, string, error) {
	var html, loc string
	err := t.run(ctx, chromedp.Location(&loc), chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, loc, err
}

func (t *chromeTab) clickNth(ctx context.Context, css string, index int) (bool, error) {
	sel, err := json.Marshal(css)
	if err != nil {
		return false, err
	}
	script := fmt.Sprintf(
		`(function(){var el=document.querySelectorAll(%s)[%d];if(!el){return false;}el.scrollIntoView();el.click();return true;})()`,
		sel, index)
	var clicked bool
	err = t.run(ctx, chromedp.Evaluate(script, &clicked))
	return clicked, err
}

func (t *chromeTab) sendKeys(ctx context.Context, css, text string) error {
	return t.run(ctx,
		chromedp.WaitVisible(css, chromedp.ByQuery),
		chromedp.Clear(css, chromedp.ByQuery),
		chromedp.SendKeys(css, text, chromedp.ByQuery),
	)
}

func (t *chromeTab) innerText(ctx context.Context) (string, error) {
	var text string
	err := t.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	return text, err
}

func (t *chromeTab) close() {
	t.cancelTab()
	t.cancelAlloc()
}
