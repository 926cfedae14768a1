// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package browser drives patent search pages. A Session is one exclusive
// page-automation handle; element lookups return an explicit found flag
// instead of an error so callers branch on absence.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/patent-harvester/pkg/types"
)

var (
	// ErrNotFound reports that a required element is absent.
	ErrNotFound = errors.New("element not found")

	// ErrTimeout reports that an element did not become clickable in time.
	ErrTimeout = errors.New("timed out waiting for element")

	// ErrNotClickable reports an element with no click target.
	ErrNotClickable = errors.New("element is not clickable")

	// ErrClosed reports use of a session after Close.
	ErrClosed = errors.New("session closed")
)

// Selector locates elements by CSS. When Contains is set only elements
// whose normalized text contains it match.
type Selector struct {
	CSS      string `json:"css" yaml:"css"`
	Contains string `json:"contains,omitempty" yaml:"contains,omitempty"`
}

// CSS returns a plain CSS selector.
func CSS(css string) Selector {
	return Selector{CSS: css}
}

// WithText returns a copy of s restricted to elements containing text.
func (s Selector) WithText(text string) Selector {
	s.Contains = text
	return s
}

func (s Selector) String() string {
	if s.Contains == "" {
		return s.CSS
	}
	return fmt.Sprintf("%s:contains(%q)", s.CSS, s.Contains)
}

// Session is a single browser tab (or HTTP client) owned by one worker.
type Session interface {
	// Navigate loads url and waits for the document.
	Navigate(ctx context.Context, url string) error

	// URL returns the address of the current document.
	URL() string

	// Find returns the first matching element.
	Find(ctx context.Context, sel Selector) (*Element, bool)

	// FindAll returns every matching element in document order.
	FindAll(ctx context.Context, sel Selector) []*Element

	// Click activates el.
	Click(ctx context.Context, el *Element) error

	// WaitClickable polls for sel until it is clickable or timeout elapses.
	WaitClickable(ctx context.Context, sel Selector, timeout time.Duration) (*Element, error)

	// WaitFor polls until one of sels is present or timeout elapses, and
	// returns the index of the first selector found. Failure wraps
	// ErrTimeout.
	WaitFor(ctx context.Context, timeout time.Duration, sels ...Selector) (int, error)

	// Refresh drops any cached view of the document so the next lookup
	// reads it again.
	Refresh()

	// Submit types text into the input matched by sel and submits its form.
	Submit(ctx context.Context, sel Selector, text string) error

	// PageSource returns the rendered markup of the current document.
	PageSource(ctx context.Context) (string, error)

	// PageText returns the visible text of the current document.
	PageText(ctx context.Context) (string, error)

	// Close releases the session. It is safe to call more than once.
	Close() error
}

// Opener creates a fresh session for one worker.
type Opener func(ctx context.Context) (Session, error)

// NewOpener returns an Opener for the configured driver.
func NewOpener(cfg types.BrowserConfig, client *http.Client) (Opener, error) {
	switch cfg.Driver {
	case types.DriverHTTP:
		return func(context.Context) (Session, error) {
			return NewHTTPSession(client, cfg), nil
		}, nil
	case types.DriverChrome, "":
		return func(ctx context.Context) (Session, error) {
			return NewChromeSession(ctx, cfg)
		}, nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q (want chrome or http)", cfg.Driver)
	}
}
