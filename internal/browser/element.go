// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nonContentSelectors are stripped before computing visible page text.
const nonContentSelectors = "script, style, noscript, template, iframe, svg"

// Element is a node of a page snapshot. It remembers the selector and
// position it was found at so a live browser can click the same node.
type Element struct {
	sel   *goquery.Selection
	css   string
	index int
	base  *url.URL
}

// Text returns the element text with whitespace collapsed.
func (e *Element) Text() string {
	return normalizeSpace(e.sel.Text())
}

// Attr returns the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// Tag returns the lower-case element name.
func (e *Element) Tag() string {
	return strings.ToLower(goquery.NodeName(e.sel))
}

// Find returns the first descendant matching css.
func (e *Element) Find(css string) (*Element, bool) {
	s := e.sel.Find(css).First()
	if s.Length() == 0 {
		return nil, false
	}
	return &Element{sel: s, index: -1, base: e.base}, true
}

// Href returns the absolute link target of the element: its own href, the
// first descendant anchor, or the closest ancestor anchor.
func (e *Element) Href() (string, bool) {
	raw, ok := e.sel.Attr("href")
	if !ok {
		raw, ok = e.sel.Find("a[href]").First().Attr("href")
	}
	if !ok {
		raw, ok = e.sel.Closest("a[href]").Attr("href")
	}
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" || strings.HasPrefix(raw, "javascript:") || raw == "#" {
		return "", false
	}
	return resolve(e.base, raw), true
}

// page is an immutable parsed snapshot of one document.
type page struct {
	doc *goquery.Document
	url *url.URL
}

func parsePage(r io.Reader, u *url.URL) (*page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return &page{doc: doc, url: u}, nil
}

func (p *page) findAll(sel Selector) []*Element {
	var out []*Element
	p.doc.Find(sel.CSS).Each(func(i int, s *goquery.Selection) {
		if sel.Contains != "" && !strings.Contains(normalizeSpace(s.Text()), sel.Contains) {
			return
		}
		out = append(out, &Element{sel: s, css: sel.CSS, index: i, base: p.url})
	})
	return out
}

func (p *page) find(sel Selector) (*Element, bool) {
	all := p.findAll(sel)
	if len(all) == 0 {
		return nil, false
	}
	return all[0], true
}

func (p *page) source() (string, error) {
	return p.doc.Html()
}

func (p *page) text() string {
	root := p.doc.Selection.Clone()
	root.Find(nonContentSelectors).Remove()
	return normalizeSpace(root.Text())
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
