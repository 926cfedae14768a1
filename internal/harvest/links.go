// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/patent-harvester/internal/logger"
	"github.com/pdiddy/patent-harvester/internal/query"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

// CollectMainLinks submits q on the search page and pages through every
// result, returning unique patent links in first-seen order. A search with
// no results fails with *NoResultsError.
func (h *Harvester) CollectMainLinks(ctx context.Context, q query.Query) ([]types.LinkRecord, error) {
	if err := h.sess.Navigate(ctx, h.base); err != nil {
		return nil, fmt.Errorf("opening search page: %w", err)
	}
	if err := h.sess.Submit(ctx, h.sel.SearchInput, q.Raw); err != nil {
		return nil, fmt.Errorf("submitting query: %w", err)
	}
	empty, err := h.awaitResults(ctx)
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, &NoResultsError{Query: q.Raw}
	}

	h.maximizePageSize(ctx)

	links, err := h.paginate(ctx)
	h.log.Info("collected result links", logger.Int("links", len(links)))
	return LinkRecords(links), err
}

// CollectInventorPatents visits each inventor query and collects the
// inventor's patent links. Inventors without results are skipped; output
// order follows input order.
func (h *Harvester) CollectInventorPatents(ctx context.Context, queries []types.InventorQuery) ([]types.AuthorPatentGroup, error) {
	var groups []types.AuthorPatentGroup
	for _, iq := range queries {
		if err := ctx.Err(); err != nil {
			return groups, err
		}
		log := h.log.With(logger.String("inventor", iq.Name))

		if err := h.sess.Navigate(ctx, iq.Query); err != nil {
			log.Warn("skipping inventor", logger.Error(err))
			continue
		}
		empty, err := h.awaitResults(ctx)
		if err != nil {
			return groups, err
		}
		if empty {
			log.Warn("no results for inventor")
			continue
		}

		links, err := h.paginate(ctx)
		if err != nil {
			return groups, err
		}
		log.Info("collected inventor patents", logger.Int("links", len(links)))
		groups = append(groups, types.AuthorPatentGroup{Name: iq.Name, Links: links})
	}
	return groups, nil
}

// maximizePageSize asks for the largest results page. Missing controls
// leave the default page size.
func (h *Harvester) maximizePageSize(ctx context.Context) {
	menu, ok := h.sess.Find(ctx, h.sel.ResultsPerPage)
	if !ok {
		h.log.Debug("results-per-page control not found")
		return
	}
	if err := h.sess.Click(ctx, menu); err != nil {
		h.log.Warn("opening results-per-page menu", logger.Error(err))
		return
	}
	opt, err := h.sess.WaitClickable(ctx, h.sel.MaxResultsOption, h.timing.ClickTimeout)
	if err == nil {
		err = h.sess.Click(ctx, opt)
	}
	if err != nil {
		h.log.Warn("selecting maximum page size", logger.Error(err))
	}
}

// paginate reads the result count, then collects links page by page until
// the count is reached. Pagination also ends after MaxFailedClicks
// consecutive failed clicks on the next control, or as many consecutive
// pages without new links. With no readable count it stops at the first
// missing next control.
func (h *Harvester) paginate(ctx context.Context) ([]string, error) {
	total := h.resultCount(ctx)

	var (
		links []string
		seen  = make(map[string]bool)
		stale int
	)
	for page := 1; ; page++ {
		if err := h.pause(ctx, h.timing.PageDelay); err != nil {
			return links, err
		}

		fresh := 0
		for _, l := range h.pageLinks(ctx) {
			if !seen[l] {
				seen[l] = true
				links = append(links, l)
				fresh++
			}
		}
		if fresh == 0 {
			stale++
			h.log.Warn("results page yielded no new links", logger.Int("page", page))
		} else {
			stale = 0
		}

		if total > 0 && len(links) >= total {
			break
		}
		if stale >= h.timing.MaxFailedClicks {
			h.log.Warn("stopping pagination", logger.Int("collected", len(links)), logger.Int("expected", total))
			break
		}

		advanced, err := h.nextPage(ctx, page, total > 0)
		if err != nil {
			return links, err
		}
		if !advanced {
			if total > 0 {
				h.log.Warn("stopping pagination", logger.Int("collected", len(links)), logger.Int("expected", total))
			}
			break
		}
	}
	return links, nil
}

// nextPage clicks the next control, retrying up to MaxFailedClicks times
// when retry is set. It reports whether the click went through; the error
// is non-nil only when ctx is done.
func (h *Harvester) nextPage(ctx context.Context, page int, retry bool) (bool, error) {
	for attempt := 1; attempt <= h.timing.MaxFailedClicks; attempt++ {
		next, err := h.sess.WaitClickable(ctx, h.sel.NextPage, h.timing.ClickTimeout)
		if err == nil {
			err = h.sess.Click(ctx, next)
		}
		if err == nil {
			return true, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if !retry {
			return false, nil
		}
		h.log.Warn("next page not clickable", logger.Int("page", page), logger.Int("attempt", attempt), logger.Error(err))
	}
	return false, nil
}

// pageLinks returns the absolute result links on the current page.
func (h *Harvester) pageLinks(ctx context.Context) []string {
	var out []string
	for _, el := range h.sess.FindAll(ctx, h.sel.ResultLink) {
		var ref string
		if h.sel.ResultLinkAttr != "" {
			ref, _ = el.Attr(h.sel.ResultLinkAttr)
		} else {
			ref, _ = el.Href()
		}
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		out = append(out, query.Resolve(h.base, ref))
	}
	return out
}

// resultCount parses the first number in the result counter, accepting
// thousands separators. It returns 0 when the counter is missing.
func (h *Harvester) resultCount(ctx context.Context) int {
	el, ok := h.sess.Find(ctx, h.sel.ResultCount)
	if !ok {
		h.log.Debug("result counter not found")
		return 0
	}
	if n, ok := ParseCount(el.Text()); ok {
		return n
	}
	h.log.Warn("unreadable result counter", logger.String("text", el.Text()))
	return 0
}

var digitSeparators = strings.NewReplacer(",", "", ".", "", "'", "")

// ParseCount returns the first whitespace-separated token of text that is
// a number once thousands separators are removed.
func ParseCount(text string) (int, bool) {
	for _, tok := range strings.Fields(text) {
		tok = digitSeparators.Replace(tok)
		if tok == "" {
			continue
		}
		if n, err := strconv.Atoi(tok); err == nil && n >= 0 && !strings.HasPrefix(tok, "+") && !strings.HasPrefix(tok, "-") {
			return n, true
		}
	}
	return 0, false
}
