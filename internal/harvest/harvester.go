// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest implements the crawl stages: collecting result links for
// a query, expanding patents into inventor queries, collecting each
// inventor's patents and extracting patent records.
package harvest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/pdiddy/patent-harvester/internal/browser"
	"github.com/pdiddy/patent-harvester/internal/logger"
	"github.com/pdiddy/patent-harvester/internal/query"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

// NoResultsError reports a search that matched nothing.
type NoResultsError struct {
	Query string
}

func (e *NoResultsError) Error() string {
	return fmt.Sprintf("no results for query %q", e.Query)
}

// sleep and jitter are package vars so tests can skip real waits.
var (
	sleep = browser.Sleep

	jitter = func(lo, hi time.Duration) time.Duration {
		if hi <= lo {
			return lo
		}
		return lo + rand.N(hi-lo+1)
	}
)

// Options configures a Harvester.
type Options struct {
	// BaseURL is the search site root (default query.DefaultBaseURL).
	BaseURL   string
	Selectors Selectors
	Timing    types.TimingConfig
	Log       logger.Logger
}

// Harvester runs the crawl stages on one session.
type Harvester struct {
	sess   browser.Session
	base   string
	sel    Selectors
	timing types.TimingConfig
	log    logger.Logger
}

// New returns a Harvester driving sess. Zero timing values take defaults.
func New(sess browser.Session, opts Options) *Harvester {
	if opts.BaseURL == "" {
		opts.BaseURL = query.DefaultBaseURL
	}
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	return &Harvester{
		sess:   sess,
		base:   opts.BaseURL,
		sel:    opts.Selectors,
		timing: withTimingDefaults(opts.Timing),
		log:    opts.Log,
	}
}

func withTimingDefaults(t types.TimingConfig) types.TimingConfig {
	d := types.DefaultTiming()
	if t.ClickTimeout <= 0 {
		t.ClickTimeout = d.ClickTimeout
	}
	if t.MaxFailedClicks <= 0 {
		t.MaxFailedClicks = d.MaxFailedClicks
	}
	if t.ThrottleEvery < 0 {
		t.ThrottleEvery = 0
	}
	if t.ThrottleMax < t.ThrottleMin {
		t.ThrottleMax = t.ThrottleMin
	}
	if t.LoadWait <= 0 {
		t.LoadWait = d.LoadWait
	}
	return t
}

// pause sleeps for d, then drops the session's cached view of a page that
// may have changed meanwhile.
func (h *Harvester) pause(ctx context.Context, d time.Duration) error {
	if err := sleep(ctx, d); err != nil {
		return err
	}
	h.sess.Refresh()
	return nil
}

// awaitResults waits up to LoadWait for the result list or the no-results
// notice and reports whether the notice rendered. When neither shows in
// time the page is read as it stands.
func (h *Harvester) awaitResults(ctx context.Context) (bool, error) {
	i, err := h.sess.WaitFor(ctx, h.timing.LoadWait, h.sel.NoResults, h.sel.ResultLink)
	if err == nil {
		return i == 0, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	h.log.Warn("results did not render", logger.Duration("waited", h.timing.LoadWait), logger.Error(err))
	return false, nil
}

// DedupLinks removes exact duplicates, keeping first-seen order.
func DedupLinks(links []string) []string {
	seen := make(map[string]bool, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// DedupInventors removes queries whose URLs are equal ignoring case; the
// first occurrence wins.
func DedupInventors(queries []types.InventorQuery) []types.InventorQuery {
	seen := make(map[string]bool, len(queries))
	out := make([]types.InventorQuery, 0, len(queries))
	for _, q := range queries {
		key := strings.ToLower(q.Query)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}

// LinkRecords wraps links as records.
func LinkRecords(links []string) []types.LinkRecord {
	out := make([]types.LinkRecord, len(links))
	for i, l := range links {
		out[i] = types.LinkRecord{Link: l}
	}
	return out
}

// Links unwraps records, dropping duplicates.
func Links(records []types.LinkRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Link
	}
	return DedupLinks(out)
}
