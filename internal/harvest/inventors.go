// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"strings"

	"github.com/pdiddy/patent-harvester/internal/logger"
	"github.com/pdiddy/patent-harvester/internal/query"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

// ExpandInventors visits each patent link and builds an inventor search
// query for every inventor listed on it. Results are de-duplicated by
// query URL ignoring case. The crawl pauses for a random interval after
// every Timing.ThrottleEvery links.
func (h *Harvester) ExpandInventors(ctx context.Context, q query.Query, links []types.LinkRecord) ([]types.InventorQuery, error) {
	var out []types.InventorQuery
	for i, rec := range links {
		if err := ctx.Err(); err != nil {
			return DedupInventors(out), err
		}

		out = append(out, h.inventorsOn(ctx, q, rec.Link)...)

		processed := i + 1
		if h.timing.ThrottleEvery > 0 && processed%h.timing.ThrottleEvery == 0 && processed < len(links) {
			d := jitter(h.timing.ThrottleMin, h.timing.ThrottleMax)
			h.log.Debug("throttling", logger.Int("processed", processed), logger.Duration("pause", d))
			if err := sleep(ctx, d); err != nil {
				return DedupInventors(out), err
			}
		}
	}
	return DedupInventors(out), nil
}

func (h *Harvester) inventorsOn(ctx context.Context, q query.Query, link string) []types.InventorQuery {
	log := h.log.With(logger.String("link", link))
	if err := h.sess.Navigate(ctx, link); err != nil {
		log.Warn("skipping patent page", logger.Error(err))
		return nil
	}
	if _, err := h.sess.WaitFor(ctx, h.timing.LoadWait, h.sel.InventorLinks); err != nil && ctx.Err() != nil {
		return nil
	}

	var out []types.InventorQuery
	for _, el := range h.sess.FindAll(ctx, h.sel.InventorLinks) {
		if !h.isInventor(el.Attr) {
			continue
		}
		name := el.Text()
		if name == "" {
			continue
		}
		out = append(out, types.InventorQuery{Name: name, Query: q.InventorURL(h.base, name)})
	}
	if len(out) == 0 {
		log.Warn("no inventors on page")
	}
	return out
}

// isInventor reports whether an anchor's marker attribute names an inventor.
func (h *Harvester) isInventor(attr func(string) (string, bool)) bool {
	if h.sel.InventorAttr == "" {
		return true
	}
	v, ok := attr(h.sel.InventorAttr)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(v), strings.ToLower(h.sel.InventorMarker))
}
