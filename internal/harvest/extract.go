// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"strings"

	"github.com/pdiddy/patent-harvester/internal/browser"
	"github.com/pdiddy/patent-harvester/internal/document"
	"github.com/pdiddy/patent-harvester/internal/logger"
	"github.com/pdiddy/patent-harvester/internal/materialize"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

// DetailOptions configures patent detail extraction.
type DetailOptions struct {
	// Gate rejects irrelevant pages. A nil or disabled gate keeps all.
	Gate *Gate

	// Fetcher downloads linked PDFs. Without one every page is stored as
	// HTML.
	Fetcher *document.Fetcher

	// TempDir is the root for per-download staging directories.
	TempDir string
}

// ExtractAuthor extracts every link of group into <resultDir>/<author>.
// Pages that fail to load or fail the gate are counted as discarded. Only
// ctx cancellation and directory errors stop the author early.
func (h *Harvester) ExtractAuthor(ctx context.Context, group types.AuthorPatentGroup, resultDir string, opts DetailOptions) (types.AuthorResult, error) {
	dirName := group.Dir
	if dirName == "" {
		dirName = group.Name
	}
	authorDir, patentsDir, err := materialize.MakeAuthorDirs(resultDir, dirName)
	if err != nil {
		return types.AuthorResult{Name: group.Name}, err
	}
	res := types.AuthorResult{Name: group.Name, Dir: authorDir}

	log := h.log.With(logger.String("inventor", group.Name))
	var b RecordBuilder
	for _, link := range group.Links {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec, ok := h.extract(ctx, &b, link, patentsDir, opts, log)
		if !ok {
			res.Discarded++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	log.Info("extracted inventor patents",
		logger.Int("records", len(res.Records)), logger.Int("discarded", res.Discarded))
	return res, nil
}

// Extract visits one patent page and returns its record. ok is false when
// the page could not be loaded or the gate rejected it.
func (h *Harvester) Extract(ctx context.Context, link, patentsDir string, opts DetailOptions) (types.PatentRecord, bool) {
	var b RecordBuilder
	return h.extract(ctx, &b, link, patentsDir, opts, h.log)
}

func (h *Harvester) extract(ctx context.Context, b *RecordBuilder, link, patentsDir string, opts DetailOptions, log logger.Logger) (types.PatentRecord, bool) {
	defer b.Reset()
	log = log.With(logger.String("link", link))

	if err := h.sess.Navigate(ctx, link); err != nil {
		log.Warn("skipping patent page", logger.Error(err))
		return types.PatentRecord{}, false
	}
	if err := h.pause(ctx, h.timing.PageDelay); err != nil {
		return types.PatentRecord{}, false
	}
	b.Start(link)

	h.expandClassifications(ctx, log)

	codes := h.classificationCodes(ctx)
	if ok, n := opts.Gate.Allow(codes, func() string { return h.pageText(ctx, log) }); !ok {
		log.Info("discarding patent", logger.Int("codes", len(codes)), logger.Int("keyword_count", n))
		return types.PatentRecord{}, false
	}
	b.SetClassificationCodes(strings.Join(codes, ", "))

	b.SetTitle(h.text(ctx, h.sel.Title, log))
	h.people(ctx, b)
	b.SetCountry(h.text(ctx, h.sel.Country, log))
	b.SetPriorityDate(ReformatDate(h.text(ctx, h.sel.PriorityDate, log)))
	b.SetPatentCode(h.text(ctx, h.sel.PatentCode, log))
	b.SetPublicationDate(h.publicationDate(ctx, b.PatentCode(), log))
	b.SetAbstract(h.text(ctx, h.sel.Abstract, log))

	if p := h.storeDocument(ctx, b, patentsDir, opts, log); p != "" {
		b.SetDocumentPath(document.ShortPath(p))
	}

	return b.Freeze(), true
}

// expandClassifications clicks the "more classifications" control when
// the page shows one.
func (h *Harvester) expandClassifications(ctx context.Context, log logger.Logger) {
	more, ok := h.sess.Find(ctx, h.sel.MoreClassifications)
	if !ok {
		return
	}
	if err := h.sess.Click(ctx, more); err != nil {
		log.Debug("expanding classifications", logger.Error(err))
	}
}

// classificationCodes returns the distinct codes on the page in order.
func (h *Harvester) classificationCodes(ctx context.Context) []string {
	var codes []string
	seen := make(map[string]bool)
	for _, el := range h.sess.FindAll(ctx, h.sel.ClassificationCodes) {
		c := el.Text()
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		codes = append(codes, c)
	}
	return codes
}

func (h *Harvester) pageText(ctx context.Context, log logger.Logger) string {
	text, err := h.sess.PageText(ctx)
	if err != nil {
		log.Warn("reading page text", logger.Error(err))
	}
	return text
}

// text returns the text of the first element matching sel, or "".
func (h *Harvester) text(ctx context.Context, sel browser.Selector, log logger.Logger) string {
	el, ok := h.sess.Find(ctx, sel)
	if !ok {
		log.Warn("element not found", logger.String("selector", sel.String()))
		return ""
	}
	return el.Text()
}

// people walks the definition list of the people panel. A dt label
// selects the bucket the following dd values go to: inventors, current
// assignees, or none.
func (h *Harvester) people(ctx context.Context, b *RecordBuilder) {
	const (
		none = iota
		inventors
		assignees
	)
	bucket := none
	for _, el := range h.sess.FindAll(ctx, h.sel.People) {
		switch el.Tag() {
		case "dt":
			label := strings.ToLower(el.Text())
			switch {
			case strings.HasPrefix(label, strings.ToLower(h.sel.InventorLabel)):
				bucket = inventors
			case strings.Contains(label, strings.ToLower(h.sel.AssigneeLabel)):
				bucket = assignees
			default:
				bucket = none
			}
		case "dd":
			name := el.Text()
			if h.sel.PeopleLink != "" {
				if a, ok := el.Find(h.sel.PeopleLink); ok {
					name = a.Text()
				}
			}
			switch bucket {
			case inventors:
				b.AddInventor(name)
			case assignees:
				b.AddAssignee(name)
			}
		}
	}
}

// publicationDate finds the timeline event naming code and reformats its
// date. An empty code yields "".
func (h *Harvester) publicationDate(ctx context.Context, code string, log logger.Logger) string {
	if code == "" {
		log.Debug("no patent code, skipping publication date")
		return ""
	}
	ev, ok := h.sess.Find(ctx, h.sel.PublicationEvent.WithText(code))
	if !ok {
		log.Warn("publication event not found", logger.String("patent_code", code))
		return ""
	}
	d, ok := ev.Find(h.sel.PublicationDate)
	if !ok {
		return ""
	}
	return ReformatDate(d.Text())
}

// storeDocument downloads the linked PDF into patentsDir, falling back to
// the page markup saved as HTML. It returns the stored path or "".
func (h *Harvester) storeDocument(ctx context.Context, b *RecordBuilder, patentsDir string, opts DetailOptions, log logger.Logger) string {
	if el, ok := h.sess.Find(ctx, h.sel.PDFLink); ok && opts.Fetcher != nil {
		if href, ok := el.Href(); ok {
			p, err := opts.Fetcher.Download(ctx, href, opts.TempDir, patentsDir)
			if err == nil {
				return p
			}
			log.Warn("document download failed, saving page instead", logger.String("url", href), logger.Error(err))
		}
	}

	markup, err := h.sess.PageSource(ctx)
	if err != nil {
		log.Warn("reading page source", logger.Error(err))
		return ""
	}
	stem := b.PatentCode()
	if stem == "" {
		stem = document.PatentNumber(b.Link())
	}
	p, err := document.SaveHTML(patentsDir, stem, markup)
	if err != nil {
		log.Warn("saving page", logger.Error(err))
		return ""
	}
	return p
}
