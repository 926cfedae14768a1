// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/patent-harvester/internal/logger"
	"github.com/pdiddy/patent-harvester/internal/materialize"
	"github.com/pdiddy/patent-harvester/internal/query"
	"github.com/pdiddy/patent-harvester/internal/workers"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

var (
	// ErrEmptyQuery reports a run without a search query.
	ErrEmptyQuery = errors.New("search query is empty")

	// ErrNoAuthor reports an author run without an author name.
	ErrNoAuthor = errors.New("author name is empty")

	// ErrNoCheckpoint reports a resume whose stage checkpoint is missing.
	ErrNoCheckpoint = errors.New("checkpoint not found")
)

// RunAuthor harvests every result of the query into a single author
// directory named after author. Inventor expansion is skipped, the
// required token is not enforced and the gate applies only when a
// classification or keyword is configured. The archive defaults to the
// author's directory name.
func (r *Runner) RunAuthor(ctx context.Context, author string) (sum Summary, err error) {
	sum.StartedAt = time.Now()
	sum.RunID = uuid.NewString()
	defer func() { sum.Elapsed = time.Since(sum.StartedAt) }()

	author = strings.TrimSpace(author)
	if author == "" {
		return sum, ErrNoAuthor
	}
	q := query.Query{Raw: strings.TrimSpace(r.cfg.Query)}
	if q.Raw == "" {
		return sum, ErrEmptyQuery
	}

	log := r.log.With(logger.String("run_id", sum.RunID), logger.String("author", author))
	log.Info("starting author harvest", logger.String("query", q.Raw), logger.Int("workers", r.cfg.Workers))
	defer r.closeSession(log)

	if err := r.ensureDirs(); err != nil {
		return sum, err
	}

	links, err := r.mainLinks(ctx, q, log)
	if err != nil {
		return sum, err
	}
	sum.MainLinks = len(links)
	sum.Authors = 1

	if err := r.pause(ctx, log); err != nil {
		return sum, err
	}
	partials, err := runStage(ctx, r, "details", links, log,
		func(ctx context.Context, w workers.Worker, part []types.LinkRecord, acc *workers.Accumulator[types.AuthorResult]) error {
			group := types.AuthorPatentGroup{Name: author, Links: make([]string, len(part))}
			for i, l := range part {
				group.Links[i] = l.Link
			}
			res, err := r.harvester(w.Session, w.Log).ExtractAuthor(ctx, group, r.cfg.Output.ResultDir, r.detailOptions(r.cfg.Filter))
			if res.Dir != "" {
				acc.Extend(res)
			}
			return err
		})
	if err != nil {
		return sum, err
	}

	archive := r.cfg.Output.ArchiveName
	if archive == "" {
		archive = materialize.AuthorDirName(author)
	}
	return sum, r.finish(ctx, q, []types.AuthorResult{mergeResults(author, partials)}, archive, &sum, log)
}

// mergeResults folds per-worker results for one author into one.
func mergeResults(author string, parts []types.AuthorResult) types.AuthorResult {
	merged := types.AuthorResult{Name: author}
	for _, p := range parts {
		if merged.Dir == "" {
			merged.Dir = p.Dir
		}
		merged.Records = append(merged.Records, p.Records...)
		merged.Discarded += p.Discarded
	}
	return merged
}
