// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the harvest stages end to end: collect result
// links, expand inventors, collect each inventor's patents, extract patent
// records, then write workbooks, index and archive the result tree. Every
// stage output is checkpointed before the next stage starts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/patent-harvester/internal/browser"
	"github.com/pdiddy/patent-harvester/internal/checkpoint"
	"github.com/pdiddy/patent-harvester/internal/document"
	"github.com/pdiddy/patent-harvester/internal/harvest"
	"github.com/pdiddy/patent-harvester/internal/index"
	"github.com/pdiddy/patent-harvester/internal/logger"
	"github.com/pdiddy/patent-harvester/internal/materialize"
	"github.com/pdiddy/patent-harvester/internal/query"
	"github.com/pdiddy/patent-harvester/internal/workers"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

// Stage names a pipeline stage a run can resume from.
type Stage string

const (
	StageLinks     Stage = "links"
	StageInventors Stage = "inventors"
	StagePatents   Stage = "patents"
	StageDetails   Stage = "details"
)

// ParseStage validates a --resume-from value. Empty selects StageLinks.
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case "", StageLinks:
		return StageLinks, nil
	case StageInventors, StagePatents, StageDetails:
		return Stage(s), nil
	}
	return "", fmt.Errorf("unknown stage %q (want links, inventors, patents or details)", s)
}

func (s Stage) order() int {
	switch s {
	case StageInventors:
		return 1
	case StagePatents:
		return 2
	case StageDetails:
		return 3
	}
	return 0
}

// Config holds everything a run needs.
type Config struct {
	// Query is the search query as entered.
	Query string

	// RequiredToken must occur in Query (default "assignee").
	RequiredToken string

	// Filter configures the gate. An empty Classification is taken from
	// the query.
	Filter types.FilterConfig

	// Workers is the partition count for stages 2-4.
	Workers int

	// Sequential runs every stage on one session.
	Sequential bool

	// ResumeFrom skips the stages before it, reading their checkpoints.
	ResumeFrom Stage

	BaseURL   string
	Selectors harvest.Selectors
	Timing    types.TimingConfig
	Output    types.OutputConfig
}

// Runner executes runs with one Config.
type Runner struct {
	cfg     Config
	open    browser.Opener
	fetcher *document.Fetcher
	log     logger.Logger

	// sess is the single session of stage 1 and of sequential runs.
	sess browser.Session
}

// New returns a Runner that opens sessions with open and downloads
// documents with fetcher.
func New(cfg Config, open browser.Opener, fetcher *document.Fetcher, log logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ResumeFrom == "" {
		cfg.ResumeFrom = StageLinks
	}
	return &Runner{cfg: cfg, open: open, fetcher: fetcher, log: log}
}

// Run performs a full harvest. The query is validated before any page is
// opened or file written.
func (r *Runner) Run(ctx context.Context) (sum Summary, err error) {
	sum.StartedAt = time.Now()
	sum.RunID = uuid.NewString()
	defer func() { sum.Elapsed = time.Since(sum.StartedAt) }()

	q, err := query.Parse(r.cfg.Query, r.cfg.RequiredToken)
	if err != nil {
		return sum, err
	}
	filter := r.cfg.Filter
	if filter.Classification, err = q.RequireClassification(filter.Classification); err != nil {
		return sum, err
	}

	log := r.log.With(logger.String("run_id", sum.RunID))
	log.Info("starting harvest",
		logger.String("query", q.Raw),
		logger.String("classification", filter.Classification),
		logger.Int("workers", r.cfg.Workers))
	defer r.closeSession(log)

	if err := r.ensureDirs(); err != nil {
		return sum, err
	}

	links, err := r.mainLinks(ctx, q, log)
	if err != nil {
		return sum, err
	}
	sum.MainLinks = len(links)

	inventors, err := r.inventors(ctx, q, links, log)
	if err != nil {
		return sum, err
	}
	sum.Inventors = len(inventors)

	groups, err := r.patents(ctx, inventors, log)
	if err != nil {
		return sum, err
	}
	sum.Authors = len(groups)
	assignAuthorDirs(groups)

	if err := r.pause(ctx, log); err != nil {
		return sum, err
	}
	results, err := runStage(ctx, r, "details", groups, log,
		func(ctx context.Context, w workers.Worker, part []types.AuthorPatentGroup, acc *workers.Accumulator[types.AuthorResult]) error {
			h := r.harvester(w.Session, w.Log)
			opts := r.detailOptions(filter)
			for _, g := range part {
				res, err := h.ExtractAuthor(ctx, g, r.cfg.Output.ResultDir, opts)
				if res.Dir != "" {
					acc.Extend(res)
				}
				if err != nil {
					if ctx.Err() != nil {
						return err
					}
					w.Log.Error("skipping author", logger.String("inventor", g.Name), logger.Error(err))
				}
			}
			return nil
		})
	if err != nil {
		return sum, err
	}

	return sum, r.finish(ctx, q, results, r.cfg.Output.ArchiveName, &sum, log)
}

// assignAuthorDirs gives every group its own result directory, suffixing
// names that map to the same directory.
func assignAuthorDirs(groups []types.AuthorPatentGroup) {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	for i, dir := range materialize.UniqueAuthorDirNames(names) {
		groups[i].Dir = dir
	}
}

func (r *Runner) ensureDirs() error {
	for _, dir := range []string{r.cfg.Output.LinksDir, r.cfg.Output.ResultDir} {
		if err := materialize.EnsureDir(dir); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) mainLinks(ctx context.Context, q query.Query, log logger.Logger) ([]types.LinkRecord, error) {
	path := r.checkpointPath(checkpoint.MainLinks)
	if r.cfg.ResumeFrom.order() > 0 {
		return resume[types.LinkRecord](path, log)
	}

	sess, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	links, err := r.harvester(sess, log).CollectMainLinks(ctx, q)
	if err != nil {
		return nil, err
	}
	if !r.cfg.Sequential {
		r.closeSession(log)
	}
	return links, save(path, links, log)
}

func (r *Runner) inventors(ctx context.Context, q query.Query, links []types.LinkRecord, log logger.Logger) ([]types.InventorQuery, error) {
	path := r.checkpointPath(checkpoint.Inventors)
	if r.cfg.ResumeFrom.order() > 1 {
		return resume[types.InventorQuery](path, log)
	}
	if err := r.pause(ctx, log); err != nil {
		return nil, err
	}

	out, err := runStage(ctx, r, "inventors", links, log,
		func(ctx context.Context, w workers.Worker, part []types.LinkRecord, acc *workers.Accumulator[types.InventorQuery]) error {
			got, err := r.harvester(w.Session, w.Log).ExpandInventors(ctx, q, part)
			acc.Extend(got...)
			return err
		})
	if err != nil {
		return nil, err
	}
	out = harvest.DedupInventors(out)
	return out, save(path, out, log)
}

func (r *Runner) patents(ctx context.Context, inventors []types.InventorQuery, log logger.Logger) ([]types.AuthorPatentGroup, error) {
	path := r.checkpointPath(checkpoint.Patents)
	if r.cfg.ResumeFrom.order() > 2 {
		return resume[types.AuthorPatentGroup](path, log)
	}
	if err := r.pause(ctx, log); err != nil {
		return nil, err
	}

	out, err := runStage(ctx, r, "patents", inventors, log,
		func(ctx context.Context, w workers.Worker, part []types.InventorQuery, acc *workers.Accumulator[types.AuthorPatentGroup]) error {
			got, err := r.harvester(w.Session, w.Log).CollectInventorPatents(ctx, part)
			acc.Extend(got...)
			return err
		})
	if err != nil {
		return nil, err
	}
	return out, save(path, out, log)
}

// finish runs after the last barrier: workbooks per author, the records
// checkpoint, the index, pruning and the archive.
func (r *Runner) finish(ctx context.Context, q query.Query, results []types.AuthorResult, archiveName string, sum *Summary, log logger.Logger) error {
	var records []types.PatentRecord
	for _, res := range results {
		sum.Discarded += res.Discarded
		if len(res.Records) == 0 {
			continue
		}
		records = append(records, res.Records...)
		if err := materialize.WriteWorkbooks(res.Dir, res.Records); err != nil {
			return fmt.Errorf("writing workbooks for %s: %w", res.Name, err)
		}
	}
	sum.Records = len(records)
	log.Success("extraction finished",
		logger.Int("records", sum.Records), logger.Int("discarded", sum.Discarded))

	if err := save(r.checkpointPath(checkpoint.Records), records, log); err != nil {
		return err
	}

	if r.cfg.Output.IndexDir != "" {
		if err := r.ingest(ctx, q, sum, results, log); err != nil {
			return err
		}
	}

	pruned, err := materialize.PruneEmptyAuthorDirs(r.cfg.Output.ResultDir)
	if err != nil {
		return err
	}
	sum.Pruned = pruned
	if pruned > 0 {
		log.Info("removed empty author directories", logger.Int("count", pruned))
	}

	if archiveName == "" {
		return nil
	}
	archive := materialize.ArchiveName(archiveName)
	size, err := materialize.ZipDir(r.cfg.Output.ResultDir, archive)
	if errors.Is(err, materialize.ErrEmptyDir) {
		log.Warn("nothing to archive", logger.String("dir", r.cfg.Output.ResultDir))
		return nil
	}
	if err != nil {
		return fmt.Errorf("archiving results: %w", err)
	}
	if abs, err := filepath.Abs(archive); err == nil {
		archive = abs
	}
	sum.Archive, sum.ArchiveBytes = archive, size
	log.Success("archive written",
		logger.String("path", archive), logger.Int64("size_mb", size/(1024*1024)))
	return nil
}

func (r *Runner) ingest(ctx context.Context, q query.Query, sum *Summary, results []types.AuthorResult, log logger.Logger) error {
	store, err := index.Open(r.cfg.Output.IndexDir, 0)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer store.Close()

	is, err := store.Ingest(ctx, index.Run{ID: sum.RunID, Query: q.Raw, StartedAt: sum.StartedAt}, results)
	if err != nil {
		return fmt.Errorf("indexing records: %w", err)
	}
	log.Info("indexed records", logger.Int("inserted", is.Inserted), logger.Int("updated", is.Updated))
	return nil
}

func (r *Runner) harvester(sess browser.Session, log logger.Logger) *harvest.Harvester {
	return harvest.New(sess, harvest.Options{
		BaseURL:   r.cfg.BaseURL,
		Selectors: r.cfg.Selectors,
		Timing:    r.cfg.Timing,
		Log:       log,
	})
}

func (r *Runner) detailOptions(filter types.FilterConfig) harvest.DetailOptions {
	return harvest.DetailOptions{
		Gate:    harvest.NewGate(filter),
		Fetcher: r.fetcher,
		TempDir: r.tempDir(),
	}
}

func (r *Runner) tempDir() string {
	if r.cfg.Output.TempDir != "" {
		return r.cfg.Output.TempDir
	}
	return filepath.Join(os.TempDir(), "patent-harvester")
}

// checkpointPath places stage checkpoints in the links directory. Plain
// text holds only link lists, so other stages use JSON in that case.
func (r *Runner) checkpointPath(stem string) string {
	format := r.cfg.Output.CheckpointFormat
	if format == "txt" && stem != checkpoint.MainLinks {
		format = "json"
	}
	return checkpoint.Path(r.cfg.Output.LinksDir, stem, format)
}

// session returns the shared single session, opening it on first use.
func (r *Runner) session(ctx context.Context) (browser.Session, error) {
	if r.sess != nil {
		return r.sess, nil
	}
	sess, err := r.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening browser session: %w", err)
	}
	r.sess = sess
	return sess, nil
}

func (r *Runner) closeSession(log logger.Logger) {
	if r.sess == nil {
		return
	}
	if err := r.sess.Close(); err != nil {
		log.Warn("closing browser session", logger.Error(err))
	}
	r.sess = nil
}

func (r *Runner) pause(ctx context.Context, log logger.Logger) error {
	d := r.cfg.Timing.StagePause
	if d <= 0 {
		return ctx.Err()
	}
	log.Debug("pausing between stages", logger.Duration("pause", d))
	return browser.Sleep(ctx, d)
}

// runStage runs fn over items on the shared session when the run is
// sequential, otherwise across cfg.Workers partitions. Worker failures
// other than cancellation are logged and the collected results kept.
func runStage[In, Out any](ctx context.Context, r *Runner, name string, items []In, log logger.Logger, fn workers.StageFunc[In, Out]) ([]Out, error) {
	log = log.With(logger.String("stage", name))
	log.Info("stage started", logger.Int("items", len(items)))

	var (
		out []Out
		err error
	)
	if r.cfg.Sequential || r.cfg.Workers == 1 {
		sess, serr := r.session(ctx)
		if serr != nil {
			return nil, serr
		}
		out, err = workers.RunSequential(ctx, sess, items, log, fn)
	} else {
		out, err = workers.RunParallel(ctx, r.open, items, r.cfg.Workers, log, fn)
	}

	if cerr := ctx.Err(); cerr != nil {
		return out, cerr
	}
	if err != nil {
		log.Error("stage finished with worker errors", logger.Error(err))
	}
	log.Success("stage finished", logger.Int("results", len(out)))
	return out, nil
}

func save[T any](path string, items []T, log logger.Logger) error {
	if err := checkpoint.Write(path, items); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	log.Info("checkpoint written", logger.String("path", path), logger.Int("items", len(items)))
	return nil
}

func resume[T any](path string, log logger.Logger) ([]T, error) {
	if !checkpoint.Exists(path) {
		return nil, fmt.Errorf("resuming from %s: %w", path, ErrNoCheckpoint)
	}
	items, err := checkpoint.Read[T](path)
	if err != nil {
		return nil, fmt.Errorf("resuming from checkpoint: %w", err)
	}
	log.Info("resumed from checkpoint", logger.String("path", path), logger.Int("items", len(items)))
	return items, nil
}
