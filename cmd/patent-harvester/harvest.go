// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/patent-harvester/internal/browser"
	"github.com/pdiddy/patent-harvester/internal/document"
	"github.com/pdiddy/patent-harvester/internal/harvest"
	"github.com/pdiddy/patent-harvester/internal/httputil"
	"github.com/pdiddy/patent-harvester/internal/logger"
	"github.com/pdiddy/patent-harvester/internal/pipeline"
	"github.com/pdiddy/patent-harvester/internal/query"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "patent-harvester/0.1"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run the full crawl for a search query",
	Long: `Harvest submits the query, collects every result link, expands the
inventors listed on those pages, collects each inventor's patents and
extracts one record per patent page. Pages whose classification codes do
not include the query's classification are kept only when the keyword
occurs often enough in the page text.

Each stage writes a checkpoint to the links directory; --resume-from
continues from one of them.`,
	Example: `  patent-harvester harvest --query "(H04L9) assignee:(Acme)" --workers 4
  patent-harvester harvest --query "(G06N3) assignee:(Acme)" --keyword neural --resume-from details`,
	RunE: runHarvest,
}

func init() {
	addRunFlags(harvestCmd)
	addHarvestFlags(harvestCmd)

	rootCmd.AddCommand(harvestCmd)
}

func addHarvestFlags(cmd *cobra.Command) {
	cmd.Flags().String("require-token", query.DefaultRequiredToken, "token the query must contain")
	cmd.Flags().String("resume-from", "", "resume from a stage checkpoint: inventors, patents or details")
	cmd.Flags().String("archive", "patents", "archive name without the .zip extension")
}

// addRunFlags registers the flags shared by harvest and author.
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("query", "", "search query as typed into the search box")
	f.String("base-url", query.DefaultBaseURL, "search site root")
	f.String("classification", "", "classification code a page must list (default: taken from the query)")
	f.String("keyword", "", "keyword counted in pages without the classification")
	f.Int("min-keywords", 10, "minimum keyword occurrences")
	f.Int("workers", 4, "parallel browser sessions")
	f.Bool("sequential", false, "run every stage on one session")

	f.String("driver", string(types.DriverChrome), "session driver: chrome or http")
	f.Bool("headless", true, "run Chrome without a window")
	f.String("remote-url", "", "DevTools websocket URL of a running browser")
	f.Float64("rps", 1, "navigations per second per session (0 disables the limit)")
	f.Duration("timeout", defaultTimeout, "HTTP request timeout")
	f.String("user-agent", defaultUserAgent, "User-Agent for HTTP requests")
	f.String("selectors", "", "YAML file overriding page selectors")

	f.Duration("page-delay", time.Second, "pause before reading each results page")
	f.Duration("stage-pause", 10*time.Second, "pause between stages")

	f.String("links-dir", "links", "checkpoint directory")
	f.String("result-dir", "result", "output directory, one subdirectory per author")
	f.String("temp-dir", "", "download staging root (default: system temp)")
	f.String("index-dir", "index", "results index directory (empty disables indexing)")
	f.String("checkpoint-format", "json", "checkpoint format: json, yaml or txt")
}

func runHarvest(cmd *cobra.Command, args []string) error {
	start := time.Now()
	defer func() { log.Info("harvest finished", logger.Duration("elapsed", time.Since(start))) }()

	r, err := newRunner(cmd)
	if err != nil {
		log.Error("invalid configuration", logger.Error(err))
		return err
	}

	sum, err := r.Run(cmd.Context())
	if err != nil {
		var nr *harvest.NoResultsError
		switch {
		case errors.As(err, &nr):
			log.Error("search returned no results", logger.String("query", nr.Query))
		case errors.Is(err, query.ErrMissingToken), errors.Is(err, query.ErrMissingClassification):
			log.Error("invalid query", logger.Error(err))
		default:
			log.Error("harvest failed", logger.Error(err))
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sum.Render())
	return nil
}

// newRunner binds the command's flags to viper and assembles a runner
// from the merged flag, environment and config file values.
func newRunner(cmd *cobra.Command) (*pipeline.Runner, error) {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	stage, err := pipeline.ParseStage(viper.GetString("resume-from"))
	if err != nil {
		return nil, err
	}
	sel, err := harvest.LoadSelectors(viper.GetString("selectors"))
	if err != nil {
		return nil, err
	}

	bcfg := types.BrowserConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   viper.GetDuration("timeout"),
			UserAgent: viper.GetString("user-agent"),
		},
		Driver:            types.Driver(viper.GetString("driver")),
		Headless:          viper.GetBool("headless"),
		RemoteURL:         viper.GetString("remote-url"),
		RequestsPerSecond: viper.GetFloat64("rps"),
	}
	loadedSecrets.Apply(&bcfg)

	client, err := httputil.NewClient(bcfg.HTTPConfig)
	if err != nil {
		return nil, err
	}
	open, err := browser.NewOpener(bcfg, client)
	if err != nil {
		return nil, err
	}

	timing := types.DefaultTiming()
	timing.PageDelay = viper.GetDuration("page-delay")
	timing.StagePause = viper.GetDuration("stage-pause")

	cfg := pipeline.Config{
		Query:         viper.GetString("query"),
		RequiredToken: viper.GetString("require-token"),
		Filter: types.FilterConfig{
			Classification:  viper.GetString("classification"),
			Keyword:         viper.GetString("keyword"),
			MinKeywordCount: viper.GetInt("min-keywords"),
		},
		Workers:    viper.GetInt("workers"),
		Sequential: viper.GetBool("sequential"),
		ResumeFrom: stage,
		BaseURL:    viper.GetString("base-url"),
		Selectors:  sel,
		Timing:     timing,
		Output: types.OutputConfig{
			LinksDir:         viper.GetString("links-dir"),
			ResultDir:        viper.GetString("result-dir"),
			TempDir:          viper.GetString("temp-dir"),
			IndexDir:         viper.GetString("index-dir"),
			ArchiveName:      viper.GetString("archive"),
			CheckpointFormat: viper.GetString("checkpoint-format"),
		},
	}
	log.Debug("run configuration",
		logger.String("driver", string(bcfg.Driver)),
		logger.Int("workers", cfg.Workers),
		logger.String("resume_from", string(stage)))

	return pipeline.New(cfg, open, document.NewFetcher(client, bcfg.UserAgent), log), nil
}
