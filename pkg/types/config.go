// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by the HTTP session and the
// document fetcher.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "patent-harvester/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// ProxyURL routes every request through an HTTP proxy when set.
	ProxyURL string `json:"proxy_url,omitempty" yaml:"proxy_url,omitempty"`
}

// Driver names a browser session implementation.
type Driver string

const (
	DriverChrome Driver = "chrome"
	DriverHTTP   Driver = "http"
)

// BrowserConfig holds settings for opening browser sessions.
type BrowserConfig struct {
	HTTPConfig `yaml:",inline"`

	// Driver selects the session implementation (default chrome).
	Driver Driver `json:"driver" yaml:"driver"`

	// Headless runs Chrome without a window (default true).
	Headless bool `json:"headless" yaml:"headless"`

	// RemoteURL is a DevTools websocket URL. When set, sessions attach to a
	// running browser instead of launching one.
	RemoteURL string `json:"remote_url,omitempty" yaml:"remote_url,omitempty"`

	// RequestsPerSecond bounds navigations per session; zero disables the limit.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// SettleDelay is the pause after a click before the DOM is read again.
	SettleDelay time.Duration `json:"settle_delay" yaml:"settle_delay"`
}

// FilterConfig controls the classification/keyword gate.
type FilterConfig struct {
	// Classification is the code a page must list (e.g. "H04L9").
	Classification string `json:"classification" yaml:"classification"`

	// Keyword is counted in the page text when no code matches.
	Keyword string `json:"keyword" yaml:"keyword"`

	// MinKeywordCount is the minimum number of keyword occurrences (default 10).
	MinKeywordCount int `json:"min_keyword_count" yaml:"min_keyword_count"`
}

// TimingConfig holds the politeness and wait settings of the collectors.
type TimingConfig struct {
	// PageDelay is the pause before reading each results page (default 1s).
	PageDelay time.Duration `json:"page_delay" yaml:"page_delay"`

	// ClickTimeout bounds the wait for a clickable control (default 5s).
	ClickTimeout time.Duration `json:"click_timeout" yaml:"click_timeout"`

	// MaxFailedClicks ends pagination after this many consecutive failures (default 3).
	MaxFailedClicks int `json:"max_failed_clicks" yaml:"max_failed_clicks"`

	// ThrottleEvery pauses the inventor expander after this many links (default 10).
	ThrottleEvery int `json:"throttle_every" yaml:"throttle_every"`

	// ThrottleMin and ThrottleMax bound the random pause (default 5s and 10s).
	ThrottleMin time.Duration `json:"throttle_min" yaml:"throttle_min"`
	ThrottleMax time.Duration `json:"throttle_max" yaml:"throttle_max"`

	// StagePause is the pause between pipeline stages (default 10s).
	StagePause time.Duration `json:"stage_pause" yaml:"stage_pause"`

	// LoadWait bounds the wait for a results list or its no-results
	// notice to render (default 6s).
	LoadWait time.Duration `json:"load_wait" yaml:"load_wait"`
}

// DefaultTiming returns the timing used when nothing is configured.
func DefaultTiming() TimingConfig {
	return TimingConfig{
		PageDelay:       1 * time.Second,
		ClickTimeout:    5 * time.Second,
		MaxFailedClicks: 3,
		ThrottleEvery:   10,
		ThrottleMin:     5 * time.Second,
		ThrottleMax:     10 * time.Second,
		StagePause:      10 * time.Second,
		LoadWait:        6 * time.Second,
	}
}

// OutputConfig names the directories the pipeline writes to.
type OutputConfig struct {
	// LinksDir holds stage checkpoints (default "links").
	LinksDir string `json:"links_dir" yaml:"links_dir"`

	// ResultDir holds one directory per author (default "result").
	ResultDir string `json:"result_dir" yaml:"result_dir"`

	// TempDir is the shared download staging root (default
	// $TMPDIR/patent-harvester).
	TempDir string `json:"temp_dir" yaml:"temp_dir"`

	// IndexDir holds the SQLite results index; empty disables indexing.
	IndexDir string `json:"index_dir" yaml:"index_dir"`

	// ArchiveName is the zip file name without extension.
	ArchiveName string `json:"archive_name" yaml:"archive_name"`

	// CheckpointFormat is the checkpoint file extension: json, yaml or txt.
	CheckpointFormat string `json:"checkpoint_format" yaml:"checkpoint_format"`
}
