package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// The crawl pacing defaults mirror a slow human reading cadence; anything
// faster produces a fixed-rate pattern that is easy to filter out of traffic
// captures, which defeats the purpose of the tool.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "webnoise"

	// DefaultRequestTimeout bounds each individual HTTP GET. Five seconds is
	// enough for ordinary sites; a page that takes longer is simply counted
	// as a fetch error and the walk moves on.
	DefaultRequestTimeout = 5 * time.Second

	// DefaultMinSleep and DefaultMaxSleep bound the randomized pause between
	// requests. A 3-6 second range approximates a person skimming a page
	// before clicking the next link.
	DefaultMinSleep = 3 * time.Second
	DefaultMaxSleep = 6 * time.Second

	// DefaultReselectEvery is how many iterations the engine follows one
	// link subtree before jumping back to a random seed. 25 keeps the
	// traffic profile spread across the configured domains instead of
	// drifting permanently into one site's link graph.
	DefaultReselectEvery = 25

	// DefaultMaxBodySize limits how much of a response body is read for
	// link extraction. Bodies are parsed and discarded, never stored, so
	// 2MB comfortably covers real HTML pages.
	DefaultMaxBodySize = 2 * 1024 * 1024

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap when --tor routing is enabled.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// DefaultUserAgents are the browser User-Agent strings rotated across
// requests when the configuration does not provide its own list. Generated
// traffic should blend in with real browsers, so these track current stable
// releases of the major engines.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Config holds all configuration options for a webnoise run.
// It is populated from defaults, an optional YAML file, environment
// variables, and CLI flags, then validated once and passed through the
// application by value of reference rather than global state.
//
// Design decision: We use a single flat struct instead of nested sections
// because the number of options is small and the original tool's settings
// are flat as well. If the configuration grows significantly, consider
// refactoring into sub-structs.
type Config struct {
	// RootURLs are the seed URLs the crawl starts from and periodically
	// jumps back to. Must contain at least one absolute http(s) URL.
	RootURLs []string `yaml:"root_urls"`

	// BlacklistedURLs are substrings that disqualify a discovered link.
	// A link is dropped when any of these substrings appears in it, which
	// keeps the noise away from ad networks, trackers, and logout pages.
	BlacklistedURLs []string `yaml:"blacklisted_urls"`

	// UserAgents are rotated uniformly at random, one per request.
	// When empty, DefaultUserAgents is used.
	UserAgents []string `yaml:"user_agents"`

	// MinSleep and MaxSleep bound the randomized delay between requests.
	// Every iteration sleeps for a duration drawn uniformly from
	// [MinSleep, MaxSleep]. MinSleep must be non-negative and must not
	// exceed MaxSleep.
	MinSleep Duration `yaml:"min_sleep"`
	MaxSleep Duration `yaml:"max_sleep"`

	// Timeout is the wall-clock budget for the whole run. The run stops
	// once elapsed time exceeds it. Zero means the run is unbounded and
	// only stops on an external signal.
	Timeout Duration `yaml:"timeout"`

	// RequestTimeout bounds each individual HTTP request so that a single
	// unresponsive server cannot stall the run. Must be positive.
	RequestTimeout Duration `yaml:"request_timeout"`

	// ReselectEvery is the root-URL reselection frequency in iterations.
	// Every Nth iteration the engine abandons the current link subtree and
	// restarts from a random seed. Must be positive.
	//
	// The original tool called this max_depth; the name here describes what
	// it actually does, since the walk is iterative rather than recursive.
	ReselectEvery int `yaml:"reselect_every"`

	// AllowRevisit permits fetching a URL again when it is reached via a
	// different referrer page. When false (the default), the visit history
	// dedups by URL alone and a page is fetched at most once per run.
	AllowRevisit bool `yaml:"allow_revisit"`

	// MaxBodySize is the maximum number of response body bytes read per
	// page. Must be positive.
	MaxBodySize int64 `yaml:"max_body_size"`

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	// When set, all generated traffic is routed through it.
	ProxyAddress string `yaml:"proxy_address"`

	// UseEmbeddedTor starts an embedded Tor daemon and routes the generated
	// traffic through it, so the noise does not expose the operator's own
	// address. Mutually exclusive with ProxyAddress in spirit; when both
	// are set the embedded daemon wins.
	UseEmbeddedTor bool `yaml:"use_embedded_tor"`

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to bootstrap. Only used when UseEmbeddedTor is true.
	TorStartupTimeout Duration `yaml:"tor_startup_timeout"`

	// SaveHistory enables recording visits and run summaries to a local
	// SQLite database for later inspection. The in-memory visit history
	// that drives dedup still resets at every process start.
	SaveHistory bool `yaml:"save_history"`

	// DBDir is the directory holding the SQLite database when SaveHistory
	// is enabled. Defaults to the XDG data directory.
	DBDir string `yaml:"db_dir"`
}

// NewConfig creates a Config with default values. Root URLs are
// intentionally left empty: the operator must choose the seed sites, and
// Validate rejects an empty list before any network call is made.
//
// Design decision: We use a constructor function instead of relying on zero
// values because most defaults are non-zero, and the function doubles as
// documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		UserAgents:        append([]string(nil), DefaultUserAgents...),
		MinSleep:          DurationFrom(DefaultMinSleep),
		MaxSleep:          DurationFrom(DefaultMaxSleep),
		RequestTimeout:    DurationFrom(DefaultRequestTimeout),
		ReselectEvery:     DefaultReselectEvery,
		MaxBodySize:       DefaultMaxBodySize,
		TorStartupTimeout: DurationFrom(DefaultTorStartupTimeout),
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for webnoise.
// On Linux: ~/.local/share/webnoise
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for webnoise.
// On Linux: ~/.config/webnoise
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid. It returns a specific
// error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast, before the run enters its loop and before any
// network call is made. We return the first error found rather than
// collecting all errors because fixing one error often makes others
// irrelevant.
func (c *Config) Validate() error {
	if len(c.RootURLs) == 0 {
		return ErrNoRootURLs
	}
	for _, raw := range c.RootURLs {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidRootURL, raw)
		}
	}

	if c.MinSleep.Duration < 0 {
		return ErrNegativeSleep
	}
	if c.MinSleep.Duration > c.MaxSleep.Duration {
		return ErrInvertedSleepBounds
	}

	if c.Timeout.Duration < 0 {
		return ErrNegativeTimeout
	}
	if c.RequestTimeout.Duration <= 0 {
		return ErrInvalidRequestTimeout
	}
	if c.ReselectEvery <= 0 {
		return ErrInvalidReselectEvery
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}

// Normalize trims whitespace from list entries, drops empties, and applies
// the default User-Agent list when none is configured. Called by the
// loaders after merging sources.
func (c *Config) Normalize() {
	c.RootURLs = cleanList(c.RootURLs)
	c.BlacklistedURLs = cleanList(c.BlacklistedURLs)
	c.UserAgents = cleanList(c.UserAgents)
	if len(c.UserAgents) == 0 {
		c.UserAgents = append([]string(nil), DefaultUserAgents...)
	}
	c.ProxyAddress = strings.TrimSpace(c.ProxyAddress)
	c.DBDir = strings.TrimSpace(c.DBDir)
	if c.DBDir == "" {
		c.DBDir = XDGDataDir()
	}
}

// cleanList trims each entry and removes empty strings, preserving order.
// Unlike domain lists, entries are not lowercased: URL paths are
// case-sensitive and blacklist substrings must match them literally.
func cleanList(values []string) []string {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		cleaned = append(cleaned, v)
	}
	return cleaned
}
