package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoRootURLs is returned when the seed list is empty.
	// Without at least one root URL there is nowhere to start the crawl.
	ErrNoRootURLs = errors.New("no root URLs configured: provide at least one seed URL")

	// ErrInvalidRootURL is returned when a seed entry is not an absolute
	// http or https URL.
	ErrInvalidRootURL = errors.New("invalid root URL: must be an absolute http(s) URL")

	// ErrNegativeSleep is returned when the minimum inter-request delay is
	// negative. Use 0 for no lower bound.
	ErrNegativeSleep = errors.New("invalid min sleep: must be non-negative")

	// ErrInvertedSleepBounds is returned when the minimum delay exceeds the
	// maximum delay, which would make the sleep range empty.
	ErrInvertedSleepBounds = errors.New("invalid sleep bounds: min sleep must not exceed max sleep")

	// ErrNegativeTimeout is returned when the run timeout is negative.
	// A zero timeout means the run is unbounded.
	ErrNegativeTimeout = errors.New("invalid timeout: must be non-negative (0 means unbounded)")

	// ErrInvalidRequestTimeout is returned when the per-request timeout is
	// not positive. Requests must always be bounded so a single unresponsive
	// server cannot stall the run.
	ErrInvalidRequestTimeout = errors.New("invalid request timeout: must be positive")

	// ErrInvalidReselectEvery is returned when the root reselection
	// frequency is not positive. The engine jumps back to a random seed
	// every N iterations; N must be at least 1.
	ErrInvalidReselectEvery = errors.New("invalid reselect frequency: must be positive")

	// ErrInvalidMaxBodySize is returned when the response body limit is not
	// positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")
)
