package model

import "time"

// Outcome describes how a crawl run ended.
type Outcome int

const (
	// OutcomeUnknown means the run has not finished yet.
	OutcomeUnknown Outcome = iota

	// OutcomeTimedOut means the configured wall-clock budget elapsed.
	OutcomeTimedOut

	// OutcomeStopped means an external stop request (interrupt signal or
	// context cancellation) ended the run.
	OutcomeStopped
)

// String returns the human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeTimedOut:
		return "timed out"
	case OutcomeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so outcomes serialize as
// their names in JSON reports rather than opaque integers.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// RunReport summarizes one noise-generation run. It is produced by the
// crawl engine when the run ends and consumed by the report writers and
// the history database.
type RunReport struct {
	// StartTime and EndTime bound the run in wall-clock time.
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// Outcome is how the run ended: timed out or externally stopped.
	Outcome Outcome `json:"outcome"`

	// Iterations is the number of fetch-extract-sleep-select cycles.
	Iterations int `json:"iterations"`

	// PagesFetched counts successful (2xx) fetches.
	PagesFetched int `json:"pages_fetched"`

	// FetchErrors counts recoverable per-iteration failures: transport
	// errors, timeouts, and non-2xx statuses. These never abort the run.
	FetchErrors int `json:"fetch_errors"`

	// LinksDiscovered counts frontier entries added over the whole run.
	LinksDiscovered int `json:"links_discovered"`

	// SeedResets counts jumps back to a random root URL, whether forced by
	// the reselection frequency or by an empty link pool.
	SeedResets int `json:"seed_resets"`

	// Visits is the ordered visit history of the run.
	Visits []Visit `json:"visits"`
}

// NewRunReport creates a RunReport with its start time set.
func NewRunReport(start time.Time) *RunReport {
	return &RunReport{
		StartTime: start,
		Visits:    make([]Visit, 0),
	}
}

// Elapsed returns the wall-clock duration of the run.
func (r *RunReport) Elapsed() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// StatusCounts returns the distribution of HTTP status codes across all
// visits. Failed requests without a response are grouped under code 0.
func (r *RunReport) StatusCounts() map[int]int {
	counts := make(map[int]int)
	for _, v := range r.Visits {
		counts[v.StatusCode]++
	}
	return counts
}
