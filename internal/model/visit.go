package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Visit records a single fetch attempt made by the crawl engine.
// Visits are appended in order to the run's history; the slice as a whole
// is the "visit history" the engine dedups against.
type Visit struct {
	// URL is the absolute URL that was requested.
	URL string `json:"url"`

	// Source is the URL of the page on which this URL was discovered.
	// Empty for seed URLs selected directly from the configuration.
	Source string `json:"source,omitempty"`

	// Time is when the request was issued.
	Time time.Time `json:"time"`

	// StatusCode is the HTTP response status, or 0 when the request failed
	// before a response was received (DNS failure, refused connection,
	// request timeout).
	StatusCode int `json:"status_code"`

	// LinksFound is the number of new frontier entries this page yielded
	// after blacklist and history filtering.
	LinksFound int `json:"links_found"`

	// BodyHash is the SHA-256 hash of the response body, used by the
	// history database for change detection across runs. Empty when the
	// fetch failed or the body was empty.
	BodyHash string `json:"body_hash,omitempty"`

	// Failed reports whether the fetch was counted as an error
	// (transport failure or non-2xx status).
	Failed bool `json:"failed,omitempty"`
}

// HashBody computes the SHA-256 hex digest of a response body.
// Returns the empty string for an empty body.
func HashBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
