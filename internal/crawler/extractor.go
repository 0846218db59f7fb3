package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Extractor collects hyperlink targets from HTML documents.
// Given a page body and the URL it was loaded from, it returns the
// deduplicated set of absolute http(s) links worth following.
//
// Design decision: We use golang.org/x/net/html rather than regex because:
//  1. It correctly handles the malformed HTML common on the web
//  2. Malformed markup degrades to a partial parse instead of garbage
//     matches, which matters for a tool pointed at arbitrary sites
//  3. More maintainable than href-matching patterns
type Extractor struct {
	// blacklist contains substrings that disqualify a link. A link is
	// dropped when any of these appears anywhere in its normalized form.
	blacklist []string

	// maxLinks caps the number of links returned per page. 0 means no cap.
	maxLinks int
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithBlacklist sets the substrings that disqualify a link.
func WithBlacklist(substrings []string) ExtractorOption {
	return func(e *Extractor) {
		e.blacklist = substrings
	}
}

// WithMaxLinks caps the number of links returned per page.
// Pages generated by catalogs or calendars can carry thousands of anchors;
// the walk only ever follows a handful, so a cap bounds memory for free.
func WithMaxLinks(n int) ExtractorOption {
	return func(e *Extractor) {
		e.maxLinks = n
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractLinks parses HTML from r and returns the absolute, normalized,
// deduplicated anchor targets found in it, excluding non-http(s) schemes,
// fragment-only links, blacklisted links, and baseURL itself.
//
// Extraction never fails: malformed markup, non-HTML content, and an
// unparseable baseURL all yield an empty result. The page is noise fodder,
// not data; there is nothing useful to report about a page that cannot be
// parsed.
func (e *Extractor) ExtractLinks(r io.Reader, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return nil
	}

	doc, err := html.Parse(r)
	if err != nil {
		return nil
	}

	self := normalizeURL(base)

	seen := make(map[string]struct{})
	links := make([]string, 0)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if e.maxLinks > 0 && len(links) >= e.maxLinks {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := getAttr(n, "href"); href != "" {
				if link, ok := e.resolve(base, href); ok && link != self {
					if _, dup := seen[link]; !dup {
						seen[link] = struct{}{}
						links = append(links, link)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links
}

// resolve turns an href attribute into a normalized absolute URL, reporting
// whether the link is acceptable to follow.
func (e *Extractor) resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	// Pseudo-scheme hrefs are navigation dead ends, not pages.
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if resolved.Host == "" {
		return "", false
	}

	link := normalizeURL(resolved)
	if e.isBlacklisted(link) {
		return "", false
	}
	return link, true
}

// isBlacklisted checks whether a link contains any blacklisted substring.
// Substring matching over the full URL follows the original semantics: a
// pattern like "facebook" blocks every host and path mentioning it.
func (e *Extractor) isBlacklisted(link string) bool {
	for _, sub := range e.blacklist {
		if strings.Contains(link, sub) {
			return true
		}
	}
	return false
}

// normalizeURL produces the canonical string used for deduplication and
// visit-history membership.
//
// Design decision: We normalize because the same page can have several URL
// representations. Fragments don't change content, scheme and host are
// case-insensitive, and an empty path is equivalent to "/".
func normalizeURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.ToLower(c.Host)
	if c.Path == "" {
		c.Path = "/"
	}
	return c.String()
}

// NormalizeURL normalizes a raw URL string for history membership checks.
// Unparseable input is returned unchanged so callers can still use it as a
// map key.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return normalizeURL(u)
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
