// Package main provides the entry point for the webnoise CLI.
//
// Webnoise generates random HTTP/DNS background traffic by crawling a
// configurable set of seed sites, making genuine browsing harder to single
// out in traffic captures.
//
// Usage:
//
//	webnoise run --timeout 1h
//	webnoise run -u https://news.ycombinator.com -u https://www.reddit.com
//
// See --help for all available options.
package main

// main is the entry point for webnoise.
func main() {
	Execute()
}
