// Package crawler implements the webnoise crawl engine and link extractor.
//
// # Architecture
//
// The package is designed around the Engine type, which owns one run: the
// visit history, the frontier of discovered links, the randomized pacing,
// and the stop condition. The Extractor is a leaf collaborator that turns a
// fetched page body into the set of followable absolute URLs.
//
// Design decision: We implement our own walk rather than using a crawling
// framework because:
//  1. The goal is a randomized human-looking walk, not coverage or
//     throughput; frameworks schedule for the opposite
//  2. The engine must be strictly sequential with one suspension point
//  3. Tight control over pacing and backtracking is the whole product
//
// # Control flow
//
// The engine is seeded with a random root URL and loops: fetch, extract,
// record, sleep a random duration, select the next link. Every Nth
// iteration, or whenever the frontier runs dry, it abandons the current
// subtree and jumps back to a random root. The run ends when the wall-clock
// budget elapses or the context is cancelled.
//
// # Failure model
//
// Fetch and parse failures are recoverable by design: a dead page is logged,
// counted, and treated as having no links. Only an invalid configuration
// aborts, and that happens before the first request is issued.
//
// # Usage
//
//	engine, err := crawler.NewEngine(cfg, nil, crawler.WithLogger(logger))
//	if err != nil { ... }
//	report, err := engine.Run(ctx)
package crawler
