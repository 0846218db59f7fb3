// Package log provides slog handlers tailored to the webnoise log stream.
//
// The crawl engine logs every URL it touches, and real-world pages embed
// credentials in URLs more often than they should: userinfo components,
// session tokens in query strings, API keys in callback links. URLHandler
// strips those before the record reaches the underlying handler, so the log
// stream can be kept or shipped without leaking what the crawl stumbled on.
//
// Field order within a record is determined by the wrapped slog text or
// JSON handler and stays stable for the duration of a run (time, level,
// msg, then attributes in emit order).
package log
