// Package database provides optional SQLite-backed persistence for run
// history.
//
// Persistence is strictly observational: the crawl engine dedups against an
// in-memory history that resets every run, and nothing read from the
// database feeds back into link selection. The database exists so an
// operator can inspect what the tool has been generating over time, see
// how often a page's content changed between runs, and confirm the traffic
// profile looks the way they intended.
package database
