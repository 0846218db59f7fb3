// Package model defines the data structures shared across webnoise:
// individual page visits, the per-run summary report, and the run outcome.
// These types carry no behavior beyond construction and formatting so that
// the crawler, database, and report packages can all depend on them without
// depending on each other.
package model
