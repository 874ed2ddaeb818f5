// Package planner orchestrates a query end to end: validate, consult the
// local store for coverage, fetch only the missing sub-ranges over a
// shared feed session, persist what was fetched, then merge and adjust
// into one ordered result. It exposes the caller-facing query surface,
// one operation per granularity.
package planner
