// Package model defines the core value types shared across the data layer:
// tickers, field sets, date ranges, cache keys, and row series.
//
// Everything here is request-scoped and immutable once built, except Series,
// which supports ordered merge with last-write-wins semantics.
package model
