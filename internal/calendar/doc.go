// Package calendar resolves exchange trading sessions and timezones.
//
// It is table-driven: static YAML maps ticker suffixes to exchange codes and
// exchange codes to timezone, open/close times, named session windows,
// weekend days and holidays. Resolution is pure lookup plus local-to-UTC
// conversion for the one date supplied; the package performs no I/O after
// load and is safe for concurrent use.
package calendar
