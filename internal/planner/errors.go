package planner

import (
	"fmt"

	"github.com/quantora/feedcache/internal/model"
)

// ValidationError reports malformed input. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RemoteFetchError reports a failed sub-range fetch. Writes from other
// sub-ranges that succeeded before the failure stay persisted.
type RemoteFetchError struct {
	SubRange model.DateRange
	Tickers  []string
	Err      error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("remote fetch %s failed for %v: %v", e.SubRange, e.Tickers, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }
