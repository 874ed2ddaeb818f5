package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Granularity is the query class of a logical request.
type Granularity string

const (
	// Reference is a point-in-time snapshot of scalar fields.
	Reference Granularity = "reference"

	// Daily is a daily historical series.
	Daily Granularity = "daily"

	// Bulk is a table/bulk field lookup (multiple rows per ticker).
	Bulk Granularity = "bulk"

	// Intraday is a sub-daily bar series.
	Intraday Granularity = "intraday"
)

// Known returns true for a recognized granularity tag.
func (g Granularity) Known() bool {
	switch g {
	case Reference, Daily, Bulk, Intraday:
		return true
	}
	return false
}

// Ticker is an opaque identifier plus its parsed exchange suffix.
//
// The suffix is the second-to-last whitespace token, the last being the
// asset class (e.g. "BHP AU Equity" -> suffix "AU", asset "Equity").
type Ticker struct {
	Raw    string // Full ticker as supplied by the caller
	Suffix string // Market segment token ("AU", "US", ...)
	Asset  string // Asset class token ("Equity", "Index", ...)
}

// ParseTicker splits a raw ticker into its suffix and asset class.
func ParseTicker(raw string) (Ticker, error) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return Ticker{}, fmt.Errorf("ticker %q: expected at least an identifier and asset class", raw)
	}

	t := Ticker{
		Raw:   strings.Join(fields, " "),
		Asset: fields[len(fields)-1],
	}
	if len(fields) >= 3 {
		t.Suffix = fields[len(fields)-2]
	}
	return t, nil
}

// PathSafe returns the ticker with characters unsafe for file paths replaced.
func (t Ticker) PathSafe() string {
	return strings.ReplaceAll(t.Raw, "/", "_")
}

// FieldSet is an ordered list of requested field names. Order is significant
// for output columns but not for cache identity.
type FieldSet []string

// Normalized returns the sorted, deduplicated, upper-cased field set used
// for cache identity.
func (f FieldSet) Normalized() []string {
	seen := make(map[string]struct{}, len(f))
	out := make([]string, 0, len(f))
	for _, fld := range f {
		u := strings.ToUpper(strings.TrimSpace(fld))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// DateRange is an inclusive [Start, End] range of instants. Daily and
// reference queries use UTC midnights; intraday queries use full instants.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Validate rejects zero and inverted ranges.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("date range: start and end are required")
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("date range: start %s after end %s",
			r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether ts falls inside the inclusive range.
func (r DateRange) Contains(ts time.Time) bool {
	return !ts.Before(r.Start) && !ts.After(r.End)
}

// String renders the range as dates when both ends are midnights, otherwise
// as full instants.
func (r DateRange) String() string {
	if r.Start.Equal(r.Start.Truncate(24*time.Hour)) && r.End.Equal(r.End.Truncate(24*time.Hour)) {
		return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
	}
	return r.Start.Format(time.RFC3339) + ".." + r.End.Format(time.RFC3339)
}

// Day returns the UTC midnight of ts.
func Day(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
