package model

import (
	"sort"
	"time"
)

// Row is a single observation: a timestamp (date or datetime), the ticker it
// belongs to, and the field values returned by the feed or the cache.
type Row struct {
	Ts     time.Time      `json:"ts"`
	Ticker string         `json:"ticker"`
	Values map[string]any `json:"values"`
}

// Value returns the named field value, or nil when absent.
func (r Row) Value(field string) any {
	if r.Values == nil {
		return nil
	}
	return r.Values[field]
}

// Series is a timestamp-ordered sequence of rows for one cache key.
// Invariant: strictly increasing timestamps, no duplicates.
type Series struct {
	Rows []Row
}

// Len returns the number of rows.
func (s Series) Len() int { return len(s.Rows) }

// Sort orders rows by timestamp ascending. Stable so that, after appends,
// later writes win during dedupe.
func (s *Series) Sort() {
	sort.SliceStable(s.Rows, func(i, j int) bool {
		return s.Rows[i].Ts.Before(s.Rows[j].Ts)
	})
}

// Merge combines other into s with last-write-wins on timestamp collisions:
// rows from other replace rows in s at the same instant. The result is
// sorted with no duplicate timestamps.
func (s *Series) Merge(other Series) {
	if len(other.Rows) == 0 {
		s.Sort()
		s.dedupe()
		return
	}

	s.Rows = append(s.Rows, other.Rows...)
	s.Sort()
	s.dedupe()
}

// dedupe keeps the last row for each timestamp. Assumes sorted input.
func (s *Series) dedupe() {
	if len(s.Rows) < 2 {
		return
	}
	out := s.Rows[:0]
	for i := 0; i < len(s.Rows); i++ {
		if i+1 < len(s.Rows) && s.Rows[i+1].Ts.Equal(s.Rows[i].Ts) {
			continue
		}
		out = append(out, s.Rows[i])
	}
	s.Rows = out
}

// Slice returns the rows falling inside the inclusive range.
func (s Series) Slice(r DateRange) Series {
	var out Series
	for _, row := range s.Rows {
		if r.Contains(row.Ts) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Days returns the set of UTC days covered by at least one row.
func (s Series) Days() map[time.Time]struct{} {
	days := make(map[time.Time]struct{}, len(s.Rows))
	for _, row := range s.Rows {
		days[Day(row.Ts)] = struct{}{}
	}
	return days
}
