package store

import (
	"time"

	"github.com/quantora/feedcache/internal/model"
)

// missingRanges coalesces the entries of want not present in have into
// inclusive day ranges. want must be sorted ascending; entries are UTC
// midnights. Consecutive missing entries join one range even when calendar
// days lie between them, since want already excludes non-trading days.
func missingRanges(want []time.Time, have map[time.Time]struct{}) []model.DateRange {
	var out []model.DateRange
	var open bool
	var cur model.DateRange

	for _, day := range want {
		if _, ok := have[day]; ok {
			if open {
				out = append(out, cur)
				open = false
			}
			continue
		}
		if !open {
			cur = model.DateRange{Start: day, End: day}
			open = true
			continue
		}
		cur.End = day
	}
	if open {
		out = append(out, cur)
	}
	return out
}
