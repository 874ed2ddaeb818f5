package planner

import (
	"time"

	"github.com/quantora/feedcache/internal/model"
)

// ReferenceQuery is a point-in-time snapshot of scalar fields.
type ReferenceQuery struct {
	Tickers   []string
	Fields    model.FieldSet
	AsOf      time.Time // Zero means today
	Adjust    model.AdjustFlags
	Overrides Overrides
}

// HistoryQuery is a daily historical series over an inclusive date range.
type HistoryQuery struct {
	Tickers   []string
	Fields    model.FieldSet
	Range     model.DateRange
	Adjust    model.AdjustFlags
	Overrides Overrides
}

// BulkQuery is a table field lookup (multiple rows per ticker, e.g. a
// dividend history). Date bounds, where a field supports them, travel as
// overrides.
type BulkQuery struct {
	Tickers   []string
	Fields    model.FieldSet
	AsOf      time.Time // Zero means today
	Adjust    model.AdjustFlags
	Overrides Overrides
}

// IntradayQuery is a sub-daily bar series for one ticker. The session
// name is exchange-relative; empty means the whole trading day.
type IntradayQuery struct {
	Ticker    string
	Range     model.DateRange // Calendar dates; session windows are resolved per day
	Session   string
	BarSize   time.Duration // Default one minute
	EventType string        // Default "TRADE"
	Adjust    model.AdjustFlags
	Overrides Overrides
}

// Result is one ordered tabular answer. Rows are sorted by ticker in
// request order, then timestamp.
type Result struct {
	Columns []string
	Rows    []model.Row
}

// Default intraday bar columns when the caller names no fields.
var barColumns = []string{"OPEN", "HIGH", "LOW", "CLOSE", "VOLUME", "NUM_EVENTS"}

// Fields names the bar columns an intraday result carries.
func (q IntradayQuery) Fields() model.FieldSet {
	return model.FieldSet(barColumns)
}

// resultColumns is ticker and timestamp followed by the caller's fields
// in request order.
func resultColumns(fields model.FieldSet) []string {
	cols := []string{"ticker", "ts"}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		u := model.FieldSet{f}.Normalized()
		if len(u) == 0 {
			continue
		}
		if _, ok := seen[u[0]]; ok {
			continue
		}
		seen[u[0]] = struct{}{}
		cols = append(cols, u[0])
	}
	return cols
}
