package adjust

import (
	"sort"
	"strings"

	"github.com/quantora/feedcache/internal/model"
)

// Event columns recognized on incoming rows, post column normalization.
const (
	colSplitRatio    = "SPLIT_RATIO"
	colDividend      = "DIVIDEND"
	colCapitalChange = "CAPITAL_CHANGE"
)

// Bare price fields adjusted alongside the PX_ prefixed ones.
var priceFields = map[string]struct{}{
	"OPEN":  {},
	"HIGH":  {},
	"LOW":   {},
	"CLOSE": {},
	"LAST":  {},
}

// Apply restates price fields for the corporate actions selected by
// flags. The input is not mutated; rows come back sorted by timestamp
// with applied event columns removed. AdjNone returns a sorted copy.
func Apply(rows []model.Row, flags model.AdjustFlags) []model.Row {
	out := make([]model.Row, len(rows))
	for i, row := range rows {
		out[i] = cloneRow(row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Ts.Before(out[j].Ts)
	})

	if flags == model.AdjNone {
		return out
	}

	// Walk latest to earliest. A row's own events do not restate its own
	// prices, only those of earlier rows.
	factor := 1.0
	for i := len(out) - 1; i >= 0; i-- {
		row := out[i]

		if factor != 1.0 {
			for field, v := range row.Values {
				price, ok := asFloat(v)
				if !ok || !isPriceField(field) {
					continue
				}
				row.Values[field] = price * factor
			}
		}

		if flags.Has(model.AdjSplits) {
			if ratio, ok := takeFloat(row.Values, colSplitRatio); ok && ratio > 0 {
				factor /= ratio
			}
		}
		if flags.Has(model.AdjDividends) {
			if div, ok := takeFloat(row.Values, colDividend); ok && div > 0 {
				// Proportional restatement against the close on the ex date.
				if close, ok := closePrice(row); ok && close > 0 {
					factor *= (close - div) / close
				}
			}
		}
		if flags.Has(model.AdjCapitalChanges) {
			if ratio, ok := takeFloat(row.Values, colCapitalChange); ok && ratio > 0 {
				factor *= ratio
			}
		}
	}
	return out
}

func cloneRow(row model.Row) model.Row {
	values := make(map[string]any, len(row.Values))
	for k, v := range row.Values {
		values[k] = v
	}
	row.Values = values
	return row
}

func isPriceField(name string) bool {
	if strings.HasPrefix(name, "PX_") {
		return true
	}
	_, ok := priceFields[name]
	return ok
}

// closePrice picks the reference price for dividend restatement.
func closePrice(row model.Row) (float64, bool) {
	for _, field := range []string{"CLOSE", "PX_LAST", "LAST"} {
		if v, ok := asFloat(row.Value(field)); ok {
			return v, true
		}
	}
	return 0, false
}

// takeFloat removes and returns a numeric event column.
func takeFloat(values map[string]any, key string) (float64, bool) {
	v, ok := values[key]
	if !ok {
		return 0, false
	}
	delete(values, key)
	return asFloat(v)
}

func asFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	}
	return 0, false
}
