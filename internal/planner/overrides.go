package planner

import (
	"sort"
	"strings"

	"github.com/quantora/feedcache/internal/feed"
)

// Overrides are the recognized per-query options forwarded to the feed.
// Keys are validated and canonicalized before dispatch; shorthand values
// expand to their wire form ("Per=W" becomes "periodicity=WEEKLY").
type Overrides map[string]string

// Shorthand key aliases to canonical override names.
var elemKeys = map[string]string{
	"per":       "periodicity",
	"period":    "periodicity",
	"peradj":    "period_adjustment",
	"periodadj": "period_adjustment",
	"curr":      "currency",
	"currency":  "currency",
	"fill":      "non_trading_day_fill",
	"days":      "non_trading_day_calendar",
	"points":    "max_points",
	"quote":     "price_quote",
	"quotetype": "quote_type",
	"cal":       "calendar_code",
}

// Shorthand value expansions per canonical key.
var elemVals = map[string]map[string]string{
	"periodicity": {
		"D": "DAILY",
		"W": "WEEKLY",
		"M": "MONTHLY",
		"Q": "QUARTERLY",
		"S": "SEMI_ANNUALLY",
		"Y": "YEARLY",
	},
	"period_adjustment": {
		"A": "ACTUAL",
		"C": "CALENDAR",
		"F": "FISCAL",
	},
	"non_trading_day_fill": {
		"N": "NIL_VALUE",
		"P": "PREVIOUS_VALUE",
	},
	"non_trading_day_calendar": {
		"T": "TRADING",
		"W": "WEEKDAYS",
		"A": "ALL_CALENDAR_DAYS",
	},
	"price_quote": {
		"G": "GROSS",
		"N": "NET",
	},
}

// Canonical names are accepted as their own spelling, so "periodicity"
// and "Per" normalize to the same fingerprint.
var canonicalKeys = func() map[string]struct{} {
	out := make(map[string]struct{}, len(elemKeys))
	for _, name := range elemKeys {
		out[name] = struct{}{}
	}
	return out
}()

// Field-specific keys forwarded as-is once recognized.
var passthroughKeys = map[string]struct{}{
	"dvd_start_dt":      {},
	"dvd_end_dt":        {},
	"cash_adj_normal":   {},
	"cash_adj_abnormal": {},
	"cap_chg":           {},
	"eqy_fund_crncy":    {},
	"best_fperiod":      {},
	"vwap_dt":           {},
	"vwap_start_time":   {},
	"vwap_end_time":     {},
}

// Normalize validates the override set and returns canonical key-value
// pairs sorted by key. An unrecognized key is a ValidationError.
func (o Overrides) Normalize() ([]feed.KV, error) {
	if len(o) == 0 {
		return nil, nil
	}

	out := make([]feed.KV, 0, len(o))
	for key, value := range o {
		lower := strings.ToLower(strings.TrimSpace(key))

		canonical, ok := elemKeys[lower]
		if !ok {
			_, isCanonical := canonicalKeys[lower]
			_, isPassthrough := passthroughKeys[lower]
			if !isCanonical && !isPassthrough {
				return nil, &ValidationError{
					Field:  "overrides",
					Reason: "unrecognized override key " + key,
				}
			}
			canonical = lower
		}

		if vals, ok := elemVals[canonical]; ok {
			if expanded, ok := vals[strings.ToUpper(value)]; ok {
				value = expanded
			}
		}
		out = append(out, feed.KV{Key: canonical, Value: value})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// fingerprint renders normalized overrides into the stable string folded
// into the cache key.
func fingerprint(kvs []feed.KV) string {
	if len(kvs) == 0 {
		return ""
	}
	parts := make([]string, len(kvs))
	for i, kv := range kvs {
		parts[i] = kv.Key + "=" + kv.Value
	}
	return strings.Join(parts, ";")
}
