package model

import (
	"fmt"
	"strings"
	"time"
)

// CacheKey identifies a logical dataset independent of the date range
// requested. Two requests with equal keys but different ranges are range
// queries against the same persisted series.
type CacheKey struct {
	Ticker      Ticker
	Fields      []string // Normalized field set
	Granularity Granularity
	Adjust      AdjustFlags
	BarSize     time.Duration // Intraday only
	EventType   string        // Intraday only (TRADE, BID, ASK)
	Session     string        // Intraday only, "" means the whole trading day
	AsOf        time.Time     // Snapshot as-of day (reference, bulk)
	Overrides   string        // Stable override fingerprint, "" when none
}

// NewCacheKey builds a key from request parameters. Fields are normalized
// so that request field order never affects identity.
func NewCacheKey(t Ticker, fields FieldSet, g Granularity, adj AdjustFlags) CacheKey {
	return CacheKey{
		Ticker:      t,
		Fields:      fields.Normalized(),
		Granularity: g,
		Adjust:      adj,
	}
}

// String renders the full key identity, e.g.
//
//	{ticker=BHP AU Equity, flds=PX_LAST, gran=daily, adj=all}
func (k CacheKey) String() string {
	parts := []string{
		"ticker=" + k.Ticker.Raw,
		"flds=" + strings.Join(k.Fields, ";"),
		"gran=" + string(k.Granularity),
		"adj=" + k.Adjust.String(),
	}
	if k.BarSize > 0 {
		parts = append(parts, fmt.Sprintf("bar=%s", k.BarSize))
	}
	if k.EventType != "" {
		parts = append(parts, "typ="+k.EventType)
	}
	if k.Session != "" {
		parts = append(parts, "ses="+k.Session)
	}
	if !k.AsOf.IsZero() {
		parts = append(parts, "asof="+k.AsOf.Format("2006-01-02"))
	}
	if k.Overrides != "" {
		parts = append(parts, "ovrd="+k.Overrides)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Dir returns a path-safe directory name for the key, excluding the ticker
// and asset components which form the enclosing directories.
func (k CacheKey) Dir() string {
	parts := []string{
		string(k.Granularity),
		strings.Join(k.Fields, ";"),
		"adj=" + k.Adjust.String(),
	}
	if k.BarSize > 0 {
		parts = append(parts, fmt.Sprintf("bar=%s", k.BarSize))
	}
	if k.EventType != "" {
		parts = append(parts, "typ="+k.EventType)
	}
	if k.Session != "" {
		parts = append(parts, "ses="+k.Session)
	}
	if !k.AsOf.IsZero() {
		parts = append(parts, "asof="+k.AsOf.Format("2006-01-02"))
	}
	if k.Overrides != "" {
		parts = append(parts, "ovrd="+k.Overrides)
	}
	safe := strings.Join(parts, ", ")
	safe = strings.ReplaceAll(safe, "/", "_")
	return safe
}
