package model

import (
	"fmt"
	"strings"
)

// AdjustFlags controls dividend/split/capital-change normalization of price
// data. Flags combine as a bit set.
type AdjustFlags uint8

// AdjNone applies no normalization.
const AdjNone AdjustFlags = 0

const (
	AdjDividends AdjustFlags = 1 << iota
	AdjSplits
	AdjCapitalChanges
)

// AdjAll combines every adjustment.
const AdjAll = AdjDividends | AdjSplits | AdjCapitalChanges

// ParseAdjust parses "all", "none", or a comma-separated combination of
// "dividends", "splits" and "capital_changes".
func ParseAdjust(s string) (AdjustFlags, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return AdjNone, nil
	case "all":
		return AdjAll, nil
	}

	var flags AdjustFlags
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "dividends":
			flags |= AdjDividends
		case "splits":
			flags |= AdjSplits
		case "capital_changes":
			flags |= AdjCapitalChanges
		default:
			return AdjNone, fmt.Errorf("unknown adjustment flag %q", part)
		}
	}
	return flags, nil
}

// Has reports whether all bits of other are set.
func (a AdjustFlags) Has(other AdjustFlags) bool {
	return a&other == other
}

// String renders the flags in a stable form suitable for cache identity.
func (a AdjustFlags) String() string {
	if a == AdjNone {
		return "none"
	}
	if a == AdjAll {
		return "all"
	}
	var parts []string
	if a.Has(AdjDividends) {
		parts = append(parts, "dividends")
	}
	if a.Has(AdjSplits) {
		parts = append(parts, "splits")
	}
	if a.Has(AdjCapitalChanges) {
		parts = append(parts, "capital_changes")
	}
	return strings.Join(parts, ",")
}
