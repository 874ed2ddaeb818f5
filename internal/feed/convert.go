package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"

	"github.com/quantora/feedcache/internal/model"
)

// Timestamp layouts accepted from the feed, in order of preference.
var tsLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Missing-value markers unified to absent.
var missingMarkers = map[string]struct{}{
	"":     {},
	"n/a":  {},
	"#n/a": {},
	"nan":  {},
	"null": {},
}

// normalizeRows converts the loosely-shaped row payload into model rows:
// column names upper-snake-cased, missing markers dropped, numeric strings
// parsed, timestamps extracted from ts/date/time keys.
func normalizeRows(raw json.RawMessage) ([]model.Row, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	parsed, err := gabs.ParseJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("parse feed rows: %w", err)
	}

	children := parsed.Children()
	rows := make([]model.Row, 0, len(children))
	for i, child := range children {
		// ChildrenMap returns an empty map for non-object children, so the
		// container kind is checked on the raw value.
		if _, ok := child.Data().(map[string]any); !ok {
			return nil, fmt.Errorf("feed row %d is not an object", i)
		}
		obj := child.ChildrenMap()

		row := model.Row{Values: make(map[string]any, len(obj))}
		for key, val := range obj {
			switch strings.ToLower(key) {
			case "ticker":
				if s, ok := val.Data().(string); ok {
					row.Ticker = s
				}
			case "ts", "date", "time":
				ts, err := parseTimestamp(val.Data())
				if err != nil {
					return nil, fmt.Errorf("feed row %d: %w", i, err)
				}
				row.Ts = ts
			default:
				if v, ok := normalizeValue(val.Data()); ok {
					row.Values[NormalizeColumn(key)] = v
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// NormalizeColumn unifies feed column naming: trimmed, spaces and dashes
// become underscores, upper-cased ("num trds" -> "NUM_TRDS").
func NormalizeColumn(name string) string {
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ToUpper(s)
}

// normalizeValue unifies missing-value representations and parses numeric
// strings. The second return is false when the value should be dropped.
func normalizeValue(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case string:
		if _, miss := missingMarkers[strings.ToLower(strings.TrimSpace(val))]; miss {
			return nil, false
		}
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f, true
		}
		return val, true
	default:
		return val, true
	}
}

func parseTimestamp(v any) (time.Time, error) {
	switch val := v.(type) {
	case string:
		for _, layout := range tsLayouts {
			if ts, err := time.Parse(layout, val); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", val)
	case float64:
		// Unix seconds.
		return time.Unix(int64(val), 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}
