package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantora/feedcache/internal/model"
)

func testKey(t *testing.T, gran model.Granularity) model.CacheKey {
	t.Helper()
	ticker, err := model.ParseTicker("BHP AU Equity")
	if err != nil {
		t.Fatal(err)
	}
	return model.NewCacheKey(ticker, model.FieldSet{"PX_LAST"}, gran, model.AdjAll)
}

func dailyRow(d time.Time, px float64) model.Row {
	return model.Row{
		Ts:     d,
		Ticker: "BHP AU Equity",
		Values: map[string]any{"PX_LAST": px},
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	s := NewFileStore(t.TempDir(), 0, nil)
	ctx := context.Background()
	key := testKey(t, model.Daily)

	want := []time.Time{day(2018, 10, 15), day(2018, 10, 16), day(2018, 10, 17)}

	series, missing, err := s.Read(ctx, key, want)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if series.Len() != 0 {
		t.Errorf("cold read rows = %d, want 0", series.Len())
	}
	if len(missing) != 1 || !missing[0].Start.Equal(want[0]) || !missing[0].End.Equal(want[2]) {
		t.Fatalf("cold read missing = %v", missing)
	}

	err = s.Write(ctx, key, model.Series{Rows: []model.Row{
		dailyRow(day(2018, 10, 15), 33.1),
		dailyRow(day(2018, 10, 16), 33.5),
		dailyRow(day(2018, 10, 17), 33.9),
	}}, want)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	series, missing, err = s.Read(ctx, key, want)
	if err != nil {
		t.Fatalf("warm Read() error = %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("warm read missing = %v, want none", missing)
	}
	if series.Len() != 3 {
		t.Fatalf("warm read rows = %d, want 3", series.Len())
	}
	if got := series.Rows[1].Value("PX_LAST"); got != 33.5 {
		t.Errorf("PX_LAST[1] = %v, want 33.5", got)
	}
}

func TestFileStore_LastWriteWins(t *testing.T) {
	s := NewFileStore(t.TempDir(), 0, nil)
	ctx := context.Background()
	key := testKey(t, model.Daily)
	d := day(2018, 10, 15)

	if err := s.Write(ctx, key, model.Series{Rows: []model.Row{dailyRow(d, 33.1)}}, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, key, model.Series{Rows: []model.Row{dailyRow(d, 34.0)}}, nil); err != nil {
		t.Fatal(err)
	}

	series, _, err := s.Read(ctx, key, []time.Time{d})
	if err != nil {
		t.Fatal(err)
	}
	if series.Len() != 1 {
		t.Fatalf("rows = %d, want 1 (no duplicate timestamps)", series.Len())
	}
	if got := series.Rows[0].Value("PX_LAST"); got != 34.0 {
		t.Errorf("PX_LAST = %v, want the later write 34.0", got)
	}
}

func TestFileStore_PartialCoverage(t *testing.T) {
	s := NewFileStore(t.TempDir(), 0, nil)
	ctx := context.Background()
	key := testKey(t, model.Daily)

	// Cache 15..16, ask for 15..19.
	if err := s.Write(ctx, key, model.Series{Rows: []model.Row{
		dailyRow(day(2018, 10, 15), 33.1),
		dailyRow(day(2018, 10, 16), 33.5),
	}}, nil); err != nil {
		t.Fatal(err)
	}

	want := []time.Time{
		day(2018, 10, 15), day(2018, 10, 16), day(2018, 10, 17),
		day(2018, 10, 18), day(2018, 10, 19),
	}
	series, missing, err := s.Read(ctx, key, want)
	if err != nil {
		t.Fatal(err)
	}
	if series.Len() != 2 {
		t.Errorf("cached rows = %d, want 2", series.Len())
	}
	if len(missing) != 1 {
		t.Fatalf("missing = %v, want one coalesced range", missing)
	}
	if !missing[0].Start.Equal(day(2018, 10, 17)) || !missing[0].End.Equal(day(2018, 10, 19)) {
		t.Errorf("missing = %v, want 2018-10-17..2018-10-19", missing[0])
	}
}

func TestFileStore_CorruptionIsAMiss(t *testing.T) {
	root := t.TempDir()
	s := NewFileStore(root, 0, nil)
	ctx := context.Background()
	key := testKey(t, model.Daily)
	d := day(2018, 10, 15)

	if err := s.Write(ctx, key, model.Series{Rows: []model.Row{dailyRow(d, 33.1)}}, nil); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(root, key.Ticker.Asset, key.Ticker.PathSafe(), key.Dir(), seriesFile)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	series, missing, err := s.Read(ctx, key, []time.Time{d})
	if err != nil {
		t.Fatalf("corrupt Read() error = %v, want miss not error", err)
	}
	if series.Len() != 0 {
		t.Errorf("rows = %d, want 0", series.Len())
	}
	if len(missing) != 1 {
		t.Errorf("missing = %v, want the full range", missing)
	}
}

func TestFileStore_ReferenceStaleness(t *testing.T) {
	root := t.TempDir()
	s := NewFileStore(root, 10*24*time.Hour, nil)
	ctx := context.Background()
	key := testKey(t, model.Reference)
	d := model.Day(time.Now())

	if err := s.Write(ctx, key, model.Series{Rows: []model.Row{dailyRow(d, 33.1)}}, nil); err != nil {
		t.Fatal(err)
	}

	// Fresh snapshot serves from cache.
	_, missing, err := s.Read(ctx, key, []time.Time{d})
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 0 {
		t.Fatalf("fresh reference missing = %v, want none", missing)
	}

	// Age the blob past the as-of window.
	path := filepath.Join(root, key.Ticker.Asset, key.Ticker.PathSafe(), key.Dir(), seriesFile)
	old := time.Now().Add(-11 * 24 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	series, missing, err := s.Read(ctx, key, []time.Time{d})
	if err != nil {
		t.Fatal(err)
	}
	if series.Len() != 0 || len(missing) != 1 {
		t.Errorf("stale reference: rows = %d missing = %v, want full miss", series.Len(), missing)
	}
}

func TestFileStore_IntradayCrossMidnightCoverage(t *testing.T) {
	s := NewFileStore(t.TempDir(), 0, nil)
	ctx := context.Background()

	ticker, _ := model.ParseTicker("BHP AU Equity")
	key := model.NewCacheKey(ticker, nil, model.Intraday, model.AdjNone)
	key.BarSize = time.Minute
	key.EventType = "TRADE"

	bar := func(ts time.Time, px float64) model.Row {
		return model.Row{Ts: ts, Ticker: "BHP AU Equity", Values: map[string]any{"CLOSE": px}}
	}

	// The Sydney trading day of 2018-10-17 spans UTC Oct 16 23:00 to
	// Oct 17 05:00; coverage is declared for the trading day, not the UTC
	// dates the rows land on.
	if err := s.Write(ctx, key, model.Series{Rows: []model.Row{
		bar(time.Date(2018, 10, 16, 23, 0, 0, 0, time.UTC), 33.1),
		bar(time.Date(2018, 10, 17, 4, 59, 0, 0, time.UTC), 33.2),
	}}, []time.Time{day(2018, 10, 17)}); err != nil {
		t.Fatal(err)
	}

	want := []time.Time{day(2018, 10, 17), day(2018, 10, 18)}
	series, missing, err := s.Read(ctx, key, want)
	if err != nil {
		t.Fatal(err)
	}
	if series.Len() != 2 {
		t.Errorf("rows = %d, want both halves of the session", series.Len())
	}
	if len(missing) != 1 || !missing[0].Start.Equal(day(2018, 10, 18)) || !missing[0].End.Equal(day(2018, 10, 18)) {
		t.Errorf("missing = %v, want only 2018-10-18", missing)
	}
}

func TestFileStore_CoverageWithoutRows(t *testing.T) {
	s := NewFileStore(t.TempDir(), 0, nil)
	ctx := context.Background()
	key := testKey(t, model.Daily)

	// A fetched day that produced no rows still counts as covered.
	if err := s.Write(ctx, key, model.Series{}, []time.Time{day(2018, 10, 15)}); err != nil {
		t.Fatal(err)
	}

	_, missing, err := s.Read(ctx, key, []time.Time{day(2018, 10, 15)})
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 0 {
		t.Errorf("missing = %v, want none for a covered empty day", missing)
	}
}

func TestDisabledStore(t *testing.T) {
	s := Disabled()
	ctx := context.Background()
	key := testKey(t, model.Daily)
	want := []time.Time{day(2018, 10, 15), day(2018, 10, 16)}

	if err := s.Write(ctx, key, model.Series{Rows: []model.Row{dailyRow(want[0], 33.1)}}, nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	series, missing, err := s.Read(ctx, key, want)
	if err != nil {
		t.Fatal(err)
	}
	if series.Len() != 0 {
		t.Errorf("rows = %d, want 0", series.Len())
	}
	if len(missing) != 1 || !missing[0].Start.Equal(want[0]) || !missing[0].End.Equal(want[1]) {
		t.Errorf("missing = %v, want the full range", missing)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
