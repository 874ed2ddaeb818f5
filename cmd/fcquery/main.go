// fcquery runs one query against the cached market data layer and prints
// the result as JSON rows.
// Usage: fcquery --config configs/feedcache.yaml --kind daily \
//
//	--tickers "IBM US Equity" --fields PX_LAST --start 2018-10-10 --end 2018-10-20
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/quantora/feedcache/internal/calendar"
	"github.com/quantora/feedcache/internal/config"
	"github.com/quantora/feedcache/internal/conn"
	"github.com/quantora/feedcache/internal/feed"
	"github.com/quantora/feedcache/internal/model"
	"github.com/quantora/feedcache/internal/planner"
	"github.com/quantora/feedcache/internal/store"
	"github.com/quantora/feedcache/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/feedcache.yaml", "path to config file")
	kind := flag.String("kind", "daily", "query kind: reference, daily, bulk, intraday")
	tickers := flag.String("tickers", "", "comma-separated tickers")
	fields := flag.String("fields", "", "comma-separated fields")
	start := flag.String("start", "", "range start (2006-01-02)")
	end := flag.String("end", "", "range end (2006-01-02)")
	session := flag.String("session", "", "intraday session name (default whole day)")
	barSize := flag.Duration("bar", time.Minute, "intraday bar size")
	eventType := flag.String("event", "TRADE", "intraday event type")
	adjustFlag := flag.String("adjust", "none", "adjustment flags: all, none, or csv of dividends,splits,capital_changes")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Debug("starting fcquery", "version", version.Version, "config", *configPath)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	p, st, err := buildPlanner(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build query layer", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	adj, err := model.ParseAdjust(*adjustFlag)
	if err != nil {
		logger.Error("bad adjust flags", "error", err)
		os.Exit(1)
	}

	res, err := runQuery(ctx, p, queryArgs{
		kind:      *kind,
		tickers:   splitList(*tickers),
		fields:    splitList(*fields),
		start:     *start,
		end:       *end,
		session:   *session,
		barSize:   *barSize,
		eventType: *eventType,
		adjust:    adj,
	})
	if err != nil {
		logger.Error("query failed", "error", err)
		os.Exit(1)
	}

	printResult(res)
}

type queryArgs struct {
	kind      string
	tickers   []string
	fields    []string
	start     string
	end       string
	session   string
	barSize   time.Duration
	eventType string
	adjust    model.AdjustFlags
}

// buildPlanner wires calendar, store, connection manager, and planner
// from config.
func buildPlanner(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*planner.Planner, store.Store, error) {
	cal, err := calendar.Load(cfg.Calendar.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("load calendar: %w", err)
	}

	st, err := store.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	mgr := conn.NewFeedManager(feedConfig(cfg.Feed), logger)
	return planner.New(cal, st, mgr, cfg.Planner, logger), st, nil
}

func feedConfig(fc config.FeedConfig) feed.Config {
	return feed.Config{
		URL:          fc.URL,
		KeyID:        fc.KeyID,
		Secret:       fc.Secret,
		QueryTimeout: fc.QueryTimeout,
		PingInterval: fc.PingInterval,
		WriteTimeout: fc.WriteTimeout,
		HandshakeTTL: fc.HandshakeTTL,
		RateLimit:    fc.RateLimit,
		RateBurst:    fc.RateBurst,
	}
}

func runQuery(ctx context.Context, p *planner.Planner, args queryArgs) (*planner.Result, error) {
	switch args.kind {
	case "reference":
		asof, err := parseDate(args.start, false)
		if err != nil {
			return nil, err
		}
		return p.Reference(ctx, planner.ReferenceQuery{
			Tickers: args.tickers,
			Fields:  args.fields,
			AsOf:    asof,
			Adjust:  args.adjust,
		})

	case "daily":
		rng, err := parseRange(args.start, args.end)
		if err != nil {
			return nil, err
		}
		return p.History(ctx, planner.HistoryQuery{
			Tickers: args.tickers,
			Fields:  args.fields,
			Range:   rng,
			Adjust:  args.adjust,
		})

	case "bulk":
		asof, err := parseDate(args.start, false)
		if err != nil {
			return nil, err
		}
		return p.Bulk(ctx, planner.BulkQuery{
			Tickers: args.tickers,
			Fields:  args.fields,
			AsOf:    asof,
			Adjust:  args.adjust,
		})

	case "intraday":
		if len(args.tickers) != 1 {
			return nil, fmt.Errorf("intraday queries take exactly one ticker")
		}
		rng, err := parseRange(args.start, args.end)
		if err != nil {
			return nil, err
		}
		return p.Intraday(ctx, planner.IntradayQuery{
			Ticker:    args.tickers[0],
			Range:     rng,
			Session:   args.session,
			BarSize:   args.barSize,
			EventType: args.eventType,
			Adjust:    args.adjust,
		})

	default:
		return nil, fmt.Errorf("unknown query kind %q", args.kind)
	}
}

func parseDate(s string, required bool) (time.Time, error) {
	if s == "" {
		if required {
			return time.Time{}, fmt.Errorf("date is required")
		}
		return time.Time{}, nil
	}
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return ts.UTC(), nil
}

func parseRange(start, end string) (model.DateRange, error) {
	s, err := parseDate(start, true)
	if err != nil {
		return model.DateRange{}, err
	}
	e, err := parseDate(end, true)
	if err != nil {
		return model.DateRange{}, err
	}
	return model.DateRange{Start: s, End: e}, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func printResult(res *planner.Result) {
	enc := json.NewEncoder(os.Stdout)
	for _, row := range res.Rows {
		record := make(map[string]any, len(res.Columns))
		record["ticker"] = row.Ticker
		record["ts"] = row.Ts.Format(time.RFC3339)
		for _, col := range res.Columns[2:] {
			if v := row.Value(col); v != nil {
				record[col] = v
			}
		}
		enc.Encode(record)
	}
}
