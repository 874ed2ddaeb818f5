// fcwarm pre-populates the local cache for a list of tickers over a date
// range. It pins the feed session for the whole run so the per-call
// acquire/release cycles inside the planner reuse one connection instead
// of redialing per ticker.
package main

import (
	"context"
	"flag"
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
	tickers := flag.String("tickers", "", "comma-separated tickers to warm")
	fields := flag.String("fields", "PX_OPEN,PX_HIGH,PX_LOW,PX_LAST,PX_VOLUME", "comma-separated daily fields")
	start := flag.String("start", "", "range start (2006-01-02)")
	end := flag.String("end", "", "range end (2006-01-02)")
	adjustFlag := flag.String("adjust", "all", "adjustment flags: all, none, or csv of dividends,splits,capital_changes")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting fcwarm", "version", version.Version, "config", *configPath)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	list := splitList(*tickers)
	if len(list) == 0 {
		logger.Error("no tickers given")
		os.Exit(1)
	}
	rng, err := parseRange(*start, *end)
	if err != nil {
		logger.Error("bad date range", "error", err)
		os.Exit(1)
	}
	adj, err := model.ParseAdjust(*adjustFlag)
	if err != nil {
		logger.Error("bad adjust flags", "error", err)
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

	cal, err := calendar.Load(cfg.Calendar.Path)
	if err != nil {
		logger.Error("failed to load calendar", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	mgr := conn.NewFeedManager(feed.Config{
		URL:          cfg.Feed.URL,
		KeyID:        cfg.Feed.KeyID,
		Secret:       cfg.Feed.Secret,
		QueryTimeout: cfg.Feed.QueryTimeout,
		PingInterval: cfg.Feed.PingInterval,
		WriteTimeout: cfg.Feed.WriteTimeout,
		HandshakeTTL: cfg.Feed.HandshakeTTL,
		RateLimit:    cfg.Feed.RateLimit,
		RateBurst:    cfg.Feed.RateBurst,
	}, logger)

	// Hold a session reference for the whole run. Every per-ticker fetch
	// below acquires and releases its own reference, and this outer one
	// keeps the refcount above zero in between.
	pin, err := mgr.Acquire(ctx)
	if err != nil {
		logger.Error("failed to connect to feed", "error", err)
		os.Exit(1)
	}
	defer pin.Release()

	p := planner.New(cal, st, mgr, cfg.Planner, logger)

	failed := 0
	for _, ticker := range list {
		if ctx.Err() != nil {
			break
		}
		started := time.Now()
		res, err := p.History(ctx, planner.HistoryQuery{
			Tickers: []string{ticker},
			Fields:  splitList(*fields),
			Range:   rng,
			Adjust:  adj,
		})
		if err != nil {
			logger.Error("warm failed", "ticker", ticker, "error", err)
			failed++
			continue
		}
		logger.Info("warmed",
			"ticker", ticker,
			"rows", len(res.Rows),
			"elapsed", time.Since(started).Round(time.Millisecond),
		)
	}

	if failed > 0 {
		logger.Error("finished with failures", "failed", failed, "total", len(list))
		os.Exit(1)
	}
	logger.Info("finished", "tickers", len(list))
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

func parseRange(start, end string) (model.DateRange, error) {
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return model.DateRange{}, err
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return model.DateRange{}, err
	}
	return model.DateRange{Start: s.UTC(), End: e.UTC()}, nil
}
