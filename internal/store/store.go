package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/quantora/feedcache/internal/config"
	"github.com/quantora/feedcache/internal/model"
)

// Store is the cache adapter consulted before the feed.
//
// Read is asked for a set of expected day timestamps (UTC midnights,
// already filtered to trading days). It returns whatever cached rows fall
// on those days plus the coalesced sub-ranges of want that are not
// covered. A corrupt or unreadable entry is reported as a miss, never as
// an error.
type Store interface {
	Read(ctx context.Context, key model.CacheKey, want []time.Time) (model.Series, []model.DateRange, error)

	// Write merges the series into the cached entry for key, last write
	// winning on timestamp collisions. covered lists the day timestamps
	// this write satisfies; they are recorded even when a day produced no
	// rows, so a quiet trading day is not re-fetched forever. Intraday
	// rows may fall outside their covered day in UTC (cross-midnight
	// sessions), which is why coverage is declared rather than inferred.
	Write(ctx context.Context, key model.CacheKey, series model.Series, covered []time.Time) error

	Close() error
}

// Open builds the store selected by cfg. An empty backend disables
// caching.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "file":
		return NewFileStore(cfg.Root, cfg.ReferenceMaxAge, logger), nil
	case "postgres":
		return OpenPostgres(ctx, cfg, logger)
	default:
		return Disabled(), nil
	}
}

// Disabled returns a store where every read misses and writes are
// dropped. Used when no cache root or DSN is configured.
func Disabled() Store {
	return disabled{}
}

type disabled struct{}

func (disabled) Read(_ context.Context, _ model.CacheKey, want []time.Time) (model.Series, []model.DateRange, error) {
	return model.Series{}, missingRanges(want, nil), nil
}

func (disabled) Write(context.Context, model.CacheKey, model.Series, []time.Time) error {
	return nil
}

func (disabled) Close() error { return nil }
