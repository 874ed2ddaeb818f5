package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantora/feedcache/internal/config"
	"github.com/quantora/feedcache/internal/model"
)

// series_rows holds raw rows keyed by cache identity and timestamp;
// series_cover records which day timestamps each entry covers, including
// days that produced no rows. written_at drives snapshot staleness.
const schema = `
	CREATE TABLE IF NOT EXISTS series_rows (
		cache_key  TEXT        NOT NULL,
		ts         TIMESTAMPTZ NOT NULL,
		ticker     TEXT        NOT NULL,
		vals       JSONB       NOT NULL,
		written_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (cache_key, ts)
	);
	CREATE TABLE IF NOT EXISTS series_cover (
		cache_key TEXT        NOT NULL,
		day       TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (cache_key, day)
	)
`

// pgStore is a postgres-backed store sharing one pgxpool.
type pgStore struct {
	pool      *pgxpool.Pool
	refMaxAge time.Duration
	logger    *slog.Logger
}

// OpenPostgres connects the pool, ensures the schema, and returns the
// store.
func OpenPostgres(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(connString(cfg.DB))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.DB.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.DB.MinConns)
	}
	if cfg.DB.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.DB.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &pgStore{
		pool:      pool,
		refMaxAge: cfg.ReferenceMaxAge,
		logger:    logger,
	}, nil
}

// connString builds a postgres URL from config.
func connString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}

func (s *pgStore) Read(ctx context.Context, key model.CacheKey, want []time.Time) (model.Series, []model.DateRange, error) {
	if len(want) == 0 {
		return model.Series{}, nil, nil
	}

	snapshot := key.Granularity == model.Reference || key.Granularity == model.Bulk

	// Snapshot rows carry event dates, not range days, so they are read
	// by key alone. Intraday windows cross UTC midnight, so the lower
	// bound reaches back a day.
	query := `
		SELECT ts, ticker, vals, written_at
		FROM series_rows
		WHERE cache_key = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts
	`
	from := want[0]
	if key.Granularity == model.Intraday {
		from = from.Add(-24 * time.Hour)
	}
	args := []any{key.String(), from, want[len(want)-1].Add(24 * time.Hour)}
	if snapshot {
		query = `
			SELECT ts, ticker, vals, written_at
			FROM series_rows
			WHERE cache_key = $1
			ORDER BY ts
		`
		args = args[:1]
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		// Read failures degrade to a miss; the feed remains authoritative.
		s.logger.Warn("cache read failed, treating as miss",
			"key", key.String(),
			"error", err,
		)
		return model.Series{}, missingRanges(want, nil), nil
	}
	defer rows.Close()

	var series model.Series
	oldest := time.Time{}
	for rows.Next() {
		var (
			row       model.Row
			payload   []byte
			writtenAt time.Time
		)
		if err := rows.Scan(&row.Ts, &row.Ticker, &payload, &writtenAt); err != nil {
			return model.Series{}, nil, fmt.Errorf("scan cached row: %w", err)
		}
		if err := json.Unmarshal(payload, &row.Values); err != nil {
			s.logger.Warn("corrupt cache entry, treating as miss",
				"key", key.String(),
				"ts", row.Ts,
				"error", err,
			)
			continue
		}
		row.Ts = row.Ts.UTC()
		if oldest.IsZero() || writtenAt.Before(oldest) {
			oldest = writtenAt
		}
		series.Rows = append(series.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return model.Series{}, nil, fmt.Errorf("iterate cached rows: %w", err)
	}

	// Snapshots are covered as a whole: the entry either answers the
	// as-of request or it does not.
	if snapshot {
		if series.Len() == 0 || s.refStale(oldest) {
			return model.Series{}, missingRanges(want, nil), nil
		}
		return series, nil, nil
	}

	have, err := s.coveredDays(ctx, key, want)
	if err != nil {
		return model.Series{}, nil, err
	}
	for day := range series.Days() {
		have[day] = struct{}{}
	}

	if key.Granularity == model.Intraday {
		return series, missingRanges(want, have), nil
	}

	wantSet := make(map[time.Time]struct{}, len(want))
	for _, day := range want {
		wantSet[day] = struct{}{}
	}
	var out model.Series
	for _, row := range series.Rows {
		if _, ok := wantSet[model.Day(row.Ts)]; ok {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, missingRanges(want, have), nil
}

// Write batch-upserts rows and records the covered days, last write
// winning on timestamp collisions.
func (s *pgStore) Write(ctx context.Context, key model.CacheKey, series model.Series, covered []time.Time) error {
	if series.Len() == 0 && len(covered) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range series.Rows {
		payload, err := json.Marshal(row.Values)
		if err != nil {
			return fmt.Errorf("encode cache entry: %w", err)
		}
		batch.Queue(`
			INSERT INTO series_rows (cache_key, ts, ticker, vals, written_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (cache_key, ts) DO UPDATE
			SET ticker = EXCLUDED.ticker, vals = EXCLUDED.vals, written_at = now()
		`, key.String(), row.Ts, row.Ticker, payload)
	}
	for _, day := range covered {
		batch.Queue(`
			INSERT INTO series_cover (cache_key, day)
			VALUES ($1, $2)
			ON CONFLICT (cache_key, day) DO NOTHING
		`, key.String(), model.Day(day))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < series.Len()+len(covered); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert cached rows: %w", err)
		}
	}

	s.logger.Debug("persisted cache rows",
		"key", key.String(),
		"rows", series.Len(),
		"covered", len(covered),
	)
	return nil
}

func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

// coveredDays loads the recorded coverage for the wanted window.
func (s *pgStore) coveredDays(ctx context.Context, key model.CacheKey, want []time.Time) (map[time.Time]struct{}, error) {
	out := make(map[time.Time]struct{}, len(want))

	rows, err := s.pool.Query(ctx, `
		SELECT day FROM series_cover
		WHERE cache_key = $1 AND day >= $2 AND day <= $3
	`, key.String(), want[0], want[len(want)-1])
	if err != nil {
		s.logger.Warn("cache coverage read failed, treating as miss",
			"key", key.String(),
			"error", err,
		)
		return out, nil
	}
	defer rows.Close()

	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan coverage day: %w", err)
		}
		out[model.Day(day)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coverage days: %w", err)
	}
	return out, nil
}

// refStale reports whether a snapshot written at oldest has outlived the
// as-of window.
func (s *pgStore) refStale(oldest time.Time) bool {
	if oldest.IsZero() {
		return false
	}
	if s.refMaxAge <= 0 {
		return false
	}
	return time.Since(oldest) > s.refMaxAge
}
