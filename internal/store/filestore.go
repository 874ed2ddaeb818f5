package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/quantora/feedcache/internal/model"
)

const (
	seriesFile   = "series.json"
	manifestFile = "days.json"
	dayLayout    = "2006-01-02"
)

// fileStore persists one JSON blob per cache entry under
// root/asset/ticker/key, alongside a manifest of the day timestamps the
// entry covers.
type fileStore struct {
	root      string
	refMaxAge time.Duration
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates a file-backed store rooted at root. refMaxAge
// bounds how long cached snapshots stay servable; zero means forever.
func NewFileStore(root string, refMaxAge time.Duration, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &fileStore{
		root:      root,
		refMaxAge: refMaxAge,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *fileStore) Read(_ context.Context, key model.CacheKey, want []time.Time) (model.Series, []model.DateRange, error) {
	if len(want) == 0 {
		return model.Series{}, nil, nil
	}

	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	dir := s.keyDir(key)
	path := filepath.Join(dir, seriesFile)

	// Snapshots (reference, bulk) are covered as a whole: the blob either
	// answers the as-of request or it does not. Bulk rows carry event
	// dates, not trading days, so per-day coverage would never converge.
	if key.Granularity == model.Reference || key.Granularity == model.Bulk {
		if s.stale(path) {
			return model.Series{}, missingRanges(want, nil), nil
		}
		series := s.loadBlob(path, key)
		if series.Len() == 0 {
			return model.Series{}, missingRanges(want, nil), nil
		}
		return series, nil, nil
	}

	series := s.loadBlob(path, key)

	have := series.Days()
	for day := range s.loadManifest(dir) {
		have[day] = struct{}{}
	}

	// Intraday rows of a cross-midnight session precede their covered day
	// in UTC, so intraday entries come back whole and the caller slices
	// to the resolved window.
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

func (s *fileStore) Write(_ context.Context, key model.CacheKey, series model.Series, covered []time.Time) error {
	if series.Len() == 0 && len(covered) == 0 {
		return nil
	}

	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	dir := s.keyDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	path := filepath.Join(dir, seriesFile)
	existing := s.loadBlob(path, key)
	existing.Merge(series)
	if err := s.saveBlob(path, existing); err != nil {
		return err
	}

	if len(covered) == 0 {
		return nil
	}
	manifest := s.loadManifest(dir)
	for _, day := range covered {
		manifest[model.Day(day)] = struct{}{}
	}
	return s.saveManifest(dir, manifest)
}

func (s *fileStore) Close() error { return nil }

// loadBlob reads one JSON blob. Missing files and corrupt payloads both
// come back empty; corruption is logged and treated as a miss.
func (s *fileStore) loadBlob(path string, key model.CacheKey) model.Series {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Series{}
	}

	var rows []model.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		s.logger.Warn("corrupt cache entry, treating as miss",
			"path", path,
			"key", key.String(),
			"error", err,
		)
		return model.Series{}
	}
	return model.Series{Rows: rows}
}

// saveBlob writes the blob atomically via temp file and rename.
func (s *fileStore) saveBlob(path string, series model.Series) error {
	data, err := json.Marshal(series.Rows)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return s.atomicWrite(path, data)
}

// loadManifest reads the covered-day set. Corruption degrades to empty.
func (s *fileStore) loadManifest(dir string) map[time.Time]struct{} {
	out := make(map[time.Time]struct{})

	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return out
	}
	var days []string
	if err := json.Unmarshal(data, &days); err != nil {
		s.logger.Warn("corrupt cache manifest, treating as miss",
			"dir", dir,
			"error", err,
		)
		return out
	}
	for _, d := range days {
		ts, err := time.Parse(dayLayout, d)
		if err != nil {
			continue
		}
		out[ts.UTC()] = struct{}{}
	}
	return out
}

func (s *fileStore) saveManifest(dir string, days map[time.Time]struct{}) error {
	list := make([]string, 0, len(days))
	for day := range days {
		list = append(list, day.Format(dayLayout))
	}
	sort.Strings(list)

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode cache manifest: %w", err)
	}
	return s.atomicWrite(filepath.Join(dir, manifestFile), data)
}

func (s *fileStore) atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close cache entry: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// stale reports whether a snapshot blob is missing or older than the
// configured as-of window.
func (s *fileStore) stale(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	if s.refMaxAge <= 0 {
		return false
	}
	return time.Since(info.ModTime()) > s.refMaxAge
}

// keyDir is root/asset/ticker/key-identity.
func (s *fileStore) keyDir(key model.CacheKey) string {
	return filepath.Join(s.root, key.Ticker.Asset, key.Ticker.PathSafe(), key.Dir())
}

// keyLock returns the mutex guarding one cache entry.
func (s *fileStore) keyLock(key model.CacheKey) *sync.Mutex {
	id := key.Ticker.Raw + "|" + key.Dir()

	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}
