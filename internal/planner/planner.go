package planner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantora/feedcache/internal/adjust"
	"github.com/quantora/feedcache/internal/calendar"
	"github.com/quantora/feedcache/internal/config"
	"github.com/quantora/feedcache/internal/conn"
	"github.com/quantora/feedcache/internal/feed"
	"github.com/quantora/feedcache/internal/model"
	"github.com/quantora/feedcache/internal/store"
)

// Planner executes the fetch algorithm for every query kind.
type Planner struct {
	cal    *calendar.Calendar
	store  store.Store
	conns  conn.Manager
	cfg    config.PlannerConfig
	logger *slog.Logger

	now func() time.Time // Injected for tests
}

// New wires a planner.
func New(cal *calendar.Calendar, st store.Store, conns conn.Manager, cfg config.PlannerConfig, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		cal:    cal,
		store:  st,
		conns:  conns,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Reference fetches a point-in-time snapshot of scalar fields.
func (p *Planner) Reference(ctx context.Context, q ReferenceQuery) (*Result, error) {
	asof := q.AsOf
	if asof.IsZero() {
		asof = p.now()
	}
	return p.fetch(ctx, callSpec{
		gran:      model.Reference,
		tickers:   q.Tickers,
		fields:    q.Fields,
		rng:       model.DateRange{Start: model.Day(asof), End: model.Day(asof)},
		adjust:    q.Adjust,
		overrides: q.Overrides,
	})
}

// History fetches a daily historical series.
func (p *Planner) History(ctx context.Context, q HistoryQuery) (*Result, error) {
	return p.fetch(ctx, callSpec{
		gran:      model.Daily,
		tickers:   q.Tickers,
		fields:    q.Fields,
		rng:       q.Range,
		adjust:    q.Adjust,
		overrides: q.Overrides,
	})
}

// Bulk fetches a table field (multiple rows per ticker).
func (p *Planner) Bulk(ctx context.Context, q BulkQuery) (*Result, error) {
	asof := q.AsOf
	if asof.IsZero() {
		asof = p.now()
	}
	return p.fetch(ctx, callSpec{
		gran:      model.Bulk,
		tickers:   q.Tickers,
		fields:    q.Fields,
		rng:       model.DateRange{Start: model.Day(asof), End: model.Day(asof)},
		adjust:    q.Adjust,
		overrides: q.Overrides,
	})
}

// Intraday fetches a bar series for one ticker, the session window
// resolved per trading day through the exchange calendar.
func (p *Planner) Intraday(ctx context.Context, q IntradayQuery) (*Result, error) {
	barSize := q.BarSize
	if barSize == 0 {
		barSize = time.Minute
	}
	eventType := q.EventType
	if eventType == "" {
		eventType = "TRADE"
	}
	return p.fetch(ctx, callSpec{
		gran:      model.Intraday,
		tickers:   []string{q.Ticker},
		fields:    q.Fields(),
		rng:       q.Range,
		adjust:    q.Adjust,
		overrides: q.Overrides,
		session:   q.Session,
		barSize:   barSize,
		eventType: eventType,
	})
}

// callSpec is one validated logical call, shared by all query kinds.
type callSpec struct {
	gran      model.Granularity
	tickers   []string
	fields    model.FieldSet
	rng       model.DateRange
	adjust    model.AdjustFlags
	overrides Overrides
	session   string
	barSize   time.Duration
	eventType string
}

func (c callSpec) validate() error {
	if !c.gran.Known() {
		return &ValidationError{Field: "granularity", Reason: "unknown granularity " + string(c.gran)}
	}
	if len(c.tickers) == 0 {
		return &ValidationError{Field: "tickers", Reason: "at least one ticker is required"}
	}
	if len(c.fields) == 0 {
		return &ValidationError{Field: "fields", Reason: "at least one field is required"}
	}
	if err := c.rng.Validate(); err != nil {
		return &ValidationError{Field: "range", Reason: err.Error()}
	}
	return nil
}

func (c callSpec) snapshot() bool {
	return c.gran == model.Reference || c.gran == model.Bulk
}

// tickerState carries one ticker through the call.
type tickerState struct {
	ticker  model.Ticker
	key     model.CacheKey
	want    []time.Time
	cached  model.Series
	missing []model.DateRange
	fetched model.Series
}

// fetchGroup is one remote request: a missing sub-range shared by the
// tickers that need it.
type fetchGroup struct {
	rng    model.DateRange
	states []*tickerState
}

// fetch runs the core algorithm: read coverage, dispatch the missing
// sub-ranges, persist, merge, adjust, shape.
func (p *Planner) fetch(ctx context.Context, call callSpec) (*Result, error) {
	if err := call.validate(); err != nil {
		return nil, err
	}
	kvs, err := call.overrides.Normalize()
	if err != nil {
		return nil, err
	}

	if p.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.CallTimeout)
		defer cancel()
	}

	states := make([]*tickerState, 0, len(call.tickers))
	for _, raw := range call.tickers {
		t, err := model.ParseTicker(raw)
		if err != nil {
			return nil, &ValidationError{Field: "tickers", Reason: err.Error()}
		}

		want, err := p.wantDays(call, t)
		if err != nil {
			return nil, err
		}

		key := model.NewCacheKey(t, call.fields, call.gran, call.adjust)
		key.BarSize = call.barSize
		key.EventType = call.eventType
		key.Session = call.session
		key.Overrides = fingerprint(kvs)
		if call.snapshot() {
			key.AsOf = model.Day(call.rng.Start)
		}

		st := &tickerState{ticker: t, key: key, want: want}
		if len(want) == 0 {
			states = append(states, st)
			continue
		}

		if p.cfg.ForceRefresh {
			st.missing = []model.DateRange{{Start: want[0], End: want[len(want)-1]}}
		} else {
			st.cached, st.missing, err = p.store.Read(ctx, key, want)
			if err != nil {
				return nil, err
			}
		}
		states = append(states, st)
	}

	groups := groupMissing(states)
	if len(groups) == 0 {
		p.logger.Debug("served from cache",
			"gran", call.gran,
			"tickers", len(states),
		)
		return p.assemble(call, states), nil
	}

	handle, err := p.conns.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	limit := p.cfg.MaxParallel
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			req, err := p.buildRequest(call, grp, kvs)
			if err != nil {
				return err
			}

			rows, err := handle.Query(gctx, req)
			if err != nil {
				return &RemoteFetchError{
					SubRange: grp.rng,
					Tickers:  grp.tickerNames(),
					Err:      err,
				}
			}

			byTicker := partition(rows, grp)

			mu.Lock()
			for _, st := range grp.states {
				st.fetched.Merge(model.Series{Rows: byTicker[st.ticker.Raw]})
			}
			mu.Unlock()

			// Persist each successful sub-range as it lands. A later
			// sub-range failure keeps these writes.
			for _, st := range grp.states {
				persist, covered := p.persistable(call, st, grp, byTicker[st.ticker.Raw])
				if persist.Len() == 0 && len(covered) == 0 {
					continue
				}
				if err := p.store.Write(ctx, st.key, persist, covered); err != nil {
					p.logger.Warn("cache write failed",
						"key", st.key.String(),
						"error", err,
					)
				}
			}

			p.logger.Debug("sub-range fetched",
				"range", grp.rng.String(),
				"tickers", len(grp.states),
				"rows", len(rows),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return p.assemble(call, states), nil
}

// wantDays lists the day timestamps a fully-covered cache entry must
// hold. Snapshots want their single as-of day; series want the
// exchange's trading days so holidays and weekends never read as gaps.
func (p *Planner) wantDays(call callSpec, t model.Ticker) ([]time.Time, error) {
	if call.snapshot() {
		return []time.Time{model.Day(call.rng.Start)}, nil
	}
	code, err := p.cal.ExchangeFor(t)
	if err != nil {
		return nil, err
	}
	return p.cal.TradingDays(code, call.rng)
}

// buildRequest shapes one remote request for a fetch group. Intraday
// ranges resolve through the session calendar into concrete instants.
func (p *Planner) buildRequest(call callSpec, grp *fetchGroup, kvs []feed.KV) (feed.Request, error) {
	req := feed.Request{
		Kind:      call.gran,
		Tickers:   grp.tickerNames(),
		Fields:    call.fields.Normalized(),
		Start:     grp.rng.Start,
		End:       grp.rng.End,
		BarSize:   call.barSize,
		EventType: call.eventType,
		Overrides: kvs,
	}

	if call.gran == model.Intraday {
		t := grp.states[0].ticker
		first, err := p.cal.ResolveTicker(t, grp.rng.Start, call.session)
		if err != nil {
			return feed.Request{}, err
		}
		last, err := p.cal.ResolveTicker(t, grp.rng.End, call.session)
		if err != nil {
			return feed.Request{}, err
		}
		req.Start = first.Start
		req.End = last.End
	}
	return req, nil
}

// persistable filters freshly fetched rows down to what should be
// cached, and lists the days this write covers. Intraday days whose
// session closed less than an hour ago (or is still open) are withheld
// entirely, so a rerun refreshes them once the session has settled.
func (p *Planner) persistable(call callSpec, st *tickerState, grp *fetchGroup, rows []model.Row) (model.Series, []time.Time) {
	fetched := daysWithin(st.want, grp.rng)
	if call.gran != model.Intraday {
		return model.Series{Rows: rows}, fetched
	}

	cutoff := p.now().Add(-time.Hour)

	var covered []time.Time
	var windows []calendar.Window
	for _, day := range fetched {
		win, err := p.cal.ResolveTicker(st.ticker, day, call.session)
		if err != nil || !win.End.Before(cutoff) {
			continue
		}
		covered = append(covered, day)
		windows = append(windows, win)
	}

	// Rows are attributed to trading days through their session windows,
	// not their UTC dates; cross-midnight sessions straddle two of those.
	var out model.Series
	for _, row := range rows {
		for _, win := range windows {
			if !row.Ts.Before(win.Start) && !row.Ts.After(win.End) {
				out.Rows = append(out.Rows, row)
				break
			}
		}
	}
	return out, covered
}

// sessionSlice keeps the rows inside each requested day's resolved
// session window, the same attribution persistable uses on the way in.
func (p *Planner) sessionSlice(call callSpec, st *tickerState, merged model.Series) model.Series {
	windows := make([]calendar.Window, 0, len(st.want))
	for _, day := range st.want {
		win, err := p.cal.ResolveTicker(st.ticker, day, call.session)
		if err != nil {
			continue
		}
		windows = append(windows, win)
	}

	var out model.Series
	for _, row := range merged.Rows {
		for _, win := range windows {
			if !row.Ts.Before(win.Start) && !row.Ts.After(win.End) {
				out.Rows = append(out.Rows, row)
				break
			}
		}
	}
	return out
}

// daysWithin filters want days to those inside the inclusive range.
func daysWithin(want []time.Time, rng model.DateRange) []time.Time {
	var out []time.Time
	for _, day := range want {
		if rng.Contains(day) {
			out = append(out, day)
		}
	}
	return out
}

// assemble merges cached and fetched rows per ticker, applies the
// adjustment flags, and shapes the final table.
func (p *Planner) assemble(call callSpec, states []*tickerState) *Result {
	result := &Result{Columns: resultColumns(call.fields)}

	for _, st := range states {
		merged := st.cached
		merged.Merge(st.fetched)
		if merged.Len() == 0 {
			continue
		}

		// Intraday entries come back whole from the store, and the remote
		// window spans first session start to last session end, so rows
		// between sessions are trimmed per resolved day window here.
		if call.gran == model.Intraday && len(st.want) > 0 {
			merged = p.sessionSlice(call, st, merged)
		}

		rows := adjust.Apply(merged.Rows, call.adjust)
		for i := range rows {
			if rows[i].Ticker == "" {
				rows[i].Ticker = st.ticker.Raw
			}
		}
		result.Rows = append(result.Rows, rows...)
	}
	return result
}

// groupMissing batches tickers whose missing sub-ranges coincide into
// shared remote requests.
func groupMissing(states []*tickerState) []*fetchGroup {
	index := make(map[string]*fetchGroup)
	var out []*fetchGroup

	for _, st := range states {
		for _, rng := range st.missing {
			id := rng.Start.Format(time.RFC3339) + "/" + rng.End.Format(time.RFC3339)
			grp, ok := index[id]
			if !ok {
				grp = &fetchGroup{rng: rng}
				index[id] = grp
				out = append(out, grp)
			}
			grp.states = append(grp.states, st)
		}
	}
	return out
}

func (g *fetchGroup) tickerNames() []string {
	names := make([]string, len(g.states))
	for i, st := range g.states {
		names[i] = st.ticker.Raw
	}
	return names
}

// partition splits remote rows by ticker. Rows without a ticker column
// belong to the sole requested ticker when the request was unbatched.
func partition(rows []model.Row, grp *fetchGroup) map[string][]model.Row {
	out := make(map[string][]model.Row, len(grp.states))
	sole := ""
	if len(grp.states) == 1 {
		sole = grp.states[0].ticker.Raw
	}

	for _, row := range rows {
		name := row.Ticker
		if name == "" {
			if sole == "" {
				continue
			}
			name = sole
			row.Ticker = sole
		}
		out[name] = append(out[name], row)
	}
	return out
}
