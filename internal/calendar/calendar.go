package calendar

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantora/feedcache/internal/model"
)

//go:embed exchanges.yaml
var defaultTables []byte

// Calendar holds the loaded mapping tables. Immutable after construction.
type Calendar struct {
	suffixes  map[string]string // ticker suffix -> exchange code
	tickers   map[string]string // exact ticker -> exchange code (overrides suffix)
	exchanges map[string]*Exchange
}

type tablesFile struct {
	Suffixes  map[string]string    `yaml:"suffixes"`
	Tickers   map[string]string    `yaml:"tickers"`
	Exchanges map[string]*Exchange `yaml:"exchanges"`
}

// Load reads exchange tables from path, or the embedded defaults when path
// is empty.
func Load(path string) (*Calendar, error) {
	data := defaultTables
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read calendar tables: %w", err)
		}
	}

	var tf tablesFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse calendar tables: %w", err)
	}

	cal := &Calendar{
		suffixes:  tf.Suffixes,
		tickers:   tf.Tickers,
		exchanges: tf.Exchanges,
	}
	if cal.suffixes == nil {
		cal.suffixes = map[string]string{}
	}
	if cal.tickers == nil {
		cal.tickers = map[string]string{}
	}

	for code, ex := range cal.exchanges {
		if err := ex.finalize(); err != nil {
			return nil, fmt.Errorf("exchange %s: %w", code, err)
		}
	}
	return cal, nil
}

// finalize resolves the timezone and indexes weekend/holiday lookups.
func (ex *Exchange) finalize() error {
	loc, err := time.LoadLocation(ex.TZ)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", ex.TZ, err)
	}
	ex.loc = loc

	ex.weekend = make(map[time.Weekday]struct{})
	if len(ex.Weekend) == 0 {
		ex.weekend[time.Saturday] = struct{}{}
		ex.weekend[time.Sunday] = struct{}{}
	}
	for _, name := range ex.Weekend {
		wd, err := parseWeekday(name)
		if err != nil {
			return err
		}
		ex.weekend[wd] = struct{}{}
	}

	ex.holidays = make(map[string]struct{}, len(ex.Holidays))
	for _, h := range ex.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return fmt.Errorf("parse holiday %q: %w", h, err)
		}
		ex.holidays[h] = struct{}{}
	}

	if ex.Sessions == nil {
		ex.Sessions = map[string]SessionWindow{}
	}
	// The whole-day session is always available.
	if _, ok := ex.Sessions[SessionDay]; !ok {
		ex.Sessions[SessionDay] = SessionWindow{Start: ex.Open, End: ex.Close}
	}
	return nil
}

func parseWeekday(name string) (time.Weekday, error) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if wd.String() == name {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}

// ExchangeFor maps a ticker to its exchange code: exact ticker entries win,
// then the parsed suffix.
func (c *Calendar) ExchangeFor(t model.Ticker) (string, error) {
	if code, ok := c.tickers[t.Raw]; ok {
		return code, nil
	}
	if code, ok := c.suffixes[t.Suffix]; ok && t.Suffix != "" {
		return code, nil
	}
	return "", &ConfigurationError{Ticker: t.Raw}
}

// Info returns the static configuration for an exchange code.
func (c *Calendar) Info(code string) (*Exchange, error) {
	ex, ok := c.exchanges[code]
	if !ok {
		return nil, &ConfigurationError{Exchange: code}
	}
	return ex, nil
}

// IsTradingDay reports whether date (interpreted as a calendar date) is a
// trading day for the exchange.
func (c *Calendar) IsTradingDay(code string, date time.Time) (bool, error) {
	ex, err := c.Info(code)
	if err != nil {
		return false, err
	}
	if _, ok := ex.weekend[date.Weekday()]; ok {
		return false, nil
	}
	if _, ok := ex.holidays[date.Format("2006-01-02")]; ok {
		return false, nil
	}
	return true, nil
}

// TradingDays returns the UTC midnights of all trading days inside the
// inclusive range, ordered ascending.
func (c *Calendar) TradingDays(code string, r model.DateRange) ([]time.Time, error) {
	ex, err := c.Info(code)
	if err != nil {
		return nil, err
	}

	var days []time.Time
	for d := model.Day(r.Start); !d.After(model.Day(r.End)); d = d.AddDate(0, 0, 1) {
		if _, ok := ex.weekend[d.Weekday()]; ok {
			continue
		}
		if _, ok := ex.holidays[d.Format("2006-01-02")]; ok {
			continue
		}
		days = append(days, d)
	}
	return days, nil
}
