package calendar

import (
	"time"

	"github.com/quantora/feedcache/internal/model"
)

// Resolve turns (exchange, calendar date, session name) into an absolute UTC
// window. An empty session name means the whole trading day. A session whose
// local close precedes its local open rolls the close into the next calendar
// day.
func (c *Calendar) Resolve(code string, date time.Time, session string) (Window, error) {
	ex, err := c.Info(code)
	if err != nil {
		return Window{}, err
	}

	if session == "" {
		session = SessionDay
	}
	win, ok := ex.Sessions[session]
	if !ok {
		return Window{}, &InvalidSessionError{Exchange: code, Session: session}
	}

	start := win.Start.On(date, ex.loc)
	end := win.End.On(date, ex.loc)
	if win.crossesMidnight() {
		end = end.AddDate(0, 0, 1)
	}

	return Window{
		Exchange: code,
		Session:  session,
		TZ:       ex.TZ,
		Start:    start.UTC(),
		End:      end.UTC(),
	}, nil
}

// ResolveTicker is Resolve with the exchange looked up from the ticker.
func (c *Calendar) ResolveTicker(t model.Ticker, date time.Time, session string) (Window, error) {
	code, err := c.ExchangeFor(t)
	if err != nil {
		return Window{}, err
	}
	return c.Resolve(code, date, session)
}

// Sessions lists the configured session names for an exchange.
func (c *Calendar) Sessions(code string) ([]string, error) {
	ex, err := c.Info(code)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ex.Sessions))
	for name := range ex.Sessions {
		names = append(names, name)
	}
	return names, nil
}
