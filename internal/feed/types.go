package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quantora/feedcache/internal/model"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrTimeout       = errors.New("query timeout")
	ErrAlreadyClosed = errors.New("already closed")
)

// ConnectionError reports a failure to establish the upstream session.
// Fatal for the current call; callers may retry at a higher level.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect feed %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError is an upstream rejection of a single query.
type QueryError struct {
	Code    string
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("feed query failed: %s: %s", e.Code, e.Message)
}

// KV is one validated override forwarded verbatim to the feed.
type KV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Request is one outbound query descriptor. Built by the planner; the
// start/end pair is already concrete (session windows resolved).
type Request struct {
	Kind      model.Granularity `json:"kind"`
	Tickers   []string          `json:"tickers"`
	Fields    []string          `json:"fields,omitempty"`
	Start     time.Time         `json:"start,omitempty"`
	End       time.Time         `json:"end,omitempty"`
	BarSize   time.Duration     `json:"bar_size,omitempty"`
	EventType string            `json:"event_type,omitempty"`
	Overrides []KV              `json:"overrides,omitempty"`
}

// command is the wire envelope for an outbound query.
type command struct {
	ID  string  `json:"id"`
	Cmd string  `json:"cmd"`
	Req Request `json:"req"`
}

// response is the wire envelope for an inbound message.
type response struct {
	ID   string          `json:"id"`
	Type string          `json:"type"` // "result", "error", "ok"
	Rows json.RawMessage `json:"rows,omitempty"`
	Err  *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Config configures a feed client.
type Config struct {
	URL          string        // WebSocket endpoint
	KeyID        string        // License key ID
	Secret       string        // Shared secret for handshake signing
	QueryTimeout time.Duration // Per-query response deadline
	PingInterval time.Duration // Keepalive interval
	WriteTimeout time.Duration // Socket write deadline
	HandshakeTTL time.Duration // Dial deadline
	RateLimit    float64       // Queries per second; 0 disables limiting
	RateBurst    int           // Burst allowance
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueryTimeout: 30 * time.Second,
		PingInterval: 15 * time.Second,
		WriteTimeout: 5 * time.Second,
		HandshakeTTL: 10 * time.Second,
		RateLimit:    5,
		RateBurst:    10,
	}
}
