package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/quantora/feedcache/internal/model"
)

// Client is a single authenticated session to the upstream feed.
type Client interface {
	// Connect establishes the session.
	Connect(ctx context.Context) error

	// Query sends one request and waits for its correlated response.
	Query(ctx context.Context, req Request) ([]model.Row, error)

	// Close tears the session down.
	Close() error

	// Connected returns current session state.
	Connected() bool
}

// client implements the Client interface.
type client struct {
	cfg     Config
	logger  *slog.Logger
	limiter *rate.Limiter

	conn *websocket.Conn

	// Write serialization
	writeMu sync.Mutex

	// Command/response correlation
	pendingMu sync.Mutex
	pending   map[string]chan response

	done chan struct{}

	// State
	mu        sync.RWMutex
	connected bool
	closed    bool
}

// NewClient creates a feed client. The session is established lazily by
// Connect.
func NewClient(cfg Config, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &client{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(limit, burst),
		pending: make(map[string]chan response),
		done:    make(chan struct{}),
	}
}

// Connect dials the feed and performs the signed handshake.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return &ConnectionError{URL: c.cfg.URL, Err: err}
	}

	creds := Credentials{KeyID: c.cfg.KeyID, Secret: c.cfg.Secret}
	header := creds.SignHandshake(u.Path)

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTTL,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return &ConnectionError{URL: c.cfg.URL, Err: err}
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	conn.SetPongHandler(func(string) error { return nil })

	go c.readLoop()
	go c.heartbeatLoop()

	c.logger.Debug("feed session established", "url", c.cfg.URL)
	return nil
}

// Close tears down the session.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	close(c.done)

	if c.conn != nil {
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return c.conn.Close()
	}
	return nil
}

// Connected returns the current session state.
func (c *client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Query sends one request and waits for its correlated response. Queries
// respect the license rate limit and the configured response deadline.
func (c *client) Query(ctx context.Context, req Request) ([]model.Row, error) {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return nil, ErrNotConnected
	}
	c.mu.RUnlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	respCh := make(chan response, 1)

	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	cmd := command{ID: id, Cmd: "query", Req: req}
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	if err := c.send(data); err != nil {
		return nil, err
	}

	timeout := c.cfg.QueryTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrNotConnected
	case <-time.After(timeout):
		return nil, ErrTimeout
	case resp := <-respCh:
		if resp.Type == "error" {
			qe := &QueryError{Code: "unknown", Message: "unspecified"}
			if resp.Err != nil {
				qe.Code = resp.Err.Code
				qe.Message = resp.Err.Message
			}
			return nil, qe
		}
		rows, err := normalizeRows(resp.Rows)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("feed query complete",
			"kind", req.Kind,
			"tickers", len(req.Tickers),
			"rows", len(rows),
		)
		return rows, nil
	}
}

// send writes raw bytes with the configured deadline.
func (c *client) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads responses and routes them to waiting queries.
func (c *client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("feed session read error", "error", err)
			}
			return
		}

		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Warn("unparseable feed message", "error", err)
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.pendingMu.Unlock()

		if !ok {
			c.logger.Debug("uncorrelated feed message", "id", resp.ID, "type", resp.Type)
			continue
		}

		select {
		case ch <- resp:
		default:
		}
	}
}

// heartbeatLoop keeps the session alive.
func (c *client) heartbeatLoop() {
	interval := c.cfg.PingInterval
	if interval == 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				return
			}
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}
		}
	}
}
